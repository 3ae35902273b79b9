package batchcsv

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/chararch/batchcsv/util"
	"github.com/pkg/errors"
)

//JobRepository persists job instances, job executions and step executions
type JobRepository interface {
	//FindJobInstance find the instance identified by job name and params, nil if absent
	FindJobInstance(ctx context.Context, jobName string, params map[string]interface{}) (*JobInstance, BatchError)
	//FindLastJobInstance find the most recently created instance of a job, nil if absent
	FindLastJobInstance(ctx context.Context, jobName string) (*JobInstance, BatchError)
	CreateJobInstance(ctx context.Context, jobName string, params map[string]interface{}) (*JobInstance, BatchError)
	FindLastJobExecution(ctx context.Context, jobInstanceId int64) (*JobExecution, BatchError)
	FindJobExecution(ctx context.Context, jobExecutionId int64) (*JobExecution, BatchError)
	//SaveJobExecution insert or update, fails with ErrCodeConcurrency on a stale version
	SaveJobExecution(ctx context.Context, execution *JobExecution) BatchError
	FindStepExecutions(ctx context.Context, jobExecutionId int64) ([]*StepExecution, BatchError)
	//FindLastStepExecution find the last execution of a step across all executions of an instance
	FindLastStepExecution(ctx context.Context, jobInstanceId int64, stepName string) (*StepExecution, BatchError)
	//SaveStepExecution insert or update, fails with ErrCodeConcurrency on a stale version
	SaveStepExecution(ctx context.Context, execution *StepExecution) BatchError
}

func jobKey(params map[string]interface{}) (string, string, BatchError) {
	if params == nil {
		params = map[string]interface{}{}
	}
	str, err := util.JsonString(params)
	if err != nil {
		return "", "", NewBatchError(ErrCodeGeneral, "serialize job params err", err)
	}
	return str, util.MD5(str), nil
}

type storedStepExecution struct {
	execution      *StepExecution
	jobExecutionId int64
	jobInstanceId  int64
	contextJson    string
}

type memoryJobRepository struct {
	mu             sync.RWMutex
	instances      []*JobInstance
	jobExecutions  map[int64]*JobExecution
	stepExecutions []*storedStepExecution
	seq            int64
}

//NewMemoryJobRepository a JobRepository keeping everything in process memory
func NewMemoryJobRepository() JobRepository {
	return &memoryJobRepository{
		jobExecutions: make(map[int64]*JobExecution),
	}
}

func (r *memoryJobRepository) nextId() int64 {
	r.seq++
	return r.seq
}

func (r *memoryJobRepository) FindJobInstance(ctx context.Context, jobName string, params map[string]interface{}) (*JobInstance, BatchError) {
	_, key, err := jobKey(params)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, inst := range r.instances {
		if inst.JobName == jobName && inst.JobKey == key {
			cp := *inst
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memoryJobRepository) FindLastJobInstance(ctx context.Context, jobName string) (*JobInstance, BatchError) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := len(r.instances) - 1; i >= 0; i-- {
		if r.instances[i].JobName == jobName {
			cp := *r.instances[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memoryJobRepository) CreateJobInstance(ctx context.Context, jobName string, params map[string]interface{}) (*JobInstance, BatchError) {
	str, key, err := jobKey(params)
	if err != nil {
		return nil, err
	}
	jobParams := make(map[string]interface{})
	if e := util.ParseJson(str, &jobParams); e != nil {
		return nil, NewBatchError(ErrCodeGeneral, "parse job params err", e)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inst := range r.instances {
		if inst.JobName == jobName && inst.JobKey == key {
			return nil, NewBatchError(ErrCodeConcurrency, "job instance of job:%v with params:%v already exists", jobName, str)
		}
	}
	inst := &JobInstance{
		JobInstanceId: r.nextId(),
		JobName:       jobName,
		JobKey:        key,
		JobParams:     jobParams,
		CreateTime:    time.Now(),
	}
	r.instances = append(r.instances, inst)
	cp := *inst
	return &cp, nil
}

func (r *memoryJobRepository) FindLastJobExecution(ctx context.Context, jobInstanceId int64) (*JobExecution, BatchError) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var last *JobExecution
	for _, e := range r.jobExecutions {
		if e.JobInstanceId == jobInstanceId && (last == nil || e.JobExecutionId > last.JobExecutionId) {
			last = e
		}
	}
	if last == nil {
		return nil, nil
	}
	return last.snapshot(), nil
}

func (r *memoryJobRepository) FindJobExecution(ctx context.Context, jobExecutionId int64) (*JobExecution, BatchError) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.jobExecutions[jobExecutionId]; ok {
		return e.snapshot(), nil
	}
	return nil, nil
}

func (r *memoryJobRepository) SaveJobExecution(ctx context.Context, execution *JobExecution) BatchError {
	r.mu.Lock()
	defer r.mu.Unlock()
	if execution.JobExecutionId == 0 {
		execution.JobExecutionId = r.nextId()
		execution.Version = 1
	} else {
		stored, ok := r.jobExecutions[execution.JobExecutionId]
		if !ok {
			return NewBatchError(ErrCodeDbFail, "job execution:%v not found", execution.JobExecutionId)
		}
		if stored.Version != execution.Version {
			return NewBatchError(ErrCodeConcurrency, "update job execution:%v failed, stale version:%v", execution.JobExecutionId, execution.Version)
		}
		execution.Version++
	}
	r.jobExecutions[execution.JobExecutionId] = execution.snapshot()
	return nil
}

func (r *memoryJobRepository) FindStepExecutions(ctx context.Context, jobExecutionId int64) ([]*StepExecution, BatchError) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*StepExecution, 0)
	for _, s := range r.stepExecutions {
		if s.jobExecutionId == jobExecutionId {
			se, err := s.restore()
			if err != nil {
				return nil, err
			}
			result = append(result, se)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StepExecutionId < result[j].StepExecutionId
	})
	return result, nil
}

func (r *memoryJobRepository) FindLastStepExecution(ctx context.Context, jobInstanceId int64, stepName string) (*StepExecution, BatchError) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := len(r.stepExecutions) - 1; i >= 0; i-- {
		s := r.stepExecutions[i]
		if s.jobInstanceId == jobInstanceId && s.execution.StepName == stepName {
			return s.restore()
		}
	}
	return nil, nil
}

func (r *memoryJobRepository) SaveStepExecution(ctx context.Context, execution *StepExecution) BatchError {
	if execution.JobExecution == nil {
		return NewBatchError(ErrCodeGeneral, "step execution:%v has no job execution", execution.StepName)
	}
	contextJson, err := util.JsonString(execution.StepExecutionContext)
	if err != nil {
		return NewBatchError(ErrCodeGeneral, "serialize step execution context err", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if execution.StepExecutionId == 0 {
		execution.StepExecutionId = r.nextId()
		execution.Version = 1
		execution.LastUpdated = time.Now()
		r.stepExecutions = append(r.stepExecutions, &storedStepExecution{
			execution:      execution.snapshot(),
			jobExecutionId: execution.JobExecution.JobExecutionId,
			jobInstanceId:  execution.JobExecution.JobInstanceId,
			contextJson:    contextJson,
		})
		return nil
	}
	for _, s := range r.stepExecutions {
		if s.execution.StepExecutionId == execution.StepExecutionId {
			if s.execution.Version != execution.Version {
				return NewBatchError(ErrCodeConcurrency, "update step execution:%v failed, stale version:%v", execution.StepExecutionId, execution.Version)
			}
			execution.Version++
			execution.LastUpdated = time.Now()
			s.execution = execution.snapshot()
			s.contextJson = contextJson
			return nil
		}
	}
	return NewBatchError(ErrCodeDbFail, "step execution:%v not found", execution.StepExecutionId)
}

func (s *storedStepExecution) restore() (*StepExecution, BatchError) {
	se := s.execution.snapshot()
	se.StepExecutionContext = NewBatchContext()
	if err := util.ParseJson(s.contextJson, se.StepExecutionContext); err != nil {
		return nil, NewBatchError(ErrCodeGeneral, "parse step execution context err", errors.WithStack(err))
	}
	if s.execution.StepContext != nil {
		se.StepContext = s.execution.StepContext.DeepCopy()
	} else {
		se.StepContext = NewBatchContext()
	}
	return se, nil
}
