package batchcsv

import (
	"context"
	"sync"
	"time"

	"github.com/chararch/batchcsv/status"
	"github.com/chararch/batchcsv/util"
	"github.com/pkg/errors"
)

//JobLock a lock held for the duration of one job execution
type JobLock interface {
	Release(ctx context.Context) error
}

//JobLocker prevents concurrent executions of a job across processes
type JobLocker interface {
	Obtain(ctx context.Context, jobName string) (JobLock, error)
}

//JobLauncher starts, restarts and stops registered jobs
type JobLauncher struct {
	repo    JobRepository
	locker  JobLocker
	pool    *taskPool
	mu      sync.RWMutex
	jobs    map[string]Job
	running map[int64]*JobExecution
}

type LauncherOption func(launcher *JobLauncher)

//WithJobLocker guard every execution with locker
func WithJobLocker(locker JobLocker) LauncherOption {
	return func(launcher *JobLauncher) {
		launcher.locker = locker
	}
}

//WithPoolSize max number of jobs running at the same time
func WithPoolSize(size int) LauncherOption {
	return func(launcher *JobLauncher) {
		launcher.pool.SetMaxSize(size)
	}
}

//NewJobLauncher create a launcher persisting executions to repo, an in-memory repository is used if repo is nil
func NewJobLauncher(repo JobRepository, opts ...LauncherOption) *JobLauncher {
	if repo == nil {
		repo = NewMemoryJobRepository()
	}
	launcher := &JobLauncher{
		repo:    repo,
		pool:    newTaskPool(DefaultJobPoolSize),
		jobs:    make(map[string]Job),
		running: make(map[int64]*JobExecution),
	}
	for _, opt := range opts {
		opt(launcher)
	}
	return launcher
}

// Register register job to the launcher
func (l *JobLauncher) Register(job Job) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.jobs[job.Name()]; ok {
		return errors.Errorf("job with name:%v has already been registered", job.Name())
	}
	l.jobs[job.Name()] = job
	return nil
}

// Unregister unregister job from the launcher
func (l *JobLauncher) Unregister(job Job) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.jobs, job.Name())
}

func (l *JobLauncher) getJob(jobName string) (Job, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if job, ok := l.jobs[jobName]; ok {
		return job, nil
	}
	return nil, errors.Errorf("can not find job with name:%v", jobName)
}

// Start start job by job name and json params, waiting for the execution to finish
func (l *JobLauncher) Start(ctx context.Context, jobName string, params string) (int64, error) {
	return l.doStart(ctx, jobName, params, false)
}

// StartAsync start job by job name and json params asynchronously
func (l *JobLauncher) StartAsync(ctx context.Context, jobName string, params string) (int64, error) {
	return l.doStart(ctx, jobName, params, true)
}

func (l *JobLauncher) doStart(ctx context.Context, jobName string, params string, async bool) (int64, error) {
	job, err := l.getJob(jobName)
	if err != nil {
		logger.Error(ctx, "%v", err)
		return -1, err
	}
	jobParams, err := parseJobParams(params)
	if err != nil {
		logger.Error(ctx, "parse job params error, jobName:%v, params:%v, err:%v", jobName, params, err)
		return -1, errors.Wrapf(err, "parse job params:%v", params)
	}
	if inc := job.Incrementer(); inc != nil {
		last, be := l.repo.FindLastJobInstance(ctx, jobName)
		if be != nil {
			logger.Error(ctx, "find last JobInstance error, jobName:%v, err:%v", jobName, be)
			return -1, be
		}
		var lastParams map[string]interface{}
		if last != nil {
			lastParams = last.JobParams
		}
		jobParams = inc.GetNext(lastParams, jobParams)
	}
	return l.launch(ctx, job, jobParams, async)
}

// Restart restart the last instance of a job, by job name or job execution id
func (l *JobLauncher) Restart(ctx context.Context, jobId interface{}) (int64, error) {
	return l.doRestart(ctx, jobId, false)
}

// RestartAsync restart the last instance of a job asynchronously
func (l *JobLauncher) RestartAsync(ctx context.Context, jobId interface{}) (int64, error) {
	return l.doRestart(ctx, jobId, true)
}

func (l *JobLauncher) doRestart(ctx context.Context, jobId interface{}, async bool) (int64, error) {
	execution, err := l.findExecution(ctx, jobId)
	if err != nil {
		return -1, err
	}
	job, err := l.getJob(execution.JobName)
	if err != nil {
		return -1, err
	}
	if !execution.JobStatus.IsRestartable() {
		logger.Error(ctx, "only failed or stopped executions can be restarted, jobName:%v, jobExecutionId:%v, status:%v", execution.JobName, execution.JobExecutionId, execution.JobStatus)
		return -1, errors.Errorf("only failed or stopped executions can be restarted, jobName:%v, jobExecutionId:%v, status:%v", execution.JobName, execution.JobExecutionId, execution.JobStatus)
	}
	return l.launch(ctx, job, execution.JobParams, async)
}

func (l *JobLauncher) launch(ctx context.Context, job Job, jobParams map[string]interface{}, async bool) (int64, error) {
	jobName := job.Name()
	var lock JobLock
	if l.locker != nil {
		var err error
		if lock, err = l.locker.Obtain(ctx, jobName); err != nil {
			logger.Error(ctx, "obtain job lock failed, jobName:%v, err:%v", jobName, err)
			return -1, err
		}
	}
	release := func(ctx context.Context) {
		if lock != nil {
			if err := lock.Release(ctx); err != nil {
				logger.Warn(ctx, "release job lock failed, jobName:%v, err:%v", jobName, err)
			}
		}
	}
	execution, err := l.prepareExecution(ctx, jobName, jobParams)
	if err != nil {
		release(ctx)
		return -1, err
	}
	l.mu.Lock()
	l.running[execution.JobExecutionId] = execution
	l.mu.Unlock()

	runCtx := ctx
	if async {
		runCtx = context.WithoutCancel(ctx)
	}
	future := l.pool.Submit(runCtx, func() (interface{}, error) {
		defer func() {
			l.mu.Lock()
			delete(l.running, execution.JobExecutionId)
			l.mu.Unlock()
			release(runCtx)
		}()
		if er := job.Start(runCtx, execution); er != nil {
			return nil, er
		}
		return nil, nil
	})
	logger.Info(ctx, "job started, jobName:%v, jobExecutionId:%v", jobName, execution.JobExecutionId)
	if async {
		return execution.JobExecutionId, nil
	}
	if _, er := future.Get(); er != nil {
		return execution.JobExecutionId, er
	}
	return execution.JobExecutionId, nil
}

func (l *JobLauncher) prepareExecution(ctx context.Context, jobName string, jobParams map[string]interface{}) (*JobExecution, error) {
	jobInstance, err := l.repo.FindJobInstance(ctx, jobName, jobParams)
	if err != nil {
		logger.Error(ctx, "find JobInstance error, jobName:%v, params:%v, err:%v", jobName, jobParams, err)
		return nil, err
	}
	if jobInstance == nil {
		jobInstance, err = l.repo.CreateJobInstance(ctx, jobName, jobParams)
		if err != nil {
			logger.Error(ctx, "create JobInstance error, jobName:%v, params:%v, err:%v", jobName, jobParams, err)
			return nil, err
		}
	}
	lastExecution, err := l.repo.FindLastJobExecution(ctx, jobInstance.JobInstanceId)
	if err != nil {
		logger.Error(ctx, "find last JobExecution error, jobName:%v, jobInstanceId:%v, err:%v", jobName, jobInstance.JobInstanceId, err)
		return nil, err
	}
	if lastExecution != nil {
		jobStatus := lastExecution.JobStatus
		if jobStatus.IsRunning() || jobStatus == status.UNKNOWN {
			logger.Error(ctx, "the job is in executing or exit from last execution abnormally, can not restart, jobName:%v, status:%v", jobName, jobStatus)
			return nil, errors.Errorf("the job is in executing or exit from last execution abnormally, can not restart, jobName:%v, status:%v", jobName, jobStatus)
		}
		if jobStatus == status.COMPLETED {
			logger.Error(ctx, "job instance already finished, jobName:%v, jobInstanceId:%v, status:%v", jobName, jobInstance.JobInstanceId, jobStatus)
			return nil, errors.Errorf("job instance already finished, jobName:%v, jobInstanceId:%v, status:%v", jobName, jobInstance.JobInstanceId, jobStatus)
		}
		stepExecutions, err := l.repo.FindStepExecutions(ctx, lastExecution.JobExecutionId)
		if err != nil {
			logger.Error(ctx, "find last StepExecution error, jobName:%v, jobExecutionId:%v, err:%v", jobName, lastExecution.JobExecutionId, err)
			return nil, err
		}
		for _, stepExecution := range stepExecutions {
			if stepExecution.StepStatus == status.UNKNOWN {
				logger.Error(ctx, "can not restart a job that has step with unknown status, job:%v step:%v", jobName, stepExecution.StepName)
				return nil, errors.Errorf("can not restart a job that has step with unknown status, job:%v step:%v", jobName, stepExecution.StepName)
			}
		}
	}
	execution := &JobExecution{
		JobInstanceId:  jobInstance.JobInstanceId,
		JobName:        jobName,
		JobParams:      jobInstance.JobParams,
		JobStatus:      status.STARTING,
		StepExecutions: make([]*StepExecution, 0),
		JobContext:     NewBatchContext(),
		CreateTime:     time.Now(),
		repo:           l.repo,
	}
	if err = l.repo.SaveJobExecution(ctx, execution); err != nil {
		logger.Error(ctx, "save job execution failed, jobName:%v, err:%v", jobName, err)
		return nil, err
	}
	return execution, nil
}

// Stop stop a running job by job name or job execution id
func (l *JobLauncher) Stop(ctx context.Context, jobId interface{}) error {
	execution, err := l.findExecution(ctx, jobId)
	if err != nil {
		return err
	}
	l.mu.RLock()
	live, ok := l.running[execution.JobExecutionId]
	l.mu.RUnlock()
	if ok {
		job, err := l.getJob(live.JobName)
		if err != nil {
			return err
		}
		if be := job.Stop(ctx, live); be != nil {
			return be
		}
		return nil
	}
	if !execution.JobStatus.IsRunning() {
		logger.Error(ctx, "there is no running job execution to stop, jobName:%v, jobExecutionId:%v, status:%v", execution.JobName, execution.JobExecutionId, execution.JobStatus)
		return errors.Errorf("there is no running job execution to stop, jobName:%v, jobExecutionId:%v, status:%v", execution.JobName, execution.JobExecutionId, execution.JobStatus)
	}
	logger.Info(ctx, "job will be stopped, jobName:%v, jobExecutionId:%v", execution.JobName, execution.JobExecutionId)
	execution.JobStatus = status.STOPPING
	if be := l.repo.SaveJobExecution(ctx, execution); be != nil {
		return be
	}
	return nil
}

// GetExecution the persisted state of a job execution
func (l *JobLauncher) GetExecution(ctx context.Context, jobExecutionId int64) (*JobExecution, error) {
	execution, err := l.repo.FindJobExecution(ctx, jobExecutionId)
	if err != nil {
		return nil, err
	}
	if execution == nil {
		return nil, errors.Errorf("can not find job execution with execution id:%v", jobExecutionId)
	}
	stepExecutions, err := l.repo.FindStepExecutions(ctx, jobExecutionId)
	if err != nil {
		return nil, err
	}
	execution.StepExecutions = stepExecutions
	return execution, nil
}

// Close release the launcher's worker pool, running jobs are not interrupted
func (l *JobLauncher) Close() {
	l.pool.Release()
}

//findExecution resolves a job name to the last execution of its last instance, or loads an execution by id
func (l *JobLauncher) findExecution(ctx context.Context, jobId interface{}) (*JobExecution, error) {
	var id int64
	switch v := jobId.(type) {
	case string:
		if _, err := l.getJob(v); err != nil {
			return nil, err
		}
		jobInstance, err := l.repo.FindLastJobInstance(ctx, v)
		if err != nil {
			logger.Error(ctx, "find last JobInstance error, jobName:%v, err:%v", v, err)
			return nil, err
		}
		if jobInstance == nil {
			return nil, errors.Errorf("there is no job instance with name:%v", v)
		}
		execution, err := l.repo.FindLastJobExecution(ctx, jobInstance.JobInstanceId)
		if err != nil {
			logger.Error(ctx, "find last JobExecution error, jobName:%v, jobInstanceId:%v, err:%v", v, jobInstance.JobInstanceId, err)
			return nil, err
		}
		if execution == nil {
			return nil, errors.Errorf("there is no job execution with name:%v", v)
		}
		return execution, nil
	case int64:
		id = v
	case int:
		id = int64(v)
	default:
		logger.Error(ctx, "job identifier:%v is either job name or job execution id", jobId)
		return nil, errors.Errorf("job identifier:%v is either job name or job execution id", jobId)
	}
	execution, err := l.repo.FindJobExecution(ctx, id)
	if err != nil {
		logger.Error(ctx, "find JobExecution by jobExecutionId error, jobExecutionId:%v, err:%v", id, err)
		return nil, err
	}
	if execution == nil {
		return nil, errors.Errorf("can not find job execution with execution id:%v", id)
	}
	return execution, nil
}

func parseJobParams(params string) (map[string]interface{}, error) {
	ret := make(map[string]interface{})
	if len(params) == 0 {
		return ret, nil
	}
	if err := util.ParseJson(params, &ret); err != nil {
		return nil, err
	}
	return ret, nil
}
