package batchcsv

import (
	"sync/atomic"
	"time"

	"github.com/chararch/batchcsv/status"
)

//JobInstance a job together with one distinct set of identifying parameters
type JobInstance struct {
	JobInstanceId int64
	JobName       string
	JobKey        string
	JobParams     map[string]interface{}
	CreateTime    time.Time
}

type JobExecution struct {
	JobExecutionId int64
	JobInstanceId  int64
	JobName        string
	JobParams      map[string]interface{}
	JobStatus      status.BatchStatus
	StepExecutions []*StepExecution
	JobContext     *BatchContext
	CreateTime     time.Time
	StartTime      time.Time
	EndTime        time.Time
	FailError      error
	Version        int64

	repo     JobRepository
	stopFlag int32
}

func (e *JobExecution) AddStepExecution(execution *StepExecution) {
	e.StepExecutions = append(e.StepExecutions, execution)
}

//repository the JobRepository this execution is persisted to, an in-memory one if none was bound
func (e *JobExecution) repository() JobRepository {
	if e.repo == nil {
		e.repo = NewMemoryJobRepository()
	}
	return e.repo
}

func (e *JobExecution) requestStop() {
	atomic.StoreInt32(&e.stopFlag, 1)
}

func (e *JobExecution) stopRequested() bool {
	return atomic.LoadInt32(&e.stopFlag) == 1
}

//snapshot a copy detached from the running execution, contexts excluded
func (e *JobExecution) snapshot() *JobExecution {
	cp := &JobExecution{
		JobExecutionId: e.JobExecutionId,
		JobInstanceId:  e.JobInstanceId,
		JobName:        e.JobName,
		JobParams:      e.JobParams,
		JobStatus:      e.JobStatus,
		JobContext:     e.JobContext,
		CreateTime:     e.CreateTime,
		StartTime:      e.StartTime,
		EndTime:        e.EndTime,
		FailError:      e.FailError,
		Version:        e.Version,
	}
	cp.StepExecutions = append(cp.StepExecutions, e.StepExecutions...)
	return cp
}

type StepExecution struct {
	StepExecutionId      int64
	StepName             string
	StepStatus           status.BatchStatus
	StepContext          *BatchContext
	StepExecutionContext *BatchContext
	JobExecution         *JobExecution
	CreateTime           time.Time
	StartTime            time.Time
	EndTime              time.Time
	ReadCount            int64
	WriteCount           int64
	CommitCount          int64
	FilterCount          int64
	ReadSkipCount        int64
	WriteSkipCount       int64
	ProcessSkipCount     int64
	RollbackCount        int64
	FailError            error
	LastUpdated          time.Time
	Version              int64
}

func (execution *StepExecution) finish(err error) {
	if err != nil {
		if be, ok := err.(BatchError); ok && be.Code() == ErrCodeStop {
			execution.StepStatus = status.STOPPED
		} else {
			execution.StepStatus = status.FAILED
		}
		execution.FailError = err
		execution.EndTime = time.Now()
	} else {
		execution.StepStatus = status.COMPLETED
		execution.EndTime = time.Now()
	}
}

func (execution *StepExecution) start() {
	execution.StartTime = time.Now()
	execution.StepStatus = status.STARTED
}

func (execution *StepExecution) snapshot() *StepExecution {
	cp := *execution
	return &cp
}
