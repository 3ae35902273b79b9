package batchcsv

import (
	"context"
	"reflect"
	"runtime/debug"
	"time"

	"github.com/chararch/batchcsv/status"
)

//Job job interface
type Job interface {
	Name() string
	Start(ctx context.Context, execution *JobExecution) BatchError
	Stop(ctx context.Context, execution *JobExecution) BatchError
	GetSteps() []Step
	//Incrementer derives the parameters of each new run, nil means runs are identified by their params only
	Incrementer() JobParametersIncrementer
}

type simpleJob struct {
	name        string
	steps       []Step
	listeners   []JobListener
	incrementer JobParametersIncrementer
}

func (job *simpleJob) Name() string {
	return job.name
}

func (job *simpleJob) Incrementer() JobParametersIncrementer {
	return job.incrementer
}

func (job *simpleJob) Start(ctx context.Context, execution *JobExecution) (err BatchError) {
	repo := execution.repository()
	defer func() {
		if er := recover(); er != nil {
			logger.Error(ctx, "panic in job executing, jobName:%v, jobExecutionId:%v, err:%v, stack:%v", job.name, execution.JobExecutionId, er, string(debug.Stack()))
			execution.JobStatus = status.FAILED
			execution.FailError = NewBatchError(ErrCodeGeneral, "panic in job execution:%v", er)
			execution.EndTime = time.Now()
		}
		if err != nil {
			execution.JobStatus = status.FAILED
			execution.FailError = err
			execution.EndTime = time.Now()
		}
		if e := repo.SaveJobExecution(ctx, execution); e != nil {
			logger.Error(ctx, "save job execution failed, jobName:%v, jobExecutionId:%v, err:%v", job.name, execution.JobExecutionId, e)
			if err == nil {
				err = e
			}
		}
	}()
	logger.Info(ctx, "start running job, jobName:%v, jobExecutionId:%v, jobParams:%v", job.name, execution.JobExecutionId, execution.JobParams)
	for _, listener := range job.listeners {
		if err = listener.BeforeJob(execution); err != nil {
			logger.Error(ctx, "job listener execute err, jobName:%v, jobExecutionId:%v, listener:%v, err:%v", job.name, execution.JobExecutionId, reflect.TypeOf(listener).String(), err)
			job.abort(ctx, execution, err)
			return err
		}
	}
	execution.JobStatus = status.STARTED
	execution.StartTime = time.Now()
	if err = repo.SaveJobExecution(ctx, execution); err != nil {
		logger.Error(ctx, "save job execution failed, jobName:%v, jobExecutionId:%v, err:%v", job.name, execution.JobExecutionId, err)
		job.abort(ctx, execution, err)
		return err
	}
	jobStatus := status.COMPLETED
	for _, step := range job.steps {
		stepExecution, e := job.execStep(ctx, step, execution)
		if e != nil {
			logger.Error(ctx, "execute step failed, jobExecutionId:%v, step:%v, err:%v", execution.JobExecutionId, step.Name(), e)
			if e.Code() == ErrCodeStop {
				jobStatus = status.STOPPED
			} else {
				jobStatus = status.FAILED
			}
			execution.FailError = e
			break
		}
		if stepExecution != nil && stepExecution.StepStatus != status.COMPLETED {
			jobStatus = stepExecution.StepStatus
			execution.FailError = stepExecution.FailError
			break
		}
	}
	execution.JobStatus = jobStatus
	execution.EndTime = time.Now()
	job.afterJob(ctx, execution)
	logger.Info(ctx, "finish job execution, jobName:%v, jobExecutionId:%v, jobStatus:%v", job.name, execution.JobExecutionId, execution.JobStatus)
	return nil
}

//abort fails an execution that never reached its steps, listeners still see the FAILED status
func (job *simpleJob) abort(ctx context.Context, execution *JobExecution, err BatchError) {
	execution.JobStatus = status.FAILED
	execution.FailError = err
	execution.EndTime = time.Now()
	job.afterJob(ctx, execution)
}

func (job *simpleJob) afterJob(ctx context.Context, execution *JobExecution) {
	for _, listener := range job.listeners {
		if e := listener.AfterJob(execution); e != nil {
			logger.Error(ctx, "job listener execute err, jobName:%v, jobExecutionId:%v, listener:%v, err:%v", job.name, execution.JobExecutionId, reflect.TypeOf(listener).String(), e)
			if execution.JobStatus == status.COMPLETED {
				execution.JobStatus = status.FAILED
				execution.FailError = e
			}
		}
	}
}

//execStep runs one step, returning a nil StepExecution when the step already completed in an earlier execution of the instance
func (job *simpleJob) execStep(ctx context.Context, step Step, execution *JobExecution) (*StepExecution, BatchError) {
	repo := execution.repository()
	lastStepExecution, err := repo.FindLastStepExecution(ctx, execution.JobInstanceId, step.Name())
	if err != nil {
		logger.Error(ctx, "find last StepExecution failed, jobExecutionId:%v, stepName:%v, err:%v", execution.JobExecutionId, step.Name(), err)
		return nil, err
	}
	if lastStepExecution != nil && lastStepExecution.StepStatus == status.COMPLETED {
		logger.Info(ctx, "skip completed step, jobExecutionId:%v, stepName:%v", execution.JobExecutionId, step.Name())
		return nil, nil
	}
	if lastStepExecution != nil && lastStepExecution.StepStatus.IsRunning() {
		logger.Error(ctx, "last StepExecution is in progress, jobExecutionId:%v, stepName:%v", execution.JobExecutionId, step.Name())
		return nil, NewBatchError(ErrCodeConcurrency, "last StepExecution of the Step:%v is in progress", step.Name())
	}
	stepExecution := &StepExecution{
		StepName:             step.Name(),
		StepStatus:           status.STARTING,
		StepContext:          NewBatchContext(),
		StepExecutionContext: NewBatchContext(),
		JobExecution:         execution,
		CreateTime:           time.Now(),
	}
	if lastStepExecution != nil {
		stepExecution.StepContext.Merge(lastStepExecution.StepContext)
		stepExecution.StepExecutionContext.Merge(lastStepExecution.StepExecutionContext)
	}
	if err = saveStepExecution(ctx, stepExecution); err != nil {
		logger.Error(ctx, "save step execution failed, jobExecutionId:%v, stepName:%v, err:%v", execution.JobExecutionId, step.Name(), err)
		return nil, err
	}
	execution.AddStepExecution(stepExecution)
	if err = step.Exec(ctx, stepExecution); err != nil {
		return stepExecution, err
	}
	return stepExecution, nil
}

//Stop asks a running execution to stop, chunk steps honour the request between chunks
func (job *simpleJob) Stop(ctx context.Context, execution *JobExecution) BatchError {
	logger.Info(ctx, "stop job, jobName:%v, jobExecutionId:%v, jobStatus:%v", job.name, execution.JobExecutionId, execution.JobStatus)
	execution.requestStop()
	return nil
}

func (job *simpleJob) GetSteps() []Step {
	return job.steps
}
