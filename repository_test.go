package batchcsv

import (
	"context"
	"testing"
	"time"

	"github.com/bmizerany/assert"
	"github.com/chararch/batchcsv/status"
)

func TestMemoryJobRepository_Instances(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryJobRepository()
	params := map[string]interface{}{"date": "2021-12-02", RunIdKey: int64(1)}

	inst, err := repo.FindJobInstance(ctx, "job", params)
	assert.Equal(t, nil, err)
	assert.T(t, inst == nil)

	created, err := repo.CreateJobInstance(ctx, "job", params)
	assert.Equal(t, nil, err)
	assert.NotEqual(t, int64(0), created.JobInstanceId)
	_, err = repo.CreateJobInstance(ctx, "job", params)
	assert.Equal(t, ErrCodeConcurrency, err.Code())

	inst, err = repo.FindJobInstance(ctx, "job", map[string]interface{}{RunIdKey: 1, "date": "2021-12-02"})
	assert.Equal(t, nil, err)
	assert.Equal(t, created.JobInstanceId, inst.JobInstanceId)

	next, err := repo.CreateJobInstance(ctx, "job", nil)
	assert.Equal(t, nil, err)
	last, err := repo.FindLastJobInstance(ctx, "job")
	assert.Equal(t, nil, err)
	assert.Equal(t, next.JobInstanceId, last.JobInstanceId)
	last, err = repo.FindLastJobInstance(ctx, "other")
	assert.Equal(t, nil, err)
	assert.T(t, last == nil)
}

func TestMemoryJobRepository_Executions(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryJobRepository()
	inst, _ := repo.CreateJobInstance(ctx, "job", nil)
	exec := &JobExecution{
		JobInstanceId: inst.JobInstanceId,
		JobName:       "job",
		JobStatus:     status.STARTING,
		JobContext:    NewBatchContext(),
		CreateTime:    time.Now(),
		repo:          repo,
	}
	assert.Equal(t, nil, repo.SaveJobExecution(ctx, exec))
	assert.Equal(t, int64(1), exec.Version)

	stale, _ := repo.FindJobExecution(ctx, exec.JobExecutionId)
	exec.JobStatus = status.STARTED
	assert.Equal(t, nil, repo.SaveJobExecution(ctx, exec))
	stale.JobStatus = status.STOPPING
	err := repo.SaveJobExecution(ctx, stale)
	assert.Equal(t, ErrCodeConcurrency, err.Code())

	found, _ := repo.FindLastJobExecution(ctx, inst.JobInstanceId)
	assert.Equal(t, status.STARTED, found.JobStatus)

	stepExec := &StepExecution{
		StepName:             "load",
		StepStatus:           status.STARTED,
		StepContext:          NewBatchContext(),
		StepExecutionContext: NewBatchContext(),
		JobExecution:         exec,
	}
	stepExec.StepExecutionContext.Put(fileReaderCurrentIndex, int64(4))
	assert.Equal(t, nil, repo.SaveStepExecution(ctx, stepExec))
	stepExec.StepStatus = status.FAILED
	stepExec.StepExecutionContext.Put(fileReaderCurrentIndex, int64(6))
	assert.Equal(t, nil, repo.SaveStepExecution(ctx, stepExec))
	assert.Equal(t, int64(2), stepExec.Version)

	lastStep, err := repo.FindLastStepExecution(ctx, inst.JobInstanceId, "load")
	assert.Equal(t, nil, err)
	assert.Equal(t, status.FAILED, lastStep.StepStatus)
	index, _ := lastStep.StepExecutionContext.GetInt64(fileReaderCurrentIndex)
	assert.Equal(t, int64(6), index)

	stepExec.StepExecutionContext.Put(fileReaderCurrentIndex, int64(8))
	index, _ = lastStep.StepExecutionContext.GetInt64(fileReaderCurrentIndex)
	assert.Equal(t, int64(6), index)

	lastStep.Version = 1
	err = repo.SaveStepExecution(ctx, lastStep)
	assert.Equal(t, ErrCodeConcurrency, err.Code())

	steps, err := repo.FindStepExecutions(ctx, exec.JobExecutionId)
	assert.Equal(t, nil, err)
	assert.Equal(t, 1, len(steps))
	none, err := repo.FindLastStepExecution(ctx, inst.JobInstanceId, "other")
	assert.Equal(t, nil, err)
	assert.T(t, none == nil)
}

func TestRunIdIncrementer(t *testing.T) {
	inc := RunIdIncrementer{}
	first := inc.GetNext(nil, map[string]interface{}{"date": "2021-12-02"})
	assert.Equal(t, int64(1), first[RunIdKey])
	assert.Equal(t, "2021-12-02", first["date"])
	second := inc.GetNext(map[string]interface{}{RunIdKey: float64(4)}, nil)
	assert.Equal(t, int64(5), second[RunIdKey])
}
