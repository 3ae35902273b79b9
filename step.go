package batchcsv

import (
	"context"
	"fmt"
	"reflect"
	"runtime/debug"
	"time"

	"github.com/chararch/batchcsv/status"
)

// Step step interface
type Step interface {
	Name() string
	Exec(ctx context.Context, execution *StepExecution) BatchError
	addListener(listener StepListener)
}

// simpleStep simple step implementation for internal use
type simpleStep struct {
	name      string
	handler   Handler
	listeners []StepListener
}

type handlerAdapter struct {
	task Task
}

func (h *handlerAdapter) Handle(execution *StepExecution) BatchError {
	return h.task(execution)
}

func newSimpleStep(name string, handler interface{}, listeners []StepListener) *simpleStep {
	switch h := handler.(type) {
	case Handler:
		return &simpleStep{
			name:      name,
			handler:   h,
			listeners: listeners,
		}
	case Task:
		return &simpleStep{
			name: name,
			handler: &handlerAdapter{
				task: h,
			},
			listeners: listeners,
		}
	default:
		panic(fmt.Sprintf("not supported step handler:%v for:%v", handler, name))
	}
}

func (step *simpleStep) Name() string {
	return step.name
}

func (step *simpleStep) Exec(ctx context.Context, execution *StepExecution) (err BatchError) {
	defer func() {
		err = execEnd(ctx, execution, err, recover())
	}()
	logger.Info(ctx, "step execute start, jobExecutionId:%v, stepName:%v", execution.JobExecution.JobExecutionId, execution.StepName)
	if err = beforeStep(ctx, execution, step.listeners); err != nil {
		return err
	}
	execution.start()
	if err = saveStepExecution(ctx, execution); err != nil {
		logger.Error(ctx, "save step execution failed, jobExecutionId:%v, stepName:%v, err:%v", execution.JobExecution.JobExecutionId, execution.StepName, err)
		return err
	}
	var be BatchError
	for {
		be = step.handler.Handle(execution)
		if be == nil || be.Code() != ErrCodeRetry {
			break
		}
		logger.Warn(ctx, "step execute will retry, jobExecutionId:%v, stepName:%v", execution.JobExecution.JobExecutionId, execution.StepName)
	}
	if be != nil {
		logger.Error(ctx, "step execute failed, jobExecutionId:%v, stepName:%v, err:%v", execution.JobExecution.JobExecutionId, execution.StepName, be)
	}
	execution.finish(be)
	afterStep(ctx, execution, step.listeners)
	logger.Info(ctx, "step execute finish, jobExecutionId:%v, stepName:%v, stepStatus:%v", execution.JobExecution.JobExecutionId, execution.StepName, execution.StepStatus)
	return nil
}

func (step *simpleStep) addListener(listener StepListener) {
	step.listeners = append(step.listeners, listener)
}

func beforeStep(ctx context.Context, execution *StepExecution, listeners []StepListener) BatchError {
	for _, listener := range listeners {
		if err := listener.BeforeStep(execution); err != nil {
			logger.Error(ctx, "step listener executing error, jobExecutionId:%v, stepName:%v, listener:%v, err:%v", execution.JobExecution.JobExecutionId, execution.StepName, reflect.TypeOf(listener).String(), err)
			return err
		}
	}
	return nil
}

func afterStep(ctx context.Context, execution *StepExecution, listeners []StepListener) {
	for _, listener := range listeners {
		if err := listener.AfterStep(execution); err != nil {
			logger.Error(ctx, "step listener executing error, jobExecutionId:%v, stepName:%v, listener:%v, err:%v", execution.JobExecution.JobExecutionId, execution.StepName, reflect.TypeOf(listener).String(), err)
			if execution.StepStatus == status.COMPLETED {
				execution.finish(err)
			}
			break
		}
	}
}

func saveStepExecution(ctx context.Context, execution *StepExecution) BatchError {
	return execution.JobExecution.repository().SaveStepExecution(ctx, execution)
}

func execEnd(ctx context.Context, execution *StepExecution, err BatchError, recoverErr interface{}) BatchError {
	if recoverErr != nil {
		logger.Error(ctx, "panic in step executing, jobExecutionId:%v, stepName:%v, err:%v, stack:%v", execution.JobExecution.JobExecutionId, execution.StepName, recoverErr, string(debug.Stack()))
		execution.StepStatus = status.FAILED
		execution.FailError = NewBatchError(ErrCodeGeneral, "panic in step execution:%v", recoverErr)
		execution.EndTime = time.Now()
	}
	if err != nil && execution.StepStatus != status.FAILED && execution.StepStatus != status.STOPPED {
		logger.Error(ctx, "step executing error, jobExecutionId:%v, stepName:%v, err:%v", execution.JobExecution.JobExecutionId, execution.StepName, err)
		execution.finish(err)
	}
	for i := 0; i < 3; i++ {
		e := saveStepExecution(ctx, execution)
		if e != nil && e.Code() == ErrCodeDbFail {
			logger.Warn(ctx, "save step execution failed and retry for recoverable err, jobExecutionId:%v, stepName:%v, err:%v", execution.JobExecution.JobExecutionId, execution.StepName, e)
			continue
		}
		if e != nil {
			err = e
			logger.Error(ctx, "save step execution failed, jobExecutionId:%v, stepName:%v, err:%v", execution.JobExecution.JobExecutionId, execution.StepName, e)
		}
		break
	}
	return err
}

//checkStopping reports whether a stop was requested for the job execution, either in this process or through the repository
func checkStopping(ctx context.Context, execution *JobExecution) bool {
	if execution.stopRequested() {
		return true
	}
	stored, err := execution.repository().FindJobExecution(ctx, execution.JobExecutionId)
	if err != nil || stored == nil {
		return false
	}
	if stored.JobStatus == status.STOPPING {
		execution.Version = stored.Version
		execution.JobStatus = status.STOPPING
		execution.requestStop()
		return true
	}
	return false
}

// chunkStep step implementation that process data in chunk
type chunkStep struct {
	name           string
	reader         Reader
	processor      Processor
	writer         Writer
	chunkSize      uint
	concurrency    int
	txManager      TransactionManager
	listeners      []StepListener
	chunkListeners []ChunkListener
}

type chunkResult struct {
	read     int
	filtered int
	written  int
}

func (step *chunkStep) Name() string {
	return step.name
}

func (step *chunkStep) Exec(ctx context.Context, execution *StepExecution) (err BatchError) {
	defer func() {
		err = execEnd(ctx, execution, err, recover())
	}()
	logger.Info(ctx, "step execute start, jobExecutionId:%v, stepName:%v", execution.JobExecution.JobExecutionId, execution.StepName)
	if err = beforeStep(ctx, execution, step.listeners); err != nil {
		return err
	}
	execution.start()
	if err = saveStepExecution(ctx, execution); err != nil {
		logger.Error(ctx, "save step execution failed, jobExecutionId:%v, stepName:%v, err:%v", execution.JobExecution.JobExecutionId, execution.StepName, err)
		return err
	}
	be := step.process(ctx, execution)
	if be != nil && be.Code() == ErrCodeStop {
		logger.Info(ctx, "step stopped, jobExecutionId:%v, stepName:%v", execution.JobExecution.JobExecutionId, execution.StepName)
	} else if be != nil {
		logger.Error(ctx, "step execute failed, jobExecutionId:%v, stepName:%v, err:%v", execution.JobExecution.JobExecutionId, execution.StepName, be)
	}
	execution.finish(be)
	afterStep(ctx, execution, step.listeners)
	logger.Info(ctx, "step execute finish, jobExecutionId:%v, stepName:%v, stepStatus:%v, readCount:%v, writeCount:%v, filterCount:%v, commitCount:%v", execution.JobExecution.JobExecutionId, execution.StepName, execution.StepStatus, execution.ReadCount, execution.WriteCount, execution.FilterCount, execution.CommitCount)
	return nil
}

func (step *chunkStep) process(ctx context.Context, execution *StepExecution) (err BatchError) {
	if err = step.doOpenIfNecessary(execution); err != nil {
		logger.Error(ctx, "open resource failed, jobExecutionId:%v, stepName:%v, err:%v", execution.JobExecution.JobExecutionId, execution.StepName, err)
		return err
	}
	defer func() {
		if e := step.doCloseIfNecessary(execution); e != nil {
			logger.Error(ctx, "close resource failed, jobExecutionId:%v, stepName:%v, err:%v", execution.JobExecution.JobExecutionId, execution.StepName, e)
			if err == nil {
				err = e
			}
		}
	}()
	var pool *taskPool
	if step.concurrency > 1 {
		pool = newTaskPool(step.concurrency)
		defer pool.Release()
	}
	for {
		if checkStopping(ctx, execution.JobExecution) {
			return StopError
		}
		end, e := step.doChunkInTx(ctx, execution, pool)
		if e != nil {
			return e
		}
		if end {
			return nil
		}
	}
}

func (step *chunkStep) doChunkInTx(ctx context.Context, execution *StepExecution, pool *taskPool) (bool, BatchError) {
	tx, err := step.txManager.BeginTx(ctx)
	if err != nil {
		logger.Error(ctx, "start transaction err, jobExecutionId:%v, stepName:%v, err:%v", execution.JobExecution.JobExecutionId, execution.StepName, err)
		return false, err
	}
	chunkCtx := &ChunkContext{
		StepExecution: execution,
		Tx:            tx,
		ctx:           ctx,
	}
	result, err := step.doChunk(ctx, chunkCtx, pool)
	if err != nil {
		logger.Error(ctx, "doChunk err, jobExecutionId:%v, stepName:%v, err:%v", execution.JobExecution.JobExecutionId, execution.StepName, err)
		if txErr := step.txManager.Rollback(tx); txErr != nil {
			logger.Error(ctx, "rollback transaction err, jobExecutionId:%v, stepName:%v, err:%v", execution.JobExecution.JobExecutionId, execution.StepName, txErr)
		}
		execution.RollbackCount++
		return false, err
	}
	if err = step.txManager.Commit(tx); err != nil {
		logger.Error(ctx, "commit transaction err, jobExecutionId:%v, stepName:%v, err:%v", execution.JobExecution.JobExecutionId, execution.StepName, err)
		if txErr := step.txManager.Rollback(tx); txErr != nil {
			logger.Error(ctx, "rollback transaction err, jobExecutionId:%v, stepName:%v, err:%v", execution.JobExecution.JobExecutionId, execution.StepName, txErr)
		}
		execution.RollbackCount++
		return false, err
	}
	if result.read > 0 {
		execution.ReadCount += int64(result.read)
		execution.WriteCount += int64(result.written)
		execution.FilterCount += int64(result.filtered)
		execution.CommitCount++
		if cp, ok := step.reader.(Checkpointer); ok {
			if err = cp.Checkpoint(chunkCtx); err != nil {
				return false, err
			}
		}
		if err = saveStepExecution(ctx, execution); err != nil {
			logger.Error(ctx, "save step execution failed, jobExecutionId:%v, stepName:%v, err:%v", execution.JobExecution.JobExecutionId, execution.StepName, err)
			return false, err
		}
	}
	return chunkCtx.End, nil
}

func (step *chunkStep) doOpenIfNecessary(execution *StepExecution) BatchError {
	if rc, ok := step.reader.(OpenCloser); ok {
		if err := rc.Open(execution); err != nil {
			return err
		}
	}
	if wc, ok := step.writer.(OpenCloser); ok {
		if err := wc.Open(execution); err != nil {
			return err
		}
	}
	return nil
}

func (step *chunkStep) doCloseIfNecessary(execution *StepExecution) BatchError {
	var err BatchError
	if rc, ok := step.reader.(OpenCloser); ok {
		err = rc.Close(execution)
	}
	if wc, ok := step.writer.(OpenCloser); ok {
		if e := wc.Close(execution); e != nil && err == nil {
			err = e
		}
	}
	return err
}

func (step *chunkStep) doChunk(ctx context.Context, chunkCtx *ChunkContext, pool *taskPool) (result chunkResult, err BatchError) {
	execution := chunkCtx.StepExecution
	defer func() {
		if er := recover(); er != nil {
			logger.Error(ctx, "panic on chunk executing, jobExecutionId:%v, stepName:%v, err:%v, stack:%v", execution.JobExecution.JobExecutionId, execution.StepName, er, string(debug.Stack()))
			err = NewBatchError(ErrCodeGeneral, "panic on chunk executing, jobExecutionId:%v, stepName:%v, err:%v", execution.JobExecution.JobExecutionId, execution.StepName, er)
		}
	}()
	logger.Debug(ctx, "doChunk start, jobExecutionId:%v, stepName:%v", execution.JobExecution.JobExecutionId, execution.StepName)
	for _, listener := range step.chunkListeners {
		if err = listener.BeforeChunk(chunkCtx); err != nil {
			logger.Error(ctx, "chunk listener executing error, jobExecutionId:%v, stepName:%v, listener:%v, err:%v", execution.JobExecution.JobExecutionId, execution.StepName, reflect.TypeOf(listener).String(), err)
			return result, err
		}
	}
	items, err := readChunk(step.reader, chunkCtx, step.chunkSize)
	if err != nil {
		logger.Error(ctx, "read chunk data error, jobExecutionId:%v, stepName:%v, err:%v", execution.JobExecution.JobExecutionId, execution.StepName, err)
		step.onError(chunkCtx, err)
		return result, err
	}
	result.read = len(items)
	logger.Debug(ctx, "read chunk data success, jobExecutionId:%v, stepName:%v, read count:%v", execution.JobExecution.JobExecutionId, execution.StepName, len(items))

	outputs, err := step.processItems(ctx, chunkCtx, items, pool)
	if err != nil {
		logger.Error(ctx, "process chunk item error, jobExecutionId:%v, stepName:%v, err:%v", execution.JobExecution.JobExecutionId, execution.StepName, err)
		step.onError(chunkCtx, err)
		return result, err
	}
	result.filtered = len(items) - len(outputs)
	if len(outputs) > 0 && step.writer != nil {
		if err = step.writer.Write(outputs, chunkCtx); err != nil {
			logger.Error(ctx, "write chunk data error, jobExecutionId:%v, stepName:%v, err:%v", execution.JobExecution.JobExecutionId, execution.StepName, err)
			step.onError(chunkCtx, err)
			return result, err
		}
		logger.Debug(ctx, "write chunk data success, jobExecutionId:%v, stepName:%v, write count:%v", execution.JobExecution.JobExecutionId, execution.StepName, len(outputs))
	}
	result.written = len(outputs)
	for _, listener := range step.chunkListeners {
		if err = listener.AfterChunk(chunkCtx); err != nil {
			logger.Error(ctx, "chunk listener executing error, jobExecutionId:%v, stepName:%v, listener:%v, err:%v", execution.JobExecution.JobExecutionId, execution.StepName, reflect.TypeOf(listener).String(), err)
			return result, err
		}
	}
	return result, nil
}

func (step *chunkStep) onError(chunkCtx *ChunkContext, err BatchError) {
	for _, listener := range step.chunkListeners {
		listener.OnError(chunkCtx, err)
	}
}

//processItems keeps the input order, the first failure in input order aborts the chunk
func (step *chunkStep) processItems(ctx context.Context, chunkCtx *ChunkContext, items []interface{}, pool *taskPool) ([]interface{}, BatchError) {
	results := make([]interface{}, len(items))
	if pool == nil || len(items) < 2 {
		for i, item := range items {
			out, err := step.processor.Process(item, chunkCtx)
			if err != nil {
				return nil, err
			}
			results[i] = out
		}
	} else {
		futures := make([]Future, len(items))
		for i, item := range items {
			item := item
			futures[i] = pool.Submit(ctx, func() (interface{}, error) {
				out, err := step.processor.Process(item, chunkCtx)
				if err != nil {
					return nil, err
				}
				return out, nil
			})
		}
		var first BatchError
		for i, fu := range futures {
			out, err := fu.Get()
			if err != nil && first == nil {
				first = WrapBatchError(ErrCodeGeneral, err, "process item:%v err", items[i])
			}
			results[i] = out
		}
		if first != nil {
			return nil, first
		}
	}
	outputs := make([]interface{}, 0, len(results))
	for _, out := range results {
		if out != nil {
			outputs = append(outputs, out)
		}
	}
	return outputs, nil
}

func readChunk(reader Reader, chunkCtx *ChunkContext, chunkSize uint) ([]interface{}, BatchError) {
	items := make([]interface{}, 0, chunkSize)
	for i := uint(0); i < chunkSize; i++ {
		item, err := reader.Read(chunkCtx)
		if err != nil {
			return nil, err
		}
		if item == nil {
			chunkCtx.End = true
			break
		}
		items = append(items, item)
	}
	return items, nil
}

func (step *chunkStep) addListener(listener StepListener) {
	step.listeners = append(step.listeners, listener)
}

func (step *chunkStep) addChunkListener(listener ChunkListener) {
	step.chunkListeners = append(step.chunkListeners, listener)
}
