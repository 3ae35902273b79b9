package batchcsv

//JobListener observes job executions. An error from BeforeJob aborts the execution,
//an error from AfterJob turns a COMPLETED execution into FAILED.
type JobListener interface {
	BeforeJob(execution *JobExecution) BatchError
	//AfterJob sees the final status, COMPLETED, FAILED or STOPPED
	AfterJob(execution *JobExecution) BatchError
}

//StepListener observes step executions
type StepListener interface {
	BeforeStep(execution *StepExecution) BatchError
	AfterStep(execution *StepExecution) BatchError
}

//ChunkListener observes every chunk of a chunk step
type ChunkListener interface {
	BeforeChunk(context *ChunkContext) BatchError
	//AfterChunk called after the writer, inside the chunk transaction
	AfterChunk(context *ChunkContext) BatchError
	//OnError called with the error that rolled the chunk back
	OnError(context *ChunkContext, err BatchError)
}
