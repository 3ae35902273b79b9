package batchcsv

type Task func(execution *StepExecution) BatchError

type Handler interface {
	Handle(execution *StepExecution) BatchError
}

//Reader returns the next item of a chunk step, or nil when the input is exhausted
type Reader interface {
	Read(chunkCtx *ChunkContext) (interface{}, BatchError)
}

//Processor transforms one item, a nil result filters the item out
type Processor interface {
	Process(item interface{}, chunkCtx *ChunkContext) (interface{}, BatchError)
}

//Writer receives the processed items of one chunk
type Writer interface {
	Write(items []interface{}, chunkCtx *ChunkContext) BatchError
}

//OpenCloser implemented by readers or writers holding resources for the duration of a step
type OpenCloser interface {
	Open(execution *StepExecution) BatchError
	Close(execution *StepExecution) BatchError
}

//Checkpointer implemented by readers that record their position, called after each chunk commits
type Checkpointer interface {
	Checkpoint(chunkCtx *ChunkContext) BatchError
}

type ProcessorFunc func(item interface{}, chunkCtx *ChunkContext) (interface{}, BatchError)

func (f ProcessorFunc) Process(item interface{}, chunkCtx *ChunkContext) (interface{}, BatchError) {
	return f(item, chunkCtx)
}

type WriterFunc func(items []interface{}, chunkCtx *ChunkContext) BatchError

func (f WriterFunc) Write(items []interface{}, chunkCtx *ChunkContext) BatchError {
	return f(items, chunkCtx)
}
