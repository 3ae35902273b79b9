package batchcsv

import (
	"fmt"

	"github.com/chararch/batchcsv/file"
)

const (
	//DefaultChunkSize default number of record per chunk to read
	DefaultChunkSize = 10
)

type stepBuilder struct {
	name           string
	task           Task
	handler        Handler
	reader         Reader
	processor      Processor
	writer         Writer
	chunkSize      uint
	concurrency    int
	txManager      TransactionManager
	stepListeners  []StepListener
	chunkListeners []ChunkListener
}

//NewStep initialize a step builder
func NewStep(name string, handler ...interface{}) *stepBuilder {
	if name == "" {
		panic("step name must not be empty")
	}
	builder := &stepBuilder{
		name:           name,
		processor:      &nilProcessor{},
		chunkSize:      DefaultChunkSize,
		concurrency:    1,
		stepListeners:  make([]StepListener, 0),
		chunkListeners: make([]ChunkListener, 0),
	}
	for _, h := range handler {
		builder.Handler(h)
	}
	return builder
}

func (builder *stepBuilder) Handler(handler interface{}) *stepBuilder {
	valid := false
	switch val := handler.(type) {
	case Task:
		builder.Task(val)
		valid = true
	case func(execution *StepExecution) BatchError:
		builder.Task(val)
		valid = true
	case func() error:
		builder.Task(func(execution *StepExecution) BatchError {
			if e := val(); e != nil {
				return WrapBatchError(ErrCodeGeneral, e, "execute step:%v error", execution.StepName)
			}
			return nil
		})
		valid = true
	case func():
		builder.Task(func(execution *StepExecution) BatchError {
			val()
			return nil
		})
		valid = true
	case Handler:
		builder.handler = val
		valid = true
	default:
		if val2, ok2 := handler.(Reader); ok2 {
			builder.Reader(val2)
			valid = true
		}
		if val2, ok2 := handler.(Processor); ok2 {
			builder.Processor(val2)
			valid = true
		}
		if val2, ok2 := handler.(Writer); ok2 {
			builder.Writer(val2)
			valid = true
		}
		if val2, ok2 := handler.(StepListener); ok2 {
			builder.stepListeners = append(builder.stepListeners, val2)
			valid = true
		}
		if val2, ok2 := handler.(ChunkListener); ok2 {
			builder.chunkListeners = append(builder.chunkListeners, val2)
			valid = true
		}
	}
	if !valid {
		panic(fmt.Sprintf("invalid handler type:%T for step:%v", handler, builder.name))
	}
	return builder
}

func (builder *stepBuilder) Task(task Task) *stepBuilder {
	builder.task = task
	return builder
}

func (builder *stepBuilder) Reader(reader Reader) *stepBuilder {
	builder.reader = reader
	return builder
}

func (builder *stepBuilder) Processor(processor Processor) *stepBuilder {
	builder.processor = processor
	return builder
}

func (builder *stepBuilder) Writer(writer Writer) *stepBuilder {
	builder.writer = writer
	return builder
}

//ReadFile read items from a delimited file, each record mapped to an item by mapper
func (builder *stepBuilder) ReadFile(fd file.FileDescriptor, mapper file.FieldSetMapper) *stepBuilder {
	builder.reader = NewFileReader(fd, mapper)
	return builder
}

func (builder *stepBuilder) ChunkSize(chunkSize uint) *stepBuilder {
	if chunkSize == 0 {
		panic(fmt.Sprintf("chunk size of step:%v must be positive", builder.name))
	}
	builder.chunkSize = chunkSize
	return builder
}

//Concurrency number of items of a chunk processed in parallel
func (builder *stepBuilder) Concurrency(concurrency int) *stepBuilder {
	if concurrency < 1 {
		concurrency = 1
	}
	builder.concurrency = concurrency
	return builder
}

func (builder *stepBuilder) TransactionManager(txManager TransactionManager) *stepBuilder {
	builder.txManager = txManager
	return builder
}

func (builder *stepBuilder) Listener(listener ...interface{}) *stepBuilder {
	for _, l := range listener {
		valid := false
		if sl, ok := l.(StepListener); ok {
			builder.stepListeners = append(builder.stepListeners, sl)
			valid = true
		}
		if cl, ok := l.(ChunkListener); ok {
			builder.chunkListeners = append(builder.chunkListeners, cl)
			valid = true
		}
		if !valid {
			panic(fmt.Sprintf("not supported listener:%+v for step:%v", l, builder.name))
		}
	}
	return builder
}

func (builder *stepBuilder) Build() Step {
	if builder.handler != nil {
		return newSimpleStep(builder.name, builder.handler, builder.stepListeners)
	}
	if builder.task != nil {
		return newSimpleStep(builder.name, builder.task, builder.stepListeners)
	}
	if builder.reader != nil {
		txManager := builder.txManager
		if txManager == nil {
			txManager = noopTxManager{}
		}
		return &chunkStep{
			name:           builder.name,
			reader:         builder.reader,
			processor:      builder.processor,
			writer:         builder.writer,
			chunkSize:      builder.chunkSize,
			concurrency:    builder.concurrency,
			txManager:      txManager,
			listeners:      builder.stepListeners,
			chunkListeners: builder.chunkListeners,
		}
	}
	panic(fmt.Sprintf("no handler or reader specified for step: %s", builder.name))
}

type nilProcessor struct {
}

func (p *nilProcessor) Process(item interface{}, chunkCtx *ChunkContext) (interface{}, BatchError) {
	return item, nil
}
