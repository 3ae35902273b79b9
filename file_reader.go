package batchcsv

import (
	"context"
	"io"
	"sync"

	"github.com/chararch/batchcsv/file"
)

const (
	fileReaderCurrentIndex = "batchcsv.FileReader.current.index"
	fileReaderFileName     = "batchcsv.FileReader.fileName"
)

//fileReader adapts a delimited text resource to Reader, each record is mapped by the FieldSetMapper
type fileReader struct {
	fd      file.FileDescriptor
	mapper  file.FieldSetMapper
	mu      sync.Mutex
	handles map[*StepExecution]*fileHandle
}

type fileHandle struct {
	name   string
	reader *file.RecordReader
}

//NewFileReader creates a Reader over fd. When fd.FileStore is nil, fd.FileName is resolved as a resource uri.
//The reader records the number of committed records in the step execution context so that a restarted step resumes after them.
func NewFileReader(fd file.FileDescriptor, mapper file.FieldSetMapper) Reader {
	if mapper == nil {
		panic("field set mapper must not be nil")
	}
	return &fileReader{
		fd:      fd,
		mapper:  mapper,
		handles: make(map[*StepExecution]*fileHandle),
	}
}

func (r *fileReader) Open(execution *StepExecution) BatchError {
	fd := r.fd
	fp := &FilePath{NamePattern: fd.FileName}
	fileName, err := fp.Format(execution)
	if err != nil {
		return NewBatchError(ErrCodeGeneral, "get real file path:%v err", fd.FileName, err)
	}
	fd.FileName = fileName
	if fd.FileStore == nil {
		store, name, err := file.ResolveStorage(fileName)
		if err != nil {
			return NewBatchError(ErrCodeGeneral, "resolve resource:%v err", fileName, err)
		}
		fd.FileStore, fd.FileName = store, name
	}
	if fd.Checksum != "" {
		checksumer := file.GetChecksumer(fd.Checksum)
		if checksumer == nil {
			return NewBatchError(ErrCodeGeneral, "unsupported checksum:%v for file:%v", fd.Checksum, fd)
		}
		ok, err := checksumer.Verify(fd)
		if err != nil {
			return NewBatchError(ErrCodeGeneral, "verify file checksum:%v err", fd, err)
		}
		if !ok {
			return NewBatchError(ErrCodeGeneral, "verify file checksum:%v failed", fd)
		}
	}
	rr, err := file.OpenRecordReader(fd)
	if err != nil {
		return NewBatchError(ErrCodeGeneral, "open file reader:%v err", fd, err)
	}
	currentIndex, _ := execution.StepExecutionContext.GetInt64(fileReaderCurrentIndex, 0)
	if currentIndex > 0 {
		if err = rr.SkipTo(currentIndex); err != nil {
			rr.Close()
			return NewBatchError(ErrCodeGeneral, "skip to file record:%v pos:%v err", fd, currentIndex, err)
		}
		logger.Info(context.Background(), "file reader resumed, stepName:%v, file:%v, skipped:%v", execution.StepName, fd, currentIndex)
	}
	execution.StepExecutionContext.Put(fileReaderFileName, fd.String())
	r.mu.Lock()
	r.handles[execution] = &fileHandle{name: fd.String(), reader: rr}
	r.mu.Unlock()
	return nil
}

func (r *fileReader) handle(execution *StepExecution) *fileHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handles[execution]
}

func (r *fileReader) Read(chunkCtx *ChunkContext) (interface{}, BatchError) {
	h := r.handle(chunkCtx.StepExecution)
	if h == nil {
		return nil, NewBatchError(ErrCodeGeneral, "file reader of step:%v is not opened", chunkCtx.StepExecution.StepName)
	}
	fs, err := h.reader.Next()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, NewBatchError(ErrCodeGeneral, "read record from file:%v err", h.name, err)
	}
	item, err := r.mapper.MapFieldSet(fs)
	if err != nil {
		return nil, NewBatchError(ErrCodeGeneral, "map record at line:%v of file:%v err", h.reader.LineNumber(), h.name, err)
	}
	return item, nil
}

//Checkpoint records the number of records consumed by committed chunks
func (r *fileReader) Checkpoint(chunkCtx *ChunkContext) BatchError {
	h := r.handle(chunkCtx.StepExecution)
	if h != nil {
		chunkCtx.StepExecution.StepExecutionContext.Put(fileReaderCurrentIndex, h.reader.Count())
	}
	return nil
}

func (r *fileReader) Close(execution *StepExecution) BatchError {
	r.mu.Lock()
	h := r.handles[execution]
	delete(r.handles, execution)
	r.mu.Unlock()
	if h == nil {
		return nil
	}
	if err := h.reader.Close(); err != nil {
		return NewBatchError(ErrCodeGeneral, "close file reader:%v err", h.name, err)
	}
	return nil
}
