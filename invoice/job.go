package invoice

import (
	"fmt"
	"strings"

	"github.com/chararch/batchcsv"
	"github.com/chararch/batchcsv/file"
)

const (
	DefaultJobName   = "invoiceJob"
	DefaultStepName  = "invoiceStep"
	DefaultChunkSize = 2
)

//DefaultFieldNames column order of the invoice file
var DefaultFieldNames = []string{"name", "number", "amount", "discount", "location"}

//JobConfig settings of the invoice import job, zero values take the defaults
type JobConfig struct {
	JobName  string
	StepName string
	//Resource uri or path of the invoice file, may hold {param} patterns
	Resource string
	//FileStore storage of Resource, resolved from the uri when nil
	FileStore   file.FileStorage
	Delimiter   rune
	LinesToSkip int
	FieldNames  []string
	Encoding    string
	Checksum    string
	ChunkSize   uint
	Concurrency int
	TxManager   batchcsv.TransactionManager
	Transformer Transformer
}

//FileDescriptor the descriptor of the invoice file
func (cfg JobConfig) FileDescriptor() file.FileDescriptor {
	names := cfg.FieldNames
	if len(names) == 0 {
		names = DefaultFieldNames
	}
	return file.FileDescriptor{
		FileStore:   cfg.FileStore,
		FileName:    cfg.Resource,
		Encoding:    cfg.Encoding,
		Delimiter:   cfg.Delimiter,
		LinesToSkip: cfg.LinesToSkip,
		FieldNames:  names,
		Checksum:    cfg.Checksum,
	}
}

//NewMapper maps invoice records onto *Invoice
func NewMapper() *file.BeanFieldSetMapper {
	return file.NewBeanFieldSetMapper(Invoice{})
}

//NewJob build the invoice import job: read the file, apply the discount, save each chunk to repo.
//Every start gets a new run.id, extra listeners may be job, step or chunk listeners.
func NewJob(cfg JobConfig, repo Repository, listeners ...interface{}) batchcsv.Job {
	jobName, stepName := cfg.JobName, cfg.StepName
	if jobName == "" {
		jobName = DefaultJobName
	}
	if stepName == "" {
		stepName = DefaultStepName
	}
	chunkSize := cfg.ChunkSize
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}
	transformer := cfg.Transformer
	if transformer == nil {
		transformer = ApplyDiscount
	}
	fd, mapper := cfg.FileDescriptor(), NewMapper()
	for _, required := range mapper.RequiredFields() {
		if !hasField(fd.FieldNames, required) {
			panic(fmt.Sprintf("invoice field names %v lack required field:%v", fd.FieldNames, required))
		}
	}
	builder := batchcsv.NewStep(stepName).
		ReadFile(fd, mapper).
		Processor(NewProcessor(transformer)).
		Writer(NewItemWriter(repo)).
		ChunkSize(chunkSize).
		Concurrency(cfg.Concurrency)
	if cfg.TxManager != nil {
		builder.TransactionManager(cfg.TxManager)
	}
	return batchcsv.NewJob(jobName, builder.Build()).
		Listener(&InvoiceListener{}).
		Listener(listeners...).
		Incrementer(batchcsv.RunIdIncrementer{}).
		Build()
}

func hasField(names []string, name string) bool {
	for _, n := range names {
		if strings.EqualFold(strings.TrimSpace(n), name) {
			return true
		}
	}
	return false
}
