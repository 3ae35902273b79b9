package batchcsv

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bmizerany/assert"
	"github.com/chararch/batchcsv/file"
	"github.com/chararch/batchcsv/status"
	"github.com/pkg/errors"
)

type invoiceRow struct {
	Name   string  `field:"name"`
	Number string  `field:"number"`
	Amount float64 `field:"amount"`
}

const invoiceRows = "name,number,amount\n" +
	"Acme,INV-1,100\n" +
	"Beta,INV-2,50\n" +
	"\n" +
	"Gamma,INV-3,10\n" +
	"Delta,INV-4,20\n" +
	"Omega,INV-5,30\n"

func writeInvoiceFile(t *testing.T, name string, content string) string {
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	assert.Equal(t, nil, os.WriteFile(path, []byte(content), 0644))
	return dir
}

func invoiceRowDescriptor(fileName string) file.FileDescriptor {
	return file.FileDescriptor{
		FileName:    fileName,
		LinesToSkip: 1,
		FieldNames:  []string{"name", "number", "amount"},
	}
}

func rowNames(items []interface{}) []string {
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.(*invoiceRow).Name)
	}
	return names
}

func TestFileReader_ReadsRecords(t *testing.T) {
	dir := writeInvoiceFile(t, "invoices-20211202.csv", invoiceRows)
	ctx := context.Background()
	launcher := NewJobLauncher(nil)
	defer launcher.Close()
	writer := &recordingWriter{}
	fd := invoiceRowDescriptor(filepath.Join(dir, "invoices-{date,yyyyMMdd}.csv"))
	job := NewJob("fileJob", NewStep("load").ReadFile(fd, file.NewBeanFieldSetMapper(invoiceRow{})).Writer(writer).ChunkSize(2).Build()).Build()
	assert.Equal(t, nil, launcher.Register(job))

	id, err := launcher.Start(ctx, "fileJob", `{"date":"2021-12-02"}`)
	assert.Equal(t, nil, err)
	exec, err := launcher.GetExecution(ctx, id)
	assert.Equal(t, nil, err)
	assert.Equal(t, status.COMPLETED, exec.JobStatus)
	assert.Equal(t, []int{2, 2, 1}, writer.sizes())
	assert.Equal(t, []string{"Acme", "Beta", "Gamma", "Delta", "Omega"}, rowNames(writer.all()))
	assert.Equal(t, 100.0, writer.all()[0].(*invoiceRow).Amount)
	index, _ := exec.StepExecutions[0].StepExecutionContext.GetInt64(fileReaderCurrentIndex)
	assert.Equal(t, int64(5), index)
}

func TestFileReader_MalformedRecord(t *testing.T) {
	dir := writeInvoiceFile(t, "invoices.csv", "name,number,amount\nAcme,INV-1,100\nBeta,INV-2\n")
	ctx := context.Background()
	launcher := NewJobLauncher(nil)
	defer launcher.Close()
	writer := &recordingWriter{}
	fd := invoiceRowDescriptor(filepath.Join(dir, "invoices.csv"))
	job := NewJob("malformedJob", NewStep("load").ReadFile(fd, file.NewBeanFieldSetMapper(invoiceRow{})).Writer(writer).ChunkSize(2).Build()).Build()
	assert.Equal(t, nil, launcher.Register(job))

	id, err := launcher.Start(ctx, "malformedJob", "")
	assert.Equal(t, nil, err)
	exec, err := launcher.GetExecution(ctx, id)
	assert.Equal(t, nil, err)
	assert.Equal(t, status.FAILED, exec.JobStatus)
	assert.Equal(t, 0, len(writer.sizes()))
	var malformed *file.MalformedRecordError
	assert.T(t, errors.As(exec.FailError, &malformed), exec.FailError)
	assert.Equal(t, 3, malformed.Line)
	assert.Equal(t, 3, malformed.Expected)
	assert.Equal(t, 2, malformed.Actual)
}

func TestFileReader_ConversionError(t *testing.T) {
	dir := writeInvoiceFile(t, "invoices.csv", "name,number,amount\nAcme,INV-1,abc\n")
	ctx := context.Background()
	launcher := NewJobLauncher(nil)
	defer launcher.Close()
	fd := invoiceRowDescriptor(filepath.Join(dir, "invoices.csv"))
	job := NewJob("conversionJob", NewStep("load").ReadFile(fd, file.NewBeanFieldSetMapper(invoiceRow{})).Writer(&recordingWriter{}).Build()).Build()
	assert.Equal(t, nil, launcher.Register(job))

	id, err := launcher.Start(ctx, "conversionJob", "")
	assert.Equal(t, nil, err)
	exec, _ := launcher.GetExecution(ctx, id)
	assert.Equal(t, status.FAILED, exec.JobStatus)
	var conv *file.FieldConversionError
	assert.T(t, errors.As(exec.FailError, &conv), exec.FailError)
	assert.Equal(t, "amount", conv.Field)
	assert.Equal(t, "abc", conv.Value)
}

func TestFileReader_RestartResumesAfterCommittedRecords(t *testing.T) {
	dir := writeInvoiceFile(t, "invoices.csv", invoiceRows)
	ctx := context.Background()
	launcher := NewJobLauncher(nil)
	defer launcher.Close()
	writer := &recordingWriter{}
	calls := 0
	flaky := WriterFunc(func(items []interface{}, chunkCtx *ChunkContext) BatchError {
		calls++
		if calls == 2 {
			return NewBatchError(ErrCodeDbFail, "database unavailable")
		}
		return writer.Write(items, chunkCtx)
	})
	fd := invoiceRowDescriptor(filepath.Join(dir, "invoices.csv"))
	job := NewJob("resumeJob", NewStep("load").ReadFile(fd, file.NewBeanFieldSetMapper(invoiceRow{})).Writer(flaky).ChunkSize(2).Build()).Build()
	assert.Equal(t, nil, launcher.Register(job))

	id, err := launcher.Start(ctx, "resumeJob", "")
	assert.Equal(t, nil, err)
	exec, _ := launcher.GetExecution(ctx, id)
	assert.Equal(t, status.FAILED, exec.JobStatus)
	assert.Equal(t, []string{"Acme", "Beta"}, rowNames(writer.all()))

	id, err = launcher.Restart(ctx, id)
	assert.Equal(t, nil, err)
	exec, _ = launcher.GetExecution(ctx, id)
	assert.Equal(t, status.COMPLETED, exec.JobStatus)
	assert.Equal(t, []string{"Acme", "Beta", "Gamma", "Delta", "Omega"}, rowNames(writer.all()))
	assert.Equal(t, []int{2, 2, 1}, writer.sizes())
	assert.Equal(t, int64(3), exec.StepExecutions[0].ReadCount)
}

func TestFileReader_Checksum(t *testing.T) {
	dir := writeInvoiceFile(t, "invoices.csv", invoiceRows)
	ctx := context.Background()
	launcher := NewJobLauncher(nil)
	defer launcher.Close()
	fd := invoiceRowDescriptor(filepath.Join(dir, "invoices.csv"))
	fd.Checksum = file.MD5
	writer := &recordingWriter{}
	job := NewJob("checksumJob", NewStep("load").ReadFile(fd, file.NewBeanFieldSetMapper(invoiceRow{})).Writer(writer).Build()).
		Incrementer(RunIdIncrementer{}).Build()
	assert.Equal(t, nil, launcher.Register(job))

	id, err := launcher.Start(ctx, "checksumJob", "")
	assert.Equal(t, nil, err)
	exec, _ := launcher.GetExecution(ctx, id)
	assert.Equal(t, status.FAILED, exec.JobStatus)

	fd.FileStore = &file.LocalFileSystem{}
	assert.Equal(t, nil, file.GetChecksumer(file.MD5).Checksum(fd))
	id, err = launcher.Start(ctx, "checksumJob", "")
	assert.Equal(t, nil, err)
	exec, _ = launcher.GetExecution(ctx, id)
	assert.Equal(t, status.COMPLETED, exec.JobStatus)
	assert.Equal(t, 5, len(writer.all()))
}
