package invoice

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/bmizerany/assert"
	"github.com/chararch/batchcsv"
	"github.com/chararch/batchcsv/file"
	"github.com/chararch/batchcsv/status"
	"github.com/pkg/errors"
)

type recordingRepository struct {
	mu    sync.Mutex
	calls [][]*Invoice
	err   error
}

func (r *recordingRepository) SaveAll(ctx context.Context, invoices []*Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	cp := make([]*Invoice, len(invoices))
	copy(cp, invoices)
	r.calls = append(r.calls, cp)
	return nil
}

func writeInvoices(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "invoices.csv")
	assert.Equal(t, nil, os.WriteFile(path, []byte(content), 0644))
	return path
}

func runInvoiceJob(t *testing.T, cfg JobConfig, repo Repository) (*batchcsv.JobExecution, *batchcsv.JobExecution) {
	ctx := context.Background()
	launcher := batchcsv.NewJobLauncher(nil)
	defer launcher.Close()
	var notified *batchcsv.JobExecution
	job := NewJob(cfg, repo, &InvoiceListener{OnFinish: func(execution *batchcsv.JobExecution) {
		notified = execution
	}})
	assert.Equal(t, nil, launcher.Register(job))
	id, err := launcher.Start(ctx, job.Name(), "")
	assert.Equal(t, nil, err)
	exec, err := launcher.GetExecution(ctx, id)
	assert.Equal(t, nil, err)
	return exec, notified
}

func TestInvoiceJob_AcmeBeta(t *testing.T) {
	path := writeInvoices(t, "name,number,amount,discount,location\nAcme,1,100.00,10,NY\nBeta,2,50.00,0,CA\n")
	repo := &recordingRepository{}
	exec, notified := runInvoiceJob(t, JobConfig{Resource: path, LinesToSkip: 1}, repo)

	assert.Equal(t, status.COMPLETED, exec.JobStatus)
	assert.Equal(t, status.COMPLETED, notified.JobStatus)
	assert.Equal(t, 1, len(repo.calls))
	saved := repo.calls[0]
	assert.Equal(t, 2, len(saved))
	assert.Equal(t, "Acme", saved[0].Name)
	assert.Equal(t, "1", saved[0].Number)
	assert.Equal(t, "100", saved[0].Amount.String())
	assert.Equal(t, "10", saved[0].Discount.String())
	assert.Equal(t, "NY", saved[0].Location)
	assert.Equal(t, "90", saved[0].FinalAmount.Decimal.String())
	assert.Equal(t, "Beta", saved[1].Name)
	assert.Equal(t, "CA", saved[1].Location)
	assert.Equal(t, "50", saved[1].FinalAmount.Decimal.String())
}

func TestInvoiceJob_Chunks(t *testing.T) {
	content := "name,number,amount,discount,location\n"
	for i := 1; i <= 5; i++ {
		content += fmt.Sprintf("Customer%d,%d,%d.50,5,NY\n", i, i, i*10)
		if i == 3 {
			content += "\n"
		}
	}
	path := writeInvoices(t, content)
	repo := &recordingRepository{}
	exec, _ := runInvoiceJob(t, JobConfig{Resource: path, LinesToSkip: 1}, repo)

	assert.Equal(t, status.COMPLETED, exec.JobStatus)
	sizes := make([]int, 0)
	names := make([]string, 0)
	for _, call := range repo.calls {
		sizes = append(sizes, len(call))
		for _, inv := range call {
			names = append(names, inv.Name)
		}
	}
	assert.Equal(t, []int{2, 2, 1}, sizes)
	assert.Equal(t, []string{"Customer1", "Customer2", "Customer3", "Customer4", "Customer5"}, names)
	assert.Equal(t, int64(5), exec.StepExecutions[0].WriteCount)
	assert.Equal(t, int64(3), exec.StepExecutions[0].CommitCount)
}

func TestInvoiceJob_Concurrent(t *testing.T) {
	content := "name,number,amount,discount,location\n"
	for i := 1; i <= 9; i++ {
		content += fmt.Sprintf("Customer%d,%d,100,%d,NY\n", i, i, i)
	}
	path := writeInvoices(t, content)
	repo := &recordingRepository{}
	exec, _ := runInvoiceJob(t, JobConfig{Resource: path, LinesToSkip: 1, ChunkSize: 4, Concurrency: 3}, repo)

	assert.Equal(t, status.COMPLETED, exec.JobStatus)
	i := 1
	for _, call := range repo.calls {
		for _, inv := range call {
			assert.Equal(t, fmt.Sprintf("%d", i), inv.Number)
			assert.Equal(t, fmt.Sprintf("%d", 100-i), inv.FinalAmount.Decimal.String())
			i++
		}
	}
	assert.Equal(t, 10, i)
}

func TestInvoiceJob_MalformedRecord(t *testing.T) {
	path := writeInvoices(t, "name,number,amount,discount,location\nAcme,1,100.00,10\nBeta,2,50.00,0,CA\n")
	repo := &recordingRepository{}
	exec, notified := runInvoiceJob(t, JobConfig{Resource: path, LinesToSkip: 1}, repo)

	assert.Equal(t, status.FAILED, exec.JobStatus)
	assert.Equal(t, status.FAILED, notified.JobStatus)
	assert.Equal(t, 0, len(repo.calls))
	var malformed *file.MalformedRecordError
	assert.T(t, errors.As(exec.FailError, &malformed), exec.FailError)
	assert.Equal(t, 2, malformed.Line)
	assert.Equal(t, 4, malformed.Actual)
}

func TestInvoiceJob_ConversionError(t *testing.T) {
	path := writeInvoices(t, "name,number,amount,discount,location\nAcme,1,100.00,ten,NY\n")
	repo := &recordingRepository{}
	exec, _ := runInvoiceJob(t, JobConfig{Resource: path, LinesToSkip: 1}, repo)

	assert.Equal(t, status.FAILED, exec.JobStatus)
	assert.Equal(t, 0, len(repo.calls))
	var conv *file.FieldConversionError
	assert.T(t, errors.As(exec.FailError, &conv), exec.FailError)
	assert.Equal(t, "discount", conv.Field)
}

func TestInvoiceJob_PersistenceError(t *testing.T) {
	path := writeInvoices(t, "name,number,amount,discount,location\nAcme,1,100.00,10,NY\n")
	cause := fmt.Errorf("connection refused")
	repo := &recordingRepository{err: cause}
	exec, _ := runInvoiceJob(t, JobConfig{Resource: path, LinesToSkip: 1}, repo)

	assert.Equal(t, status.FAILED, exec.JobStatus)
	var pe *PersistenceError
	assert.T(t, errors.As(exec.FailError, &pe), exec.FailError)
	assert.Equal(t, 1, pe.Count)
	assert.T(t, errors.Is(exec.FailError, cause))
}

func TestInvoiceJob_RunIds(t *testing.T) {
	path := writeInvoices(t, "name,number,amount,discount,location\nAcme,1,100.00,10,NY\n")
	ctx := context.Background()
	launcher := batchcsv.NewJobLauncher(nil)
	defer launcher.Close()
	repo := &recordingRepository{}
	job := NewJob(JobConfig{JobName: "invoices", Resource: path, LinesToSkip: 1}, repo)
	assert.Equal(t, nil, launcher.Register(job))
	id1, err := launcher.Start(ctx, "invoices", "")
	assert.Equal(t, nil, err)
	id2, err := launcher.Start(ctx, "invoices", "")
	assert.Equal(t, nil, err)
	exec1, _ := launcher.GetExecution(ctx, id1)
	exec2, _ := launcher.GetExecution(ctx, id2)
	assert.Equal(t, status.COMPLETED, exec2.JobStatus)
	assert.NotEqual(t, exec1.JobInstanceId, exec2.JobInstanceId)
	assert.Equal(t, 2, len(repo.calls))
}

type txRecordingRepository struct {
	recordingRepository
	boundTx interface{}
}

func (r *txRecordingRepository) WithTx(tx interface{}) Repository {
	r.boundTx = tx
	return &r.recordingRepository
}

func TestItemWriter_BindsTransaction(t *testing.T) {
	repo := &txRecordingRepository{}
	w := NewItemWriter(repo)
	err := w.Write([]interface{}{newInvoice("1", "0")}, &batchcsv.ChunkContext{Tx: "tx-1"})
	assert.Equal(t, nil, err)
	assert.Equal(t, "tx-1", repo.boundTx)
	assert.Equal(t, 1, len(repo.calls))

	err = w.Write([]interface{}{"bad"}, &batchcsv.ChunkContext{})
	assert.NotEqual(t, nil, err)

	calls := 0
	fw := NewItemWriter(SaveAllFunc(func(ctx context.Context, invoices []*Invoice) error {
		calls++
		return nil
	}))
	assert.Equal(t, nil, fw.Write([]interface{}{newInvoice("1", "0"), newInvoice("2", "0")}, &batchcsv.ChunkContext{}))
	assert.Equal(t, 1, calls)
}

func TestNewJob_MissingRequiredField(t *testing.T) {
	defer func() {
		r := recover()
		assert.NotEqual(t, nil, r)
		assert.T(t, strings.Contains(fmt.Sprint(r), "discount"), r)
	}()
	NewJob(JobConfig{Resource: "invoices.csv", FieldNames: []string{"name", "number", "amount", "location"}}, &recordingRepository{})
}

func TestInvoiceJob_FieldNamesCaseInsensitive(t *testing.T) {
	path := writeInvoices(t, "Acme,1,100.00,10,NY\n")
	repo := &recordingRepository{}
	exec, _ := runInvoiceJob(t, JobConfig{Resource: path, FieldNames: []string{"Name", "Number", "AMOUNT", "Discount", "location"}}, repo)
	assert.Equal(t, status.COMPLETED, exec.JobStatus)
	assert.Equal(t, 1, len(repo.calls))
	assert.Equal(t, "90", repo.calls[0][0].FinalAmount.Decimal.String())
}
