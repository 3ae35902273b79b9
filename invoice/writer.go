package invoice

import (
	"context"
	"fmt"

	"github.com/chararch/batchcsv"
)

//Repository stores invoices
type Repository interface {
	//SaveAll durably stores invoices in one call, all or none
	SaveAll(ctx context.Context, invoices []*Invoice) error
}

//TxRepository a Repository able to join the transaction of the running chunk
type TxRepository interface {
	Repository
	WithTx(tx interface{}) Repository
}

//SaveAllFunc adapts a function to Repository
type SaveAllFunc func(ctx context.Context, invoices []*Invoice) error

func (f SaveAllFunc) SaveAll(ctx context.Context, invoices []*Invoice) error {
	return f(ctx, invoices)
}

//PersistenceError a chunk of invoices could not be stored
type PersistenceError struct {
	Count int
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("save %d invoices: %v", e.Count, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

//ItemWriter writes each chunk of invoices with a single Repository.SaveAll call
type ItemWriter struct {
	repo Repository
}

func NewItemWriter(repo Repository) *ItemWriter {
	if repo == nil {
		panic("invoice repository must not be nil")
	}
	return &ItemWriter{repo: repo}
}

func (w *ItemWriter) Write(items []interface{}, chunkCtx *batchcsv.ChunkContext) batchcsv.BatchError {
	invoices := make([]*Invoice, 0, len(items))
	for _, item := range items {
		inv, ok := item.(*Invoice)
		if !ok {
			return batchcsv.NewBatchError(batchcsv.ErrCodeGeneral, "unexpected item type:%T", item)
		}
		invoices = append(invoices, inv)
	}
	ctx := chunkCtx.Context()
	batchcsv.GetLogger().Info(ctx, "saving invoice records: %v", invoices)
	repo := w.repo
	if txRepo, ok := repo.(TxRepository); ok && chunkCtx.Tx != nil {
		repo = txRepo.WithTx(chunkCtx.Tx)
	}
	if err := repo.SaveAll(ctx, invoices); err != nil {
		return batchcsv.NewBatchError(batchcsv.ErrCodeDbFail, "save invoices err", &PersistenceError{Count: len(invoices), Err: err})
	}
	return nil
}
