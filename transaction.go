package batchcsv

import (
	"context"
)

//TransactionManager wraps each chunk of a chunk step in a transaction: BeginTx before the first read,
//Commit after the writer succeeded, Rollback on any error of the chunk.
//The tx value is handed to the writer through ChunkContext.Tx.
type TransactionManager interface {
	BeginTx(ctx context.Context) (tx interface{}, err BatchError)
	Commit(tx interface{}) BatchError
	Rollback(tx interface{}) BatchError
}

//noopTxManager used when a chunk step has no transactional resource
type noopTxManager struct{}

func (noopTxManager) BeginTx(ctx context.Context) (interface{}, BatchError) {
	return nil, nil
}

func (noopTxManager) Commit(tx interface{}) BatchError {
	return nil
}

func (noopTxManager) Rollback(tx interface{}) BatchError {
	return nil
}
