package invoice

import (
	"context"
	"database/sql"

	"github.com/chararch/batchcsv"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

//GormRepository stores invoices in the invoices table through gorm
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	if db == nil {
		panic("gorm db must not be nil")
	}
	return &GormRepository{db: db}
}

//AutoMigrate create or update the invoices table
func (r *GormRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&Invoice{})
}

func (r *GormRepository) SaveAll(ctx context.Context, invoices []*Invoice) error {
	if len(invoices) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(invoices).Error
}

//WithTx a repository writing through tx when tx is a *gorm.DB transaction
func (r *GormRepository) WithTx(tx interface{}) Repository {
	if gtx, ok := tx.(*gorm.DB); ok && gtx != nil {
		return &GormRepository{db: gtx}
	}
	return r
}

//GormTxManager runs each chunk in a gorm transaction
type GormTxManager struct {
	db *gorm.DB
}

func NewGormTxManager(db *gorm.DB) batchcsv.TransactionManager {
	if db == nil {
		panic("gorm db must not be nil")
	}
	return &GormTxManager{db: db}
}

func (tm *GormTxManager) BeginTx(ctx context.Context) (interface{}, batchcsv.BatchError) {
	tx := tm.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, batchcsv.NewBatchError(batchcsv.ErrCodeDbFail, "start transaction failed", tx.Error)
	}
	return tx, nil
}

func (tm *GormTxManager) Commit(tx interface{}) batchcsv.BatchError {
	if err := tx.(*gorm.DB).Commit().Error; err != nil {
		return batchcsv.NewBatchError(batchcsv.ErrCodeDbFail, "transaction commit failed", err)
	}
	return nil
}

func (tm *GormTxManager) Rollback(tx interface{}) batchcsv.BatchError {
	err := tx.(*gorm.DB).Rollback().Error
	if err != nil && !errors.Is(err, sql.ErrTxDone) && !errors.Is(err, gorm.ErrInvalidTransaction) {
		return batchcsv.NewBatchError(batchcsv.ErrCodeDbFail, "transaction rollback failed", err)
	}
	return nil
}
