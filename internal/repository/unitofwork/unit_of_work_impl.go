package unitofwork

import (
	"context"
	"database/sql"
	"fmt"

	"second-brain/internal/repository/contract"
	"second-brain/internal/repository/implementation"

	"gorm.io/gorm"
)

type UnitOfWorkImpl struct {
	db *gorm.DB
	tx *gorm.DB // active transaction, nil outside Begin/Commit
}

func NewUnitOfWork(db *gorm.DB) UnitOfWork {
	return &UnitOfWorkImpl{
		db: db,
	}
}

func (u *UnitOfWorkImpl) getDB() *gorm.DB {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

func (u *UnitOfWorkImpl) begin(ctx context.Context, opts *sql.TxOptions) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}
	tx := u.db.WithContext(ctx).Begin(opts)
	if tx.Error != nil {
		return tx.Error
	}
	u.tx = tx
	return nil
}

func (u *UnitOfWorkImpl) Begin(ctx context.Context) error {
	return u.begin(ctx, &sql.TxOptions{})
}

func (u *UnitOfWorkImpl) BeginReadOnly(ctx context.Context) error {
	return u.begin(ctx, &sql.TxOptions{ReadOnly: true})
}

func (u *UnitOfWorkImpl) SavePoint(name string) error {
	if u.tx == nil {
		return fmt.Errorf("no transaction for savepoint %s", name)
	}
	return u.tx.SavePoint(name).Error
}

func (u *UnitOfWorkImpl) RollbackTo(name string) error {
	if u.tx == nil {
		return fmt.Errorf("no transaction for savepoint %s", name)
	}
	return u.tx.RollbackTo(name).Error
}

func (u *UnitOfWorkImpl) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}
	err := u.tx.Commit().Error
	u.tx = nil
	return err
}

func (u *UnitOfWorkImpl) Rollback() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to rollback")
	}
	err := u.tx.Rollback().Error
	u.tx = nil
	return err
}

// Repository Accessors

func (u *UnitOfWorkImpl) JournalSearchRepository() contract.JournalSearchRepository {
	return implementation.NewJournalSearchRepository(u.getDB())
}

func (u *UnitOfWorkImpl) JournalEventRepository() contract.JournalEventRepository {
	return implementation.NewJournalEventRepository(u.getDB())
}
