package unitofwork

import (
	"context"

	"second-brain/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	// BeginReadOnly opens a READ ONLY transaction; retrieval never writes.
	BeginReadOnly(ctx context.Context) error
	SavePoint(name string) error
	RollbackTo(name string) error
	Commit() error
	Rollback() error

	JournalSearchRepository() contract.JournalSearchRepository
	JournalEventRepository() contract.JournalEventRepository
}
