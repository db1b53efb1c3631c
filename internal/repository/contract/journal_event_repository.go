package contract

import (
	"context"

	"second-brain/internal/entity"
)

type JournalEventRepository interface {
	FindById(ctx context.Context, id int64) (*entity.JournalEvent, error)
	// FindMissingEmbeddings pages through events without an embedding, ordered by id.
	FindMissingEmbeddings(ctx context.Context, afterId int64, limit int) ([]*entity.JournalEvent, error)
	CountMissingEmbeddings(ctx context.Context) (int64, error)
	UpdateEmbedding(ctx context.Context, id int64, embedding []float32) error
}
