package implementation

import (
	"context"
	"errors"

	"second-brain/internal/entity"
	"second-brain/internal/mapper"
	"second-brain/internal/model"
	"second-brain/internal/repository/contract"
	"second-brain/internal/repository/specification"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type JournalEventRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.JournalEventMapper
}

func NewJournalEventRepository(db *gorm.DB) contract.JournalEventRepository {
	return &JournalEventRepositoryImpl{
		db:     db,
		mapper: mapper.NewJournalEventMapper(),
	}
}

func (r *JournalEventRepositoryImpl) FindById(ctx context.Context, id int64) (*entity.JournalEvent, error) {
	var m model.JournalEvent
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *JournalEventRepositoryImpl) FindMissingEmbeddings(ctx context.Context, afterId int64, limit int) ([]*entity.JournalEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var models []*model.JournalEvent
	err := specification.Apply(r.db.WithContext(ctx),
		specification.MissingEmbedding{},
		specification.IDAfter{ID: afterId},
		specification.OrderBy{Field: "id"},
		specification.Pagination{Limit: limit},
	).Find(&models).Error
	if err != nil {
		return nil, err
	}

	entities := make([]*entity.JournalEvent, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ToEntity(m)
	}
	return entities, nil
}

func (r *JournalEventRepositoryImpl) CountMissingEmbeddings(ctx context.Context) (int64, error) {
	var count int64
	err := specification.Apply(r.db.WithContext(ctx).Model(&model.JournalEvent{}),
		specification.MissingEmbedding{},
	).Count(&count).Error
	return count, err
}

func (r *JournalEventRepositoryImpl) UpdateEmbedding(ctx context.Context, id int64, embedding []float32) error {
	return specification.Apply(r.db.WithContext(ctx).Model(&model.JournalEvent{}),
		specification.ByID{ID: id},
	).Update("embedding", pgvector.NewVector(embedding)).Error
}
