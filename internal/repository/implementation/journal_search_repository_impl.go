package implementation

import (
	"context"

	"second-brain/internal/entity"
	"second-brain/internal/mapper"
	"second-brain/internal/model"
	"second-brain/internal/repository/contract"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	SourceEntries = "entries"
	SourceEvents  = "events"
	SourceVector  = "vector"
)

type JournalSearchRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ContextRowMapper
}

func NewJournalSearchRepository(db *gorm.DB) contract.JournalSearchRepository {
	return &JournalSearchRepositoryImpl{
		db:     db,
		mapper: mapper.NewContextRowMapper(),
	}
}

func (r *JournalSearchRepositoryImpl) SearchEntries(ctx context.Context, query string, limit int) ([]*entity.ContextRow, error) {
	var rows []*model.ContextRow
	err := r.db.WithContext(ctx).
		Raw("SELECT date, blurb, '' AS content FROM journal.search_entries(?) LIMIT ?", query, limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(rows, SourceEntries), nil
}

func (r *JournalSearchRepositoryImpl) SearchEvents(ctx context.Context, query string, limit int) ([]*entity.ContextRow, error) {
	var rows []*model.ContextRow
	err := r.db.WithContext(ctx).
		Raw("SELECT date, blurb, content FROM journal.search_events(?) LIMIT ?", query, limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(rows, SourceEvents), nil
}

func (r *JournalSearchRepositoryImpl) SearchSimilarEvents(ctx context.Context, embedding []float32, limit int, metric contract.VectorMetric) ([]*entity.ContextRow, error) {
	op, err := metric.Operator()
	if err != nil {
		return nil, err
	}

	var rows []*model.ContextRow
	err = r.db.WithContext(ctx).
		Table("journal.entries AS a").
		Select("a.date, a.blurb, b.content").
		Joins("JOIN journal.events AS b ON b.entry_id = a.id").
		Where("b.embedding IS NOT NULL").
		Clauses(clause.OrderBy{Expression: clause.Expr{
			SQL:                "b.embedding " + op + " ?",
			Vars:               []interface{}{pgvector.NewVector(embedding)},
			WithoutParentheses: true,
		}}).
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(rows, SourceVector), nil
}
