package mapper

import (
	"strings"
	"time"

	"second-brain/internal/entity"
	"second-brain/internal/model"
)

type ContextRowMapper struct{}

func NewContextRowMapper() *ContextRowMapper {
	return &ContextRowMapper{}
}

// ToEntity collapses NULL blurb/content into empty strings.
func (m *ContextRowMapper) ToEntity(r *model.ContextRow, source string) *entity.ContextRow {
	if r == nil {
		return nil
	}

	return &entity.ContextRow{
		Date:    time.Time(r.Date),
		Blurb:   strings.TrimSpace(r.Blurb.String),
		Content: r.Content.String,
		Source:  source,
	}
}

func (m *ContextRowMapper) ToEntities(rows []*model.ContextRow, source string) []*entity.ContextRow {
	entities := make([]*entity.ContextRow, len(rows))
	for i, r := range rows {
		entities[i] = m.ToEntity(r, source)
	}
	return entities
}
