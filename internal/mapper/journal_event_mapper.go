package mapper

import (
	"second-brain/internal/entity"
	"second-brain/internal/model"

	"github.com/pgvector/pgvector-go"
)

type JournalEventMapper struct{}

func NewJournalEventMapper() *JournalEventMapper {
	return &JournalEventMapper{}
}

func (m *JournalEventMapper) ToEntity(e *model.JournalEvent) *entity.JournalEvent {
	if e == nil {
		return nil
	}

	var values []float32
	if e.Embedding != nil {
		values = e.Embedding.Slice()
	}

	return &entity.JournalEvent{
		Id:        e.Id,
		EntryId:   e.EntryId,
		Content:   e.Content,
		Embedding: values,
	}
}

func (m *JournalEventMapper) ToModel(e *entity.JournalEvent) *model.JournalEvent {
	if e == nil {
		return nil
	}

	var vec *pgvector.Vector
	if len(e.Embedding) > 0 {
		v := pgvector.NewVector(e.Embedding)
		vec = &v
	}

	return &model.JournalEvent{
		Id:        e.Id,
		EntryId:   e.EntryId,
		Content:   e.Content,
		Embedding: vec,
	}
}
