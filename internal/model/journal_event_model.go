package model

import (
	"github.com/pgvector/pgvector-go"
)

type JournalEvent struct {
	Id        int64            `gorm:"primaryKey"`
	EntryId   int64            `gorm:"not null;index"`
	Content   string           `gorm:"type:text"`
	Embedding *pgvector.Vector `gorm:"type:vector(768)"` // nomic-embed-text uses 768 dimensions
}

func (JournalEvent) TableName() string {
	return "journal.events"
}
