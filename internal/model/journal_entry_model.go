package model

import (
	"gorm.io/datatypes"
)

type JournalEntry struct {
	Id    int64          `gorm:"primaryKey"`
	Date  datatypes.Date `gorm:"not null;index"`
	Blurb *string        `gorm:"type:text"`
}

func (JournalEntry) TableName() string {
	return "journal.entries"
}
