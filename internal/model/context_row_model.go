package model

import (
	"database/sql"

	"gorm.io/datatypes"
)

// ContextRow is the scan target shared by all three search queries.
type ContextRow struct {
	Date    datatypes.Date `gorm:"column:date"`
	Blurb   sql.NullString `gorm:"column:blurb"`
	Content sql.NullString `gorm:"column:content"`
}
