package specification

import "gorm.io/gorm"

// MissingEmbedding selects journal events the vector strategy cannot reach yet.
type MissingEmbedding struct{}

func (s MissingEmbedding) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("embedding IS NULL")
}

// IDAfter is keyset pagination over ascending ids.
type IDAfter struct {
	ID int64
}

func (s IDAfter) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("id > ?", s.ID)
}
