package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// EmbeddingSchema describes the vector column the vector strategy searches.
// The journal tables and search functions themselves are owned elsewhere.
type EmbeddingSchema struct {
	Dimensions int
	Metric     string // l2 | cosine | inner_product
}

var operatorClasses = map[string]string{
	"l2":            "vector_l2_ops",
	"cosine":        "vector_cosine_ops",
	"inner_product": "vector_ip_ops",
}

// Statements returns the idempotent DDL for the schema, in execution order.
func (s EmbeddingSchema) Statements() ([]string, error) {
	if s.Dimensions <= 0 {
		return nil, fmt.Errorf("embedding dimensions must be positive, got %d", s.Dimensions)
	}
	opClass, ok := operatorClasses[s.Metric]
	if !ok {
		return nil, fmt.Errorf("unknown vector metric %q", s.Metric)
	}

	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`ALTER TABLE journal.events ADD COLUMN IF NOT EXISTS embedding vector(%d)`, s.Dimensions),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS events_embedding_%s_idx ON journal.events USING hnsw (embedding %s)`, s.Metric, opClass),
	}, nil
}

// MigrateEmbeddingSchema applies Statements in one transaction.
func MigrateEmbeddingSchema(ctx context.Context, db *gorm.DB, schema EmbeddingSchema) error {
	stmts, err := schema.Statements()
	if err != nil {
		return err
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, stmt := range stmts {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("migrate %q: %w", stmt, err)
			}
		}
		return nil
	})
}
