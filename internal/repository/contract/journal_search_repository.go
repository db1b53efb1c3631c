package contract

import (
	"context"
	"fmt"

	"second-brain/internal/entity"
)

// VectorMetric selects the pgvector distance operator. It must match the
// metric the stored event embeddings were produced for.
type VectorMetric string

const (
	MetricL2           VectorMetric = "l2"
	MetricCosine       VectorMetric = "cosine"
	MetricInnerProduct VectorMetric = "inner_product"
)

// Operator returns the pgvector ordering operator (ascending = closest first).
func (m VectorMetric) Operator() (string, error) {
	switch m {
	case MetricL2, "":
		return "<->", nil
	case MetricCosine:
		return "<=>", nil
	case MetricInnerProduct:
		return "<#>", nil
	default:
		return "", fmt.Errorf("unknown vector metric %q", string(m))
	}
}

type JournalSearchRepository interface {
	// SearchEntries runs the server-side full-text search over entry blurbs. Rows carry empty content.
	SearchEntries(ctx context.Context, query string, limit int) ([]*entity.ContextRow, error)
	// SearchEvents runs the server-side full-text search over event content.
	SearchEvents(ctx context.Context, query string, limit int) ([]*entity.ContextRow, error)
	// SearchSimilarEvents orders embedded events by distance to the query vector.
	SearchSimilarEvents(ctx context.Context, embedding []float32, limit int, metric VectorMetric) ([]*entity.ContextRow, error)
}
