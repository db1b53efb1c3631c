package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingSchemaStatements(t *testing.T) {
	tests := []struct {
		metric  string
		opClass string
	}{
		{"l2", "vector_l2_ops"},
		{"cosine", "vector_cosine_ops"},
		{"inner_product", "vector_ip_ops"},
	}

	for _, tt := range tests {
		t.Run(tt.metric, func(t *testing.T) {
			stmts, err := EmbeddingSchema{Dimensions: 768, Metric: tt.metric}.Statements()
			require.NoError(t, err)
			require.Len(t, stmts, 3)
			assert.Contains(t, stmts[1], "vector(768)")
			assert.Contains(t, stmts[2], "events_embedding_"+tt.metric+"_idx")
			assert.Contains(t, stmts[2], "(embedding "+tt.opClass+")")
		})
	}
}

func TestEmbeddingSchemaRejectsBadInput(t *testing.T) {
	_, err := EmbeddingSchema{Dimensions: 0, Metric: "l2"}.Statements()
	assert.Error(t, err)

	_, err = EmbeddingSchema{Dimensions: 768, Metric: "hamming"}.Statements()
	assert.Error(t, err)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, parseLogLevel("silent"), parseLogLevel("silent"))
	assert.NotEqual(t, parseLogLevel("silent"), parseLogLevel("info"))
	assert.Equal(t, parseLogLevel("warn"), parseLogLevel("bogus"))
}
