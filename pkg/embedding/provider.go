package embedding

import (
	"context"
	"errors"
	"math"
	"unicode/utf8"
)

// Task types, honoured by providers that distinguish queries from documents.
const (
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
)

// DefaultMaxInputChars keeps queries well inside nomic-embed-text's context window.
const DefaultMaxInputChars = 8000

var ErrEmptyEmbedding = errors.New("embedding service returned an empty vector")

// EmbeddingProvider defines the interface for generating text embeddings.
// Vectors are fixed-dimension for a given model and deterministic for a fixed model version.
type EmbeddingProvider interface {
	Generate(ctx context.Context, text string, taskType string) ([]float32, error)
	Model() string
}

// Truncate cuts text to at most maxChars runes. maxChars <= 0 disables the guard.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	n := 0
	for i := range text {
		if n == maxChars {
			return text[:i]
		}
		n++
	}
	return text
}

// normalizeVector scales a vector to unit length. Cosine ordering in pgvector
// only matches the stored vectors when both sides went through the same scaling.
func normalizeVector(vec []float32) []float32 {
	var magnitude float64
	for _, v := range vec {
		magnitude += float64(v) * float64(v)
	}
	magnitude = math.Sqrt(magnitude)

	if magnitude == 0 {
		return vec
	}

	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = float32(float64(v) / magnitude)
	}
	return normalized
}
