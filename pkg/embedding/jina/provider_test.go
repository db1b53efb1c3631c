package jina

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"second-brain/pkg/embedding"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJinaProviderGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"data":[{"object":"embedding","index":0,"embedding":[0.5,0.5]}]}`))
	}))
	defer srv.Close()

	vec, err := NewJinaProviderWithURL("key", srv.URL, 0).Generate(context.Background(), "hello", embedding.TaskRetrievalQuery)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5}, vec)
}

func TestJinaProviderErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
	}{
		{name: "api error", body: `{"data":[],"error":{"message":"bad key"}}`, code: http.StatusOK},
		{name: "empty data", body: `{"data":[]}`, code: http.StatusOK},
		{name: "status", body: `nope`, code: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewJinaProviderWithURL("key", srv.URL, 0).Generate(context.Background(), "hello", "")
			assert.Error(t, err)
		})
	}
}
