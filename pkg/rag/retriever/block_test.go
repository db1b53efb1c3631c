package retriever

import (
	"errors"
	"testing"
	"time"

	"second-brain/internal/entity"

	"github.com/stretchr/testify/assert"
)

func TestBlockText(t *testing.T) {
	d1 := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		block *Block
		text  string
		ctx   string
	}{
		{
			name:  "nil block",
			block: nil,
			text:  "",
			ctx:   NoContextMarker,
		},
		{
			name:  "no rows",
			block: &Block{Query: "q"},
			text:  "",
			ctx:   NoContextMarker,
		},
		{
			name: "rows joined by blank line",
			block: &Block{Rows: []entity.ContextRow{
				{Date: d1, Blurb: "lake day", Content: "swam before breakfast"},
				{Date: d2, Content: "fixed the bike"},
			}},
			text: "2024-03-02: lake day - swam before breakfast\n\n2024-03-05: fixed the bike",
			ctx:  "2024-03-02: lake day - swam before breakfast\n\n2024-03-05: fixed the bike",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.text, tt.block.Text())
			assert.Equal(t, tt.ctx, tt.block.PromptContext())
			assert.Equal(t, tt.text == "", tt.block.Empty())
		})
	}
}

func TestDeduplicateKeepsFirst(t *testing.T) {
	d := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	in := []entity.ContextRow{
		{Date: d, Content: "ran 5k", Source: "events"},
		{Date: d, Blurb: "Blurb one", Source: "entries"},
		{Date: d, Content: " ran 5k ", Source: "vector"},
		{Date: d, Blurb: "Blurb two", Source: "entries"},
		{Date: d.AddDate(0, 0, 1), Content: "ran 5k", Source: "vector"},
	}

	out := deduplicate(in)

	assert.Len(t, out, 4)
	assert.Equal(t, "events", out[0].Source)
	assert.Equal(t, "Blurb two", out[2].Blurb)
	assert.Equal(t, "vector", out[3].Source)
}

func TestStrategyFailureKind(t *testing.T) {
	f := StrategyFailure{
		Strategy: StrategyVector,
		Err:      &RetrievalError{Kind: ErrEmbeddingService, Strategy: StrategyVector, Err: errors.New("timeout")},
	}
	assert.Equal(t, "embedding_service", f.Kind())
	assert.Contains(t, f.Err.Error(), "strategy vector")
}

func TestConfigNormalize(t *testing.T) {
	cfg := Config{
		Strategies:   []Strategy{StrategyVector, StrategyEvents, StrategyVector},
		EmbedRetries: -3,
	}.normalize()

	assert.Equal(t, []Strategy{StrategyEvents, StrategyVector}, cfg.Strategies)
	assert.Equal(t, DefaultLimit, cfg.EntryLimit)
	assert.Equal(t, DefaultLimit, cfg.VectorLimit)
	assert.Equal(t, 0, cfg.EmbedRetries)
	assert.Equal(t, 5*time.Second, cfg.DBTimeout)
	assert.True(t, cfg.enabled(StrategyEvents))
	assert.False(t, cfg.enabled(StrategyEntries))
}

func TestParseStrategies(t *testing.T) {
	got := ParseStrategies([]string{"vector", "bogus", "entries"})
	assert.Equal(t, []Strategy{StrategyVector, StrategyEntries}, got)
}
