package retriever

import (
	"strings"

	"second-brain/internal/entity"
)

// NoContextMarker grounds the model when nothing relevant was retrieved.
const NoContextMarker = "No relevant journal context found."

// StrategyFailure records a strategy that was skipped.
type StrategyFailure struct {
	Strategy Strategy
	Err      error
}

func (f StrategyFailure) Kind() string {
	return KindName(f.Err)
}

// Block is the fused result of one retrieval, rows in presentation rank.
type Block struct {
	Query    string
	Rows     []entity.ContextRow
	Failures []StrategyFailure
}

// Text renders every row and separates them with a blank line.
func (b *Block) Text() string {
	if b == nil || len(b.Rows) == 0 {
		return ""
	}
	lines := make([]string, len(b.Rows))
	for i, r := range b.Rows {
		lines[i] = r.Format()
	}
	return strings.Join(lines, "\n\n")
}

// PromptContext is Text, or NoContextMarker when the block is empty.
func (b *Block) PromptContext() string {
	if text := b.Text(); text != "" {
		return text
	}
	return NoContextMarker
}

func (b *Block) Empty() bool {
	return b == nil || len(b.Rows) == 0
}

// Counts returns rows contributed per strategy.
func (b *Block) Counts() map[Strategy]int {
	counts := make(map[Strategy]int, len(fusionOrder))
	if b == nil {
		return counts
	}
	for _, r := range b.Rows {
		counts[Strategy(r.Source)]++
	}
	return counts
}

func deduplicate(rows []entity.ContextRow) []entity.ContextRow {
	seen := make(map[string]bool, len(rows))
	out := rows[:0]
	for _, r := range rows {
		key := r.DedupKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}
