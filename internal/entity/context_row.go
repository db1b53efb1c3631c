package entity

import (
	"strings"
	"time"
)

// DateLayout renders journal dates in context blocks.
const DateLayout = "2006-01-02"

// ContextRow is one journal excerpt produced by a retrieval strategy.
// Blurb and Content are never null; an absent value is the empty string.
type ContextRow struct {
	Date    time.Time
	Blurb   string
	Content string
	Source  string // strategy that produced the row
}

// BlurbPrefix returns the blurb with its trailing separator, or "" when absent.
func (r ContextRow) BlurbPrefix() string {
	if r.Blurb == "" {
		return ""
	}
	return r.Blurb + " - "
}

// Format renders "{date}: {blurb}{content}".
func (r ContextRow) Format() string {
	var b strings.Builder
	b.WriteString(r.Date.Format(DateLayout))
	b.WriteString(": ")
	b.WriteString(r.BlurbPrefix())
	b.WriteString(r.Content)
	return b.String()
}

// DedupKey identifies the same excerpt reached through different strategies:
// date plus content, or date plus blurb for entry-only rows.
func (r ContextRow) DedupKey() string {
	body := strings.TrimSpace(r.Content)
	if body == "" {
		body = "blurb\x00" + r.Blurb
	}
	return r.Date.Format(DateLayout) + "\x00" + body
}
