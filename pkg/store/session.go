package store

import (
	"slices"
	"time"

	"second-brain/pkg/llm"
)

// Session is one chat conversation grounded in journal context.
//
// InitialContext is fixed by the first prompt of the session and is replayed
// ahead of Messages on every turn. ClearSession drops both.
type Session struct {
	ID             string        `json:"id"`
	Model          string        `json:"model"`
	InitialPrompt  string        `json:"initial_prompt,omitempty"`
	InitialContext []llm.Message `json:"initial_context,omitempty"`
	ContextMissing bool          `json:"context_missing,omitempty"` // journal was unreachable when grounding
	Messages       []llm.Message `json:"messages"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Grounded reports whether the session already fetched its journal context.
func (s *Session) Grounded() bool {
	return s.InitialPrompt != ""
}

// History is what the model sees: the grounding message followed by the conversation.
func (s *Session) History() []llm.Message {
	out := make([]llm.Message, 0, len(s.InitialContext)+len(s.Messages))
	out = append(out, s.InitialContext...)
	out = append(out, s.Messages...)
	return out
}

// Reset forgets the conversation and its grounding, keeping the selected model.
func (s *Session) Reset() {
	s.InitialPrompt = ""
	s.InitialContext = nil
	s.ContextMissing = false
	s.Messages = nil
	s.UpdatedAt = time.Now()
}

// Clone returns a copy that shares no backing arrays with s.
func (s *Session) Clone() *Session {
	cp := *s
	cp.InitialContext = slices.Clone(s.InitialContext)
	cp.Messages = slices.Clone(s.Messages)
	return &cp
}
