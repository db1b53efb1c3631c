package dto

import (
	"time"
)

type CreateSessionRequest struct {
	Model string `json:"model" validate:"omitempty,max=200"`
}

type CreateSessionResponse struct {
	Id        string    `json:"id"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
}

type SendChatRequest struct {
	Chat  string `json:"chat" validate:"required,max=8000"`
	Model string `json:"model,omitempty" validate:"omitempty,max=200"` // switch model for this and later turns
}

// SendChatResponse is returned when the client does not ask for a stream.
type SendChatResponse struct {
	ChatSessionId string `json:"chat_session_id"`
	Model         string `json:"model"`
	Reply         string `json:"reply"`
	Grounded      bool   `json:"grounded"` // false when the journal was unreachable for the first turn
}

type ListModelsResponse struct {
	Models []string `json:"models"`
}

// ChatStreamFrame is one SSE data line or websocket text frame.
type ChatStreamFrame struct {
	Type    string `json:"type"` // "chunk" | "done" | "error"
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}
