package contract

import (
	"context"
	"errors"

	"second-brain/pkg/store"
)

var ErrSessionNotFound = errors.New("chat session not found")

type SessionRepository interface {
	Save(ctx context.Context, session *store.Session) error
	// Get returns ErrSessionNotFound for unknown or expired sessions.
	Get(ctx context.Context, sessionID string) (*store.Session, error)
	Delete(ctx context.Context, sessionID string) error
}
