package events

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

const (
	TypeContextRetrieved = "JOURNAL_CONTEXT_RETRIEVED"
	TypeEventEmbedded    = "JOURNAL_EVENT_EMBEDDED"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "JOURNAL_CONTEXT_RETRIEVED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent helps embed common logic if needed,
// strictly creating valid implementations is preferred though.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// QueryHash identifies a query in audit events without carrying the journal-revealing text.
func QueryHash(query string) string {
	sum := sha256.Sum256([]byte(query))
	return hex.EncodeToString(sum[:8])
}

// NewContextRetrieved reports one retrieval: rows per strategy and the strategies that were skipped.
func NewContextRetrieved(query string, counts map[string]int, failures map[string]string, cached bool, elapsed time.Duration) BaseEvent {
	return BaseEvent{
		Type: TypeContextRetrieved,
		Data: map[string]interface{}{
			"query_hash": QueryHash(query),
			"counts":     counts,
			"failures":   failures,
			"cached":     cached,
			"elapsed_ms": elapsed.Milliseconds(),
		},
		OccurredAt: time.Now(),
	}
}

// NewEventEmbedded reports a journal event whose embedding was (re)computed.
func NewEventEmbedded(eventId int64, model string, dimensions int) BaseEvent {
	return BaseEvent{
		Type: TypeEventEmbedded,
		Data: map[string]interface{}{
			"event_id":   eventId,
			"model":      model,
			"dimensions": dimensions,
		},
		OccurredAt: time.Now(),
	}
}

// Publisher delivers events to the bus. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
