package retriever

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
)

// Error kinds. Match with errors.Is.
var (
	// ErrConnection: the database is unreachable. Fatal to the request.
	ErrConnection = errors.New("journal database unreachable")
	// ErrQueryExecution: one strategy failed server-side. The strategy is skipped.
	ErrQueryExecution = errors.New("journal query failed")
	// ErrEmbeddingService: the query could not be embedded. The vector strategy yields no rows.
	ErrEmbeddingService = errors.New("embedding service failed")
	ErrEmptyQuery       = errors.New("query must not be empty")
)

// RetrievalError ties an error kind to the strategy it came from.
type RetrievalError struct {
	Kind     error
	Strategy Strategy // empty for failures outside a strategy
	Err      error
}

func (e *RetrievalError) Error() string {
	if e.Strategy == "" {
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%v (strategy %s): %v", e.Kind, e.Strategy, e.Err)
}

func (e *RetrievalError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// KindName is the short label used in logs and API payloads.
func KindName(err error) string {
	switch {
	case errors.Is(err, ErrConnection):
		return "connection"
	case errors.Is(err, ErrEmbeddingService):
		return "embedding_service"
	case errors.Is(err, ErrQueryExecution):
		return "query_execution"
	case errors.Is(err, ErrEmptyQuery):
		return "empty_query"
	default:
		return "unknown"
	}
}

func classifyDBError(strategy Strategy, err error) *RetrievalError {
	kind := ErrQueryExecution
	if isConnectionLoss(err) {
		kind = ErrConnection
	}
	return &RetrievalError{Kind: kind, Strategy: strategy, Err: err}
}

// isConnectionLoss separates a dead connection from a query the server rejected.
// Server-side errors and timeouts leave the session usable.
func isConnectionLoss(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF)
}
