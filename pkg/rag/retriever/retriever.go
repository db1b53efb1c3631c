package retriever

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"second-brain/internal/entity"
	"second-brain/internal/pkg/logger"
	"second-brain/internal/repository/unitofwork"
	"second-brain/pkg/embedding"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const logModule = "retriever"

// Retriever turns a free-text query into a fused, size-bounded block of journal
// excerpts. It holds no state between calls.
type Retriever struct {
	uowFactory unitofwork.RepositoryFactory
	embedder   embedding.EmbeddingProvider
	logger     logger.ILogger
	cfg        Config
	tracer     trace.Tracer
	newBackOff func() backoff.BackOff
}

func New(
	uowFactory unitofwork.RepositoryFactory,
	embedder embedding.EmbeddingProvider,
	log logger.ILogger,
	cfg Config,
) *Retriever {
	return &Retriever{
		uowFactory: uowFactory,
		embedder:   embedder,
		logger:     log,
		cfg:        cfg.normalize(),
		tracer:     otel.Tracer("second-brain/rag/retriever"),
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
}

// Config returns the effective configuration, strategies in fusion order.
func (r *Retriever) Config() Config {
	return r.cfg
}

type embedResult struct {
	vector []float32
	err    error
}

// Retrieve runs the enabled strategies inside one read-only transaction and
// fuses their rows in fixed order: entry full-text, event full-text, vector.
//
// Only ErrConnection (and a blank query or a cancelled ctx) fails the call.
// A failing strategy is logged, recorded in Block.Failures and skipped.
func (r *Retriever) Retrieve(ctx context.Context, query string) (*Block, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	ctx, span := r.tracer.Start(ctx, "retriever.Retrieve", trace.WithAttributes(
		attribute.Int("query.length", len(query)),
		attribute.Int("strategies", len(r.cfg.Strategies)),
	))
	defer span.End()

	// The transaction lives as long as the retrieval. DBTimeout bounds the
	// begin and each statement, so a slow embedding cannot expire the tx.
	txCtx, cancelTx := context.WithCancel(ctx)
	defer cancelTx()

	uow := r.uowFactory.NewUnitOfWork(txCtx)
	if err := r.beginReadOnly(txCtx, cancelTx, uow); err != nil {
		rerr := &RetrievalError{Kind: ErrConnection, Err: err}
		r.fail(span, rerr)
		return nil, rerr
	}

	finished := false
	defer func() {
		if finished {
			return
		}
		if err := uow.Rollback(); err != nil {
			r.logger.Debug(logModule, "rollback after failed retrieval", map[string]interface{}{"error": err.Error()})
		}
	}()

	embedCtx, cancelEmbed := context.WithCancel(ctx)
	defer cancelEmbed()

	var pending <-chan embedResult
	if r.cfg.ConcurrentEmbed && r.cfg.enabled(StrategyVector) {
		pending = r.startEmbedding(embedCtx, query)
	}

	block := &Block{Query: query}
	for _, s := range r.cfg.Strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rows, err := r.runStrategy(txCtx, embedCtx, uow, s, query, pending)
		if err != nil {
			if errors.Is(err, ErrConnection) {
				r.fail(span, err)
				return nil, err
			}
			r.logger.Warn(logModule, "strategy skipped", map[string]interface{}{
				"strategy": string(s),
				"kind":     KindName(err),
				"error":    err.Error(),
			})
			block.Failures = append(block.Failures, StrategyFailure{Strategy: s, Err: err})
			continue
		}
		block.Rows = append(block.Rows, rows...)
	}

	if r.cfg.Deduplicate {
		block.Rows = deduplicate(block.Rows)
	}

	finished = true
	if err := uow.Commit(); err != nil {
		rerr := &RetrievalError{Kind: ErrConnection, Err: err}
		r.fail(span, rerr)
		return nil, rerr
	}

	span.SetAttributes(
		attribute.Int("rows", len(block.Rows)),
		attribute.Int("failures", len(block.Failures)),
	)
	r.logger.Info(logModule, "context retrieved", map[string]interface{}{
		"rows":     len(block.Rows),
		"failures": len(block.Failures),
	})
	return block, nil
}

// beginReadOnly opens the transaction on txCtx and cancels it when the begin
// outlasts DBTimeout.
func (r *Retriever) beginReadOnly(txCtx context.Context, cancelTx context.CancelFunc, uow unitofwork.UnitOfWork) error {
	timer := time.AfterFunc(r.cfg.DBTimeout, cancelTx)
	err := uow.BeginReadOnly(txCtx)
	if !timer.Stop() && err == nil {
		_ = uow.Rollback()
		return fmt.Errorf("begin read-only transaction: %w", context.DeadlineExceeded)
	}
	return err
}

func (r *Retriever) runStrategy(
	txCtx, embedCtx context.Context,
	uow unitofwork.UnitOfWork,
	s Strategy,
	query string,
	pending <-chan embedResult,
) ([]entity.ContextRow, error) {
	txCtx, span := r.tracer.Start(txCtx, "retriever.strategy", trace.WithAttributes(attribute.String("strategy", string(s))))
	defer span.End()

	var vector []float32
	if s == StrategyVector {
		res := r.awaitEmbedding(embedCtx, query, pending)
		if res.err != nil {
			err := &RetrievalError{Kind: ErrEmbeddingService, Strategy: s, Err: res.err}
			r.fail(span, err)
			return nil, err
		}
		vector = res.vector
	}

	// A failed statement aborts the whole transaction in Postgres; the savepoint
	// keeps the remaining strategies runnable.
	savepoint := "sp_" + string(s)
	if err := uow.SavePoint(savepoint); err != nil {
		rerr := classifyDBError(s, err)
		r.fail(span, rerr)
		return nil, rerr
	}

	limit := r.cfg.limit(s)
	repo := uow.JournalSearchRepository()

	dbCtx, cancel := context.WithTimeout(txCtx, r.cfg.DBTimeout)
	defer cancel()

	var (
		found []*entity.ContextRow
		err   error
	)
	switch s {
	case StrategyEntries:
		found, err = repo.SearchEntries(dbCtx, query, limit)
	case StrategyEvents:
		found, err = repo.SearchEvents(dbCtx, query, limit)
	case StrategyVector:
		found, err = repo.SearchSimilarEvents(dbCtx, vector, limit, r.cfg.Metric)
	}
	if err != nil {
		rerr := classifyDBError(s, err)
		if errors.Is(rerr, ErrQueryExecution) {
			if rbErr := uow.RollbackTo(savepoint); rbErr != nil {
				r.logger.Warn(logModule, "rollback to savepoint failed", map[string]interface{}{
					"strategy": string(s),
					"error":    rbErr.Error(),
				})
			}
		}
		r.fail(span, rerr)
		return nil, rerr
	}

	if len(found) > limit {
		found = found[:limit]
	}
	rows := make([]entity.ContextRow, 0, len(found))
	for _, row := range found {
		if row == nil {
			continue
		}
		out := *row
		out.Source = string(s)
		rows = append(rows, out)
	}
	span.SetAttributes(attribute.Int("rows", len(rows)))
	return rows, nil
}

func (r *Retriever) startEmbedding(ctx context.Context, query string) <-chan embedResult {
	ch := make(chan embedResult, 1)
	go func() {
		vec, err := r.embed(ctx, query)
		ch <- embedResult{vector: vec, err: err}
	}()
	return ch
}

func (r *Retriever) awaitEmbedding(ctx context.Context, query string, pending <-chan embedResult) embedResult {
	if pending == nil {
		vec, err := r.embed(ctx, query)
		return embedResult{vector: vec, err: err}
	}
	select {
	case res := <-pending:
		return res
	case <-ctx.Done():
		return embedResult{err: ctx.Err()}
	}
}

// embed computes the query embedding once, retrying up to EmbedRetries times.
func (r *Retriever) embed(ctx context.Context, query string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.EmbedTimeout)
	defer cancel()

	operation := func() ([]float32, error) {
		vec, err := r.embedder.Generate(ctx, query, embedding.TaskRetrievalQuery)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		if len(vec) == 0 {
			return nil, backoff.Permanent(embedding.ErrEmptyEmbedding)
		}
		return vec, nil
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(r.newBackOff()),
		backoff.WithMaxTries(uint(r.cfg.EmbedRetries+1)),
	)
}

func (r *Retriever) fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, KindName(err))
	if errors.Is(err, ErrConnection) {
		r.logger.Error(logModule, "retrieval aborted", map[string]interface{}{"error": err})
	}
}
