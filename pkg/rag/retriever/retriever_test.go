package retriever

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"second-brain/internal/entity"
	"second-brain/internal/pkg/logger"
	"second-brain/internal/repository/contract"
	"second-brain/internal/repository/unitofwork"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeSearchRepo struct {
	mu sync.Mutex

	entries, events, similar          []*entity.ContextRow
	entriesErr, eventsErr, similarErr error

	calls      []string
	limits     map[string]int
	lastVector []float32
	lastMetric contract.VectorMetric
}

func (f *fakeSearchRepo) record(name string, limit int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	if f.limits == nil {
		f.limits = make(map[string]int)
	}
	f.limits[name] = limit
}

func (f *fakeSearchRepo) SearchEntries(ctx context.Context, query string, limit int) ([]*entity.ContextRow, error) {
	f.record("entries", limit)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.entries, f.entriesErr
}

func (f *fakeSearchRepo) SearchEvents(ctx context.Context, query string, limit int) ([]*entity.ContextRow, error) {
	f.record("events", limit)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.events, f.eventsErr
}

func (f *fakeSearchRepo) SearchSimilarEvents(ctx context.Context, vec []float32, limit int, metric contract.VectorMetric) ([]*entity.ContextRow, error) {
	f.record("vector", limit)
	f.lastVector = vec
	f.lastMetric = metric
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.similar, f.similarErr
}

type fakeUnitOfWork struct {
	repo      *fakeSearchRepo
	beginErr  error
	began     bool
	readOnly  bool
	committed bool
	rolled    bool
	savepts   []string
	rolledTo  []string

	// txCtx mirrors database/sql: the tx is rolled back once its ctx is done.
	txCtx context.Context
}

func (u *fakeUnitOfWork) txDone() error {
	if u.txCtx != nil && u.txCtx.Err() != nil {
		return sql.ErrTxDone
	}
	return nil
}

func (u *fakeUnitOfWork) Begin(ctx context.Context) error { u.began = true; return u.beginErr }
func (u *fakeUnitOfWork) BeginReadOnly(ctx context.Context) error {
	u.began, u.readOnly, u.txCtx = true, true, ctx
	return u.beginErr
}
func (u *fakeUnitOfWork) SavePoint(name string) error {
	u.savepts = append(u.savepts, name)
	return u.txDone()
}
func (u *fakeUnitOfWork) RollbackTo(name string) error { u.rolledTo = append(u.rolledTo, name); return nil }
func (u *fakeUnitOfWork) Commit() error {
	if err := u.txDone(); err != nil {
		return err
	}
	u.committed = true
	return nil
}
func (u *fakeUnitOfWork) Rollback() error              { u.rolled = true; return nil }
func (u *fakeUnitOfWork) JournalSearchRepository() contract.JournalSearchRepository {
	return u.repo
}
func (u *fakeUnitOfWork) JournalEventRepository() contract.JournalEventRepository {
	return nil
}

type fakeFactory struct {
	uows     []*fakeUnitOfWork
	repo     *fakeSearchRepo
	beginErr error
}

func (f *fakeFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	u := &fakeUnitOfWork{repo: f.repo, beginErr: f.beginErr}
	f.uows = append(f.uows, u)
	return u
}

func (f *fakeFactory) last() *fakeUnitOfWork {
	return f.uows[len(f.uows)-1]
}

type fakeEmbedder struct {
	vec      []float32
	err      error
	delay    time.Duration
	failures int32 // fail this many calls before succeeding
	calls    atomic.Int32
}

func (e *fakeEmbedder) Model() string { return "fake-embed" }

func (e *fakeEmbedder) Generate(ctx context.Context, text string, taskType string) ([]float32, error) {
	n := e.calls.Add(1)
	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if n <= e.failures {
		return nil, errors.New("transient embedding failure")
	}
	if e.err != nil {
		return nil, e.err
	}
	return e.vec, nil
}

// --- helpers ---

var day = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func rows(prefix string, n int, withBlurb bool) []*entity.ContextRow {
	out := make([]*entity.ContextRow, n)
	for i := range out {
		r := &entity.ContextRow{Date: day.AddDate(0, 0, i), Content: fmt.Sprintf("%s-%d", prefix, i)}
		if withBlurb {
			r.Blurb = fmt.Sprintf("blurb %d", i)
		}
		out[i] = r
	}
	return out
}

func newTestRetriever(f *fakeFactory, e *fakeEmbedder, cfg Config) *Retriever {
	r := New(f, e, logger.NewNopLogger(), cfg)
	r.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return r
}

func sources(b *Block) []string {
	out := make([]string, len(b.Rows))
	for i, r := range b.Rows {
		out[i] = r.Source
	}
	return out
}

// --- tests ---

func TestRetrieveFusionOrder(t *testing.T) {
	repo := &fakeSearchRepo{
		entries: rows("entry", 2, true),
		events:  rows("event", 1, true),
		similar: rows("similar", 2, false),
	}
	f := &fakeFactory{repo: repo}
	emb := &fakeEmbedder{vec: []float32{0.1, 0.2}}

	block, err := newTestRetriever(f, emb, DefaultConfig()).Retrieve(context.Background(), "  coffee ")
	require.NoError(t, err)

	assert.Equal(t, []string{"entries", "entries", "events", "vector", "vector"}, sources(block))
	assert.Equal(t, "coffee", block.Query)
	assert.Empty(t, block.Failures)
	assert.Equal(t, []float32{0.1, 0.2}, repo.lastVector)
	assert.Equal(t, contract.MetricL2, repo.lastMetric)

	uow := f.last()
	assert.True(t, uow.readOnly)
	assert.True(t, uow.committed)
	assert.False(t, uow.rolled)
	assert.Equal(t, []string{"sp_entries", "sp_events", "sp_vector"}, uow.savepts)
}

func TestRetrieveCapsEveryStrategy(t *testing.T) {
	repo := &fakeSearchRepo{
		entries: rows("entry", 25, true),
		events:  rows("event", 25, true),
		similar: rows("similar", 25, true),
	}
	f := &fakeFactory{repo: repo}

	block, err := newTestRetriever(f, &fakeEmbedder{vec: []float32{1}}, DefaultConfig()).Retrieve(context.Background(), "q")
	require.NoError(t, err)

	assert.Len(t, block.Rows, 60)
	counts := block.Counts()
	assert.Equal(t, 20, counts[StrategyEntries])
	assert.Equal(t, 20, counts[StrategyEvents])
	assert.Equal(t, 20, counts[StrategyVector])
	assert.Equal(t, map[string]int{"entries": 20, "events": 20, "vector": 20}, repo.limits)
}

func TestRetrieveCustomLimits(t *testing.T) {
	repo := &fakeSearchRepo{similar: rows("similar", 10, false)}
	f := &fakeFactory{repo: repo}

	cfg := DefaultConfig()
	cfg.VectorLimit = 3
	block, err := newTestRetriever(f, &fakeEmbedder{vec: []float32{1}}, cfg).Retrieve(context.Background(), "q")
	require.NoError(t, err)

	assert.Len(t, block.Rows, 3)
	assert.Equal(t, 3, repo.limits["vector"])
}

func TestRetrieveEmbeddingFailureDegrades(t *testing.T) {
	for _, concurrent := range []bool{true, false} {
		t.Run(fmt.Sprintf("concurrent=%v", concurrent), func(t *testing.T) {
			repo := &fakeSearchRepo{
				entries: rows("entry", 1, true),
				events:  rows("event", 2, false),
				similar: rows("similar", 5, false),
			}
			f := &fakeFactory{repo: repo}
			emb := &fakeEmbedder{err: errors.New("connection refused")}

			cfg := DefaultConfig()
			cfg.ConcurrentEmbed = concurrent
			block, err := newTestRetriever(f, emb, cfg).Retrieve(context.Background(), "q")
			require.NoError(t, err)

			assert.Equal(t, []string{"entries", "events", "events"}, sources(block))
			require.Len(t, block.Failures, 1)
			assert.Equal(t, StrategyVector, block.Failures[0].Strategy)
			assert.ErrorIs(t, block.Failures[0].Err, ErrEmbeddingService)
			assert.Equal(t, "embedding_service", block.Failures[0].Kind())
			assert.NotContains(t, repo.calls, "vector")
			assert.True(t, f.last().committed)
		})
	}
}

func TestRetrieveEmbeddingRetries(t *testing.T) {
	repo := &fakeSearchRepo{similar: rows("similar", 1, false)}
	f := &fakeFactory{repo: repo}
	emb := &fakeEmbedder{vec: []float32{1}, failures: 1}

	cfg := DefaultConfig()
	cfg.EmbedRetries = 1
	block, err := newTestRetriever(f, emb, cfg).Retrieve(context.Background(), "q")
	require.NoError(t, err)

	assert.Len(t, block.Rows, 1)
	assert.Empty(t, block.Failures)
	assert.Equal(t, int32(2), emb.calls.Load())
}

func TestRetrieveSlowEmbeddingKeepsTransaction(t *testing.T) {
	tests := []struct {
		name       string
		delay      time.Duration
		wantSource []string
		wantFailed bool
	}{
		{"embedding slower than db timeout", 200 * time.Millisecond, []string{"entries", "events", "vector"}, false},
		{"embedding times out", time.Second, []string{"entries", "events"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeSearchRepo{
				entries: rows("entry", 1, true),
				events:  rows("event", 1, true),
				similar: rows("similar", 1, true),
			}
			f := &fakeFactory{repo: repo}
			emb := &fakeEmbedder{vec: []float32{1}, delay: tt.delay}

			cfg := DefaultConfig()
			cfg.DBTimeout = 100 * time.Millisecond
			cfg.EmbedTimeout = 300 * time.Millisecond
			block, err := newTestRetriever(f, emb, cfg).Retrieve(context.Background(), "q")
			require.NoError(t, err)
			require.NotNil(t, block)

			assert.Equal(t, tt.wantSource, sources(block))
			if tt.wantFailed {
				require.Len(t, block.Failures, 1)
				assert.ErrorIs(t, block.Failures[0].Err, ErrEmbeddingService)
			} else {
				assert.Empty(t, block.Failures)
			}
			assert.True(t, f.last().committed)
		})
	}
}

func TestRetrieveNoRetriesByDefault(t *testing.T) {
	f := &fakeFactory{repo: &fakeSearchRepo{}}
	emb := &fakeEmbedder{vec: []float32{1}, failures: 1}

	block, err := newTestRetriever(f, emb, DefaultConfig()).Retrieve(context.Background(), "q")
	require.NoError(t, err)

	require.Len(t, block.Failures, 1)
	assert.Equal(t, int32(1), emb.calls.Load())
}

func TestRetrieveDatabaseUnreachable(t *testing.T) {
	repo := &fakeSearchRepo{}
	f := &fakeFactory{repo: repo, beginErr: errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")}
	emb := &fakeEmbedder{vec: []float32{1}}

	block, err := newTestRetriever(f, emb, DefaultConfig()).Retrieve(context.Background(), "q")
	require.Error(t, err)
	assert.Nil(t, block)
	assert.ErrorIs(t, err, ErrConnection)
	assert.Equal(t, "connection", KindName(err))

	assert.Empty(t, repo.calls)
	assert.Equal(t, int32(0), emb.calls.Load())
	assert.False(t, f.last().committed)
}

func TestRetrieveQueryErrorIsIsolated(t *testing.T) {
	repo := &fakeSearchRepo{
		entries:   rows("entry", 1, true),
		eventsErr: &pgconn.PgError{Code: "42883", Message: "function journal.search_events(text) does not exist"},
		similar:   rows("similar", 1, false),
	}
	f := &fakeFactory{repo: repo}

	block, err := newTestRetriever(f, &fakeEmbedder{vec: []float32{1}}, DefaultConfig()).Retrieve(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, []string{"entries", "vector"}, sources(block))
	require.Len(t, block.Failures, 1)
	assert.Equal(t, StrategyEvents, block.Failures[0].Strategy)
	assert.ErrorIs(t, block.Failures[0].Err, ErrQueryExecution)

	var pgErr *pgconn.PgError
	assert.True(t, errors.As(block.Failures[0].Err, &pgErr))

	uow := f.last()
	assert.Equal(t, []string{"sp_events"}, uow.rolledTo)
	assert.True(t, uow.committed)
}

func TestRetrieveAllStrategiesFail(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "22000", Message: "different vector dimensions 768 and 3"}
	repo := &fakeSearchRepo{entriesErr: pgErr, eventsErr: pgErr, similarErr: pgErr}
	f := &fakeFactory{repo: repo}

	block, err := newTestRetriever(f, &fakeEmbedder{vec: []float32{1}}, DefaultConfig()).Retrieve(context.Background(), "q")
	require.NoError(t, err)

	assert.True(t, block.Empty())
	assert.Len(t, block.Failures, 3)
	assert.Equal(t, NoContextMarker, block.PromptContext())
	assert.Equal(t, "", block.Text())
}

func TestRetrieveConnectionLostMidway(t *testing.T) {
	repo := &fakeSearchRepo{
		entries:   rows("entry", 1, true),
		eventsErr: driver.ErrBadConn,
	}
	f := &fakeFactory{repo: repo}

	block, err := newTestRetriever(f, &fakeEmbedder{vec: []float32{1}}, DefaultConfig()).Retrieve(context.Background(), "q")
	require.Error(t, err)
	assert.Nil(t, block)
	assert.ErrorIs(t, err, ErrConnection)
	assert.ErrorIs(t, err, driver.ErrBadConn)

	var rerr *RetrievalError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, StrategyEvents, rerr.Strategy)

	uow := f.last()
	assert.False(t, uow.committed)
	assert.True(t, uow.rolled)
	assert.NotContains(t, repo.calls, "vector")
}

func TestRetrieveDeduplicate(t *testing.T) {
	shared := &entity.ContextRow{Date: day, Blurb: "trip", Content: "hiked the ridge"}
	repo := &fakeSearchRepo{
		events:  []*entity.ContextRow{shared},
		similar: []*entity.ContextRow{{Date: day, Blurb: "trip", Content: "hiked the ridge"}, {Date: day, Content: "other"}},
	}

	t.Run("off keeps duplicates", func(t *testing.T) {
		f := &fakeFactory{repo: repo}
		block, err := newTestRetriever(f, &fakeEmbedder{vec: []float32{1}}, DefaultConfig()).Retrieve(context.Background(), "q")
		require.NoError(t, err)
		assert.Len(t, block.Rows, 3)
	})

	t.Run("on keeps first occurrence", func(t *testing.T) {
		f := &fakeFactory{repo: repo}
		cfg := DefaultConfig()
		cfg.Deduplicate = true
		block, err := newTestRetriever(f, &fakeEmbedder{vec: []float32{1}}, cfg).Retrieve(context.Background(), "q")
		require.NoError(t, err)
		assert.Equal(t, []string{"events", "vector"}, sources(block))
		assert.Equal(t, "other", block.Rows[1].Content)
	})
}

func TestRetrieveStrategyToggles(t *testing.T) {
	repo := &fakeSearchRepo{
		entries: rows("entry", 1, true),
		events:  rows("event", 1, true),
		similar: rows("similar", 1, true),
	}
	f := &fakeFactory{repo: repo}
	emb := &fakeEmbedder{vec: []float32{1}}

	cfg := DefaultConfig()
	cfg.Strategies = []Strategy{StrategyVector, StrategyEntries}
	r := newTestRetriever(f, emb, cfg)
	assert.Equal(t, []Strategy{StrategyEntries, StrategyVector}, r.Config().Strategies)

	block, err := r.Retrieve(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []string{"entries", "vector"}, sources(block))

	cfg.Strategies = []Strategy{StrategyEntries, StrategyEvents}
	emb2 := &fakeEmbedder{vec: []float32{1}}
	_, err = newTestRetriever(&fakeFactory{repo: &fakeSearchRepo{}}, emb2, cfg).Retrieve(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, int32(0), emb2.calls.Load(), "no embedding call without the vector strategy")
}

func TestRetrieveCoffeeScenario(t *testing.T) {
	repo := &fakeSearchRepo{
		entries: []*entity.ContextRow{{Date: day, Blurb: "morning routine"}},
	}
	f := &fakeFactory{repo: repo}

	block, err := newTestRetriever(f, &fakeEmbedder{vec: []float32{1}}, DefaultConfig()).Retrieve(context.Background(), "coffee")
	require.NoError(t, err)

	assert.Equal(t, "2024-01-01: morning routine - ", block.Text())
}

func TestRetrieveIsIdempotent(t *testing.T) {
	repo := &fakeSearchRepo{
		entries: rows("entry", 3, true),
		events:  rows("event", 2, false),
		similar: rows("similar", 4, true),
	}
	r := newTestRetriever(&fakeFactory{repo: repo}, &fakeEmbedder{vec: []float32{1}}, DefaultConfig())

	first, err := r.Retrieve(context.Background(), "q")
	require.NoError(t, err)
	second, err := r.Retrieve(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, first.Text(), second.Text())
	assert.Equal(t, 8, strings.Count(first.Text(), "\n\n"))
}

func TestRetrieveEmptyQuery(t *testing.T) {
	f := &fakeFactory{repo: &fakeSearchRepo{}}
	_, err := newTestRetriever(f, &fakeEmbedder{}, DefaultConfig()).Retrieve(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
	assert.Empty(t, f.uows)
}

func TestRetrieveCancelledContext(t *testing.T) {
	f := &fakeFactory{repo: &fakeSearchRepo{entries: rows("entry", 1, true)}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestRetriever(f, &fakeEmbedder{vec: []float32{1}}, DefaultConfig()).Retrieve(ctx, "q")
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, f.last().rolled)
}

func TestClassifyDBError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"server error", &pgconn.PgError{Code: "42601"}, ErrQueryExecution},
		{"wrapped server error", fmt.Errorf("scan: %w", &pgconn.PgError{Code: "22P02"}), ErrQueryExecution},
		{"timeout", context.DeadlineExceeded, ErrQueryExecution},
		{"local scan error", errors.New("sql: Scan error on column index 0"), ErrQueryExecution},
		{"bad conn", driver.ErrBadConn, ErrConnection},
		{"closed socket", fmt.Errorf("read: %w", io.EOF), ErrConnection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyDBError(StrategyEvents, tt.err)
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}
