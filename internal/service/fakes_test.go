package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"second-brain/internal/dto"
	"second-brain/internal/entity"
	"second-brain/internal/repository/contract"
	"second-brain/internal/repository/unitofwork"
	"second-brain/pkg/events"
	"second-brain/pkg/llm"
	"second-brain/pkg/rag/retriever"
)

type fakeRetriever struct {
	mu    sync.Mutex
	block *retriever.Block
	err   error
	calls int
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string) (*retriever.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	b := *f.block
	b.Query = query
	return &b, nil
}

type fakePublisher struct {
	published chan events.Event
	err       error
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{published: make(chan events.Event, 16)}
}

func (p *fakePublisher) Publish(ctx context.Context, event events.Event) error {
	p.published <- event
	return p.err
}

type fakeLLM struct {
	mu      sync.Mutex
	chunks  []string
	err     error
	models  []string
	history [][]llm.Message
	model   string
}

func (f *fakeLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return f.ChatStream(ctx, history, nil, options...)
}

func (f *fakeLLM) ChatStream(ctx context.Context, history []llm.Message, onChunk llm.ChunkHandler, options ...llm.Option) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	opts := &llm.Options{}
	for _, o := range options {
		o(opts)
	}
	f.model = opts.Model
	f.history = append(f.history, append([]llm.Message(nil), history...))

	if f.err != nil {
		return "", f.err
	}
	var answer string
	for _, c := range f.chunks {
		answer += c
		if onChunk != nil {
			if err := onChunk(c); err != nil {
				return answer, err
			}
		}
	}
	return answer, nil
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return f.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, options...)
}

func (f *fakeLLM) ListModels(ctx context.Context) ([]string, error) {
	return f.models, f.err
}

// fakeContextService wraps a retriever without caching or events.
type fakeContextService struct {
	r *fakeRetriever
}

func (f *fakeContextService) Retrieve(ctx context.Context, query string) (*retriever.Block, bool, error) {
	b, err := f.r.Retrieve(ctx, query)
	return b, false, err
}

func (f *fakeContextService) GetContext(ctx context.Context, query string) (*dto.GetContextResponse, error) {
	return nil, errors.New("not used")
}

// --- journal event storage for the backfill ---

type fakeEventRepo struct {
	mu      sync.Mutex
	events  map[int64]*entity.JournalEvent
	findErr error
}

func newFakeEventRepo(contents ...string) *fakeEventRepo {
	r := &fakeEventRepo{events: make(map[int64]*entity.JournalEvent)}
	for i, c := range contents {
		id := int64(i + 1)
		r.events[id] = &entity.JournalEvent{Id: id, EntryId: 1, Content: c}
	}
	return r
}

func (r *fakeEventRepo) FindById(ctx context.Context, id int64) (*entity.JournalEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.events[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeEventRepo) FindMissingEmbeddings(ctx context.Context, afterId int64, limit int) ([]*entity.JournalEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	var out []*entity.JournalEvent
	for _, e := range r.events {
		if e.Id > afterId && e.Embedding == nil {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeEventRepo) CountMissingEmbeddings(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, e := range r.events {
		if e.Embedding == nil {
			n++
		}
	}
	return n, nil
}

func (r *fakeEventRepo) UpdateEmbedding(ctx context.Context, id int64, embedding []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return errors.New("no such event")
	}
	e.Embedding = embedding
	return nil
}

type fakeUnitOfWork struct {
	events *fakeEventRepo
}

func (u *fakeUnitOfWork) Begin(ctx context.Context) error         { return nil }
func (u *fakeUnitOfWork) BeginReadOnly(ctx context.Context) error { return nil }
func (u *fakeUnitOfWork) SavePoint(name string) error             { return nil }
func (u *fakeUnitOfWork) RollbackTo(name string) error            { return nil }
func (u *fakeUnitOfWork) Commit() error                           { return nil }
func (u *fakeUnitOfWork) Rollback() error                         { return nil }
func (u *fakeUnitOfWork) JournalSearchRepository() contract.JournalSearchRepository {
	return nil
}
func (u *fakeUnitOfWork) JournalEventRepository() contract.JournalEventRepository {
	return u.events
}

type fakeFactory struct {
	events *fakeEventRepo
}

func (f *fakeFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &fakeUnitOfWork{events: f.events}
}

type fakeEmbedder struct {
	failOn string
}

func (e *fakeEmbedder) Model() string { return "fake-embed" }

func (e *fakeEmbedder) Generate(ctx context.Context, text string, taskType string) ([]float32, error) {
	if e.failOn != "" && text == e.failOn {
		return nil, errors.New("embedding model unavailable")
	}
	return []float32{float32(len(text)), 1}, nil
}
