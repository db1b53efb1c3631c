package service

import (
	"context"
	"strings"
	"time"

	"second-brain/internal/dto"
	"second-brain/internal/entity"
	"second-brain/internal/pkg/logger"
	"second-brain/pkg/events"
	"second-brain/pkg/rag/retriever"

	"github.com/patrickmn/go-cache"
)

// IContextService exposes journal retrieval to the chat, HTTP, CLI and MCP surfaces.
type IContextService interface {
	// Retrieve returns the fused block and whether it was served from cache.
	Retrieve(ctx context.Context, query string) (*retriever.Block, bool, error)
	GetContext(ctx context.Context, query string) (*dto.GetContextResponse, error)
}

// ContextRetriever is the part of *retriever.Retriever the service depends on.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string) (*retriever.Block, error)
}

type contextService struct {
	retriever ContextRetriever
	cache     *cache.Cache // nil when caching is disabled
	publisher events.Publisher
	logger    logger.ILogger
}

func NewContextService(r ContextRetriever, cacheTTL time.Duration, publisher events.Publisher, log logger.ILogger) IContextService {
	s := &contextService{
		retriever: r,
		publisher: publisher,
		logger:    log,
	}
	if cacheTTL > 0 {
		s.cache = cache.New(cacheTTL, 2*cacheTTL)
	}
	return s
}

func (s *contextService) Retrieve(ctx context.Context, query string) (*retriever.Block, bool, error) {
	key := strings.TrimSpace(query)
	if key == "" {
		return nil, false, retriever.ErrEmptyQuery
	}

	if s.cache != nil {
		if x, found := s.cache.Get(key); found {
			block := x.(*retriever.Block)
			s.publish(block, true, 0)
			return block, true, nil
		}
	}

	start := time.Now()
	block, err := s.retriever.Retrieve(ctx, key)
	if err != nil {
		return nil, false, err
	}

	// Degraded blocks are not cached so a recovered strategy is picked up on the next call.
	if s.cache != nil && len(block.Failures) == 0 {
		s.cache.SetDefault(key, block)
	}
	s.publish(block, false, time.Since(start))
	return block, false, nil
}

func (s *contextService) GetContext(ctx context.Context, query string) (*dto.GetContextResponse, error) {
	block, cached, err := s.Retrieve(ctx, query)
	if err != nil {
		return nil, err
	}

	res := &dto.GetContextResponse{
		Query:   block.Query,
		Context: block.Text(),
		Rows:    make([]dto.ContextRowDTO, len(block.Rows)),
		Cached:  cached,
	}
	for i, r := range block.Rows {
		res.Rows[i] = dto.ContextRowDTO{
			Date:    r.Date.Format(entity.DateLayout),
			Blurb:   r.Blurb,
			Content: r.Content,
			Source:  r.Source,
		}
	}
	for _, f := range block.Failures {
		res.Failures = append(res.Failures, dto.StrategyFailureDTO{
			Strategy: string(f.Strategy),
			Kind:     f.Kind(),
			Message:  f.Err.Error(),
		})
	}
	return res, nil
}

// publish is fire-and-forget; a slow or absent bus never delays retrieval.
func (s *contextService) publish(block *retriever.Block, cached bool, elapsed time.Duration) {
	if s.publisher == nil {
		return
	}

	counts := make(map[string]int)
	for strategy, n := range block.Counts() {
		counts[string(strategy)] = n
	}
	failures := make(map[string]string, len(block.Failures))
	for _, f := range block.Failures {
		failures[string(f.Strategy)] = f.Kind()
	}
	evt := events.NewContextRetrieved(block.Query, counts, failures, cached, elapsed)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.publisher.Publish(ctx, evt); err != nil {
			s.logger.Warn("ContextService", "failed to publish retrieval event", map[string]interface{}{"error": err.Error()})
		}
	}()
}
