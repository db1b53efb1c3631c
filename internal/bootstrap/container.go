package bootstrap

import (
	"context"
	"fmt"

	"second-brain/internal/config"
	"second-brain/internal/controller"
	"second-brain/internal/pkg/logger"
	"second-brain/internal/repository/contract"
	"second-brain/internal/repository/memory"
	"second-brain/internal/repository/rediscache"
	"second-brain/internal/repository/unitofwork"
	"second-brain/internal/service"
	"second-brain/pkg/database"
	"second-brain/pkg/embedding"
	"second-brain/pkg/embedding/jina"
	"second-brain/pkg/events"
	"second-brain/pkg/llm"
	"second-brain/pkg/llm/factory"
	pktNats "second-brain/pkg/nats"
	"second-brain/pkg/rag/retriever"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"gorm.io/gorm"
)

// EmbedTopic carries one message per journal event awaiting an embedding.
const EmbedTopic = "journal.embed"

type Container struct {
	Config *config.Config
	Logger logger.ILogger
	DB     *gorm.DB

	Retriever      *retriever.Retriever
	ContextService service.IContextService
	ChatbotService service.IChatbotService

	// Background services, started by the embed command.
	ConsumerService service.IConsumerService
	BackfillService service.IEmbeddingBackfillService

	JournalController controller.IJournalController
	ChatbotController controller.IChatbotController

	closers []func()
}

// NewContainer wires every component without dialling the database. A DSN that
// cannot be parsed is reported as retriever.ErrConnection; an unreachable
// journal surfaces per request.
func NewContainer(ctx context.Context, cfg *config.Config, log logger.ILogger) (*Container, error) {
	c := &Container{Config: cfg, Logger: log}

	// 1. Core Facades
	db, err := database.NewGormDB(database.GormConfig{
		DSN:      cfg.Database.DSN(),
		LogLevel: cfg.Database.LogLevel,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", retriever.ErrConnection, err)
	}
	c.DB = db
	c.closers = append(c.closers, func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	uowFactory := unitofwork.NewRepositoryFactory(db)

	// 2. AI providers
	embeddingProvider := newEmbeddingProvider(cfg.Ai)
	log.Info("Bootstrap", "embedding provider ready", map[string]interface{}{
		"provider": cfg.Ai.EmbeddingProvider,
		"model":    embeddingProvider.Model(),
	})

	llmProvider, err := newLLMProvider(cfg.Ai)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("%w: %v", config.ErrConfiguration, err)
	}

	// 3. Infrastructure
	eventPublisher := c.newEventPublisher(ctx)
	sessionRepo := c.newSessionRepository(ctx)

	pubSub := gochannel.NewGoChannel(
		gochannel.Config{BlockPublishUntilSubscriberAck: true},
		watermill.NopLogger{},
	)
	c.closers = append(c.closers, func() { _ = pubSub.Close() })

	// 4. Services
	c.Retriever = retriever.New(uowFactory, embeddingProvider, log, RetrieverConfig(cfg.Retrieval))
	c.ContextService = service.NewContextService(c.Retriever, cfg.Retrieval.CacheTTL, eventPublisher, log)
	c.ChatbotService = service.NewChatbotService(
		c.ContextService,
		llmProvider,
		sessionRepo,
		cfg.Ai.LLMModel,
		embeddingProvider.Model(),
		log,
	)

	publisherService := service.NewPublisherService(EmbedTopic, pubSub)
	c.ConsumerService = service.NewConsumerService(pubSub, EmbedTopic, uowFactory, embeddingProvider, eventPublisher, log)
	c.BackfillService = service.NewEmbeddingBackfillService(uowFactory, publisherService, c.ConsumerService, log)

	// 5. Controllers
	c.JournalController = controller.NewJournalController(c.ContextService)
	c.ChatbotController = controller.NewChatbotController(c.ChatbotService, log)

	return c, nil
}

// RetrieverConfig maps validated settings onto the retriever.
func RetrieverConfig(rc config.RetrievalConfig) retriever.Config {
	return retriever.Config{
		Strategies:      retriever.ParseStrategies(rc.Strategies),
		EntryLimit:      rc.EntryLimit,
		EventLimit:      rc.EventLimit,
		VectorLimit:     rc.VectorLimit,
		Deduplicate:     rc.Deduplicate,
		Metric:          contract.VectorMetric(rc.Metric),
		DBTimeout:       rc.DBTimeout,
		EmbedTimeout:    rc.EmbedTimeout,
		EmbedRetries:    rc.EmbedRetries,
		ConcurrentEmbed: rc.ConcurrentEmbed,
	}
}

func newEmbeddingProvider(ai config.AIConfig) embedding.EmbeddingProvider {
	switch ai.EmbeddingProvider {
	case "gemini":
		return embedding.NewGeminiProvider(ai.GeminiAPIKey, ai.EmbeddingMaxChars)
	case "jina":
		return jina.NewJinaProvider(ai.JinaAPIKey, ai.EmbeddingMaxChars)
	default:
		return embedding.NewOllamaProvider(ai.OllamaBaseURL, ai.OllamaModel, ai.EmbeddingMaxChars, ai.NormalizeEmbeddings)
	}
}

func newLLMProvider(ai config.AIConfig) (llm.LLMProvider, error) {
	baseURL := ai.LLMBaseURL
	if baseURL == "" && ai.LLMProvider == "ollama" {
		baseURL = ai.OllamaBaseURL
	}
	return factory.NewLLMProvider(factory.Options{
		Provider: ai.LLMProvider,
		Model:    ai.LLMModel,
		BaseURL:  baseURL,
		ApiKey:   ai.HuggingFaceAPIKey,
	})
}

// newEventPublisher returns nil when NATS is not configured or unreachable;
// audit events are best effort.
func (c *Container) newEventPublisher(ctx context.Context) events.Publisher {
	if c.Config.App.NatsURL == "" {
		return nil
	}
	pub, err := pktNats.NewPublisher(ctx, c.Config.App.NatsURL)
	if err != nil {
		c.Logger.Warn("Bootstrap", "NATS unavailable, audit events disabled", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}
	c.closers = append(c.closers, pub.Close)
	return pub
}

func (c *Container) newSessionRepository(ctx context.Context) contract.SessionRepository {
	if c.Config.App.SessionStore != "redis" {
		return memory.NewSessionRepository(c.Config.App.SessionTTL)
	}

	rdb := rediscache.NewClient(c.Config.App.RedisURL)
	if err := rdb.Ping(ctx).Err(); err != nil {
		c.Logger.Warn("Bootstrap", "failed to reach Redis, sessions will fail until it is up", map[string]interface{}{
			"error": err.Error(),
		})
	}
	c.closers = append(c.closers, func() { _ = rdb.Close() })
	return rediscache.NewSessionRepository(rdb, c.Config.App.SessionTTL)
}

// Close releases connections in reverse order of acquisition.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
