package service

import (
	"context"

	"second-brain/internal/dto"
	"second-brain/internal/pkg/logger"
	"second-brain/internal/repository/unitofwork"
)

// IEmbeddingBackfillService fills in missing journal event embeddings so the
// vector strategy can reach them.
type IEmbeddingBackfillService interface {
	Run(ctx context.Context, batchSize int) (*dto.BackfillSummary, error)
}

type embeddingBackfillService struct {
	uowFactory       unitofwork.RepositoryFactory
	publisherService IPublisherService
	consumerService  IConsumerService
	logger           logger.ILogger
}

func NewEmbeddingBackfillService(
	uowFactory unitofwork.RepositoryFactory,
	publisherService IPublisherService,
	consumerService IConsumerService,
	log logger.ILogger,
) IEmbeddingBackfillService {
	return &embeddingBackfillService{
		uowFactory:       uowFactory,
		publisherService: publisherService,
		consumerService:  consumerService,
		logger:           log,
	}
}

// Run pages through events with a NULL embedding in id order and publishes one
// message per event. The consumer must already be subscribed.
func (s *embeddingBackfillService) Run(ctx context.Context, batchSize int) (*dto.BackfillSummary, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	repo := s.uowFactory.NewUnitOfWork(ctx).JournalEventRepository()

	summary := &dto.BackfillSummary{}
	var afterId int64
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		batch, err := repo.FindMissingEmbeddings(ctx, afterId, batchSize)
		if err != nil {
			return summary, err
		}
		if len(batch) == 0 {
			break
		}

		for _, event := range batch {
			if err := s.publisherService.PublishEmbedEvent(ctx, event.Id); err != nil {
				return summary, err
			}
			summary.Published++
			afterId = event.Id
		}

		s.logger.Info("EmbeddingBackfill", "batch published", map[string]interface{}{
			"size":     len(batch),
			"after_id": afterId,
		})
	}

	summary.Embedded, summary.Failed = s.consumerService.Stats()

	remaining, err := repo.CountMissingEmbeddings(ctx)
	if err != nil {
		return summary, err
	}
	summary.Remaining = remaining
	return summary, nil
}
