package service

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"second-brain/internal/dto"
	"second-brain/internal/pkg/logger"
	"second-brain/internal/repository/unitofwork"
	"second-brain/pkg/embedding"
	"second-brain/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
	// Stats returns how many events were embedded and how many failed so far.
	Stats() (embedded, failed int64)
}

type consumerService struct {
	subscriber        message.Subscriber
	topicName         string
	uowFactory        unitofwork.RepositoryFactory
	embeddingProvider embedding.EmbeddingProvider
	eventPublisher    events.Publisher // optional
	logger            logger.ILogger

	embedded atomic.Int64
	failed   atomic.Int64
}

func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	embeddingProvider embedding.EmbeddingProvider,
	eventPublisher events.Publisher,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber:        subscriber,
		topicName:         topicName,
		uowFactory:        uowFactory,
		embeddingProvider: embeddingProvider,
		eventPublisher:    eventPublisher,
		logger:            log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) Stats() (int64, int64) {
	return cs.embedded.Load(), cs.failed.Load()
}

// processMessage always acks. A failed event keeps its NULL embedding and is
// picked up again by the next backfill run; redelivering it now would loop.
func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	var payload dto.PublishEmbedEventMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("ConsumerService", "failed to unmarshal message", map[string]interface{}{"error": err})
		cs.failed.Add(1)
		return
	}

	if err := cs.embedEvent(ctx, payload.EventId); err != nil {
		cs.logger.Error("ConsumerService", "failed to embed journal event", map[string]interface{}{
			"event_id": payload.EventId,
			"error":    err,
		})
		cs.failed.Add(1)
		return
	}
	cs.embedded.Add(1)
}

func (cs *consumerService) embedEvent(ctx context.Context, eventId int64) error {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	event, err := uow.JournalEventRepository().FindById(ctx, eventId)
	if err != nil {
		return err
	}
	if event == nil {
		cs.logger.Warn("ConsumerService", "journal event vanished before embedding", map[string]interface{}{"event_id": eventId})
		return nil
	}

	vector, err := cs.embeddingProvider.Generate(ctx, event.Content, embedding.TaskRetrievalDocument)
	if err != nil {
		return err
	}

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.JournalEventRepository().UpdateEmbedding(ctx, event.Id, vector); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return err
	}

	if cs.eventPublisher != nil {
		if err := cs.eventPublisher.Publish(ctx, events.NewEventEmbedded(event.Id, cs.embeddingProvider.Model(), len(vector))); err != nil {
			cs.logger.Warn("ConsumerService", "failed to publish embedded event", map[string]interface{}{"error": err.Error()})
		}
	}
	return nil
}
