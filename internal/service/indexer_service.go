package service

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/noman-nawaz-dev/chatbot-backend/internal/dto"
	"github.com/noman-nawaz-dev/chatbot-backend/internal/pkg/logger"
	"github.com/noman-nawaz-dev/chatbot-backend/pkg/index"
	"github.com/noman-nawaz-dev/chatbot-backend/pkg/ingest"
)

// IndexScheduler publishes extracted content onto the indexing topic so the
// turn that produced it never waits for embedding.
type IndexScheduler struct {
	pubSub *gochannel.GoChannel
	topic  string
}

func NewIndexScheduler(pubSub *gochannel.GoChannel, topic string) *IndexScheduler {
	return &IndexScheduler{
		pubSub: pubSub,
		topic:  topic,
	}
}

func (s *IndexScheduler) Schedule(ctx context.Context, sessionId string, chunks []ingest.ProcessedContent) error {
	payload, err := json.Marshal(dto.IndexContentMessage{
		SessionId: sessionId,
		Chunks:    chunks,
	})
	if err != nil {
		return err
	}
	return s.pubSub.Publish(s.topic, message.NewMessage(watermill.NewUUID(), payload))
}

type IIndexerService interface {
	Consume(ctx context.Context) error
}

// indexerService drains the indexing topic and writes embeddings through the
// context index.
type indexerService struct {
	pubSub *gochannel.GoChannel
	topic  string
	index  *index.Store
	logger logger.ILogger
}

func NewIndexerService(
	pubSub *gochannel.GoChannel,
	topic string,
	indexStore *index.Store,
	log logger.ILogger,
) IIndexerService {
	return &indexerService{
		pubSub: pubSub,
		topic:  topic,
		index:  indexStore,
		logger: log,
	}
}

func (is *indexerService) Consume(ctx context.Context) error {
	messages, err := is.pubSub.Subscribe(ctx, is.topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			is.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (is *indexerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.IndexContentMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		is.logger.Error("IndexerService", "Failed to unmarshal indexing message", map[string]interface{}{
			"error": err.Error(),
		})
		msg.Ack() // invalid payloads would otherwise retry forever
		return
	}

	is.logger.Info("IndexerService", "Indexing session content", map[string]interface{}{
		"session_id": payload.SessionId,
		"chunks":     len(payload.Chunks),
	})

	if err := is.index.Index(ctx, payload.SessionId, payload.Chunks); err != nil {
		is.logger.Error("IndexerService", "Indexing failed, message will retry", map[string]interface{}{
			"session_id": payload.SessionId,
			"error":      err.Error(),
		})
		msg.Nack()
		return
	}

	msg.Ack()
}
