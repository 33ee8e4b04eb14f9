package service

import (
	"context"
	"fmt"

	"github.com/noman-nawaz-dev/chatbot-backend/internal/pkg/logger"
	"github.com/noman-nawaz-dev/chatbot-backend/pkg/events"
	"github.com/noman-nawaz-dev/chatbot-backend/pkg/nats"
)

// IEventListener consumes turn lifecycle events from the bus and records
// them as an audit trail. Durable consumers mean events published while the
// listener was down are delivered on the next start.
type IEventListener interface {
	Start() error
}

type eventListener struct {
	subscriber *nats.Subscriber
	logger     logger.ILogger
}

func NewEventListener(subscriber *nats.Subscriber, log logger.ILogger) IEventListener {
	return &eventListener{
		subscriber: subscriber,
		logger:     log,
	}
}

func (l *eventListener) Start() error {
	if err := l.subscriber.Subscribe(subjectFor(events.TypeTurnCompleted), "chat-turn-completed", l.handleTurnCompleted); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", events.TypeTurnCompleted, err)
	}
	if err := l.subscriber.Subscribe(subjectFor(events.TypeTurnFailed), "chat-turn-failed", l.handleTurnFailed); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", events.TypeTurnFailed, err)
	}
	return nil
}

func subjectFor(eventType string) string {
	return "events." + eventType
}

func (l *eventListener) handleTurnCompleted(ctx context.Context, event events.Event) error {
	l.logger.Info("EventListener", "Turn completed", event.Payload())
	return nil
}

func (l *eventListener) handleTurnFailed(ctx context.Context, event events.Event) error {
	l.logger.Warn("EventListener", "Turn failed", event.Payload())
	return nil
}
