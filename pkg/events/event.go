package events

import "time"

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "TURN_COMPLETED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent is a ready-made Event implementation for simple payloads.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// Turn lifecycle event types published by the chat service.
const (
	TypeTurnCompleted = "TURN_COMPLETED"
	TypeTurnFailed    = "TURN_FAILED"
)

// NewTurnCompleted builds the event emitted after a turn's history is persisted.
func NewTurnCompleted(sessionID, streamID string, responseLen int) BaseEvent {
	return BaseEvent{
		Type: TypeTurnCompleted,
		Data: map[string]interface{}{
			"session_id":   sessionID,
			"stream_id":    streamID,
			"response_len": responseLen,
		},
		OccurredAt: time.Now(),
	}
}

// NewTurnFailed builds the event emitted when generation aborts a turn.
func NewTurnFailed(sessionID, streamID string, cause error) BaseEvent {
	data := map[string]interface{}{
		"session_id": sessionID,
		"stream_id":  streamID,
	}
	if cause != nil {
		data["error"] = cause.Error()
	}
	return BaseEvent{
		Type:       TypeTurnFailed,
		Data:       data,
		OccurredAt: time.Now(),
	}
}
