package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noman-nawaz-dev/chatbot-backend/pkg/events"
)

type recordedLog struct {
	level   string
	message string
	details map[string]interface{}
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []recordedLog
}

func (l *recordingLogger) record(level, message string, details map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, recordedLog{level: level, message: message, details: details})
}

func (l *recordingLogger) Debug(module, message string, details map[string]interface{}) {
	l.record("debug", message, details)
}
func (l *recordingLogger) Info(module, message string, details map[string]interface{}) {
	l.record("info", message, details)
}
func (l *recordingLogger) Warn(module, message string, details map[string]interface{}) {
	l.record("warn", message, details)
}
func (l *recordingLogger) Error(module, message string, details map[string]interface{}) {
	l.record("error", message, details)
}
func (l *recordingLogger) Sync() error { return nil }

func (l *recordingLogger) logged() []recordedLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]recordedLog, len(l.entries))
	copy(out, l.entries)
	return out
}

func TestEventListenerRecordsCompletedTurn(t *testing.T) {
	log := &recordingLogger{}
	l := &eventListener{logger: log}

	event := events.NewTurnCompleted("s1", "stream-1", 42)
	require.NoError(t, l.handleTurnCompleted(context.Background(), event))

	entries := log.logged()
	require.Len(t, entries, 1)
	assert.Equal(t, "info", entries[0].level)
	assert.Equal(t, "s1", entries[0].details["session_id"])
	assert.Equal(t, 42, entries[0].details["response_len"])
}

func TestEventListenerRecordsFailedTurn(t *testing.T) {
	log := &recordingLogger{}
	l := &eventListener{logger: log}

	event := events.NewTurnFailed("s1", "stream-1", errors.New("model offline"))
	require.NoError(t, l.handleTurnFailed(context.Background(), event))

	entries := log.logged()
	require.Len(t, entries, 1)
	assert.Equal(t, "warn", entries[0].level)
	assert.Equal(t, "model offline", entries[0].details["error"])
}

func TestLifecycleSubjects(t *testing.T) {
	assert.Equal(t, "events.TURN_COMPLETED", subjectFor(events.TypeTurnCompleted))
	assert.Equal(t, "events.TURN_FAILED", subjectFor(events.TypeTurnFailed))
}
