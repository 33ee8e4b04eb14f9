package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noman-nawaz-dev/chatbot-backend/internal/dto"
	"github.com/noman-nawaz-dev/chatbot-backend/internal/pkg/logger"
	"github.com/noman-nawaz-dev/chatbot-backend/internal/repository/specification"
	"github.com/noman-nawaz-dev/chatbot-backend/internal/repository/unitofwork"
	"github.com/noman-nawaz-dev/chatbot-backend/pkg/events"
	"github.com/noman-nawaz-dev/chatbot-backend/pkg/history"
	"github.com/noman-nawaz-dev/chatbot-backend/pkg/ingest"
	"github.com/noman-nawaz-dev/chatbot-backend/pkg/stream"
	"github.com/noman-nawaz-dev/chatbot-backend/pkg/workflow"
)

// turnTimeout bounds a single background turn end to end.
const turnTimeout = 5 * time.Minute

const (
	defaultSessionPageSize = 20
	maxSessionPageSize     = 100
)

// ErrSessionNotFound is returned by session-scoped operations when the id
// has no metadata row.
var ErrSessionNotFound = errors.New("chat session not found")

// EventPublisher emits turn lifecycle events to the bus. Optional; a nil
// publisher disables emission.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type IChatService interface {
	// StartTurn validates the request, opens a stream channel and launches
	// the turn in the background. It returns as soon as the stream id is
	// known; tokens arrive on the stream.
	StartTurn(ctx context.Context, request *dto.StartTurnRequest, files []ingest.UploadedFile) (*dto.StartTurnResponse, error)
	GetHistory(ctx context.Context, sessionId string, limit int) (*dto.GetHistoryResponse, error)
	ListSessions(ctx context.Context, ownerId string, limit, offset int) (*dto.ListSessionsResponse, error)
	DeleteSession(ctx context.Context, sessionId string) error
}

// sessionLock is one refcounted lock slot; the slot is dropped from the map
// once the last holder releases it, so the map never grows with dead ids.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

type chatService struct {
	orchestrator  *workflow.Orchestrator
	broker        *stream.Broker
	historyStore  *history.Store
	uowFactory    unitofwork.RepositoryFactory
	publisher     EventPublisher
	historyWindow int
	logger        logger.ILogger

	// sessionLocks serializes session-scoped mutations (the history
	// read-modify-write of a turn, session deletion) per session id.
	mu           sync.Mutex
	sessionLocks map[string]*sessionLock
}

func NewChatService(
	orchestrator *workflow.Orchestrator,
	broker *stream.Broker,
	historyStore *history.Store,
	uowFactory unitofwork.RepositoryFactory,
	publisher EventPublisher,
	historyWindow int,
	log logger.ILogger,
) IChatService {
	return &chatService{
		orchestrator:  orchestrator,
		broker:        broker,
		historyStore:  historyStore,
		uowFactory:    uowFactory,
		publisher:     publisher,
		historyWindow: historyWindow,
		logger:        log,
		sessionLocks:  make(map[string]*sessionLock),
	}
}

func (cs *chatService) acquireSessionLock(sessionId string) *sessionLock {
	cs.mu.Lock()
	lock, ok := cs.sessionLocks[sessionId]
	if !ok {
		lock = &sessionLock{}
		cs.sessionLocks[sessionId] = lock
	}
	lock.refs++
	cs.mu.Unlock()

	lock.mu.Lock()
	return lock
}

func (cs *chatService) releaseSessionLock(sessionId string, lock *sessionLock) {
	lock.mu.Unlock()

	cs.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(cs.sessionLocks, sessionId)
	}
	cs.mu.Unlock()
}

func (cs *chatService) StartTurn(ctx context.Context, request *dto.StartTurnRequest, files []ingest.UploadedFile) (*dto.StartTurnResponse, error) {
	sessionId := request.SessionId
	if sessionId == "" {
		sessionId = uuid.NewString()
	}

	streamId := cs.broker.Open()

	cs.logger.Info("ChatService", "Turn started", map[string]interface{}{
		"session_id": sessionId,
		"stream_id":  streamId,
		"files":      len(files),
		"has_text":   request.Message != "",
	})

	go cs.runTurn(sessionId, streamId, request.Message, files)

	return &dto.StartTurnResponse{
		StreamId:  streamId,
		SessionId: sessionId,
	}, nil
}

// runTurn is the background body of one turn. The stream channel is always
// terminated exactly once, whatever path the turn takes.
func (cs *chatService) runTurn(sessionId, streamId, message string, files []ingest.UploadedFile) {
	ctx, cancel := context.WithTimeout(context.Background(), turnTimeout)
	defer cancel()

	lock := cs.acquireSessionLock(sessionId)
	defer cs.releaseSessionLock(sessionId, lock)

	var turnErr error
	terminated := false
	defer func() {
		if !terminated {
			if turnErr != nil {
				cs.broker.Fail(streamId, turnErr)
			} else {
				cs.broker.Complete(streamId)
			}
		}
	}()

	// History is loaded under the session lock so concurrent turns on the
	// same session always observe each other's appends.
	entries, err := cs.historyStore.Get(ctx, sessionId)
	if err != nil {
		cs.logger.Warn("ChatService", "History load failed, continuing with empty history", map[string]interface{}{
			"session_id": sessionId,
			"error":      err.Error(),
		})
		entries = nil
	}

	state := &workflow.State{
		SessionID:   sessionId,
		TextInput:   message,
		ChatHistory: history.Window(entries, cs.historyWindow),
	}

	if turnErr = cs.orchestrator.Run(ctx, state, files, streamId); turnErr != nil {
		cs.logger.Error("ChatService", "Turn failed", map[string]interface{}{
			"session_id": sessionId,
			"stream_id":  streamId,
			"error":      turnErr.Error(),
		})
		cs.broker.Fail(streamId, turnErr)
		terminated = true
		cs.emit(ctx, events.NewTurnFailed(sessionId, streamId, turnErr))
		return
	}

	cs.broker.Complete(streamId)
	terminated = true

	entry := history.Entry{
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		UserMessage: message,
		LLMResponse: state.FinalResponse,
	}
	if err := cs.historyStore.Append(ctx, sessionId, "", entry, state.Title); err != nil {
		// The response already streamed; a persistence fault must not
		// surface as a failed turn.
		cs.logger.Error("ChatService", "History persistence failed", map[string]interface{}{
			"session_id": sessionId,
			"error":      err.Error(),
		})
	}

	cs.emit(ctx, events.NewTurnCompleted(sessionId, streamId, len(state.FinalResponse)))
}

func (cs *chatService) emit(ctx context.Context, event events.Event) {
	if cs.publisher == nil {
		return
	}
	if err := cs.publisher.Publish(ctx, event); err != nil {
		cs.logger.Warn("ChatService", "Event publish failed", map[string]interface{}{
			"event_type": event.EventType(),
			"error":      err.Error(),
		})
	}
}

func (cs *chatService) GetHistory(ctx context.Context, sessionId string, limit int) (*dto.GetHistoryResponse, error) {
	entries, err := cs.historyStore.Get(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	if limit > 0 {
		entries = history.Window(entries, limit)
	}

	response := &dto.GetHistoryResponse{
		SessionId: sessionId,
		Entries:   make([]dto.HistoryEntryResponse, 0, len(entries)),
	}
	for _, e := range entries {
		response.Entries = append(response.Entries, dto.HistoryEntryResponse{
			Timestamp:   e.Timestamp,
			UserMessage: e.UserMessage,
			LLMResponse: e.LLMResponse,
		})
	}

	meta, err := cs.historyStore.Meta(ctx, sessionId)
	if err == nil && meta != nil {
		response.Title = meta.Title
	}

	return response, nil
}

// ListSessions returns session metadata newest-first, optionally scoped to
// one owner.
func (cs *chatService) ListSessions(ctx context.Context, ownerId string, limit, offset int) (*dto.ListSessionsResponse, error) {
	if limit <= 0 || limit > maxSessionPageSize {
		limit = defaultSessionPageSize
	}

	specs := make([]specification.Specification, 0, 3)
	if ownerId != "" {
		specs = append(specs, specification.ByOwnerID{OwnerID: ownerId})
	}
	specs = append(specs,
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: limit, Offset: offset},
	)

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	sessions, err := uow.ChatSessionRepository().FindAll(ctx, specs...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	response := &dto.ListSessionsResponse{
		Sessions: make([]dto.SessionResponse, 0, len(sessions)),
	}
	for _, s := range sessions {
		response.Sessions = append(response.Sessions, dto.SessionResponse{
			SessionId: s.Id,
			Title:     s.Title,
			CreatedAt: s.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return response, nil
}

// DeleteSession removes the metadata row and the indexed chunks in one
// transaction, then drops the history blob. The session lock keeps the
// deletion from interleaving with a running turn's persistence.
func (cs *chatService) DeleteSession(ctx context.Context, sessionId string) error {
	lock := cs.acquireSessionLock(sessionId)
	defer cs.releaseSessionLock(sessionId, lock)

	uow := cs.uowFactory.NewUnitOfWork(ctx)

	session, err := uow.ChatSessionRepository().FindOne(ctx, specification.ByID{ID: sessionId})
	if err != nil {
		return fmt.Errorf("failed to load session %s: %w", sessionId, err)
	}
	if session == nil {
		return ErrSessionNotFound
	}

	chunks, err := uow.ContentEmbeddingRepository().Count(ctx, specification.BySessionID{SessionID: sessionId})
	if err != nil {
		chunks = -1
	}

	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to start delete transaction: %w", err)
	}
	if err := uow.ContentEmbeddingRepository().DeleteBySessionId(ctx, sessionId); err != nil {
		uow.Rollback()
		return fmt.Errorf("failed to delete embeddings for session %s: %w", sessionId, err)
	}
	if err := uow.ChatSessionRepository().Delete(ctx, session); err != nil {
		uow.Rollback()
		return fmt.Errorf("failed to delete session %s: %w", sessionId, err)
	}
	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit session delete: %w", err)
	}

	// The row is gone; an orphaned blob is only wasted storage.
	if err := cs.historyStore.Delete(ctx, sessionId); err != nil {
		cs.logger.Warn("ChatService", "History blob cleanup failed", map[string]interface{}{
			"session_id": sessionId,
			"error":      err.Error(),
		})
	}

	cs.logger.Info("ChatService", "Session deleted", map[string]interface{}{
		"session_id": sessionId,
		"chunks":     chunks,
	})
	return nil
}
