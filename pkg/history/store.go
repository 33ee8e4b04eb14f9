package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/noman-nawaz-dev/chatbot-backend/internal/entity"
	"github.com/noman-nawaz-dev/chatbot-backend/internal/repository/specification"
	"github.com/noman-nawaz-dev/chatbot-backend/internal/repository/unitofwork"
	"github.com/noman-nawaz-dev/chatbot-backend/pkg/blob"
)

// Store is the durable conversation log: one serialized entry collection per
// session in a blob store, with a small metadata row (pointer to the blob,
// write-once title, optional owner) kept in Postgres.
//
// The read-modify-write across Get and Append is not transactional; callers
// serialize turns per session (see the chat service's session locks).
type Store struct {
	blobs      blob.Store
	uowFactory unitofwork.RepositoryFactory
	prefix     string
	cache      *gocache.Cache
}

func NewStore(blobs blob.Store, uowFactory unitofwork.RepositoryFactory, prefix string) *Store {
	if prefix == "" {
		prefix = "sessions"
	}
	return &Store{
		blobs:      blobs,
		uowFactory: uowFactory,
		prefix:     prefix,
		cache:      gocache.New(1*time.Hour, 10*time.Minute),
	}
}

func (s *Store) location(sessionID string) string {
	return fmt.Sprintf("%s/%s/history.json", s.prefix, sessionID)
}

// Get returns the full ordered entry sequence for a session. A session with
// no history yet yields an empty slice, not an error.
func (s *Store) Get(ctx context.Context, sessionID string) ([]Entry, error) {
	if cached, found := s.cache.Get(sessionID); found {
		entries := cached.([]Entry)
		out := make([]Entry, len(entries))
		copy(out, entries)
		return out, nil
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	session, err := uow.ChatSessionRepository().FindOne(ctx, specification.ByID{ID: sessionID})
	if err != nil {
		return nil, &PersistenceError{SessionID: sessionID, Op: "get", Err: err}
	}
	if session == nil || session.HistoryLocation == "" {
		return []Entry{}, nil
	}

	data, err := s.blobs.Read(ctx, session.HistoryLocation)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return []Entry{}, nil
		}
		return nil, &PersistenceError{SessionID: sessionID, Op: "get", Err: err}
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, &PersistenceError{SessionID: sessionID, Op: "get", Err: err}
	}

	s.cache.Set(sessionID, entries, gocache.DefaultExpiration)

	out := make([]Entry, len(entries))
	copy(out, entries)
	return out, nil
}

// Append adds one entry to the session's full history, re-uploads the blob
// and upserts the metadata row. Title is write-once: it is persisted only
// when non-empty and no title exists yet.
func (s *Store) Append(ctx context.Context, sessionID, ownerID string, entry Entry, title string) error {
	entries, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	entries = append(entries, entry)

	data, err := json.Marshal(entries)
	if err != nil {
		return &PersistenceError{SessionID: sessionID, Op: "put", Err: err}
	}

	loc := s.location(sessionID)
	if err := s.blobs.Write(ctx, loc, data); err != nil {
		return &PersistenceError{SessionID: sessionID, Op: "put", Err: err}
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	repo := uow.ChatSessionRepository()

	session, err := repo.FindOne(ctx, specification.ByID{ID: sessionID})
	if err != nil {
		return &PersistenceError{SessionID: sessionID, Op: "put", Err: err}
	}

	if session == nil {
		session = &entity.ChatSession{
			Id:              sessionID,
			OwnerId:         ownerID,
			Title:           title,
			HistoryLocation: loc,
		}
		if err := repo.Create(ctx, session); err != nil {
			return &PersistenceError{SessionID: sessionID, Op: "put", Err: err}
		}
	} else {
		session.HistoryLocation = loc
		if session.Title == "" && title != "" {
			session.Title = title
		}
		now := time.Now()
		session.UpdatedAt = &now
		if err := repo.Update(ctx, session); err != nil {
			return &PersistenceError{SessionID: sessionID, Op: "put", Err: err}
		}
	}

	s.cache.Set(sessionID, entries, gocache.DefaultExpiration)
	return nil
}

// Delete removes the session's blob and cached entries. The metadata row is
// the caller's to remove; a blob that never existed is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.cache.Delete(sessionID)

	if err := s.blobs.Delete(ctx, s.location(sessionID)); err != nil && !errors.Is(err, blob.ErrNotFound) {
		return &PersistenceError{SessionID: sessionID, Op: "delete", Err: err}
	}
	return nil
}

// Meta returns the session metadata row, or nil when the session has never
// been persisted.
func (s *Store) Meta(ctx context.Context, sessionID string) (*entity.ChatSession, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	session, err := uow.ChatSessionRepository().FindOne(ctx, specification.ByID{ID: sessionID})
	if err != nil {
		return nil, &PersistenceError{SessionID: sessionID, Op: "meta", Err: err}
	}
	return session, nil
}
