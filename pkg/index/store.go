package index

import (
	"context"
	"fmt"

	"github.com/noman-nawaz-dev/chatbot-backend/internal/entity"
	"github.com/noman-nawaz-dev/chatbot-backend/internal/pkg/logger"
	"github.com/noman-nawaz-dev/chatbot-backend/internal/repository/unitofwork"
	"github.com/noman-nawaz-dev/chatbot-backend/pkg/embedding"
	"github.com/noman-nawaz-dev/chatbot-backend/pkg/ingest"
)

// IndexError reports an embedding/index failure. It is never fatal to a chat
// turn; callers trace it and continue.
type IndexError struct {
	SessionID string
	Err       error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("indexing failed for session %s: %v", e.SessionID, e.Err)
}

func (e *IndexError) Unwrap() error {
	return e.Err
}

// Store persists content chunks as session-scoped pgvector embeddings and
// serves top-K similarity queries over them.
type Store struct {
	uowFactory unitofwork.RepositoryFactory
	embedder   embedding.Provider
	logger     logger.ILogger
}

func NewStore(uowFactory unitofwork.RepositoryFactory, embedder embedding.Provider, log logger.ILogger) *Store {
	return &Store{
		uowFactory: uowFactory,
		embedder:   embedder,
		logger:     log,
	}
}

// Index embeds and stores all chunks under the given session scope.
func (s *Store) Index(ctx context.Context, sessionID string, chunks []ingest.ProcessedContent) error {
	if len(chunks) == 0 {
		return nil
	}

	embeddings := make([]*entity.ContentEmbedding, 0, len(chunks))
	for i, chunk := range chunks {
		vector, err := s.embedder.Generate(ctx, chunk.Content, embedding.TaskDocument)
		if err != nil {
			return &IndexError{SessionID: sessionID, Err: err}
		}

		metadata := map[string]string{
			"filename":  chunk.Metadata.Filename,
			"mime_type": chunk.Metadata.MimeType,
		}
		for k, v := range chunk.Metadata.Extra {
			metadata[k] = v
		}

		embeddings = append(embeddings, &entity.ContentEmbedding{
			SessionId:   sessionID,
			Document:    chunk.Content,
			Embedding:   vector,
			ContentType: string(chunk.Type),
			ChunkIndex:  i,
			Metadata:    metadata,
		})
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.ContentEmbeddingRepository().CreateBatch(ctx, embeddings); err != nil {
		return &IndexError{SessionID: sessionID, Err: err}
	}

	s.logger.Info("Index", "Indexed content chunks", map[string]interface{}{
		"session_id": sessionID,
		"chunks":     len(embeddings),
	})
	return nil
}

// Query returns up to k chunk texts most similar to the query text, scoped
// to the session, closest first.
func (s *Store) Query(ctx context.Context, text, sessionID string, k int) ([]string, error) {
	vector, err := s.embedder.Generate(ctx, text, embedding.TaskQuery)
	if err != nil {
		return nil, &IndexError{SessionID: sessionID, Err: err}
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	matches, err := uow.ContentEmbeddingRepository().SearchSimilar(ctx, vector, k, sessionID)
	if err != nil {
		return nil, &IndexError{SessionID: sessionID, Err: err}
	}

	results := make([]string, 0, len(matches))
	for _, m := range matches {
		results = append(results, m.Document)
	}
	return results, nil
}
