package contract

import (
	"context"

	"github.com/noman-nawaz-dev/chatbot-backend/internal/entity"
	"github.com/noman-nawaz-dev/chatbot-backend/internal/repository/specification"
)

type ContentEmbeddingRepository interface {
	CreateBatch(ctx context.Context, embeddings []*entity.ContentEmbedding) error
	// SearchSimilar returns the closest chunks by cosine distance, scoped to
	// one session.
	SearchSimilar(ctx context.Context, embedding []float32, limit int, sessionID string) ([]*entity.ContentEmbedding, error)
	DeleteBySessionId(ctx context.Context, sessionID string) error
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
