package unitofwork

import (
	"context"

	"github.com/noman-nawaz-dev/chatbot-backend/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	ChatSessionRepository() contract.ChatSessionRepository
	ContentEmbeddingRepository() contract.ContentEmbeddingRepository
}
