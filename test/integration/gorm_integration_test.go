package integration

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noman-nawaz-dev/chatbot-backend/internal/entity"
	"github.com/noman-nawaz-dev/chatbot-backend/internal/repository/specification"
	"github.com/noman-nawaz-dev/chatbot-backend/internal/repository/unitofwork"
	"github.com/noman-nawaz-dev/chatbot-backend/pkg/database"

	"github.com/google/uuid"
)

func TestGormConnection(t *testing.T) {
	// Load .env from root
	err := godotenv.Load("../../.env")
	if err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	gormDB, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		t.Fatalf("Failed to connect to DB: %v", err)
	}

	// Verify Wiring
	uowFactory := unitofwork.NewRepositoryFactory(gormDB)
	uow := uowFactory.NewUnitOfWork(context.Background())

	assert.NotNil(t, uow.ChatSessionRepository())
	assert.NotNil(t, uow.ContentEmbeddingRepository())

	// Basic Ping
	sqlDB, _ := gormDB.DB()
	err = sqlDB.Ping()
	assert.NoError(t, err)

	t.Run("Check Chat Session Repository", func(t *testing.T) {
		count, err := uow.ChatSessionRepository().Count(context.Background())
		assert.NoError(t, err)
		t.Logf("ChatSession count: %d", count)
	})

	t.Run("Check Content Embedding Repository", func(t *testing.T) {
		count, err := uow.ContentEmbeddingRepository().Count(context.Background())
		assert.NoError(t, err)
		t.Logf("ContentEmbedding count: %d", count)
	})

	t.Run("Session CRUD Roundtrip", func(t *testing.T) {
		ctx := context.Background()
		sessionId := "integration-" + uuid.New().String()

		session := &entity.ChatSession{
			Id:              sessionId,
			Title:           "Integration Session",
			HistoryLocation: "sessions/" + sessionId + "/history.json",
		}
		require.NoError(t, uow.ChatSessionRepository().Create(ctx, session))
		defer uow.ChatSessionRepository().Delete(ctx, session)

		fetched, err := uow.ChatSessionRepository().FindOne(ctx, specification.ByID{ID: sessionId})
		require.NoError(t, err)
		require.NotNil(t, fetched)
		assert.Equal(t, "Integration Session", fetched.Title)

		fetched.Title = "Renamed"
		require.NoError(t, uow.ChatSessionRepository().Update(ctx, fetched))

		renamed, err := uow.ChatSessionRepository().FindOne(ctx, specification.ByID{ID: sessionId})
		require.NoError(t, err)
		require.NotNil(t, renamed)
		assert.Equal(t, "Renamed", renamed.Title)
	})

	t.Run("Embedding Batch And Similarity Search", func(t *testing.T) {
		ctx := context.Background()
		sessionId := "integration-" + uuid.New().String()

		vector := make([]float32, 768)
		vector[0] = 1

		embeddings := []*entity.ContentEmbedding{
			{
				Id:          uuid.New(),
				SessionId:   sessionId,
				Document:    "integration chunk",
				Embedding:   vector,
				ContentType: "document",
				ChunkIndex:  0,
			},
		}
		require.NoError(t, uow.ContentEmbeddingRepository().CreateBatch(ctx, embeddings))
		defer uow.ContentEmbeddingRepository().DeleteBySessionId(ctx, sessionId)

		results, err := uow.ContentEmbeddingRepository().SearchSimilar(ctx, vector, 5, sessionId)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "integration chunk", results[0].Document)
	})

	t.Run("Transactional Session Delete", func(t *testing.T) {
		ctx := context.Background()
		sessionId := "integration-" + uuid.New().String()

		session := &entity.ChatSession{Id: sessionId, Title: "Delete Me"}
		require.NoError(t, uow.ChatSessionRepository().Create(ctx, session))

		vector := make([]float32, 768)
		vector[0] = 1
		require.NoError(t, uow.ContentEmbeddingRepository().CreateBatch(ctx, []*entity.ContentEmbedding{
			{Id: uuid.New(), SessionId: sessionId, Document: "doomed chunk", Embedding: vector},
		}))

		txUow := uowFactory.NewUnitOfWork(ctx)
		require.NoError(t, txUow.Begin(ctx))
		require.NoError(t, txUow.ContentEmbeddingRepository().DeleteBySessionId(ctx, sessionId))
		require.NoError(t, txUow.ChatSessionRepository().Delete(ctx, session))
		require.NoError(t, txUow.Commit())

		gone, err := uow.ChatSessionRepository().FindOne(ctx, specification.ByID{ID: sessionId})
		require.NoError(t, err)
		assert.Nil(t, gone)

		count, err := uow.ContentEmbeddingRepository().Count(ctx, specification.BySessionID{SessionID: sessionId})
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("List Sessions Ordered And Paged", func(t *testing.T) {
		ctx := context.Background()
		ownerId := "integration-owner-" + uuid.New().String()

		var created []*entity.ChatSession
		for _, title := range []string{"oldest", "middle", "newest"} {
			session := &entity.ChatSession{
				Id:      "integration-" + uuid.New().String(),
				OwnerId: ownerId,
				Title:   title,
			}
			require.NoError(t, uow.ChatSessionRepository().Create(ctx, session))
			created = append(created, session)
		}
		defer func() {
			for _, session := range created {
				uow.ChatSessionRepository().Delete(ctx, session)
			}
		}()

		page, err := uow.ChatSessionRepository().FindAll(ctx,
			specification.ByOwnerID{OwnerID: ownerId},
			specification.OrderBy{Field: "created_at", Desc: true},
			specification.Pagination{Limit: 2, Offset: 0},
		)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, "newest", page[0].Title)
		assert.Equal(t, "middle", page[1].Title)

		rest, err := uow.ChatSessionRepository().FindAll(ctx,
			specification.ByOwnerID{OwnerID: ownerId},
			specification.OrderBy{Field: "created_at", Desc: true},
			specification.Pagination{Limit: 2, Offset: 2},
		)
		require.NoError(t, err)
		require.Len(t, rest, 1)
		assert.Equal(t, "oldest", rest[0].Title)
	})
}
