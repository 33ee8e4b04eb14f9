package implementation

import (
	"context"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/noman-nawaz-dev/chatbot-backend/internal/entity"
	"github.com/noman-nawaz-dev/chatbot-backend/internal/mapper"
	"github.com/noman-nawaz-dev/chatbot-backend/internal/model"
	"github.com/noman-nawaz-dev/chatbot-backend/internal/repository/contract"
	"github.com/noman-nawaz-dev/chatbot-backend/internal/repository/specification"
)

type ContentEmbeddingRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ContentEmbeddingMapper
}

func NewContentEmbeddingRepository(db *gorm.DB) contract.ContentEmbeddingRepository {
	return &ContentEmbeddingRepositoryImpl{
		db:     db,
		mapper: mapper.NewContentEmbeddingMapper(),
	}
}

func (r *ContentEmbeddingRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ContentEmbeddingRepositoryImpl) CreateBatch(ctx context.Context, embeddings []*entity.ContentEmbedding) error {
	if len(embeddings) == 0 {
		return nil
	}
	models := make([]*model.ContentEmbedding, len(embeddings))
	for i, e := range embeddings {
		models[i] = r.mapper.ToModel(e)
	}
	return r.db.WithContext(ctx).CreateInBatches(models, 100).Error
}

// SearchSimilar orders by pgvector cosine distance (embedding_value <=> query),
// scoped to a single session and excluding soft-deleted chunks.
func (r *ContentEmbeddingRepositoryImpl) SearchSimilar(ctx context.Context, embedding []float32, limit int, sessionID string) ([]*entity.ContentEmbedding, error) {
	if limit <= 0 {
		limit = 5
	}
	var models []*model.ContentEmbedding

	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Where("deleted_at IS NULL").
		Order(gorm.Expr("embedding_value <=> ?", pgvector.NewVector(embedding))).
		Limit(limit).
		Find(&models).Error

	if err != nil {
		return nil, err
	}

	entities := make([]*entity.ContentEmbedding, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ToEntity(m)
	}
	return entities, nil
}

func (r *ContentEmbeddingRepositoryImpl) DeleteBySessionId(ctx context.Context, sessionID string) error {
	return r.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&model.ContentEmbedding{}).Error
}

func (r *ContentEmbeddingRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.ContentEmbedding{}), specs...)
	err := query.Count(&count).Error
	return count, err
}
