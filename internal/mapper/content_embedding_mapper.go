package mapper

import (
	"encoding/json"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"

	"github.com/noman-nawaz-dev/chatbot-backend/internal/entity"
	"github.com/noman-nawaz-dev/chatbot-backend/internal/model"
)

type ContentEmbeddingMapper struct{}

func NewContentEmbeddingMapper() *ContentEmbeddingMapper {
	return &ContentEmbeddingMapper{}
}

func (m *ContentEmbeddingMapper) ToEntity(e *model.ContentEmbedding) *entity.ContentEmbedding {
	if e == nil {
		return nil
	}

	var metadata map[string]string
	if len(e.Metadata) > 0 {
		// Best-effort decode; malformed metadata is dropped, not fatal
		_ = json.Unmarshal(e.Metadata, &metadata)
	}

	return &entity.ContentEmbedding{
		Id:          e.Id,
		SessionId:   e.SessionId,
		Document:    e.Document,
		Embedding:   e.EmbeddingValue.Slice(),
		ContentType: e.ContentType,
		ChunkIndex:  e.ChunkIndex,
		Metadata:    metadata,
		CreatedAt:   e.CreatedAt,
	}
}

func (m *ContentEmbeddingMapper) ToModel(e *entity.ContentEmbedding) *model.ContentEmbedding {
	if e == nil {
		return nil
	}

	var metadata datatypes.JSON
	if len(e.Metadata) > 0 {
		if raw, err := json.Marshal(e.Metadata); err == nil {
			metadata = raw
		}
	}

	return &model.ContentEmbedding{
		Id:             e.Id,
		SessionId:      e.SessionId,
		Document:       e.Document,
		EmbeddingValue: pgvector.NewVector(e.Embedding),
		ContentType:    e.ContentType,
		ChunkIndex:     e.ChunkIndex,
		Metadata:       metadata,
		CreatedAt:      e.CreatedAt,
	}
}
