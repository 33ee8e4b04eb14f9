package entity

import (
	"time"

	"github.com/google/uuid"
)

type ContentEmbedding struct {
	Id          uuid.UUID
	SessionId   string
	Document    string
	Embedding   []float32
	ContentType string
	ChunkIndex  int
	Metadata    map[string]string
	CreatedAt   time.Time
}
