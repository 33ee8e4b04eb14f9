package dto

import "github.com/noman-nawaz-dev/chatbot-backend/pkg/ingest"

// IndexContentMessage is the payload carried on the deferred indexing topic.
type IndexContentMessage struct {
	SessionId string                    `json:"session_id"`
	Chunks    []ingest.ProcessedContent `json:"chunks"`
}
