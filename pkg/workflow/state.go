package workflow

import (
	"github.com/noman-nawaz-dev/chatbot-backend/pkg/history"
	"github.com/noman-nawaz-dev/chatbot-backend/pkg/ingest"
)

// State is the mutable record threaded through one turn's execution. The
// orchestrator is stateless; everything a turn learns lives here.
type State struct {
	SessionID string

	// TextInput is the user's raw message for this turn, possibly empty.
	TextInput string

	// Content extracted from this turn's uploads.
	Images    []ingest.ProcessedContent
	Documents []ingest.ProcessedContent

	// RetrievedContext is filled by the retrieval stage; empty until then.
	RetrievedContext []string

	// ChatHistory holds prior turns, most-recent-last, already bounded to
	// the coordinator's recency window.
	ChatHistory []history.Entry

	// FinalResponse is set exactly once, after generation completes.
	FinalResponse string

	// Title is set only on a session's first turn.
	Title string
}

// FirstTurn reports whether this is the session's first exchange.
func (s *State) FirstTurn() bool {
	return len(s.ChatHistory) == 0
}

// UploadedContent returns all extracted chunks in prompt order: images
// first, then documents.
func (s *State) UploadedContent() []ingest.ProcessedContent {
	out := make([]ingest.ProcessedContent, 0, len(s.Images)+len(s.Documents))
	out = append(out, s.Images...)
	out = append(out, s.Documents...)
	return out
}
