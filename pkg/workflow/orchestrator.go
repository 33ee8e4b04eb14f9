package workflow

import (
	"context"
	"strings"

	"github.com/noman-nawaz-dev/chatbot-backend/internal/pkg/logger"
	"github.com/noman-nawaz-dev/chatbot-backend/pkg/ingest"
	"github.com/noman-nawaz-dev/chatbot-backend/pkg/llm"
	"github.com/noman-nawaz-dev/chatbot-backend/pkg/prompt"
	"github.com/noman-nawaz-dev/chatbot-backend/pkg/stream"
)

const (
	// maxPrimaryUploads bounds how many extracted chunks are fed straight
	// into this turn's prompt. The full set still goes to the index.
	maxPrimaryUploads = 5

	defaultTopK = 5

	// fallbackQuery drives retrieval when the turn carries no message.
	fallbackQuery = "summarize the provided context"
)

// Ingestor reduces uploaded files to typed content chunks.
type Ingestor interface {
	Extract(ctx context.Context, files []ingest.UploadedFile) (images, documents []ingest.ProcessedContent, err error)
}

// ContextIndex is the session-scoped similarity store.
type ContextIndex interface {
	Query(ctx context.Context, text, sessionID string, k int) ([]string, error)
}

// IndexScheduler hands content off for durable background indexing. The
// orchestrator never waits for indexing to finish.
type IndexScheduler interface {
	Schedule(ctx context.Context, sessionID string, chunks []ingest.ProcessedContent) error
}

// Orchestrator runs one chat turn: ingestion, retrieval, streaming
// generation and optional titling. Only generation failures abort a turn;
// every enrichment stage degrades gracefully.
type Orchestrator struct {
	ingestor  Ingestor
	index     ContextIndex
	generator llm.Provider
	broker    *stream.Broker
	scheduler IndexScheduler
	topK      int
	logger    logger.ILogger
}

func NewOrchestrator(
	ingestor Ingestor,
	index ContextIndex,
	generator llm.Provider,
	broker *stream.Broker,
	scheduler IndexScheduler,
	topK int,
	log logger.ILogger,
) *Orchestrator {
	if topK <= 0 {
		topK = defaultTopK
	}
	return &Orchestrator{
		ingestor:  ingestor,
		index:     index,
		generator: generator,
		broker:    broker,
		scheduler: scheduler,
		topK:      topK,
		logger:    log,
	}
}

// Run executes the turn against the given stream channel, mutating state as
// stages complete. On return with nil error, state.FinalResponse is set and
// state is ready for persistence. The caller owns channel termination.
func (o *Orchestrator) Run(ctx context.Context, state *State, files []ingest.UploadedFile, streamID string) error {
	if err := o.ingestStage(ctx, state, files); err != nil {
		return err
	}
	o.retrieveStage(ctx, state)
	if err := o.generateStage(ctx, state, streamID); err != nil {
		return err
	}
	o.titleStage(ctx, state)
	return nil
}

func (o *Orchestrator) ingestStage(ctx context.Context, state *State, files []ingest.UploadedFile) error {
	if len(files) == 0 {
		return nil
	}

	images, documents, err := o.ingestor.Extract(ctx, files)
	if err != nil {
		return err
	}
	state.Images = images
	state.Documents = documents

	// Durable indexing is scheduled, not awaited: it must not delay or fail
	// the user's current response.
	all := state.UploadedContent()
	if o.scheduler != nil && len(all) > 0 {
		if err := o.scheduler.Schedule(ctx, state.SessionID, all); err != nil {
			o.logger.Warn("Orchestrator", "Failed to schedule background indexing", map[string]interface{}{
				"session_id": state.SessionID,
				"error":      err.Error(),
			})
		}
	}
	return nil
}

func (o *Orchestrator) retrieveStage(ctx context.Context, state *State) {
	query := state.TextInput
	if query == "" {
		query = fallbackQuery
	}

	retrieved, err := o.index.Query(ctx, query, state.SessionID, o.topK)
	if err != nil {
		// Retrieval is best-effort enrichment, not a hard dependency.
		o.logger.Warn("Orchestrator", "Retrieval failed, continuing without context", map[string]interface{}{
			"session_id": state.SessionID,
			"error":      err.Error(),
		})
		retrieved = nil
	}
	state.RetrievedContext = retrieved
}

func (o *Orchestrator) generateStage(ctx context.Context, state *State, streamID string) error {
	primary := state.UploadedContent()
	if len(primary) > maxPrimaryUploads {
		primary = primary[:maxPrimaryUploads]
	}

	promptText := prompt.NewBuilder(state.ChatHistory, primary, state.RetrievedContext, state.TextInput).Build()

	var response strings.Builder
	err := o.generator.GenerateStream(ctx, promptText, func(chunk string) error {
		response.WriteString(chunk)
		o.broker.Publish(streamID, chunk)
		return nil
	})
	if err != nil {
		return err
	}

	state.FinalResponse = response.String()
	return nil
}

func (o *Orchestrator) titleStage(ctx context.Context, state *State) {
	if !state.FirstTurn() {
		return
	}

	titlePrompt := buildTitlePrompt(state.TextInput, state.FinalResponse)
	title, err := o.generator.Generate(ctx, titlePrompt, llm.WithMaxTokens(30))
	if err != nil {
		// Titling must not fail a turn that already has its response.
		o.logger.Warn("Orchestrator", "Title generation failed, leaving title unset", map[string]interface{}{
			"session_id": state.SessionID,
			"error":      err.Error(),
		})
		return
	}
	state.Title = stripQuotes(strings.TrimSpace(title))
}

func buildTitlePrompt(userMessage, response string) string {
	var b strings.Builder
	b.WriteString("Write a 3-6 word title summarizing this exchange. Reply with only the title.\n\n")
	b.WriteString("User: ")
	b.WriteString(userMessage)
	b.WriteString("\nAssistant: ")
	b.WriteString(response)
	return b.String()
}

func stripQuotes(s string) string {
	for len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			s = strings.TrimSpace(s[1 : len(s)-1])
			continue
		}
		break
	}
	return strings.Trim(s, "“”")
}
