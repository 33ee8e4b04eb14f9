package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noman-nawaz-dev/chatbot-backend/pkg/history"
	"github.com/noman-nawaz-dev/chatbot-backend/pkg/ingest"
	"github.com/noman-nawaz-dev/chatbot-backend/pkg/llm"
	"github.com/noman-nawaz-dev/chatbot-backend/pkg/stream"
)

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

type fakeIngestor struct {
	images    []ingest.ProcessedContent
	documents []ingest.ProcessedContent
	err       error
}

func (f *fakeIngestor) Extract(ctx context.Context, files []ingest.UploadedFile) ([]ingest.ProcessedContent, []ingest.ProcessedContent, error) {
	return f.images, f.documents, f.err
}

type fakeIndex struct {
	chunks   []string
	err      error
	lastK    int
	lastText string
}

func (f *fakeIndex) Query(ctx context.Context, text, sessionID string, k int) ([]string, error) {
	f.lastText = text
	f.lastK = k
	return f.chunks, f.err
}

type fakeScheduler struct {
	scheduled []ingest.ProcessedContent
	err       error
}

func (f *fakeScheduler) Schedule(ctx context.Context, sessionID string, chunks []ingest.ProcessedContent) error {
	f.scheduled = append(f.scheduled, chunks...)
	return f.err
}

type fakeProvider struct {
	fragments  []string
	streamErr  error
	title      string
	titleErr   error
	lastPrompt string
}

func (f *fakeProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return f.title, f.titleErr
}

func (f *fakeProvider) GenerateStream(ctx context.Context, prompt string, onChunk func(chunk string) error, options ...llm.Option) error {
	f.lastPrompt = prompt
	if f.streamErr != nil {
		return f.streamErr
	}
	for _, fragment := range f.fragments {
		if err := onChunk(fragment); err != nil {
			return err
		}
	}
	return nil
}

func newTestOrchestrator(ing *fakeIngestor, idx *fakeIndex, gen *fakeProvider, sched *fakeScheduler) (*Orchestrator, *stream.Broker) {
	broker := stream.NewBroker(nopLogger{})
	return NewOrchestrator(ing, idx, gen, broker, sched, 5, nopLogger{}), broker
}

func drainTokens(t *testing.T, ch <-chan stream.Event) string {
	t.Helper()
	var out string
	for ev := range ch {
		if ev.Kind == stream.KindToken {
			out += ev.Content
		}
	}
	return out
}

func TestRunAccumulatesStreamedFragments(t *testing.T) {
	gen := &fakeProvider{fragments: []string{"Hel", "lo, ", "world"}, title: "Greeting"}
	orch, broker := newTestOrchestrator(&fakeIngestor{}, &fakeIndex{}, gen, &fakeScheduler{})

	streamID := broker.Open()
	ch, _, err := broker.Subscribe(streamID)
	require.NoError(t, err)

	state := &State{SessionID: "s1", TextInput: "say hello"}
	err = orch.Run(context.Background(), state, nil, streamID)
	require.NoError(t, err)
	broker.Complete(streamID)

	assert.Equal(t, "Hello, world", state.FinalResponse)
	assert.Equal(t, "Hello, world", drainTokens(t, ch))
}

func TestRunRetrievalFailureDegrades(t *testing.T) {
	idx := &fakeIndex{err: errors.New("pgvector down")}
	gen := &fakeProvider{fragments: []string{"answer"}}
	orch, broker := newTestOrchestrator(&fakeIngestor{}, idx, gen, &fakeScheduler{})

	streamID := broker.Open()
	state := &State{
		SessionID:   "s1",
		TextInput:   "question",
		ChatHistory: []history.Entry{{UserMessage: "earlier", LLMResponse: "reply"}},
	}
	err := orch.Run(context.Background(), state, nil, streamID)

	require.NoError(t, err)
	assert.Empty(t, state.RetrievedContext)
	assert.Equal(t, "answer", state.FinalResponse)
}

func TestRunGenerationFailureAborts(t *testing.T) {
	gen := &fakeProvider{streamErr: &llm.GenerationError{Provider: "ollama", Err: errors.New("connection refused")}}
	orch, broker := newTestOrchestrator(&fakeIngestor{}, &fakeIndex{}, gen, &fakeScheduler{})

	streamID := broker.Open()
	state := &State{SessionID: "s1", TextInput: "question"}
	err := orch.Run(context.Background(), state, nil, streamID)

	require.Error(t, err)
	var genErr *llm.GenerationError
	assert.ErrorAs(t, err, &genErr)
	assert.Empty(t, state.FinalResponse)
}

func TestRunIngestionFailureAborts(t *testing.T) {
	ing := &fakeIngestor{err: context.Canceled}
	orch, broker := newTestOrchestrator(ing, &fakeIndex{}, &fakeProvider{}, &fakeScheduler{})

	streamID := broker.Open()
	state := &State{SessionID: "s1"}
	files := []ingest.UploadedFile{{Name: "a.pdf", MimeType: "application/pdf"}}
	err := orch.Run(context.Background(), state, files, streamID)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunSchedulesAllChunksForIndexing(t *testing.T) {
	ing := &fakeIngestor{
		images: []ingest.ProcessedContent{{Type: ingest.TypeImage, Content: "a cat"}},
		documents: []ingest.ProcessedContent{
			{Type: ingest.TypeDocument, Content: "page one"},
			{Type: ingest.TypeDocument, Content: "page two"},
		},
	}
	sched := &fakeScheduler{}
	gen := &fakeProvider{fragments: []string{"ok"}}
	orch, broker := newTestOrchestrator(ing, &fakeIndex{}, gen, sched)

	streamID := broker.Open()
	state := &State{SessionID: "s1", TextInput: "describe", ChatHistory: []history.Entry{{}}}
	files := []ingest.UploadedFile{{Name: "cat.png"}, {Name: "doc.pdf"}}
	err := orch.Run(context.Background(), state, files, streamID)

	require.NoError(t, err)
	assert.Len(t, sched.scheduled, 3)
}

func TestRunSchedulerFailureDegrades(t *testing.T) {
	ing := &fakeIngestor{documents: []ingest.ProcessedContent{{Type: ingest.TypeDocument, Content: "text"}}}
	sched := &fakeScheduler{err: errors.New("broker unavailable")}
	gen := &fakeProvider{fragments: []string{"ok"}}
	orch, broker := newTestOrchestrator(ing, &fakeIndex{}, gen, sched)

	streamID := broker.Open()
	state := &State{SessionID: "s1", TextInput: "q", ChatHistory: []history.Entry{{}}}
	err := orch.Run(context.Background(), state, []ingest.UploadedFile{{Name: "d.txt"}}, streamID)

	require.NoError(t, err)
	assert.Equal(t, "ok", state.FinalResponse)
}

func TestRunFallbackQueryWhenNoMessage(t *testing.T) {
	idx := &fakeIndex{}
	ing := &fakeIngestor{documents: []ingest.ProcessedContent{{Type: ingest.TypeDocument, Content: "text"}}}
	gen := &fakeProvider{fragments: []string{"summary"}}
	orch, broker := newTestOrchestrator(ing, idx, gen, &fakeScheduler{})

	streamID := broker.Open()
	state := &State{SessionID: "s1", ChatHistory: []history.Entry{{}}}
	err := orch.Run(context.Background(), state, []ingest.UploadedFile{{Name: "d.txt"}}, streamID)

	require.NoError(t, err)
	assert.Equal(t, "summarize the provided context", idx.lastText)
	assert.Equal(t, 5, idx.lastK)
}

func TestRunTitlesFirstTurnOnly(t *testing.T) {
	t.Run("first turn sets stripped title", func(t *testing.T) {
		gen := &fakeProvider{fragments: []string{"hi"}, title: "\"Chat About Cats\""}
		orch, broker := newTestOrchestrator(&fakeIngestor{}, &fakeIndex{}, gen, &fakeScheduler{})

		streamID := broker.Open()
		state := &State{SessionID: "s1", TextInput: "cats?"}
		require.NoError(t, orch.Run(context.Background(), state, nil, streamID))

		assert.Equal(t, "Chat About Cats", state.Title)
	})

	t.Run("later turns leave title empty", func(t *testing.T) {
		gen := &fakeProvider{fragments: []string{"hi"}, title: "Should Not Appear"}
		orch, broker := newTestOrchestrator(&fakeIngestor{}, &fakeIndex{}, gen, &fakeScheduler{})

		streamID := broker.Open()
		state := &State{
			SessionID:   "s1",
			TextInput:   "more cats?",
			ChatHistory: []history.Entry{{UserMessage: "cats?", LLMResponse: "hi"}},
		}
		require.NoError(t, orch.Run(context.Background(), state, nil, streamID))

		assert.Empty(t, state.Title)
	})

	t.Run("title failure does not fail the turn", func(t *testing.T) {
		gen := &fakeProvider{fragments: []string{"hi"}, titleErr: errors.New("model busy")}
		orch, broker := newTestOrchestrator(&fakeIngestor{}, &fakeIndex{}, gen, &fakeScheduler{})

		streamID := broker.Open()
		state := &State{SessionID: "s1", TextInput: "cats?"}
		require.NoError(t, orch.Run(context.Background(), state, nil, streamID))

		assert.Empty(t, state.Title)
		assert.Equal(t, "hi", state.FinalResponse)
	})
}

func TestRunBoundsPrimaryUploadsInPrompt(t *testing.T) {
	var documents []ingest.ProcessedContent
	names := []string{"one", "two", "three", "four", "five", "six", "seven"}
	for _, n := range names {
		documents = append(documents, ingest.ProcessedContent{
			Type:     ingest.TypeDocument,
			Content:  "chunk-" + n,
			Metadata: ingest.Metadata{Filename: n + ".txt"},
		})
	}
	ing := &fakeIngestor{documents: documents}
	gen := &fakeProvider{fragments: []string{"ok"}}
	orch, broker := newTestOrchestrator(ing, &fakeIndex{}, gen, &fakeScheduler{})

	streamID := broker.Open()
	state := &State{SessionID: "s1", TextInput: "q", ChatHistory: []history.Entry{{}}}
	files := []ingest.UploadedFile{{Name: "bundle.txt"}}
	require.NoError(t, orch.Run(context.Background(), state, files, streamID))

	assert.Contains(t, gen.lastPrompt, "chunk-five")
	assert.NotContains(t, gen.lastPrompt, "chunk-six")
	assert.NotContains(t, gen.lastPrompt, "chunk-seven")
}
