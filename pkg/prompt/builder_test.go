package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noman-nawaz-dev/chatbot-backend/pkg/history"
	"github.com/noman-nawaz-dev/chatbot-backend/pkg/ingest"
)

func TestBuildSectionOrder(t *testing.T) {
	entries := []history.Entry{
		{Timestamp: "2026-01-01T10:00:00Z", UserMessage: "hello", LLMResponse: "hi there"},
	}
	uploaded := []ingest.ProcessedContent{
		{Type: ingest.TypeDocument, Content: "chapter one text", Metadata: ingest.Metadata{Filename: "book.pdf"}},
	}
	retrieved := []string{"older chunk about chapter one"}

	got := NewBuilder(entries, uploaded, retrieved, "what happens next?").Build()

	histPos := strings.Index(got, "<conversation_history>")
	upPos := strings.Index(got, "<uploaded_content>")
	retPos := strings.Index(got, "<retrieved_context>")
	msgPos := strings.Index(got, "<user_message>")

	assert.True(t, histPos >= 0, "history section missing")
	assert.True(t, upPos > histPos, "uploaded content must follow history")
	assert.True(t, retPos > upPos, "retrieved context must follow uploads")
	assert.True(t, msgPos > retPos, "user message must come last")

	assert.Contains(t, got, "[book.pdf]")
	assert.Contains(t, got, "what happens next?")
}

func TestBuildDeterministic(t *testing.T) {
	entries := []history.Entry{
		{Timestamp: "2026-01-01T10:00:00Z", UserMessage: "a", LLMResponse: "b"},
	}
	uploaded := []ingest.ProcessedContent{
		{Type: ingest.TypeImage, Content: "a red bicycle"},
	}

	first := NewBuilder(entries, uploaded, []string{"c"}, "d").Build()
	second := NewBuilder(entries, uploaded, []string{"c"}, "d").Build()
	assert.Equal(t, first, second)
}

func TestBuildOmitsEmptySections(t *testing.T) {
	got := NewBuilder(nil, nil, nil, "just a question").Build()

	assert.NotContains(t, got, "<conversation_history>")
	assert.NotContains(t, got, "<uploaded_content>")
	assert.NotContains(t, got, "<retrieved_context>")
	assert.Contains(t, got, "<user_message>")
	assert.Contains(t, got, "just a question")
}

func TestBuildNoMessageFallback(t *testing.T) {
	uploaded := []ingest.ProcessedContent{
		{Type: ingest.TypeDocument, Content: "quarterly report"},
	}

	got := NewBuilder(nil, uploaded, nil, "").Build()

	assert.Contains(t, got, "No message was provided")
	assert.Contains(t, got, "quarterly report")
}

func TestBuildEmptyInputsStillValid(t *testing.T) {
	got := NewBuilder(nil, nil, nil, "").Build()

	assert.NotEmpty(t, got)
	assert.Contains(t, got, "<user_message>")
}
