package prompt

import (
	"strings"

	"github.com/noman-nawaz-dev/chatbot-backend/pkg/history"
	"github.com/noman-nawaz-dev/chatbot-backend/pkg/ingest"
)

// Builder renders workflow state into a single instruction prompt.
// Pure and deterministic: identical inputs always produce identical text.
//
// Section order is a fixed contract: recent history, newly uploaded
// content, retrieved context, then the current message. Callers must not
// reorder sections; the model weights earlier uploads over retrieved
// background because of this layout.
type Builder struct {
	chatHistory []history.Entry
	uploaded    []ingest.ProcessedContent
	retrieved   []string
	message     string
}

func NewBuilder(chatHistory []history.Entry, uploaded []ingest.ProcessedContent, retrieved []string, message string) *Builder {
	return &Builder{
		chatHistory: chatHistory,
		uploaded:    uploaded,
		retrieved:   retrieved,
		message:     message,
	}
}

func (b *Builder) Build() string {
	var prompt strings.Builder

	b.writeHistory(&prompt)
	b.writeUploaded(&prompt)
	b.writeRetrieved(&prompt)
	b.writeMessage(&prompt)
	b.writeClosing(&prompt)

	return prompt.String()
}

func (b *Builder) writeHistory(prompt *strings.Builder) {
	if len(b.chatHistory) == 0 {
		return
	}

	prompt.WriteString("<conversation_history>\n")
	for _, entry := range b.chatHistory {
		prompt.WriteString("User: ")
		prompt.WriteString(entry.UserMessage)
		prompt.WriteString("\nAssistant: ")
		prompt.WriteString(entry.LLMResponse)
		prompt.WriteString("\nTime: ")
		prompt.WriteString(entry.Timestamp)
		prompt.WriteString("\n\n")
	}
	prompt.WriteString("</conversation_history>\n\n")
}

func (b *Builder) writeUploaded(prompt *strings.Builder) {
	if len(b.uploaded) == 0 {
		return
	}

	prompt.WriteString("<uploaded_content>\n")
	prompt.WriteString("The following content was just uploaded by the user and is the primary context for this message:\n\n")
	for _, content := range b.uploaded {
		if content.Metadata.Filename != "" {
			prompt.WriteString("[" + content.Metadata.Filename + "]\n")
		}
		prompt.WriteString(content.Content)
		prompt.WriteString("\n\n")
	}
	prompt.WriteString("</uploaded_content>\n\n")
}

func (b *Builder) writeRetrieved(prompt *strings.Builder) {
	if len(b.retrieved) == 0 {
		return
	}

	prompt.WriteString("<retrieved_context>\n")
	prompt.WriteString("Supplementary background retrieved from earlier material in this session:\n\n")
	for _, chunk := range b.retrieved {
		prompt.WriteString(chunk)
		prompt.WriteString("\n\n")
	}
	prompt.WriteString("</retrieved_context>\n\n")
}

func (b *Builder) writeMessage(prompt *strings.Builder) {
	prompt.WriteString("<user_message>\n")
	if b.message != "" {
		prompt.WriteString(b.message)
	} else {
		prompt.WriteString("No message was provided. Respond based on the uploaded content and retrieved context above.")
	}
	prompt.WriteString("\n</user_message>\n\n")
}

func (b *Builder) writeClosing(prompt *strings.Builder) {
	prompt.WriteString("Synthesize a response from all the sections above, weighting the most recent material highest.")
}
