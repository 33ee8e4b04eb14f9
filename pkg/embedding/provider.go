package embedding

import "context"

// Task types hint the provider at how the embedding will be used. Providers
// that don't distinguish (e.g. Ollama/nomic) ignore them.
const (
	TaskDocument = "RETRIEVAL_DOCUMENT"
	TaskQuery    = "RETRIEVAL_QUERY"
)

// Provider defines the interface for generating text embeddings.
type Provider interface {
	Generate(ctx context.Context, text string, taskType string) ([]float32, error)
}
