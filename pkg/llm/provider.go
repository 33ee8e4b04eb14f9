package llm

import (
	"context"
	"fmt"
)

// GenerationError wraps a failed model call. It is the only error kind that
// aborts a chat turn.
type GenerationError struct {
	Provider string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed (%s): %v", e.Provider, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// ApplyOptions folds the given options over the provider defaults.
func ApplyOptions(opts ...Option) *Options {
	options := &Options{
		Temperature: 0.7,
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// Provider defines the contract for any generation backend.
type Provider interface {
	// Generate sends a single prompt to the model and returns the full response.
	Generate(ctx context.Context, prompt string, options ...Option) (string, error)

	// GenerateStream sends a prompt in streaming mode. onChunk is invoked for
	// every content fragment in arrival order; a non-nil return from onChunk
	// stops the stream and is propagated. The fragment sequence is finite and
	// not restartable.
	GenerateStream(ctx context.Context, prompt string, onChunk func(chunk string) error, options ...Option) error
}

// VisionProvider is implemented by providers that can describe images.
type VisionProvider interface {
	Describe(ctx context.Context, data []byte, mimeType string) (string, error)
}
