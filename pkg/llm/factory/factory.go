package factory

import (
	"fmt"

	"github.com/noman-nawaz-dev/chatbot-backend/pkg/llm"
	"github.com/noman-nawaz-dev/chatbot-backend/pkg/llm/ollama"
	"github.com/noman-nawaz-dev/chatbot-backend/pkg/llm/openai"
)

type ProviderConfig struct {
	Provider    string // "ollama" or "openai"
	Model       string
	BaseURL     string // ollama only
	APIKey      string // openai only
	VisionModel string // ollama only
}

func NewProvider(cfg ProviderConfig) (llm.Provider, error) {
	switch cfg.Provider {
	case "ollama":
		return ollama.NewOllamaProvider(cfg.BaseURL, cfg.Model, cfg.VisionModel), nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key")
		}
		return openai.NewOpenAIProvider(cfg.APIKey, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
