package llm

import (
	"context"
	"fmt"

	"github.com/policy-rag/backend/pkg/config"
)

// Generator sends an assembled prompt to a language-model backend and
// returns the raw answer text. Template injection and citation handling live
// upstream; a generator only moves text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	ModelName() string
}

// NewFromConfig selects the backend by provider name. An empty provider
// returns (nil, nil): the pipeline then answers in extractive fallback mode
// instead of calling a model.
func NewFromConfig(cfg config.LLMConfig) (Generator, error) {
	switch cfg.Provider {
	case "":
		return nil, nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai generator requires an API key")
		}
		return NewOpenAIGenerator(cfg), nil
	case "gemini":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("gemini generator requires an API key")
		}
		return NewGeminiGenerator(cfg), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
