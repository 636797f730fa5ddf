package llm

import (
	"fmt"
	"time"
)

// Config describes the configured text-generation backend.
type Config struct {
	// Provider is one of "ollama", "openai", or "" (none — the engine runs
	// with deterministic fallbacks only).
	Provider string

	// BaseURL overrides the provider's default endpoint.
	BaseURL string

	// APIKey authenticates hosted providers.
	APIKey string

	// Model is the completion model name.
	Model string

	// Timeout bounds every request.
	Timeout time.Duration

	// RequestsPerMinute throttles completion calls. 0 disables throttling.
	RequestsPerMinute int
}

// NewTextGenerator creates the configured TextGenerator, wrapped with rate
// limiting when configured. Returns (nil, nil) when no provider is set:
// callers treat a nil generator as "collaborator absent".
func NewTextGenerator(cfg Config) (TextGenerator, error) {
	var gen TextGenerator

	switch cfg.Provider {
	case "":
		return nil, nil
	case "ollama":
		gen = NewOllamaClient(OllamaConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})
	case "openai":
		gen = NewOpenAIClient(OpenAIConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
		})
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}

	return WithRateLimit(gen, cfg.RequestsPerMinute, 2), nil
}

// NewEmbeddingGenerator creates the configured EmbeddingGenerator. Only
// Ollama supports embeddings here; other providers return (nil, nil) and
// summary embeddings are skipped.
func NewEmbeddingGenerator(cfg Config, embeddingModel string) (EmbeddingGenerator, error) {
	switch cfg.Provider {
	case "ollama":
		if embeddingModel == "" {
			embeddingModel = "nomic-embed-text"
		}
		return NewOllamaClient(OllamaConfig{
			BaseURL: cfg.BaseURL,
			Model:   embeddingModel,
			Timeout: cfg.Timeout,
		}), nil
	default:
		return nil, nil
	}
}
