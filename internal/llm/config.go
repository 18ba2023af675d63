// Package llm provides centralized embedding-model configuration and client abstractions
// for hosted providers.
package llm

import "time"

// Provider represents an LLM provider
type Provider string

// Provider constants define supported LLM providers
const (
	// ProviderGemini is the Google Gemini provider
	ProviderGemini Provider = "gemini"
)

// DefaultEmbeddingModel is the Gemini embedding model used when none is configured.
const DefaultEmbeddingModel = "text-embedding-004"

// Config holds the embedding configuration for the application
type Config struct {
	Provider       Provider
	EmbeddingModel string

	// Retry policy for transient provider failures.
	MaxElapsedTime  time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// DefaultConfig returns the default configuration (currently Gemini)
func DefaultConfig() *Config {
	return &Config{
		Provider:        ProviderGemini,
		EmbeddingModel:  DefaultEmbeddingModel,
		MaxElapsedTime:  8 * time.Second,
		InitialInterval: 250 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Multiplier:      2,
	}
}

// WithEmbeddingModel returns a copy of the config using the given model.
// An empty model keeps the current one.
func (c *Config) WithEmbeddingModel(model string) *Config {
	out := *c
	if model != "" {
		out.EmbeddingModel = model
	}
	return &out
}
