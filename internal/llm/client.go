package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/jonathan/jobtrust/internal/observability"
)

// Client is an abstraction over hosted embedding providers
type Client interface {
	// Embed returns the embedding vector of text
	Embed(ctx context.Context, text string) ([]float32, error)
	// ModelID identifies the model, for cache keys and metrics
	ModelID() string
	// Close releases any resources held by the client
	Close() error
}

// NewClient creates a new embedding client based on configuration
func NewClient(ctx context.Context, config *Config, apiKey string, logger *zap.Logger) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Provider {
	case ProviderGemini:
		return NewGeminiClient(ctx, config, apiKey, logger)
	default:
		return nil, fmt.Errorf("unsupported provider %q", config.Provider)
	}
}

// embedFunc performs a single embedding request.
type embedFunc func(ctx context.Context, text string) ([]float32, error)

// GeminiClient implements Client for Google Gemini
type GeminiClient struct {
	client *genai.Client
	config *Config
	logger *zap.Logger
	embed  embedFunc
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, config *Config, apiKey string, logger *zap.Logger) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	c := &GeminiClient{
		client: client,
		config: config,
		logger: logger,
	}
	c.embed = c.embedOnce
	return c, nil
}

// Embed embeds text, retrying transient failures with exponential backoff.
func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	attempt := 0
	op := func() error {
		attempt++
		v, err := c.embed(ctx, text)
		if err != nil {
			if !isRetryable(err) {
				return backoff.Permanent(err)
			}
			c.logger.Warn("embedding request failed, retrying",
				zap.String("model", c.config.EmbeddingModel),
				zap.Int("attempt", attempt),
				zap.String("text", observability.Truncate(text, 60)),
				zap.Error(err))
			return err
		}
		vec = v
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(c.backoffConfig(), ctx)); err != nil {
		return nil, fmt.Errorf("failed to embed text with %s: %w", c.config.EmbeddingModel, err)
	}
	return vec, nil
}

func (c *GeminiClient) embedOnce(ctx context.Context, text string) ([]float32, error) {
	model := c.client.EmbeddingModel(c.config.EmbeddingModel)
	resp, err := model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, err
	}
	if resp == nil || resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, backoff.Permanent(errors.New("empty embedding in response"))
	}
	return resp.Embedding.Values, nil
}

func (c *GeminiClient) backoffConfig() *backoff.ExponentialBackOff {
	expo := backoff.NewExponentialBackOff()
	expo.MaxElapsedTime = c.config.MaxElapsedTime
	expo.InitialInterval = c.config.InitialInterval
	expo.MaxInterval = c.config.MaxInterval
	expo.Multiplier = c.config.Multiplier
	return expo
}

// ModelID returns the configured embedding model name
func (c *GeminiClient) ModelID() string {
	return "gemini/" + c.config.EmbeddingModel
}

// Close releases resources held by the client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// isRetryable reports whether an embedding error is worth another attempt.
// Client errors other than 429 and cancellations are final.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests {
			return true
		}
		return apiErr.Code < 400 || apiErr.Code >= 500
	}
	return true
}
