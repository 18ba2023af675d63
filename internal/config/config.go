// Package config loads service configuration from the environment and ranking policy files.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/jonathan/jobtrust/internal/ranking"
	"github.com/jonathan/jobtrust/internal/similarity"
)

// Config holds the service configuration parsed from environment variables.
type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`

	SimilarityBackend  string        `env:"SIMILARITY_BACKEND" envDefault:"onnx"`
	SimilarityCacheTTL time.Duration `env:"SIMILARITY_CACHE_TTL" envDefault:"24h"`
	OnnxLibraryPath    string        `env:"ONNX_LIBRARY_PATH"`
	OnnxModelPath      string        `env:"ONNX_MODEL_PATH" envDefault:"models/all-MiniLM-L6-v2/model.onnx"`
	OnnxTokenizerPath  string        `env:"ONNX_TOKENIZER_PATH" envDefault:"models/all-MiniLM-L6-v2/tokenizer.json"`
	OnnxMaxSeqLen      int           `env:"ONNX_MAX_SEQ_LEN" envDefault:"256"`
	GeminiAPIKey       string        `env:"GEMINI_API_KEY"`
	GeminiModel        string        `env:"GEMINI_EMBEDDING_MODEL" envDefault:"text-embedding-004"`

	RelevanceStrategy string        `env:"RELEVANCE_STRATEGY" envDefault:"semantic"`
	RankConcurrency   int           `env:"RANK_CONCURRENCY" envDefault:"4"`
	OracleTimeout     time.Duration `env:"ORACLE_TIMEOUT" envDefault:"10s"`
	PolicyFile        string        `env:"POLICY_FILE"`

	CORSAllowOrigins []string `env:"CORS_ALLOW_ORIGINS" envSeparator:"," envDefault:"*"`

	// Per-IP requests per minute, by endpoint tier
	RateLimitEnabled bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitAuth    int           `env:"RATE_LIMIT_AUTH_PER_MIN" envDefault:"10"`
	RateLimitRanking int           `env:"RATE_LIMIT_RANKING_PER_MIN" envDefault:"30"`
	RateLimitDefault int           `env:"RATE_LIMIT_DEFAULT_PER_MIN" envDefault:"120"`
	ShutdownTimeout  time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	HTTPReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"60s"`

	LogJSON  bool `env:"LOG_JSON" envDefault:"false"`
	LogDebug bool `env:"LOG_DEBUG" envDefault:"false"`
}

// Load parses the configuration from the process environment.
func Load() (*Config, error) {
	return LoadFromEnv(environ())
}

// LoadFromEnv parses the configuration from the given variables only.
func LoadFromEnv(vars map[string]string) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("op=config.Load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("op=config.Load: %w", err)
	}
	return &cfg, nil
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}
	switch similarity.Backend(c.SimilarityBackend) {
	case similarity.BackendKeyword, similarity.BackendOnnx, similarity.BackendGemini:
	default:
		return fmt.Errorf("unknown SIMILARITY_BACKEND %q", c.SimilarityBackend)
	}
	if _, err := ranking.StrategyByName(c.RelevanceStrategy); err != nil {
		return err
	}
	if c.RankConcurrency < 1 {
		return fmt.Errorf("RANK_CONCURRENCY must be at least 1, got %d", c.RankConcurrency)
	}
	if c.OracleTimeout <= 0 {
		return fmt.Errorf("ORACLE_TIMEOUT must be positive, got %s", c.OracleTimeout)
	}
	return nil
}

// SimilarityOptions maps the configuration onto the similarity factory.
func (c *Config) SimilarityOptions() similarity.Options {
	return similarity.Options{
		Backend: similarity.Backend(c.SimilarityBackend),
		Onnx: similarity.OnnxConfig{
			SharedLibraryPath: c.OnnxLibraryPath,
			ModelPath:         c.OnnxModelPath,
			TokenizerPath:     c.OnnxTokenizerPath,
			MaxSeqLen:         c.OnnxMaxSeqLen,
		},
		GeminiAPIKey:         c.GeminiAPIKey,
		GeminiEmbeddingModel: c.GeminiModel,
		RedisURL:             c.RedisURL,
		CacheTTL:             c.SimilarityCacheTTL,
	}
}

// RankerOptions returns the ranker settings, loading the policy file when one is set.
func (c *Config) RankerOptions() ([]ranking.Option, error) {
	strategy, err := ranking.StrategyByName(c.RelevanceStrategy)
	if err != nil {
		return nil, err
	}
	policy, err := LoadPolicy(c.PolicyFile)
	if err != nil {
		return nil, err
	}
	return []ranking.Option{
		ranking.WithStrategy(strategy),
		ranking.WithPolicy(policy),
		ranking.WithConcurrency(c.RankConcurrency),
		ranking.WithOracleTimeout(c.OracleTimeout),
	}, nil
}

func environ() map[string]string {
	vars := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			vars[k] = v
		}
	}
	return vars
}
