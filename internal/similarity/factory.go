package similarity

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jonathan/jobtrust/internal/llm"
	"github.com/jonathan/jobtrust/internal/observability"
)

// Options selects and configures a similarity backend.
type Options struct {
	Backend Backend

	Onnx OnnxConfig

	GeminiAPIKey         string
	GeminiEmbeddingModel string

	// RedisURL enables the score cache when set.
	RedisURL string
	CacheTTL time.Duration
}

// Service is the assembled oracle together with the resources it owns.
type Service struct {
	Oracle  Oracle
	Backend Backend

	closers []io.Closer
}

// Close releases models, clients and connections.
func (s *Service) Close() error {
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}

// New builds the configured oracle. When the ONNX or Gemini backend cannot start it logs
// a warning and degrades to the keyword oracle rather than failing.
func New(ctx context.Context, opts Options, logger *zap.Logger, metrics *observability.Metrics) (*Service, error) {
	logger = observability.OrNop(logger)
	svc := &Service{}

	var (
		oracle Oracle
		model  string
	)

	switch opts.Backend {
	case BackendOnnx:
		embedder, err := NewOnnxEmbedder(opts.Onnx)
		if err != nil {
			logger.Warn("onnx similarity backend unavailable, falling back to keyword overlap", zap.Error(err))
			break
		}
		eo := NewEmbeddingOracle(embedder)
		svc.closers = append(svc.closers, eo)
		oracle, model, svc.Backend = eo, eo.ModelID(), BackendOnnx
	case BackendGemini:
		cfg := llm.DefaultConfig().WithEmbeddingModel(opts.GeminiEmbeddingModel)
		client, err := llm.NewClient(ctx, cfg, opts.GeminiAPIKey, logger)
		if err != nil {
			logger.Warn("gemini similarity backend unavailable, falling back to keyword overlap", zap.Error(err))
			break
		}
		eo := NewEmbeddingOracle(client)
		svc.closers = append(svc.closers, eo)
		oracle, model, svc.Backend = eo, eo.ModelID(), BackendGemini
	case BackendKeyword, "":
	default:
		return nil, fmt.Errorf("unknown similarity backend %q", opts.Backend)
	}

	if oracle == nil {
		oracle, model, svc.Backend = NewKeywordOracle(), string(BackendKeyword), BackendKeyword
	}
	oracle = Instrument(oracle, svc.Backend, metrics)

	if opts.RedisURL != "" {
		redisOpts, err := redis.ParseURL(opts.RedisURL)
		if err != nil {
			_ = svc.Close()
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		rdb := redis.NewClient(redisOpts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("similarity cache unavailable, continuing without it", zap.Error(err))
			_ = rdb.Close()
		} else {
			svc.closers = append(svc.closers, rdb)
			oracle = NewCachedOracle(oracle, rdb, model, opts.CacheTTL, logger, metrics)
		}
	}

	svc.Oracle = oracle
	logger.Info("similarity backend ready", zap.String("backend", string(svc.Backend)), zap.String("model", model))
	return svc, nil
}
