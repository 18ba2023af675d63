package similarity

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jonathan/jobtrust/internal/ingestion"
	"github.com/jonathan/jobtrust/internal/observability"
)

const cacheKeyPrefix = "jobtrust:sim:"

// CachedOracle is a Redis read-through cache in front of another oracle.
// Cache failures are logged and bypassed; they never fail a similarity call.
type CachedOracle struct {
	next    Oracle
	rdb     redis.UniversalClient
	model   string
	ttl     time.Duration
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewCachedOracle wraps next. model namespaces the keys so backends never share scores.
func NewCachedOracle(next Oracle, rdb redis.UniversalClient, model string, ttl time.Duration, logger *zap.Logger, metrics *observability.Metrics) *CachedOracle {
	return &CachedOracle{
		next:    next,
		rdb:     rdb,
		model:   model,
		ttl:     ttl,
		logger:  observability.OrNop(logger),
		metrics: metrics,
	}
}

// Similarity returns the cached score for (a, b) or computes and stores it.
func (c *CachedOracle) Similarity(ctx context.Context, a, b string) (float64, error) {
	key := c.key(a, b)

	cached, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		if score, perr := strconv.ParseFloat(cached, 64); perr == nil {
			c.metrics.ObserveCache("hit")
			return score, nil
		}
		c.logger.Warn("discarding malformed cached similarity", zap.String("key", key))
	case errors.Is(err, redis.Nil):
		c.metrics.ObserveCache("miss")
	default:
		c.metrics.ObserveCache("error")
		c.logger.Warn("similarity cache read failed", zap.Error(err))
	}

	score, err := c.next.Similarity(ctx, a, b)
	if err != nil {
		return 0, err
	}

	if err := c.rdb.Set(ctx, key, strconv.FormatFloat(score, 'f', -1, 64), c.ttl).Err(); err != nil {
		c.logger.Warn("similarity cache write failed", zap.Error(err))
	}
	return score, nil
}

func (c *CachedOracle) key(a, b string) string {
	return cacheKeyPrefix + ingestion.Fingerprint(c.model, a, b)
}
