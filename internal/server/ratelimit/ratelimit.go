// Package ratelimit applies tiered per-IP rate limits to the HTTP API.
package ratelimit

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/httprate"
	"go.uber.org/zap"
)

// Limiter routes each request to the limiter of its endpoint tier.
type Limiter struct {
	cfg    Config
	logger *zap.Logger
}

// NewLimiter creates a limiter. A nil logger discards logs.
func NewLimiter(cfg Config, logger *zap.Logger) *Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{cfg: cfg, logger: logger}
}

// Middleware enforces the limits. Each call creates fresh counters.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	if !l.cfg.Enabled {
		return next
	}

	limited := make(map[Tier]http.Handler, len(l.cfg.Limits))
	for tier, limit := range l.cfg.Limits {
		if limit <= 0 {
			continue
		}
		limited[tier] = httprate.Limit(limit, l.cfg.Window,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(l.limitHandler(tier)),
		)(next)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tier := MatchEndpoint(r.URL.Path, r.Method, l.cfg.Endpoints)
		if h, ok := limited[tier]; ok {
			h.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *Limiter) limitHandler(tier Tier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l.logger.Warn("rate limit exceeded",
			zap.String("tier", string(tier)),
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"message": "Rate limit exceeded. Please try again later.",
		})
	}
}
