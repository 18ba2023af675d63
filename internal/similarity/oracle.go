// Package similarity scores how semantically close two texts are, on a 0–100 scale.
//
// The ranking engine consumes the Oracle interface only; the backends here are a
// keyword-overlap heuristic, a local ONNX sentence-embedding model and hosted Gemini
// embeddings, optionally behind a Redis cache.
package similarity

import (
	"context"
	"time"

	"github.com/jonathan/jobtrust/internal/observability"
)

// Oracle scores the similarity of two texts. Scores are in [0,100].
// Implementations must be safe for concurrent use.
type Oracle interface {
	Similarity(ctx context.Context, a, b string) (float64, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, a, b string) (float64, error)

// Similarity calls f.
func (f OracleFunc) Similarity(ctx context.Context, a, b string) (float64, error) {
	return f(ctx, a, b)
}

// Backend names a similarity implementation.
type Backend string

// Supported backends
const (
	BackendKeyword Backend = "keyword"
	BackendOnnx    Backend = "onnx"
	BackendGemini  Backend = "gemini"
)

// instrumented records call count, latency and failures of an oracle.
type instrumented struct {
	next    Oracle
	backend string
	metrics *observability.Metrics
}

// Instrument wraps an oracle with prometheus metrics labelled by backend.
func Instrument(next Oracle, backend Backend, metrics *observability.Metrics) Oracle {
	if metrics == nil {
		return next
	}
	return &instrumented{next: next, backend: string(backend), metrics: metrics}
}

func (o *instrumented) Similarity(ctx context.Context, a, b string) (float64, error) {
	start := time.Now()
	score, err := o.next.Similarity(ctx, a, b)
	o.metrics.ObserveOracle(o.backend, time.Since(start), err)
	return score, err
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
