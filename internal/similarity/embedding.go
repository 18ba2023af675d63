package similarity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/jonathan/jobtrust/internal/ingestion"
	"github.com/jonathan/jobtrust/internal/types"
)

// Embedder turns text into a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	ModelID() string
	Close() error
}

// defaultVectorCacheSize bounds the in-memory vector cache of an EmbeddingOracle.
const defaultVectorCacheSize = 4096

// EmbeddingOracle scores texts by the cosine similarity of their embeddings.
type EmbeddingOracle struct {
	embedder Embedder

	mu       sync.RWMutex
	memCache map[string][]float32
	maxCache int
}

// NewEmbeddingOracle wraps an embedder.
func NewEmbeddingOracle(embedder Embedder) *EmbeddingOracle {
	return &EmbeddingOracle{
		embedder: embedder,
		memCache: make(map[string][]float32),
		maxCache: defaultVectorCacheSize,
	}
}

// ModelID returns the underlying model identifier.
func (o *EmbeddingOracle) ModelID() string {
	return o.embedder.ModelID()
}

// Close releases the embedder.
func (o *EmbeddingOracle) Close() error {
	return o.embedder.Close()
}

// Similarity returns max(cosine, 0) × 100 rounded to one decimal.
// Empty text on either side scores 0 without touching the model.
func (o *EmbeddingOracle) Similarity(ctx context.Context, a, b string) (float64, error) {
	a = ingestion.Prepare(a)
	b = ingestion.Prepare(b)
	if a == "" || b == "" {
		return 0, nil
	}

	va, err := o.vector(ctx, a)
	if err != nil {
		return 0, err
	}
	vb, err := o.vector(ctx, b)
	if err != nil {
		return 0, err
	}

	cos, err := Cosine(va, vb)
	if err != nil {
		return 0, err
	}
	return clampScore(types.Round1(math.Max(cos, 0) * 100)), nil
}

func (o *EmbeddingOracle) vector(ctx context.Context, text string) ([]float32, error) {
	o.mu.RLock()
	vec, ok := o.memCache[text]
	o.mu.RUnlock()
	if ok {
		return vec, nil
	}

	vec, err := o.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed text: %w", err)
	}

	o.mu.Lock()
	if len(o.memCache) >= o.maxCache {
		// reset when full
		o.memCache = make(map[string][]float32)
	}
	o.memCache[text] = cloneVector(vec)
	o.mu.Unlock()
	return vec, nil
}

// Cosine returns the cosine similarity of two vectors.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector length mismatch: %d != %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, errors.New("empty vectors")
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}

func cloneVector(vec []float32) []float32 {
	out := make([]float32, len(vec))
	copy(out, vec)
	return out
}
