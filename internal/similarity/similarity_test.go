package similarity

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jonathan/jobtrust/internal/observability"
)

func TestKeywordOracle(t *testing.T) {
	ctx := context.Background()
	o := NewKeywordOracle()

	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "golang backend services", "golang backend services", 100},
		{"subset", "Golang developer", "Senior golang developer building backend services", 100},
		{"partial", "python golang rust", "golang java", 50},
		{"no overlap", "nurse hospital", "golang backend", 0},
		{"stop words only", "the and for", "the and for", 0},
		{"empty", "", "golang", 0},
		{"html", "<p>Golang</p>", "golang", 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := o.Similarity(ctx, tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestKeywordOracle_ThirdsRounded(t *testing.T) {
	got, err := NewKeywordOracle().Similarity(context.Background(), "alpha beta gamma", "alpha delta epsilon")
	require.NoError(t, err)
	assert.InDelta(t, 33.3, got, 1e-9)
}

func TestKeywordOracle_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewKeywordOracle().Similarity(ctx, "a", "b")
	assert.ErrorIs(t, err, context.Canceled)
}

type stubEmbedder struct {
	vectors map[string][]float32
	calls   atomic.Int32
	err     error
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	v, ok := s.vectors[text]
	if !ok {
		return nil, errors.New("unknown text")
	}
	return v, nil
}

func (s *stubEmbedder) ModelID() string { return "stub" }
func (s *stubEmbedder) Close() error    { return nil }

func TestEmbeddingOracle(t *testing.T) {
	ctx := context.Background()
	emb := &stubEmbedder{vectors: map[string][]float32{
		"developer": {1, 0},
		"go job":    {1, 1},
		"opposite":  {-1, 0},
	}}
	o := NewEmbeddingOracle(emb)

	got, err := o.Similarity(ctx, "developer", "go job")
	require.NoError(t, err)
	assert.InDelta(t, round1(100/math.Sqrt2), got, 1e-9)

	got, err = o.Similarity(ctx, "developer", "opposite")
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)

	// cached vectors are reused
	assert.Equal(t, int32(3), emb.calls.Load())

	got, err = o.Similarity(ctx, "", "go job")
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)
	assert.Equal(t, int32(3), emb.calls.Load())
}

func TestEmbeddingOracle_EmbedError(t *testing.T) {
	o := NewEmbeddingOracle(&stubEmbedder{err: errors.New("model down")})
	_, err := o.Similarity(context.Background(), "a text", "b text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model down")
}

func TestCosine(t *testing.T) {
	c, err := Cosine([]float32{1, 0}, []float32{1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, c, 1e-9)

	_, err = Cosine([]float32{1}, []float32{1, 2})
	assert.Error(t, err)

	c, err = Cosine([]float32{0, 0}, []float32{1, 0})
	require.NoError(t, err)
	assert.Equal(t, 0.0, c)
}

func TestMeanPool(t *testing.T) {
	hidden := []float32{
		3, 0,
		0, 4,
		100, 100, // masked out
	}
	out := meanPool(hidden, []int{1, 1, 0}, 2)
	assert.InDelta(t, 0.6, out[0], 1e-6)
	assert.InDelta(t, 0.8, out[1], 1e-6)
}

func TestTruncate(t *testing.T) {
	ids, mask, typeIDs := truncate([]int{101, 5, 6, 7, 102}, []int{1, 1, 1, 1, 1}, nil, 3)
	assert.Equal(t, []int{101, 5, 102}, ids)
	assert.Equal(t, []int{1, 1, 1}, mask)
	assert.Equal(t, []int{0, 0, 0}, typeIDs)
}

func countingOracle(score float64, calls *atomic.Int32) Oracle {
	return OracleFunc(func(_ context.Context, _, _ string) (float64, error) {
		calls.Add(1)
		return score, nil
	})
}

func TestCachedOracle(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	metrics := observability.NewMetrics()
	var calls atomic.Int32
	o := NewCachedOracle(countingOracle(42.5, &calls), rdb, "stub", time.Minute, nil, metrics)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		got, err := o.Similarity(ctx, "a", "b")
		require.NoError(t, err)
		assert.Equal(t, 42.5, got)
	}
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.OracleCacheTotal.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.OracleCacheTotal.WithLabelValues("miss")))

	// argument order matters
	_, err := o.Similarity(ctx, "b", "a")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())

	key := o.key("a", "b")
	assert.True(t, mr.Exists(key))
	assert.Greater(t, mr.TTL(key), time.Duration(0))
}

func TestCachedOracle_RedisDownBypasses(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	core, logs := observer.New(zap.WarnLevel)
	var calls atomic.Int32
	o := NewCachedOracle(countingOracle(10, &calls), rdb, "stub", time.Minute, zap.New(core), nil)

	got, err := o.Similarity(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.Equal(t, 10.0, got)
	assert.Equal(t, int32(1), calls.Load())
	assert.NotZero(t, logs.FilterMessage("similarity cache read failed").Len())
}

func TestInstrument(t *testing.T) {
	metrics := observability.NewMetrics()
	failing := OracleFunc(func(_ context.Context, _, _ string) (float64, error) {
		return 0, errors.New("boom")
	})
	o := Instrument(failing, BackendGemini, metrics)

	_, err := o.Similarity(context.Background(), "a", "b")
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.OracleCallsTotal.WithLabelValues("gemini")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.OracleFailuresTotal.WithLabelValues("gemini")))

	kw := NewKeywordOracle()
	assert.Same(t, kw, Instrument(kw, BackendKeyword, nil))
}

func TestNew_FallsBackToKeyword(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	logger := zap.New(core)

	svc, err := New(context.Background(), Options{Backend: BackendGemini}, logger, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	assert.Equal(t, BackendKeyword, svc.Backend)
	assert.IsType(t, &KeywordOracle{}, svc.Oracle)
	assert.Equal(t, 1, logs.FilterMessage("gemini similarity backend unavailable, falling back to keyword overlap").Len())

	svc, err = New(context.Background(), Options{Backend: BackendOnnx}, logger, nil)
	require.NoError(t, err)
	assert.Equal(t, BackendKeyword, svc.Backend)
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New(context.Background(), Options{Backend: "bert"}, nil, nil)
	require.Error(t, err)
}

func TestNew_WithRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	svc, err := New(context.Background(), Options{
		Backend:  BackendKeyword,
		RedisURL: "redis://" + mr.Addr(),
		CacheTTL: time.Minute,
	}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	assert.IsType(t, &CachedOracle{}, svc.Oracle)
	got, err := svc.Oracle.Similarity(context.Background(), "golang", "golang")
	require.NoError(t, err)
	assert.Equal(t, 100.0, got)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
