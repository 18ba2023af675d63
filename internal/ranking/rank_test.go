package ranking

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jonathan/jobtrust/internal/observability"
	"github.com/jonathan/jobtrust/internal/types"
)

// stubOracle returns fixed scores keyed by the first argument and counts calls.
type stubOracle struct {
	mu     sync.Mutex
	scores map[string]float64
	calls  int
	err    error
}

func (s *stubOracle) Similarity(_ context.Context, a, _ string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	return s.scores[a], nil
}

func (s *stubOracle) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func item(real float64, description, resume string) string {
	m := map[string]any{
		"confidence": map[string]any{
			"label": "REAL",
			"confidences": []any{
				map[string]any{"label": "FAKE", "confidence": 1 - real},
				map[string]any{"label": "REAL", "confidence": real},
			},
		},
		"jobDescription": description,
	}
	if resume != "" {
		m["resumeText"] = resume
	}
	b, _ := json.Marshal(m)
	return string(b)
}

func rawBatch(items ...string) []json.RawMessage {
	out := make([]json.RawMessage, len(items))
	for i, it := range items {
		out[i] = json.RawMessage(it)
	}
	return out
}

func field(t *testing.T, e types.Evaluation, key string) any {
	t.Helper()
	out, err := json.Marshal(e)
	require.NoError(t, err)
	p := types.NewPostingAnalysis()
	require.NoError(t, json.Unmarshal(out, p))
	return p.Value(key)
}

func TestRank_EndToEndScenario(t *testing.T) {
	oracle := &stubOracle{scores: map[string]float64{
		"developer":   80, // profession vs description
		"my resume":   40, // resume vs description
		"unsafe desc": 0,
	}}
	r := NewRanker(oracle)

	batch := rawBatch(
		item(0.2, "Remote crypto job", "my resume"),
		item(0.9, "Go developer wanted", "my resume"),
	)
	evals := r.RankJSON(context.Background(), batch, types.UserContext{Profession: "Developer"})
	require.Len(t, evals, 2)

	a, b := evals[0], evals[1]
	assert.InDelta(t, 90, a.BaseRealScore, 1e-9)
	assert.InDelta(t, 100, a.PersonalizedScore, 1e-9)
	assert.InDelta(t, 76, a.CompositeScore, 1e-9)
	require.NotNil(t, a.CVMatchScore)
	assert.InDelta(t, 40, *a.CVMatchScore, 1e-9)
	assert.True(t, a.IsSafe)
	assert.True(t, a.IsRelevant)
	assert.Nil(t, a.RelevanceAlert)
	assert.Equal(t, types.RiskLow, a.RiskLevel)
	require.NotNil(t, a.UserProfession)
	assert.Equal(t, "Developer", *a.UserProfession)

	assert.False(t, b.IsSafe)
	assert.Equal(t, types.RiskHigh, b.RiskLevel)
	require.NotNil(t, b.RelevanceAlert)
	assert.Equal(t, AlertCritical, *b.RelevanceAlert)
	assert.Nil(t, b.CVMatchScore)
	assert.InDelta(t, b.PersonalizedScore, b.CompositeScore, 1e-9)

	assert.Equal(t, 76.0, field(t, a, types.FieldCompositeScore))
	assert.Equal(t, 40.0, field(t, a, types.FieldCVMatchScore))
	assert.Equal(t, "Go developer wanted", field(t, a, types.FieldJobDescription))
}

func TestRank_BoostAndPenaltyLaws(t *testing.T) {
	oracle := &stubOracle{scores: map[string]float64{"developer": 50}}
	r := NewRanker(oracle)
	user := types.UserContext{Profession: "developer"}

	evals := r.RankJSON(context.Background(), rawBatch(item(0.8, "relevant", "")), user)
	require.Len(t, evals, 1)
	assert.InDelta(t, 96, evals[0].PersonalizedScore, 1e-9)
	assert.Nil(t, evals[0].RelevanceAlert)

	oracle.scores["developer"] = 5
	evals = r.RankJSON(context.Background(), rawBatch(item(0.7, "irrelevant", "")), user)
	require.Len(t, evals, 1)
	assert.InDelta(t, 42, evals[0].PersonalizedScore, 1e-9)
	assert.False(t, evals[0].IsRelevant)
	require.NotNil(t, evals[0].RelevanceAlert)
	assert.Equal(t, "Authentic job, but might not align with a developer role.", *evals[0].RelevanceAlert)
}

func TestRank_UnsafeOverride(t *testing.T) {
	for _, score := range []float64{0, 80} {
		oracle := &stubOracle{scores: map[string]float64{"student": score}}
		evals := NewRanker(oracle).RankJSON(context.Background(), rawBatch(item(0.3, "some job", "resume")), types.UserContext{})
		require.Len(t, evals, 1)
		require.NotNil(t, evals[0].RelevanceAlert)
		assert.Equal(t, AlertCritical, *evals[0].RelevanceAlert)
		assert.Equal(t, types.RiskHigh, evals[0].RiskLevel)
		assert.Nil(t, evals[0].CVMatchScore)
		assert.Nil(t, evals[0].UserProfession)
	}
}

func TestRank_Invariants(t *testing.T) {
	oracle := &stubOracle{scores: map[string]float64{"developer": 30, "cv": 90}}
	r := NewRanker(oracle)

	var items []string
	for i := 0; i <= 10; i++ {
		resume := ""
		if i%2 == 0 {
			resume = "cv"
		}
		items = append(items, item(float64(i)/10, "desc", resume))
	}
	evals := r.RankJSON(context.Background(), rawBatch(items...), types.UserContext{Profession: "Developer"})
	require.Len(t, evals, len(items))

	for _, e := range evals {
		for _, s := range []float64{e.BaseRealScore, e.PersonalizedScore, e.CompositeScore} {
			assert.GreaterOrEqual(t, s, 0.0)
			assert.LessOrEqual(t, s, 100.0)
		}
		assert.Equal(t, e.BaseRealScore >= 50, e.IsSafe)
		assert.Equal(t, e.IsSafe, e.RiskLevel == types.RiskLow)
		if e.CVMatchScore == nil {
			assert.Equal(t, e.PersonalizedScore, e.CompositeScore)
		}
	}

	// safe first, then composite descending
	for i := 1; i < len(evals); i++ {
		prev, cur := evals[i-1], evals[i]
		if prev.IsSafe == cur.IsSafe {
			assert.GreaterOrEqual(t, prev.PresentedCompositeScore(), cur.PresentedCompositeScore())
		} else {
			assert.True(t, prev.IsSafe)
		}
	}
}

func TestRank_Idempotent(t *testing.T) {
	oracle := &stubOracle{scores: map[string]float64{"student": 20, "cv": 60}}
	r := NewRanker(oracle, WithConcurrency(8))
	batch := rawBatch(
		item(0.55, "a", "cv"),
		item(0.95, "b", ""),
		item(0.10, "c", "cv"),
		item(0.75, "d", "cv"),
	)

	first, err := json.Marshal(r.RankJSON(context.Background(), batch, types.UserContext{}))
	require.NoError(t, err)
	second, err := json.Marshal(r.RankJSON(context.Background(), batch, types.UserContext{}))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestRank_StableTies(t *testing.T) {
	r := NewRanker(&stubOracle{scores: map[string]float64{}}, WithConcurrency(3))
	batch := rawBatch(
		`{"id":1,"confidence":{"confidences":[{"label":"REAL","confidence":0.5}]}}`,
		`{"id":2,"confidence":{"confidences":[{"label":"REAL","confidence":0.5}]}}`,
		`{"id":3,"confidence":{"confidences":[{"label":"REAL","confidence":0.5}]}}`,
		`{"id":4,"confidence":{"confidences":[{"label":"REAL","confidence":0.5}]}}`,
	)
	evals := r.RankJSON(context.Background(), batch, types.UserContext{})
	require.Len(t, evals, 4)
	for i, e := range evals {
		assert.Equal(t, float64(i+1), e.Posting.Value("id"))
	}
}

func TestSortEvaluations_ComparesPresentedScore(t *testing.T) {
	evals := []types.Evaluation{
		{Posting: types.NewPostingAnalysis(), IsSafe: true, CompositeScore: 70.01},
		{Posting: types.NewPostingAnalysis(), IsSafe: true, CompositeScore: 70.04},
		{Posting: types.NewPostingAnalysis(), IsSafe: false, CompositeScore: 99},
		{Posting: types.NewPostingAnalysis(), IsSafe: true, CompositeScore: 71},
	}
	SortEvaluations(evals)

	assert.Equal(t, 71.0, evals[0].CompositeScore)
	// 70.01 and 70.04 both present as 70.0, so input order holds
	assert.Equal(t, 70.01, evals[1].CompositeScore)
	assert.Equal(t, 70.04, evals[2].CompositeScore)
	assert.False(t, evals[3].IsSafe)
}

func TestRank_EmptyBatchMakesNoCalls(t *testing.T) {
	oracle := &stubOracle{}
	r := NewRanker(oracle)

	evals := r.RankJSON(context.Background(), nil, types.UserContext{Profession: "dev"})
	assert.NotNil(t, evals)
	assert.Empty(t, evals)

	evals = r.Rank(context.Background(), []types.PostingAnalysis{}, types.UserContext{})
	assert.Empty(t, evals)
	assert.Equal(t, 0, oracle.Calls())
}

func TestRank_TypedBatch(t *testing.T) {
	oracle := &stubOracle{scores: map[string]float64{"student": 50}}
	batch := []types.PostingAnalysis{
		*parsePosting(t, item(0.6, "internship", "")),
		*parsePosting(t, `{"note":"no fields at all"}`),
	}
	evals := NewRanker(oracle).Rank(context.Background(), batch, types.UserContext{})
	require.Len(t, evals, 2)
	assert.True(t, evals[0].IsSafe)
	assert.InDelta(t, 72, evals[0].PersonalizedScore, 1e-9)
	assert.InDelta(t, 0, evals[1].BaseRealScore, 1e-9)
	assert.False(t, evals[1].IsRelevant)
}

func TestRank_SkipsMalformedItems(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	metrics := observability.NewMetrics()
	oracle := &stubOracle{scores: map[string]float64{}}
	r := NewRanker(oracle, WithLogger(zap.New(core)), WithMetrics(metrics))

	batch := rawBatch(
		`"just a string"`,
		`[1,2,3]`,
		`{"jobDescription": 42}`,
		`{"resumeText": {"nested": true}}`,
		`{"jobDescription": null, "resumeText": null}`,
		item(0.9, "fine", ""),
	)
	report := r.RankDetailed(context.Background(), batch, types.UserContext{})

	require.Len(t, report.Evaluations, 2)
	require.Len(t, report.Skips, 4)
	assert.Equal(t, SkipNotObject, report.Skips[0].Reason)
	assert.Equal(t, 0, report.Skips[0].Index)
	assert.Equal(t, SkipNotObject, report.Skips[1].Reason)
	assert.Equal(t, SkipInvalidField, report.Skips[2].Reason)
	assert.Equal(t, 2, report.Skips[2].Index)
	assert.Equal(t, SkipInvalidField, report.Skips[3].Reason)

	assert.Equal(t, 4, logs.FilterMessage("skipping posting").Len())
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.RankSkipsTotal.WithLabelValues("not_object")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.RankSkipsTotal.WithLabelValues("invalid_field")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RankBatchesTotal))
}

type panicStrategy struct{}

func (panicStrategy) Name() string { return "panic" }
func (panicStrategy) Classify(context.Context, SimilarityFunc, string, string) Relevance {
	panic("boom")
}

func TestRank_PanicInPipelineSkipsItem(t *testing.T) {
	r := NewRanker(&stubOracle{}, WithStrategy(panicStrategy{}))
	report := r.RankDetailed(context.Background(), rawBatch(item(0.9, "x", "")), types.UserContext{})
	assert.Empty(t, report.Evaluations)
	require.Len(t, report.Skips, 1)
	assert.Equal(t, SkipPanic, report.Skips[0].Reason)
}

func TestRank_OracleFailuresFallBackToZero(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	oracle := &stubOracle{err: errors.New("model offline")}
	r := NewRanker(oracle, WithLogger(zap.New(core)))

	evals := r.RankJSON(context.Background(), rawBatch(item(0.9, "desc", "resume")), types.UserContext{Profession: "developer"})
	require.Len(t, evals, 1)
	assert.False(t, evals[0].IsRelevant)
	require.NotNil(t, evals[0].CVMatchScore)
	assert.Equal(t, 0.0, *evals[0].CVMatchScore)
	assert.InDelta(t, 0.6*54, evals[0].CompositeScore, 1e-9)
	assert.Equal(t, 2, logs.FilterMessage("similarity oracle failed, using 0").Len())
}

func TestRank_OracleOutOfRangeIsClamped(t *testing.T) {
	oracle := &stubOracle{scores: map[string]float64{"developer": 250, "cv": math.NaN()}}
	evals := NewRanker(oracle).RankJSON(context.Background(), rawBatch(item(0.9, "desc", "cv")), types.UserContext{Profession: "developer"})
	require.Len(t, evals, 1)
	assert.True(t, evals[0].IsRelevant)
	require.NotNil(t, evals[0].CVMatchScore)
	assert.Equal(t, 0.0, *evals[0].CVMatchScore)
}

type panickingOracle struct{}

func (panickingOracle) Similarity(context.Context, string, string) (float64, error) {
	panic("oracle exploded")
}

func TestRank_OraclePanicRecovered(t *testing.T) {
	evals := NewRanker(panickingOracle{}).RankJSON(context.Background(), rawBatch(item(0.9, "desc", "")), types.UserContext{})
	require.Len(t, evals, 1)
	assert.False(t, evals[0].IsRelevant)
}

type blockingOracle struct{}

func (blockingOracle) Similarity(context.Context, string, string) (float64, error) {
	time.Sleep(time.Second)
	return 99, nil
}

func TestRank_OracleTimeout(t *testing.T) {
	r := NewRanker(blockingOracle{}, WithOracleTimeout(20*time.Millisecond))

	start := time.Now()
	evals := r.RankJSON(context.Background(), rawBatch(item(0.9, "desc", "")), types.UserContext{})
	require.Len(t, evals, 1)
	assert.False(t, evals[0].IsRelevant)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestRank_EmptyTextSkipsOracle(t *testing.T) {
	oracle := &stubOracle{scores: map[string]float64{}}
	evals := NewRanker(oracle).RankJSON(context.Background(), rawBatch(item(0.9, "", "")), types.UserContext{})
	require.Len(t, evals, 1)
	assert.Nil(t, evals[0].CVMatchScore)
	assert.Equal(t, 0, oracle.Calls())
}

func TestRank_WhitespaceResumeStillMatched(t *testing.T) {
	tests := []struct {
		name   string
		resume string
	}{
		{"spaces", "   "},
		{"newline", "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oracle := &stubOracle{scores: map[string]float64{"developer": 80, tt.resume: 70}}
			evals := NewRanker(oracle).RankJSON(context.Background(),
				rawBatch(item(0.9, "Go backend role", tt.resume)), types.UserContext{Profession: "Developer"})
			require.Len(t, evals, 1)
			require.NotNil(t, evals[0].CVMatchScore)
			assert.InDelta(t, 70, *evals[0].CVMatchScore, 1e-9)
			assert.InDelta(t, 88, evals[0].CompositeScore, 1e-9)
			assert.Equal(t, 2, oracle.Calls())
		})
	}
}

func TestRank_WhitespaceDescriptionReachesOracle(t *testing.T) {
	oracle := &stubOracle{scores: map[string]float64{"developer": 40}}
	evals := NewRanker(oracle).RankJSON(context.Background(), rawBatch(item(0.9, "  ", "")), types.UserContext{Profession: "Developer"})
	require.Len(t, evals, 1)
	assert.True(t, evals[0].IsRelevant)
	assert.Equal(t, 1, oracle.Calls())
}

func TestRank_PresentedBaseScoreAtSafetyBoundary(t *testing.T) {
	evals := NewRanker(&stubOracle{}).RankJSON(context.Background(), rawBatch(item(0.4996, "desc", "")), types.UserContext{})
	require.Len(t, evals, 1)
	// safety is decided on the unrounded score; only the output is rounded
	assert.False(t, evals[0].IsSafe)
	assert.Equal(t, types.RiskHigh, evals[0].RiskLevel)
	assert.Equal(t, 50.0, field(t, evals[0], types.FieldBaseRealScore))
	assert.Equal(t, false, field(t, evals[0], types.FieldIsSafe))
}

func TestRank_KeywordStrategyNeedsNoOracle(t *testing.T) {
	oracle := &stubOracle{}
	r := NewRanker(oracle, WithStrategy(KeywordStrategy{}))
	evals := r.RankJSON(context.Background(), rawBatch(item(0.8, "Python web developer", "")), types.UserContext{Profession: "Software Engineer"})
	require.Len(t, evals, 1)
	assert.True(t, evals[0].IsRelevant)
	assert.InDelta(t, 96, evals[0].PersonalizedScore, 1e-9)
	assert.Equal(t, 0, oracle.Calls())
}

func TestRank_CustomPolicy(t *testing.T) {
	oracle := &stubOracle{scores: map[string]float64{"student": 0}}
	r := NewRanker(oracle, WithPolicy(Policy{BoostMultiplier: 1.5, PenaltyThreshold: 80}))
	evals := r.RankJSON(context.Background(), rawBatch(item(0.7, "desc", "")), types.UserContext{})
	require.Len(t, evals, 1)
	assert.InDelta(t, 70, evals[0].PersonalizedScore, 1e-9)
	assert.Nil(t, evals[0].RelevanceAlert)
}

func TestRank_PreservesPayload(t *testing.T) {
	r := NewRanker(&stubOracle{})
	raw := `{"z":1,"is_safe":"old","confidence":{"confidences":[{"label":"REAL","confidence":0.9}]},"jobDescription":"d"}`
	evals := r.RankJSON(context.Background(), rawBatch(raw), types.UserContext{})
	require.Len(t, evals, 1)

	out, err := json.Marshal(evals[0])
	require.NoError(t, err)
	p := types.NewPostingAnalysis()
	require.NoError(t, json.Unmarshal(out, p))
	keys := p.Keys()
	assert.Equal(t, []string{"z", "is_safe", "confidence", "jobDescription"}, keys[:4])
	assert.Equal(t, true, p.Value("is_safe"))
}
