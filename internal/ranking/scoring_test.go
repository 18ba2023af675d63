package ranking

import (
	"context"
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/jobtrust/internal/types"
)

func parsePosting(t *testing.T, raw string) *types.PostingAnalysis {
	t.Helper()
	p := types.NewPostingAnalysis()
	require.NoError(t, json.Unmarshal([]byte(raw), p))
	return p
}

func TestExtractRealScore(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want float64
	}{
		{"real entry", `{"confidence":{"confidences":[{"label":"FAKE","confidence":0.1},{"label":"REAL","confidence":0.9}]}}`, 90},
		{"case insensitive", `{"confidence":{"confidences":[{"label":"real","confidence":0.42}]}}`, 42},
		{"first real wins", `{"confidence":{"confidences":[{"label":"Real","confidence":0.3},{"label":"REAL","confidence":0.8}]}}`, 30},
		{"no real entry", `{"confidence":{"confidences":[{"label":"FAKE","confidence":0.9}]}}`, 0},
		{"bare string", `{"confidence":"REAL"}`, 0},
		{"missing", `{"jobDescription":"x"}`, 0},
		{"confidences not array", `{"confidence":{"confidences":{"label":"REAL"}}}`, 0},
		{"entry without label skipped", `{"confidence":{"confidences":[{"confidence":0.5},{"label":"REAL","confidence":0.6}]}}`, 60},
		{"non numeric value", `{"confidence":{"confidences":[{"label":"REAL","confidence":"high"}]}}`, 0},
		{"clamped high", `{"confidence":{"confidences":[{"label":"REAL","confidence":1.7}]}}`, 100},
		{"clamped low", `{"confidence":{"confidences":[{"label":"REAL","confidence":-0.2}]}}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ExtractRealScore(parsePosting(t, tt.raw)), 1e-9)
		})
	}
}

func TestClassifyRisk(t *testing.T) {
	safe, risk := ClassifyRisk(50)
	assert.True(t, safe)
	assert.Equal(t, types.RiskLow, risk)

	safe, risk = ClassifyRisk(49.99)
	assert.False(t, safe)
	assert.Equal(t, types.RiskHigh, risk)
}

func TestPolicy_Score(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name          string
		base          float64
		relevant      bool
		want          float64
		wantPenalized bool
	}{
		{"boost", 80, true, 96, false},
		{"boost capped", 90, true, 100, false},
		{"penalty", 70, false, 42, true},
		{"threshold is exclusive", 60, false, 60, false},
		{"low stays", 30, false, 30, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, penalized := p.Score(tt.base, tt.relevant)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.Equal(t, tt.wantPenalized, penalized)
		})
	}
}

func TestPolicy_Validate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())
	assert.Error(t, Policy{BoostMultiplier: 0.5, PenaltyThreshold: 60}.Validate())
	assert.Error(t, Policy{BoostMultiplier: math.Inf(1), PenaltyThreshold: 60}.Validate())
	assert.Error(t, Policy{BoostMultiplier: 1.2, PenaltyThreshold: 120}.Validate())
}

func TestBlend(t *testing.T) {
	assert.InDelta(t, 74.0, Blend(90, 50), 1e-9)
	assert.InDelta(t, 76.0, Blend(100, 40), 1e-9)
}

func TestBuildAlert(t *testing.T) {
	assert.Nil(t, BuildAlert("Developer", false, true))

	alert := BuildAlert(" Data Scientist ", true, true)
	require.NotNil(t, alert)
	assert.Equal(t, "Authentic job, but might not align with a data scientist role.", *alert)

	alert = BuildAlert("", true, true)
	require.NotNil(t, alert)
	assert.Equal(t, "Authentic job, but might not align with a student role.", *alert)

	alert = BuildAlert("Developer", true, false)
	require.NotNil(t, alert)
	assert.Equal(t, AlertCritical, *alert)

	alert = BuildAlert("Developer", false, false)
	require.NotNil(t, alert)
	assert.Equal(t, AlertCritical, *alert)
}

func TestKeywordStrategy(t *testing.T) {
	s := KeywordStrategy{}
	ctx := context.Background()

	tests := []struct {
		name        string
		profession  string
		description string
		want        bool
	}{
		{"developer tech keyword", "senior developer", "We build web apps in React", true},
		{"engineer no match", "engineer", "Hiring a nurse for night shifts", false},
		{"student internship", "student", "Summer Internship program", true},
		{"student entry level", "student", "An ENTRY LEVEL role", true},
		{"other profession token", "data scientist", "Looking for a Scientist with ML background", true},
		{"short tokens ignored", "ux pm", "ux pm role", false},
		{"empty description", "developer", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Classify(ctx, nil, tt.profession, tt.description)
			assert.Equal(t, tt.want, got.Relevant)
			assert.Nil(t, got.Score)
		})
	}
}

func TestSemanticStrategy(t *testing.T) {
	fixed := func(score float64) SimilarityFunc {
		return func(context.Context, string, string) float64 { return score }
	}
	s := SemanticStrategy{}

	got := s.Classify(context.Background(), fixed(10.1), "developer", "x")
	assert.True(t, got.Relevant)
	require.NotNil(t, got.Score)
	assert.Equal(t, 10.1, *got.Score)

	got = s.Classify(context.Background(), fixed(10), "developer", "x")
	assert.False(t, got.Relevant)
}

func TestStrategyByName(t *testing.T) {
	s, err := StrategyByName("")
	require.NoError(t, err)
	assert.Equal(t, StrategySemantic, s.Name())

	s, err = StrategyByName(" Keyword ")
	require.NoError(t, err)
	assert.Equal(t, StrategyKeyword, s.Name())

	_, err = StrategyByName("magic")
	assert.Error(t, err)
}

func TestNormalizeProfession(t *testing.T) {
	assert.Equal(t, "student", NormalizeProfession(""))
	assert.Equal(t, "student", NormalizeProfession("   "))
	assert.Equal(t, "developer", NormalizeProfession(" Developer "))
}
