// Package ranking scores analyzed job postings for a user and orders them so that safe,
// relevant, high-scoring postings come first.
package ranking

import (
	"fmt"
	"math"
	"strings"

	"github.com/jonathan/jobtrust/internal/types"
)

// Fixed policy constants
const (
	MaxScore = 100.0

	// SafeThreshold is the minimum authenticity score of a safe posting.
	SafeThreshold = 50.0
	// RelevanceThreshold is the similarity a description must exceed to be relevant.
	RelevanceThreshold = 10.0
	// PenaltyFactor scales authentic-but-irrelevant postings.
	PenaltyFactor = 0.6

	authenticityWeight = 0.60
	cvMatchWeight      = 0.40

	defaultBoostMultiplier  = 1.2
	defaultPenaltyThreshold = 60.0
)

// Alert messages
const (
	AlertCritical = "CRITICAL: Potential Fake Job detected."
	alertMismatch = "Authentic job, but might not align with a %s role."

	defaultProfession = "student"
)

// Policy holds the tunable knobs of the composite scorer.
type Policy struct {
	BoostMultiplier  float64 `mapstructure:"boost-multiplier"`
	PenaltyThreshold float64 `mapstructure:"penalty-threshold"`
}

// DefaultPolicy returns the standard policy: ×1.2 boost, penalty above 60.
func DefaultPolicy() Policy {
	return Policy{
		BoostMultiplier:  defaultBoostMultiplier,
		PenaltyThreshold: defaultPenaltyThreshold,
	}
}

// Validate checks the knobs are usable.
func (p Policy) Validate() error {
	if p.BoostMultiplier < 1 || math.IsNaN(p.BoostMultiplier) || math.IsInf(p.BoostMultiplier, 0) {
		return fmt.Errorf("boost multiplier must be a finite number >= 1, got %v", p.BoostMultiplier)
	}
	if p.PenaltyThreshold < 0 || p.PenaltyThreshold > MaxScore || math.IsNaN(p.PenaltyThreshold) {
		return fmt.Errorf("penalty threshold must be within [0,100], got %v", p.PenaltyThreshold)
	}
	return nil
}

// Score returns the personalized score for a posting and whether the mismatch
// penalty was applied.
func (p Policy) Score(base float64, relevant bool) (personalized float64, penalized bool) {
	switch {
	case relevant:
		return math.Min(base*p.BoostMultiplier, MaxScore), false
	case base > p.PenaltyThreshold:
		return base * PenaltyFactor, true
	default:
		return base, false
	}
}

// Blend mixes the personalized score with the resume match.
func Blend(personalized, cvMatch float64) float64 {
	return authenticityWeight*personalized + cvMatchWeight*cvMatch
}

// ClassifyRisk thresholds the authenticity score.
func ClassifyRisk(base float64) (bool, types.RiskLevel) {
	if base >= SafeThreshold {
		return true, types.RiskLow
	}
	return false, types.RiskHigh
}

// BuildAlert returns the user-facing alert, or nil. The unsafe alert always wins.
func BuildAlert(profession string, penalized, safe bool) *string {
	var alert string
	if penalized {
		alert = fmt.Sprintf(alertMismatch, NormalizeProfession(profession))
	}
	if !safe {
		alert = AlertCritical
	}
	if alert == "" {
		return nil
	}
	return &alert
}

// NormalizeProfession lower-cases and trims a profession; blank means "student".
func NormalizeProfession(profession string) string {
	p := strings.ToLower(strings.TrimSpace(profession))
	if p == "" {
		return defaultProfession
	}
	return p
}

// ExtractRealScore reads the "REAL" confidence of the classifier output as a percentage.
// The first entry labelled REAL (any case) wins. Anything missing or malformed scores 0.
func ExtractRealScore(p *types.PostingAnalysis) float64 {
	conf, ok := p.Value(types.FieldConfidence).(map[string]any)
	if !ok {
		return 0
	}
	entries, ok := conf[types.FieldConfidences].([]any)
	if !ok {
		return 0
	}

	for _, raw := range entries {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		label, ok := entry[types.FieldLabel].(string)
		if !ok || !strings.EqualFold(label, "REAL") {
			continue
		}
		value, ok := entry[types.FieldConfidence].(float64)
		if !ok {
			return 0
		}
		return clamp(value * 100)
	}
	return 0
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > MaxScore {
		return MaxScore
	}
	return v
}
