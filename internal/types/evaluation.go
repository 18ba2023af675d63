//nolint:revive // types is a standard Go package name pattern
package types

import (
	"math"
)

// RiskLevel is the coarse safety classification of a posting.
type RiskLevel string

// Risk levels
const (
	RiskLow  RiskLevel = "LOW"
	RiskHigh RiskLevel = "HIGH"
)

// Keys added to each posting by the ranking engine.
const (
	FieldBaseRealScore     = "base_real_score"
	FieldPersonalizedScore = "personalized_score"
	FieldCompositeScore    = "composite_score"
	FieldCVMatchScore      = "cv_match_score"
	FieldIsRelevant        = "is_relevant"
	FieldIsSafe            = "is_safe"
	FieldRelevanceAlert    = "relevance_alert"
	FieldRiskLevel         = "risk_level"
	FieldUserProfession    = "user_profession"
)

// UserContext is what the ranking engine knows about the requesting user.
type UserContext struct {
	// Profession as stored for the user. Empty means the user never set one.
	Profession string
}

// Evaluation is the ranking engine's verdict on one posting.
// Scores are kept at full precision; they are rounded to one decimal only when encoded.
type Evaluation struct {
	Posting           *PostingAnalysis
	BaseRealScore     float64
	PersonalizedScore float64
	CompositeScore    float64
	CVMatchScore      *float64
	IsRelevant        bool
	IsSafe            bool
	RelevanceAlert    *string
	RiskLevel         RiskLevel
	UserProfession    *string
}

// PresentedCompositeScore is the composite score as the user sees it.
func (e *Evaluation) PresentedCompositeScore() float64 {
	return Round1(e.CompositeScore)
}

// MarshalJSON encodes the original posting with the computed fields merged in.
// Computed keys overwrite same-named input keys in place; new keys are appended.
func (e Evaluation) MarshalJSON() ([]byte, error) {
	out := e.Posting.Clone()

	var cv *float64
	if e.CVMatchScore != nil {
		rounded := Round1(*e.CVMatchScore)
		cv = &rounded
	}

	fields := []struct {
		key   string
		value any
	}{
		{FieldBaseRealScore, Round1(e.BaseRealScore)},
		{FieldPersonalizedScore, Round1(e.PersonalizedScore)},
		{FieldCompositeScore, Round1(e.CompositeScore)},
		{FieldCVMatchScore, cv},
		{FieldIsRelevant, e.IsRelevant},
		{FieldIsSafe, e.IsSafe},
		{FieldRelevanceAlert, e.RelevanceAlert},
		{FieldRiskLevel, e.RiskLevel},
		{FieldUserProfession, e.UserProfession},
	}
	for _, f := range fields {
		if err := out.Set(f.key, f.value); err != nil {
			return nil, err
		}
	}
	return out.MarshalJSON()
}

// Round1 rounds to one decimal place, half away from zero.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// EchoProfession returns the profession exactly as stored: nil when unset.
func EchoProfession(profession string) *string {
	if profession == "" {
		return nil
	}
	p := profession
	return &p
}
