package ranking

import (
	"context"
	"fmt"
	"strings"
)

// SimilarityFunc is a similarity lookup that never fails; errors already map to 0.
type SimilarityFunc func(ctx context.Context, a, b string) float64

// Relevance is the outcome of matching a description against a profession.
type Relevance struct {
	Relevant bool
	// Score is the profession match strength, nil for strategies that produce none.
	Score *float64
}

// RelevanceStrategy decides whether a job description fits a profession.
// profession is already normalized (lower-case, never blank).
type RelevanceStrategy interface {
	Name() string
	Classify(ctx context.Context, sim SimilarityFunc, profession, description string) Relevance
}

// Strategy names
const (
	StrategySemantic = "semantic"
	StrategyKeyword  = "keyword"
)

// StrategyByName returns the named relevance strategy.
func StrategyByName(name string) (RelevanceStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case StrategySemantic, "":
		return SemanticStrategy{}, nil
	case StrategyKeyword:
		return KeywordStrategy{}, nil
	default:
		return nil, fmt.Errorf("unknown relevance strategy %q", name)
	}
}

// SemanticStrategy asks the similarity oracle how close profession and description are.
type SemanticStrategy struct{}

// Name implements RelevanceStrategy.
func (SemanticStrategy) Name() string { return StrategySemantic }

// Classify implements RelevanceStrategy. Relevant iff the score exceeds 10.
func (SemanticStrategy) Classify(ctx context.Context, sim SimilarityFunc, profession, description string) Relevance {
	score := sim(ctx, profession, description)
	return Relevance{Relevant: score > RelevanceThreshold, Score: &score}
}

var (
	techKeywords    = []string{"software", "developer", "engineer", "react", "node", "python", "java", "web", "coding"}
	studentKeywords = []string{"intern", "internship", "fresher", "graduate", "entry level", "student"}
)

// KeywordStrategy matches profession-specific keywords in the description. It needs no oracle.
type KeywordStrategy struct{}

// Name implements RelevanceStrategy.
func (KeywordStrategy) Name() string { return StrategyKeyword }

// Classify implements RelevanceStrategy.
func (KeywordStrategy) Classify(_ context.Context, _ SimilarityFunc, profession, description string) Relevance {
	desc := strings.ToLower(description)
	for _, kw := range keywordsFor(profession) {
		if strings.Contains(desc, kw) {
			return Relevance{Relevant: true}
		}
	}
	return Relevance{}
}

func keywordsFor(profession string) []string {
	profession = strings.ToLower(profession)
	switch {
	case strings.Contains(profession, "developer"), strings.Contains(profession, "engineer"):
		return techKeywords
	case strings.Contains(profession, "student"):
		return studentKeywords
	}

	var tokens []string
	for _, tok := range strings.Fields(profession) {
		if len([]rune(tok)) > 3 {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}
