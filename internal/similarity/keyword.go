package similarity

import (
	"context"
	"strings"
	"unicode"

	"github.com/jonathan/jobtrust/internal/ingestion"
	"github.com/jonathan/jobtrust/internal/types"
)

// stopWords are dropped before computing overlap.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "you": {}, "our": {}, "are": {},
	"will": {}, "this": {}, "that": {}, "have": {}, "from": {}, "your": {}, "who": {},
	"all": {}, "can": {}, "not": {}, "but": {}, "was": {}, "has": {}, "its": {},
	"into": {}, "able": {}, "work": {}, "role": {}, "job": {}, "team": {},
}

// KeywordOracle scores texts by the overlap of their significant words.
// It needs no model and is the fallback when no embedding backend is available.
type KeywordOracle struct{}

// NewKeywordOracle returns a KeywordOracle.
func NewKeywordOracle() *KeywordOracle {
	return &KeywordOracle{}
}

// Similarity returns |A∩B| / min(|A|,|B|) × 100 over the word sets of a and b,
// rounded to one decimal. Either side having no significant words scores 0.
func (KeywordOracle) Similarity(ctx context.Context, a, b string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0, nil
	}

	small, large := setA, setB
	if len(small) > len(large) {
		small, large = large, small
	}
	shared := 0
	for w := range small {
		if _, ok := large[w]; ok {
			shared++
		}
	}
	return types.Round1(float64(shared) / float64(len(small)) * 100), nil
}

// wordSet lower-cases, splits on non-alphanumerics and drops short and stop words.
func wordSet(text string) map[string]struct{} {
	text = strings.ToLower(ingestion.Prepare(text))
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if len([]rune(w)) <= 2 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		set[w] = struct{}{}
	}
	return set
}
