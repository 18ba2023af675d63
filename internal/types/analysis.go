//nolint:revive // types is a standard Go package name pattern
package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Keys added to a stored analysis when it is handed back to clients.
const (
	FieldAnalysisID = "id"
	FieldTimestamp  = "timestamp"
)

// Analysis is a posting analysis a user saved to their history.
type Analysis struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Label     string
	Payload   *PostingAnalysis
	CreatedAt time.Time
}

// AsPosting returns the saved payload with the analysis id and timestamp merged in.
func (a *Analysis) AsPosting() *PostingAnalysis {
	p := a.Payload.Clone()
	_ = p.Set(FieldAnalysisID, a.ID.String())
	_ = p.Set(FieldTimestamp, a.CreatedAt.UTC().Format(time.RFC3339))
	return p
}

// MarshalJSON encodes the analysis as its flattened payload.
func (a Analysis) MarshalJSON() ([]byte, error) {
	return a.AsPosting().MarshalJSON()
}

// AnalysisStats summarizes the classifier verdicts in a user's history.
type AnalysisStats struct {
	Total          int     `json:"total"`
	Fake           int     `json:"fake"`
	Real           int     `json:"real"`
	FakePercentage float64 `json:"fake_percentage"`
	RealPercentage float64 `json:"real_percentage"`
}

// NewAnalysisStats computes percentages for the given counts.
func NewAnalysisStats(total, fake, real int) AnalysisStats {
	stats := AnalysisStats{Total: total, Fake: fake, Real: real}
	if total == 0 {
		return stats
	}
	stats.FakePercentage = Round1(float64(fake) / float64(total) * 100)
	stats.RealPercentage = Round1(float64(real) / float64(total) * 100)
	return stats
}

// NormalizeLabel lower-cases and trims a classifier label for counting.
func NormalizeLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}
