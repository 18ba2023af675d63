package ranking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/jobtrust/internal/observability"
	"github.com/jonathan/jobtrust/internal/similarity"
	"github.com/jonathan/jobtrust/internal/types"
)

// Defaults for the batch ranker
const (
	DefaultConcurrency   = 4
	DefaultOracleTimeout = 10 * time.Second
)

// SkipReason explains why a posting was dropped from a batch.
type SkipReason string

// Skip reasons
const (
	SkipNotObject    SkipReason = "not_object"
	SkipInvalidField SkipReason = "invalid_field"
	SkipPanic        SkipReason = "panic"
)

// Skip records a posting dropped from a batch.
type Skip struct {
	Index  int
	Reason SkipReason
	Err    error
}

// Report is the full outcome of ranking a batch.
type Report struct {
	Evaluations []types.Evaluation
	Skips       []Skip
}

// itemResult holds either an evaluation or a skip for one batch position.
type itemResult struct {
	eval *types.Evaluation
	skip *Skip
}

// Ranker evaluates and orders batches of posting analyses.
type Ranker struct {
	oracle        similarity.Oracle
	strategy      RelevanceStrategy
	policy        Policy
	concurrency   int
	oracleTimeout time.Duration
	logger        *zap.Logger
	metrics       *observability.Metrics
}

// Option configures a Ranker.
type Option func(*Ranker)

// WithStrategy sets the relevance strategy.
func WithStrategy(s RelevanceStrategy) Option {
	return func(r *Ranker) {
		if s != nil {
			r.strategy = s
		}
	}
}

// WithPolicy sets the scoring policy.
func WithPolicy(p Policy) Option {
	return func(r *Ranker) { r.policy = p }
}

// WithConcurrency bounds how many postings are evaluated at once.
func WithConcurrency(n int) Option {
	return func(r *Ranker) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithOracleTimeout bounds each similarity call.
func WithOracleTimeout(d time.Duration) Option {
	return func(r *Ranker) {
		if d > 0 {
			r.oracleTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Ranker) { r.logger = observability.OrNop(l) }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Ranker) { r.metrics = m }
}

// NewRanker creates a ranker around a similarity oracle. A nil oracle falls back to
// keyword overlap.
func NewRanker(oracle similarity.Oracle, opts ...Option) *Ranker {
	if oracle == nil {
		oracle = similarity.NewKeywordOracle()
	}
	r := &Ranker{
		oracle:        oracle,
		strategy:      SemanticStrategy{},
		policy:        DefaultPolicy(),
		concurrency:   DefaultConcurrency,
		oracleTimeout: DefaultOracleTimeout,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rank evaluates every posting and returns them safest and best first.
// Postings that cannot be evaluated are dropped; Rank never fails as a whole.
func (r *Ranker) Rank(ctx context.Context, batch []types.PostingAnalysis, user types.UserContext) []types.Evaluation {
	postings := make([]*types.PostingAnalysis, len(batch))
	for i := range batch {
		postings[i] = &batch[i]
	}
	return r.run(ctx, postings, nil, user).Evaluations
}

// RankJSON is Rank over raw JSON items. Items that are not JSON objects are skipped.
func (r *Ranker) RankJSON(ctx context.Context, batch []json.RawMessage, user types.UserContext) []types.Evaluation {
	return r.RankDetailed(ctx, batch, user).Evaluations
}

// RankDetailed is RankJSON that also reports skipped items.
func (r *Ranker) RankDetailed(ctx context.Context, batch []json.RawMessage, user types.UserContext) Report {
	postings := make([]*types.PostingAnalysis, len(batch))
	decodeErrs := make([]error, len(batch))
	for i, raw := range batch {
		p, err := decodePosting(raw)
		if err != nil {
			decodeErrs[i] = err
			continue
		}
		postings[i] = p
	}
	return r.run(ctx, postings, decodeErrs, user)
}

func decodePosting(raw json.RawMessage) (*types.PostingAnalysis, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.New("item is not a JSON object")
	}
	p := types.NewPostingAnalysis()
	if err := json.Unmarshal(trimmed, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Ranker) run(ctx context.Context, postings []*types.PostingAnalysis, decodeErrs []error, user types.UserContext) Report {
	if len(postings) == 0 {
		return Report{Evaluations: []types.Evaluation{}}
	}
	start := time.Now()
	defer func() { r.metrics.ObserveBatch(time.Since(start)) }()

	results := make([]itemResult, len(postings))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i := range postings {
		if decodeErrs != nil && decodeErrs[i] != nil {
			results[i] = itemResult{skip: &Skip{Index: i, Reason: SkipNotObject, Err: decodeErrs[i]}}
			continue
		}
		i := i
		g.Go(func() error {
			results[i] = r.evaluate(gctx, i, postings[i], user)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Evaluations: make([]types.Evaluation, 0, len(results))}
	for _, res := range results {
		if res.skip != nil {
			r.logger.Warn("skipping posting",
				zap.Int("item_index", res.skip.Index),
				zap.String("reason", string(res.skip.Reason)),
				zap.Error(res.skip.Err))
			r.metrics.ObserveSkip(string(res.skip.Reason))
			report.Skips = append(report.Skips, *res.skip)
			continue
		}
		r.metrics.ObserveEvaluation(string(res.eval.RiskLevel), res.eval.CompositeScore)
		report.Evaluations = append(report.Evaluations, *res.eval)
	}

	SortEvaluations(report.Evaluations)
	return report
}

// SortEvaluations orders safe postings first, then by presented composite score,
// keeping input order among ties.
func SortEvaluations(evals []types.Evaluation) {
	sort.SliceStable(evals, func(i, j int) bool {
		if evals[i].IsSafe != evals[j].IsSafe {
			return evals[i].IsSafe
		}
		return evals[i].PresentedCompositeScore() > evals[j].PresentedCompositeScore()
	})
}

// evaluate runs the per-posting pipeline. A panic anywhere inside becomes a skip.
func (r *Ranker) evaluate(ctx context.Context, index int, p *types.PostingAnalysis, user types.UserContext) (res itemResult) {
	defer func() {
		if rec := recover(); rec != nil {
			res = itemResult{skip: &Skip{Index: index, Reason: SkipPanic, Err: fmt.Errorf("panic: %v", rec)}}
		}
	}()

	description, err := p.Text(types.FieldJobDescription)
	if err != nil {
		return itemResult{skip: &Skip{Index: index, Reason: SkipInvalidField, Err: err}}
	}
	resume, err := p.Text(types.FieldResumeText)
	if err != nil {
		return itemResult{skip: &Skip{Index: index, Reason: SkipInvalidField, Err: err}}
	}

	profession := NormalizeProfession(user.Profession)
	sim := r.similarityFor(index)

	base := ExtractRealScore(p)
	relevance := r.strategy.Classify(ctx, sim, profession, description)
	safe, risk := ClassifyRisk(base)
	personalized, penalized := r.policy.Score(base, relevance.Relevant)

	// CV match only for safe postings with a resume
	composite := personalized
	var cvMatch *float64
	if safe && resume != "" {
		score := sim(ctx, resume, description)
		cvMatch = &score
		composite = Blend(personalized, score)
	}

	return itemResult{eval: &types.Evaluation{
		Posting:           p.Clone(),
		BaseRealScore:     base,
		PersonalizedScore: personalized,
		CompositeScore:    clamp(composite),
		CVMatchScore:      cvMatch,
		IsRelevant:        relevance.Relevant,
		IsSafe:            safe,
		RelevanceAlert:    BuildAlert(profession, penalized, safe),
		RiskLevel:         risk,
		UserProfession:    types.EchoProfession(user.Profession),
	}}
}

// similarityFor returns a never-failing similarity lookup for one posting.
func (r *Ranker) similarityFor(index int) SimilarityFunc {
	return func(ctx context.Context, a, b string) float64 {
		if a == "" || b == "" {
			return 0
		}
		score, err := r.callOracle(ctx, a, b)
		if err == nil && math.IsNaN(score) {
			err = errors.New("oracle returned NaN")
		}
		if err != nil {
			r.logger.Warn("similarity oracle failed, using 0",
				zap.Int("item_index", index),
				zap.Error(err))
			return 0
		}
		return clamp(score)
	}
}

type oracleResult struct {
	score float64
	err   error
}

// callOracle runs one oracle call under the ranker's timeout, recovering panics.
// The call is abandoned, not awaited, once the timeout fires.
func (r *Ranker) callOracle(ctx context.Context, a, b string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.oracleTimeout)
	defer cancel()

	done := make(chan oracleResult, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- oracleResult{err: fmt.Errorf("oracle panic: %v", rec)}
			}
		}()
		score, err := r.oracle.Similarity(ctx, a, b)
		done <- oracleResult{score: score, err: err}
	}()

	select {
	case res := <-done:
		return res.score, res.err
	case <-ctx.Done():
		return 0, fmt.Errorf("oracle call abandoned: %w", ctx.Err())
	}
}
