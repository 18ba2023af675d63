package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/jobtrust/internal/config"
	"github.com/jonathan/jobtrust/internal/observability"
	"github.com/jonathan/jobtrust/internal/schemas"
	"github.com/jonathan/jobtrust/internal/types"
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank a batch of posting analyses offline",
	Long:  "Reads a JSON batch (an array, or an object with an analyses field), scores every posting for the given profession and resume, and writes the ranked evaluations as JSON.",
	RunE:  runRank,
}

// rankOptions are the inputs of one offline ranking run.
type rankOptions struct {
	InputPath  string
	OutputPath string
	Profession string
	ResumePath string
	Backend    string
	Strategy   string
	PolicyPath string
	Verbose    bool
}

var rankFlags rankOptions

func init() {
	rankCmd.Flags().StringVarP(&rankFlags.InputPath, "in", "i", "", "Path to input batch JSON file (required)")
	rankCmd.Flags().StringVarP(&rankFlags.OutputPath, "out", "o", "", "Path to output JSON file (default stdout)")
	rankCmd.Flags().StringVarP(&rankFlags.Profession, "profession", "p", "", "Profession to rank for (overrides the batch's profession)")
	rankCmd.Flags().StringVarP(&rankFlags.ResumePath, "resume", "r", "", "Path to a plain-text resume applied to postings without one")
	rankCmd.Flags().StringVar(&rankFlags.Backend, "backend", "", "Similarity backend: keyword, onnx or gemini (overrides SIMILARITY_BACKEND)")
	rankCmd.Flags().StringVar(&rankFlags.Strategy, "strategy", "", "Relevance strategy: semantic or keyword (overrides RELEVANCE_STRATEGY)")
	rankCmd.Flags().StringVar(&rankFlags.PolicyPath, "policy", "", "Path to a YAML or JSON scoring policy (overrides POLICY_FILE)")
	rankCmd.Flags().BoolVarP(&rankFlags.Verbose, "verbose", "v", false, "Print a summary box per evaluation")

	if err := rankCmd.MarkFlagRequired("in"); err != nil {
		panic(fmt.Sprintf("failed to mark in flag as required: %v", err))
	}

	rootCmd.AddCommand(rankCmd)
}

func runRank(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	return rankFile(cmd.Context(), cfg, rankFlags, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// rankFile runs one offline ranking. Evaluations go to opts.OutputPath, or stdout when unset;
// verbose summaries go wherever the JSON does not.
func rankFile(ctx context.Context, cfg *config.Config, opts rankOptions, stdout, stderr io.Writer) error {
	if opts.Backend != "" {
		cfg.SimilarityBackend = opts.Backend
	}
	if opts.Strategy != "" {
		cfg.RelevanceStrategy = opts.Strategy
	}
	if opts.PolicyPath != "" {
		cfg.PolicyFile = opts.PolicyPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	content, err := os.ReadFile(opts.InputPath)
	if err != nil {
		return fmt.Errorf("failed to read input file %s: %w", opts.InputPath, err)
	}
	req, err := schemas.DecodeRankRequest(content)
	if err != nil {
		return fmt.Errorf("invalid input %s: %w", opts.InputPath, err)
	}

	profession := opts.Profession
	if profession == "" && req.Profession != nil {
		profession = *req.Profession
	}
	resume := ""
	if req.ResumeText != nil {
		resume = *req.ResumeText
	}
	if opts.ResumePath != "" {
		raw, err := os.ReadFile(opts.ResumePath)
		if err != nil {
			return fmt.Errorf("failed to read resume file %s: %w", opts.ResumePath, err)
		}
		resume = string(raw)
	}
	batch, err := withResume(req.Analyses, resume)
	if err != nil {
		return err
	}

	ranker, sim, err := buildRanker(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer func() { _ = sim.Close() }()

	report := ranker.RankDetailed(ctx, batch, types.UserContext{Profession: profession})
	if len(report.Skips) > 0 {
		logger.Warn("some postings were skipped", zap.Int("skipped", len(report.Skips)), zap.Int("ranked", len(report.Evaluations)))
	}

	jsonOutput, err := json.MarshalIndent(report.Evaluations, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal evaluations to JSON: %w", err)
	}
	jsonOutput = append(jsonOutput, '\n')

	summaryOut := stderr
	if opts.OutputPath == "" {
		if _, err := stdout.Write(jsonOutput); err != nil {
			return err
		}
	} else {
		if err := writeOutput(opts.OutputPath, jsonOutput); err != nil {
			return err
		}
		summaryOut = stdout
		logger.Info("evaluations written", zap.String("path", opts.OutputPath), zap.Int("count", len(report.Evaluations)))
	}

	if opts.Verbose {
		p := observability.NewPrinter(summaryOut)
		p.PrintEvaluations(report.Evaluations)
		p.PrintAnalysisStats(batchStats(report.Evaluations))
	}
	return nil
}

// withResume fills resumeText on every object posting that has none.
// Items that are not objects pass through for the ranker to skip.
func withResume(batch []json.RawMessage, resume string) ([]json.RawMessage, error) {
	if resume == "" {
		return batch, nil
	}
	out := make([]json.RawMessage, len(batch))
	for i, raw := range batch {
		out[i] = raw
		p := types.NewPostingAnalysis()
		if err := json.Unmarshal(raw, p); err != nil {
			continue
		}
		if existing, err := p.Text(types.FieldResumeText); err != nil || existing != "" {
			continue
		}
		if err := p.Set(types.FieldResumeText, resume); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		merged, err := p.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out[i] = merged
	}
	return out, nil
}

// batchStats counts the classifier verdicts of the ranked postings.
func batchStats(evals []types.Evaluation) types.AnalysisStats {
	var fake, genuine int
	for _, e := range evals {
		switch types.NormalizeLabel(e.Posting.ConfidenceLabel()) {
		case "fake":
			fake++
		case "real":
			genuine++
		}
	}
	return types.NewAnalysisStats(len(evals), fake, genuine)
}

func writeOutput(path string, data []byte) error {
	outputDir := filepath.Dir(path)
	if outputDir != "" && outputDir != "." {
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write output file %s: %w", path, err)
	}
	return nil
}
