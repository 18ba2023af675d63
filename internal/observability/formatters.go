// Package observability provides logging, metrics and formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/jobtrust/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
	// snippetLength is how much of a job description is shown per evaluation
	snippetLength = 44
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		if len([]rune(line)) > boxWidth-4 {
			line = string([]rune(line)[:boxWidth-7]) + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintEvaluations outputs a summary of the top ranked postings.
func (p *Printer) PrintEvaluations(evals []types.Evaluation) {
	if len(evals) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total postings ranked: %d\n\n", len(evals)))

	count := min(len(evals), maxItemsToShow)
	for i := 0; i < count; i++ {
		e := evals[i]
		desc, _ := e.Posting.Text(types.FieldJobDescription)
		sb.WriteString(fmt.Sprintf("#%d  %s\n", i+1, snippet(desc)))
		sb.WriteString(fmt.Sprintf("    Score: %.1f  Risk: %s", e.PresentedCompositeScore(), e.RiskLevel))
		if e.CVMatchScore != nil {
			sb.WriteString(fmt.Sprintf("  CV: %.1f", types.Round1(*e.CVMatchScore)))
		}
		sb.WriteString("\n")
		if e.RelevanceAlert != nil {
			sb.WriteString(fmt.Sprintf("    ! %s\n", *e.RelevanceAlert))
		}
		if i < count-1 {
			sb.WriteString("\n")
		}
	}

	if len(evals) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more postings", len(evals)-maxItemsToShow))
	}

	p.printBox("RANKED POSTINGS", sb.String())
}

// PrintAnalysisStats outputs the fake/real breakdown of an analysis history.
func (p *Printer) PrintAnalysisStats(stats types.AnalysisStats) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total: %d\n", stats.Total))
	sb.WriteString(fmt.Sprintf("Real:  %d (%.1f%%)\n", stats.Real, stats.RealPercentage))
	sb.WriteString(fmt.Sprintf("Fake:  %d (%.1f%%)", stats.Fake, stats.FakePercentage))
	p.printBox("ANALYSIS HISTORY", sb.String())
}

func snippet(desc string) string {
	desc = strings.Join(strings.Fields(desc), " ")
	if desc == "" {
		return "(no description)"
	}
	runes := []rune(desc)
	if len(runes) > snippetLength {
		return string(runes[:snippetLength-3]) + "..."
	}
	return desc
}
