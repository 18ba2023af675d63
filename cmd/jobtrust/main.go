// Package main provides the jobtrust CLI: the HTTP API server, migrations and offline ranking.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/jobtrust/internal/config"
	"github.com/jonathan/jobtrust/internal/observability"
)

var (
	logJSON  bool
	logDebug bool
)

var rootCmd = &cobra.Command{
	Use:           "jobtrust",
	Short:         "Job posting trust ranking",
	Long:          "jobtrust ranks analyzed job postings by authenticity and relevance to a user's profession and resume, over a REST API or offline.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&logJSON, "json", false, "Log as JSON")
	rootCmd.PersistentFlags().BoolVar(&logDebug, "debug", false, "Enable debug logging")
}

// newLogger builds the process logger; flags add to what the environment asks for.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return observability.NewLogger(cfg.LogJSON || logJSON, cfg.LogDebug || logDebug)
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
