package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/jobtrust/internal/config"
	"github.com/jonathan/jobtrust/internal/db"
	"github.com/jonathan/jobtrust/internal/observability"
	"github.com/jonathan/jobtrust/internal/ranking"
	"github.com/jonathan/jobtrust/internal/server"
	"github.com/jonathan/jobtrust/internal/server/ratelimit"
	"github.com/jonathan/jobtrust/internal/similarity"
)

var (
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server exposing accounts, saved analyses and job ranking endpoints.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.Port = servePort
	}
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}
	jwtCfg, err := config.NewJWTConfig()
	if err != nil {
		return err
	}
	pwCfg, err := config.NewPasswordConfig()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	metrics := observability.NewMetrics()
	ranker, sim, err := buildRanker(ctx, cfg, logger, metrics)
	if err != nil {
		return err
	}
	defer func() { _ = sim.Close() }()

	srv, err := server.New(server.Config{
		Port:             cfg.Port,
		CORSAllowOrigins: cfg.CORSAllowOrigins,
		RateLimit: ratelimit.NewConfig(cfg.RateLimitEnabled,
			cfg.RateLimitAuth, cfg.RateLimitRanking, cfg.RateLimitDefault),
		ReadTimeout:     cfg.HTTPReadTimeout,
		WriteTimeout:    cfg.HTTPWriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, server.Deps{
		Store:    database,
		Ranker:   ranker,
		JWT:      jwtCfg,
		Password: pwCfg,
		Metrics:  metrics,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	return srv.Run(ctx)
}

// buildRanker assembles the similarity backend and the ranker from configuration.
func buildRanker(ctx context.Context, cfg *config.Config, logger *zap.Logger, metrics *observability.Metrics) (*ranking.Ranker, *similarity.Service, error) {
	opts, err := cfg.RankerOptions()
	if err != nil {
		return nil, nil, err
	}
	sim, err := similarity.New(ctx, cfg.SimilarityOptions(), logger, metrics)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start similarity backend: %w", err)
	}
	opts = append(opts, ranking.WithLogger(logger), ranking.WithMetrics(metrics))
	return ranking.NewRanker(sim.Oracle, opts...), sim, nil
}
