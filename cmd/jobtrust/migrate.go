package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/jobtrust/internal/config"
	"github.com/jonathan/jobtrust/internal/db"
	"github.com/jonathan/jobtrust/internal/server"
)

var migrateSeed bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Long:  "Creates the users and analyses tables if they do not exist. With --seed, adds the default accounts to an empty users table.",
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateSeed, "seed", false, "Seed default users when none exist")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		return err
	}
	logger.Info("schema applied")

	if !migrateSeed {
		return nil
	}
	pwCfg, err := config.NewPasswordConfig()
	if err != nil {
		return err
	}
	n, err := server.NewUserService(database, pwCfg).SeedDefaultUsers(ctx, logger)
	if err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}
	logger.Info("seed complete", zap.Int("created", n))
	return nil
}
