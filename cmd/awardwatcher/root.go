package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/award-watcher/internal/config"
	"github.com/JakeFAU/award-watcher/internal/logging"
	"github.com/JakeFAU/award-watcher/internal/server"
)

// runFunc starts the application for a loaded config. It is a parameter so
// tests can exercise flag and config handling without launching a browser.
type runFunc func(ctx context.Context, cfg config.Config) error

func newRootCmd(run runFunc) *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "awardwatcher",
		Short: "Watches award-flight points prices and alerts on new lows.",
		Long: `awardwatcher repeatedly loads the award search page for every configured
origin and travel date, records the lowest points price seen for each, and
sends an alert whenever a new low falls below the configured threshold.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&cfgFile, "config", "", "config file (YAML, JSON or TOML); env vars use the AWARD_ prefix")
	return cmd
}

func runApp(ctx context.Context, cfg config.Config) error {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("logger init failed: %w", err)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	app, err := server.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("build failed", zap.Error(err))
		return err
	}
	return app.Run(ctx)
}
