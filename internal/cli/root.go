// Package cli holds the newspipeline commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"NewsPipeline/internal/app"
	"NewsPipeline/internal/config"
	"NewsPipeline/internal/logging"
)

var (
	cfgFile string
	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "newspipeline",
	Short: "Fetch, rewrite, gate and publish news",
	Long: `newspipeline reads news sources, rewrites items into per-language drafts,
gates them by fact-check and trust scores and publishes them to the CMS and
secondary channels.

Example usage:
  newspipeline run                      # Run all hooks on their timers
  newspipeline trigger fetch_sources    # Run one hook now
  newspipeline draft approve 42         # Approve a gated draft
  newspipeline publish 42               # Publish a draft now`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string printed by the version command.
func SetVersion(v string) {
	version = v
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $NEWSPIPELINE_CONFIG)")
}

func loadConfig() (config.Config, error) {
	var cfg config.Config
	if cfgFile != "" {
		cfg = config.LoadFile(cfgFile)
	} else {
		cfg = config.Load()
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// withApp builds the application for one command and closes it afterwards.
// The context is cancelled on SIGINT and SIGTERM.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.Application) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.New(cfg.Logging.Level)
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer func() {
		if cerr := application.Close(); cerr != nil {
			logger.Warn("close failed", "error", cerr)
		}
	}()

	return fn(ctx, application)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
