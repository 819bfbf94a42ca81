package cmd

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/solatis/priorauth/internal/core/config"
	"github.com/solatis/priorauth/internal/core/logging"
	"github.com/solatis/priorauth/internal/core/metrics"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version is reported by serve at startup.
const Version = "0.1.0"

var (
	configFile string
	dbURL      string
	logLevel   string
	logFormat  string

	// Populated by the root pre-run for every subcommand.
	cfg       *config.Config
	logger    *zap.Logger
	collector *metrics.Collector
)

var rootCmd = &cobra.Command{
	Use:   "priorauth",
	Short: "Prior-authorization rule engine and candidate rule registry",
	Long: `priorauth mines candidate rules from payer policy text, routes them through
human review, and evaluates patient requests against the approved rules.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "database connection URL (sqlite://path or postgres://...)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log format (json, console)")
}

// setup loads configuration with flag overrides and builds the shared logger
// and metrics collector.
func setup(cmd *cobra.Command, args []string) error {
	overrides := map[string]any{}
	flags := cmd.Flags()
	if flags.Changed("db-url") {
		overrides["registry.db_url"] = dbURL
	}
	if flags.Changed("log-level") {
		overrides["log.level"] = logLevel
	}
	if flags.Changed("log-format") {
		overrides["log.format"] = logFormat
	}

	loaded, err := config.LoadConfig(configFile, overrides)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg = loaded

	logger, err = logging.New(cfg.Log.Level, cfg.Log.Format, "priorauth")
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	collector = metrics.NewCollector(prometheus.NewRegistry())
	return nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
