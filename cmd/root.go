package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/reservo/internal/config"
	"github.com/KaramelBytes/reservo/internal/failure"
	"github.com/KaramelBytes/reservo/internal/logging"
	"github.com/KaramelBytes/reservo/internal/telemetry"
)

var (
	// Global flags
	cfgFile         string
	flagLogLevel    string
	flagLogFormat   string
	flagMetricsFile string

	// Loaded configuration; cfgErr explains a nil cfg
	cfg    *cfgpkg.Pipeline
	cfgErr error

	logger    = zerolog.Nop()
	logCloser io.Closer
	metrics   = telemetry.New()
)

var rootCmd = &cobra.Command{
	Use:   "reservo",
	Short: "Reservo: hotel booking cancellation pipeline",
	Long: `Reservo ingests hotel reservations from Cloud Storage, preprocesses and balances them,
selects features, trains a gradient-boosted cancellation classifier and serves it behind a web form.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if flagMetricsFile != "" {
			if err := metrics.WriteTextfile(flagMetricsFile); err != nil {
				return fmt.Errorf("write metrics: %w", err)
			}
		}
		return nil
	},
}

// Execute is the entry point called by main.main()
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		logger.Error().Err(err).Str("stage", failure.KindOf(err).String()).Msg("command failed")
		closeLog()
		os.Exit(1)
	}
	closeLog()
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is config/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: trace|debug|info|warn|error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "log format: console|json (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagMetricsFile, "metrics-textfile", "", "write Prometheus metrics to this file when the command ends")
}

func loadConfig() {
	cfg, cfgErr = cfgpkg.Load(cfgFile)

	lc := logging.Config{Level: flagLogLevel, Format: flagLogFormat}
	if cfg != nil {
		if lc.Level == "" {
			lc.Level = cfg.Logging.Level
		}
		if lc.Format == "" {
			lc.Format = cfg.Logging.Format
		}
		lc.Dir = cfg.Logging.Dir
	}
	closeLog()
	l, closer, err := logging.New(lc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠ Warning: %v, using defaults\n", err)
		l, closer, _ = logging.New(logging.Config{})
	}
	logger, logCloser = l, closer
	if cfgErr != nil {
		logger.Debug().Err(cfgErr).Msg("configuration not loaded")
	}
}

func closeLog() {
	if logCloser != nil {
		_ = logCloser.Close()
		logCloser = nil
	}
}

// requireConfig returns the loaded configuration or the reason it is missing.
func requireConfig() (*cfgpkg.Pipeline, error) {
	if cfg != nil {
		return cfg, nil
	}
	if cfgErr != nil {
		return nil, cfgErr
	}
	return nil, failure.Errorf(failure.KindConfig, "load config", "no configuration loaded")
}
