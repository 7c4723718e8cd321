package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Taichi-iskw/ingest/internal/logging"
	"github.com/Taichi-iskw/ingest/internal/metrics"
)

var (
	logLevel     string
	logFormat    string
	metricsAddr  string
	outputFormat string

	logger     = zap.NewNop()
	appMetrics *metrics.Metrics
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Collect YouTube videos, transcripts and SEC Form 4 filings",
	Long: `ingest acquires data from YouTube and SEC EDGAR through rate limited,
retrying HTTP sessions and stores it in PostgreSQL.`,
	SilenceUsage:      true,
	PersistentPreRunE: setupRuntime,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// setupRuntime builds the logger and metrics shared by every command
func setupRuntime(cmd *cobra.Command, args []string) error {
	l, err := logging.New(logLevel, logFormat)
	if err != nil {
		return err
	}
	logger = l

	registry := prometheus.NewRegistry()
	m, err := metrics.New(registry)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	appMetrics = m

	if metricsAddr != "" {
		go func() {
			if err := metrics.Serve(cmd.Context(), metricsAddr, registry); err != nil {
				logger.Error("Metrics server stopped", zap.String("addr", metricsAddr), zap.Error(err))
			}
		}()
		logger.Info("Serving metrics", zap.String("addr", metricsAddr))
	}
	return nil
}

// Execute runs the root command until it finishes or the process is interrupted
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "Log format: json, console")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json")
}
