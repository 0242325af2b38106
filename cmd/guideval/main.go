// Command guideval measures how robust an LLM text classifier is to
// perturbed annotation guidelines.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/thefonseca/concept-guidelines/infrastructure/guidelines"
	"github.com/thefonseca/concept-guidelines/infrastructure/middleware"
)

var (
	// Global flags
	verbose       bool
	metricsAddr   string
	guidelinesDir string

	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *middleware.PrometheusMetrics
	server   *http.Server
)

var rootCmd = &cobra.Command{
	Use:   "guideval",
	Short: "Evaluate classifier robustness to perturbed annotation guidelines",
	Long: `guideval renders annotation guidelines into a classifier prompt, corrupts
them by renaming, shuffling or replacing their labels, and records how the
classifier's accuracy and adherence to the guidelines change.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config = zap.NewDevelopmentConfig()
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = middleware.NewPrometheusMetrics(registry)
		if metricsAddr != "" {
			startMetricsServer(metricsAddr)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(ctx)
		}
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func startMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))
}

// loadStore returns the built-in guidelines plus any from --guidelines-dir.
func loadStore() (*guidelines.Store, error) {
	store, err := guidelines.NewBuiltinStore()
	if err != nil {
		return nil, err
	}
	if guidelinesDir != "" {
		if err := store.LoadDir(guidelinesDir); err != nil {
			return nil, err
		}
	}
	for digest, d := range store.Digests() {
		logger.Debug("loaded guidelines", zap.String("domain", d), zap.String("sha256", digest))
	}
	return store, nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	rootCmd.PersistentFlags().StringVar(&guidelinesDir, "guidelines-dir", "", "Directory of additional guideline YAML files")

	rootCmd.AddCommand(evaluateCmd, sweepCmd, adherenceCmd, taxonomiesCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
