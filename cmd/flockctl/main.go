// Package main provides the entry point for the flockctl CLI.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"flockcore/internal/flock"
	"flockcore/internal/kv"
	"flockcore/internal/obs"
	"flockcore/internal/repo"
)

var (
	version     = "0.1.0-dev"
	verbose     bool
	metricsFile string
	traceFile   string
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	rootCmd := &cobra.Command{
		Use:     "flockctl",
		Short:   "Sheep flock record keeping: breeding, lambing, reports, and exports",
		Version: version,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus text-format metrics to this file on exit")
	rootCmd.PersistentFlags().StringVar(&traceFile, "trace-file", "", "Append JSON-lines operation traces to this file")

	rootCmd.AddCommand(
		newListCmd(),
		newAddCmd(),
		newBreedCmd(),
		newLambCmd(),
		newSellCmd(),
		newStatusCmd(),
		newReportCmd(),
		newImportCmd(),
		newTemplateCmd(),
		newExportCmd(),
		newReconcileCmd(),
	)

	return rootCmd.ExecuteContext(ctx)
}

// withService opens the configured store, builds the service, runs fn, and
// closes the store.
func withService(fn func(svc *flock.Service) error) error {
	store, err := kv.Open()
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if closer, ok := store.(io.Closer); ok {
			closer.Close()
		}
	}()

	logger := obs.Logger(obs.NopLogger{})
	if verbose {
		logger = obs.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	metrics := obs.MetricsRecorder(obs.NewExpvarRecorder("flockctl_metrics"))
	var reg *prometheus.Registry
	if metricsFile != "" {
		reg = prometheus.NewRegistry()
		metrics = obs.NewPrometheusRecorder(reg)
	}

	tracer := obs.Tracer(obs.NopTracer{})
	if traceFile != "" {
		tf, err := os.OpenFile(traceFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open trace file: %w", err)
		}
		defer tf.Close()
		tracer = obs.NewJSONTracer(tf)
	}

	r := repo.New(store, repo.WithLogger(logger))
	err = fn(flock.New(r,
		flock.WithLogger(logger),
		flock.WithMetrics(metrics),
		flock.WithTracer(tracer),
	))
	if reg != nil {
		if werr := writeMetricsFile(metricsFile, reg); werr != nil && err == nil {
			err = werr
		}
	}
	return err
}

// writeMetricsFile dumps the gathered metrics in the Prometheus text
// exposition format.
func writeMetricsFile(path string, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("open metrics file: %w", err)
	}
	enc := expfmt.NewEncoder(f, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			f.Close()
			return fmt.Errorf("encode metrics: %w", err)
		}
	}
	return f.Close()
}
