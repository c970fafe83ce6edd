// Package main implements the workerbridge CLI, which keeps a worker process
// running and exposes it over stdin/stdout or as an MCP tool server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/workerbridge"
	"github.com/wagiedev/workerbridge/internal/opsserver"
)

var (
	// configPath is the optional YAML configuration file
	configPath string
	// logLevel is the minimum level written to stderr
	logLevel string
	// logFormat selects the stderr log encoding
	logFormat string
	// metricsAddr enables the health and metrics server when set
	metricsAddr string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "workerbridge",
	Short: "Run a persistent JSON-lines worker process",
	Long: `workerbridge spawns a worker process, restarts it when it crashes and
exchanges JSON requests and responses with it over stdin and stdout.

Configuration comes from an optional YAML file, then the legacy variables
PYTHON_CMD, BOT_PY_PATH, BOT_CWD, BOT_TIMEOUT_MS and BOT_MAX_PENDING, then
WORKER_* variables such as WORKER_SCRIPT or WORKER_TIMEOUT_MS.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve /health and /metrics on this address")
	rootCmd.AddCommand(relayCmd)
	rootCmd.AddCommand(mcpCmd)
}

// newLogger builds the stderr logger from the persistent flags.
func newLogger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
	}

	handlerOpts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(logFormat) {
	case "text":
		return slog.New(slog.NewTextHandler(os.Stderr, handlerOpts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, handlerOpts)), nil
	default:
		return nil, fmt.Errorf("invalid --log-format %q: want text or json", logFormat)
	}
}

// runBridge starts a bridge from configuration, runs fn until it returns or
// a signal arrives, then shuts everything down. fn gets the configuration
// with defaults applied.
func runBridge(cmd *cobra.Command, fn func(ctx context.Context, b workerbridge.Bridge, cfg *workerbridge.Options, log *slog.Logger) error) error {
	log, err := newLogger()
	if err != nil {
		return err
	}

	cfg, err := workerbridge.LoadConfig(configPath)
	if err != nil {
		return err
	}

	cfg.ApplyDefaults()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	b, err := workerbridge.New(
		workerbridge.FromConfig(cfg),
		workerbridge.WithLogger(log),
		workerbridge.WithMetricsRegisterer(reg),
		workerbridge.WithStderr(func(line string) {
			log.Info("Worker stderr", "line", line)
		}),
	)
	if err != nil {
		return err
	}

	defer func() { _ = b.Shutdown() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := b.Start(ctx); err != nil {
		log.Error("Worker failed to start, retrying in background", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if metricsAddr != "" {
		srv, err := opsserver.New(b, reg, log, metricsAddr)
		if err != nil {
			return err
		}

		g.Go(srv.Start)
		g.Go(func() error {
			<-gctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		// Returning ends the run, including the ops server.
		defer stop()

		return fn(gctx, b, cfg, log)
	})

	err = g.Wait()

	log.Info("Shutting down")

	return err
}
