package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"herald/internal/config"
	"herald/internal/loader"
	"herald/internal/metrics"
)

var (
	configPath = flag.String("config", "config.toml", "Path to configuration file")
	once       = flag.Bool("once", false, "Run every job once and exit")
)

func main() {
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("Fatal error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := newLogger(cfg.App)
	slog.SetDefault(logger)
	metrics.Init()

	logger.Info("Starting", "name", cfg.App.Name, "config", *configPath, "once", *once)

	st, err := loader.NewLoader(cfg, logger).Build(ctx, *once)
	if err != nil {
		return fmt.Errorf("failed to build jobs: %w", err)
	}

	runErr := st.Scheduler.Run(ctx)

	// validateConfig guarantees a parseable timeout.
	timeout, _ := time.ParseDuration(cfg.App.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logger.Info("Shutting down")
	if err := st.Close(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}

	if runErr != nil {
		return runErr
	}

	logger.Info("Stopped")
	return nil
}

func newLogger(app config.AppConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(app.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if app.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler).With("app", app.Name)
}
