// Package main is the entry point for the Secretum wallet server.
//
// main stays small: it loads the configuration, builds the logger and the
// tracer, then hands everything to internal/server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/sakif/secretum/internal/config"
	"github.com/sakif/secretum/internal/server"
	"github.com/sakif/secretum/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// run blocks until SIGINT/SIGTERM. Tracing is flushed on every return path.
func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	shutdownTracing, err := telemetry.Setup(ctx, cfg.ServiceName, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracer shutdown", slog.String("error", err.Error()))
		}
	}()

	srv, err := server.New(cfg, logger, server.ProvidersFromConfig(cfg))
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	return srv.Start(ctx)
}

func newLogger(cfg config.Config) *slog.Logger {
	level, _ := cfg.SlogLevel() // checked by config.Load
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
