package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/tally/adapter/cli"
	"github.com/felixgeelhaar/tally/internal/app"
	"github.com/felixgeelhaar/tally/pkg/config"
	"github.com/felixgeelhaar/tally/pkg/observability"
)

func main() {
	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		cancel()
	}()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	cli.SetLogger(logger)

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize container", "error", err)
		os.Exit(1)
	}
	defer container.Close()

	cli.SetApp(cli.NewApp(container.Flavor, container.Handler, container.Session, container.Diagnostics))

	// Execute CLI
	cli.Execute()
}

// newLogger logs warnings only unless LOG_LEVEL is set, so command output stays readable.
func newLogger(cfg *config.Config) *slog.Logger {
	logCfg := observability.DefaultLogConfig()
	if os.Getenv("LOG_LEVEL") != "" {
		logCfg.Level = observability.LogLevel(cfg.LogLevel)
	}
	if cfg.LogFormat != "" {
		logCfg.Format = observability.LogFormat(cfg.LogFormat)
	}
	logCfg.ServiceVersion = cli.Version
	return observability.NewLogger(logCfg)
}
