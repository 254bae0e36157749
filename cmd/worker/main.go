package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/felixgeelhaar/tally/internal/app"
	"github.com/felixgeelhaar/tally/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/tally/pkg/config"
	"github.com/felixgeelhaar/tally/pkg/observability"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	logger.Info("starting tally worker", "flavor", cfg.Flavor)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize container", "error", err)
		os.Exit(1)
	}
	defer container.Close()

	if container.Session == nil {
		logger.Error("worker needs a store with in-app billing and vendor credentials", "flavor", container.Flavor)
		os.Exit(1)
	}

	if cfg.UsesMessageBus() {
		consumer, err := eventbus.NewRabbitMQConsumer(eventbus.RabbitMQConsumerConfig{
			URL:       cfg.RabbitMQURL,
			QueueName: cfg.BillingQueue,
			Exchange:  cfg.BillingExchange,
			Logger:    logger,
		}, eventbus.NewConsumerRegistry(logger))
		if err != nil {
			logger.Error("failed to connect consumer to RabbitMQ", "error", err)
			os.Exit(1)
		}
		defer consumer.Close()
		consumer.RegisterConsumer(container.Subscriber)

		go func() {
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("billing consumer stopped", "error", err)
				cancel()
			}
		}()
	}

	if cfg.HealthAddr != "" {
		healthSrv := &http.Server{
			Addr:              cfg.HealthAddr,
			Handler:           newMux(container),
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			logger.Info("health server starting", "addr", cfg.HealthAddr)
			if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("health server error", "error", err)
			}
		}()

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := healthSrv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("health server shutdown error", "error", err)
			}
		}()
	}

	reconcile(ctx, container, logger)

	interval := cfg.ReconcileInterval
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker stopped")
			return
		case <-ticker.C:
			reconcile(ctx, container, logger)
		}
	}
}

// reconcile re-reads the licence backend, then re-queries the store
// inventory and prices.
func reconcile(ctx context.Context, c *app.Container, logger *slog.Logger) {
	c.ReloadStore()
	err := observability.TimeOperation(ctx, logger, c.Metrics, "licence.refresh", c.Session.Start)
	if err != nil {
		logger.Warn("store refresh failed", "error", err)
		return
	}
	status, err := c.Handler.LicenceStatus(ctx)
	if err != nil {
		logger.Warn("failed to read licence status", "error", err)
		return
	}
	logger.Info("store refresh completed", "licence", status.String(), "session", c.Session.State().String())
}

func newMux(c *app.Container) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/healthz", c.Health.Handler())
	mux.Handle("/metrics", c.Metrics.Handler())
	mux.HandleFunc("/licence", func(w http.ResponseWriter, r *http.Request) {
		snapshot, err := c.Handler.Snapshot(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": err.Error()})
			return
		}
		_ = json.NewEncoder(w).Encode(snapshot)
	})
	return mux
}

func newLogger(cfg *config.Config) *slog.Logger {
	logCfg := observability.ProductionLogConfig()
	if cfg.IsDevelopment() {
		logCfg = observability.DefaultLogConfig()
	}
	logCfg.Level = observability.LogLevel(cfg.LogLevel)
	if cfg.LogFormat != "" {
		logCfg.Format = observability.LogFormat(cfg.LogFormat)
	}
	return observability.NewLogger(logCfg)
}
