package eventbus

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/tally/pkg/observability"
)

// InProcessEventBus is an in-memory bus for running without RabbitMQ.
// Messages are delivered synchronously to registered consumers, which may
// publish again from inside Handle.
type InProcessEventBus struct {
	registry *ConsumerRegistry
	logger   *slog.Logger
}

// NewInProcessEventBus creates a new in-process event bus.
func NewInProcessEventBus(logger *slog.Logger) *InProcessEventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &InProcessEventBus{
		registry: NewConsumerRegistry(logger),
		logger:   logger,
	}
}

// RegisterConsumer registers an event consumer.
func (b *InProcessEventBus) RegisterConsumer(consumer EventConsumer) {
	b.registry.Register(consumer)
}

// Publish dispatches payload to the consumers of routingKey. Invalid JSON
// and consumer errors are logged, not returned.
func (b *InProcessEventBus) Publish(ctx context.Context, routingKey string, payload []byte) error {
	if !json.Valid(payload) {
		b.logger.Error("dropping invalid message payload",
			"routing_key", routingKey,
		)
		return nil
	}

	msg := &Message{
		ID:            uuid.NewString(),
		RoutingKey:    routingKey,
		CorrelationID: observability.CorrelationIDFromContext(ctx),
		ReceivedAt:    time.Now(),
		Body:          json.RawMessage(payload),
	}

	start := time.Now()
	if err := b.registry.Dispatch(ctx, msg); err != nil {
		b.logger.Error("message dispatch failed",
			"routing_key", routingKey,
			"message_id", msg.ID,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return nil
	}

	b.logger.Debug("message dispatched",
		"routing_key", routingKey,
		"message_id", msg.ID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Close is a no-op for the in-process bus.
func (b *InProcessEventBus) Close() error {
	return nil
}

// Registry returns the underlying consumer registry.
func (b *InProcessEventBus) Registry() *ConsumerRegistry {
	return b.registry
}

// Start blocks until ctx is done; delivery happens inside Publish.
func (b *InProcessEventBus) Start(ctx context.Context) error {
	b.logger.Info("in-process event bus started (synchronous mode)")
	<-ctx.Done()
	return ctx.Err()
}

var (
	_ Publisher = (*InProcessEventBus)(nil)
	_ Consumer  = (*InProcessEventBus)(nil)
)
