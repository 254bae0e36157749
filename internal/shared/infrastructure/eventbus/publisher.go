package eventbus

import (
	"context"
	"log/slog"

	"github.com/felixgeelhaar/tally/pkg/observability"
)

// Publisher defines the interface for publishing messages to a broker.
type Publisher interface {
	// Publish sends a message to the bus.
	Publish(ctx context.Context, routingKey string, payload []byte) error

	// Close closes the publisher connection.
	Close() error
}

// NoopPublisher drops every message.
type NoopPublisher struct {
	logger *slog.Logger
}

// NewNoopPublisher creates a publisher that does nothing.
func NewNoopPublisher(logger *slog.Logger) *NoopPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoopPublisher{logger: logger}
}

// Publish logs the message but doesn't actually publish.
func (p *NoopPublisher) Publish(_ context.Context, routingKey string, payload []byte) error {
	p.logger.Debug("noop publish",
		"routing_key", routingKey,
		"size", len(payload),
	)
	return nil
}

// Close is a no-op.
func (p *NoopPublisher) Close() error {
	return nil
}

// MeteredPublisher counts published messages per routing key.
type MeteredPublisher struct {
	Publisher
	metrics observability.Metrics
}

// NewMeteredPublisher wraps next.
func NewMeteredPublisher(next Publisher, metrics observability.Metrics) *MeteredPublisher {
	return &MeteredPublisher{Publisher: next, metrics: metrics}
}

// Publish forwards to the wrapped publisher and counts successes.
func (p *MeteredPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	if err := p.Publisher.Publish(ctx, routingKey, payload); err != nil {
		return err
	}
	p.metrics.Counter(observability.MetricEventsPublished, 1, observability.T("routing_key", routingKey))
	return nil
}
