// Package subscribers feeds messages from the device billing bridge into
// the licence session.
package subscribers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/tally/internal/licensing/domain"
	"github.com/felixgeelhaar/tally/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/tally/pkg/observability"
)

// PurchaseSink receives purchase results. *application.Session implements it.
type PurchaseSink interface {
	DeliverPurchases(ctx context.Context, purchases []domain.Purchase) error
	DeliverInventory(ctx context.Context, purchases []domain.Purchase) error
	DeliverPurchaseCanceled(ctx context.Context)
	DeliverPurchaseFailed(ctx context.Context, err error)
}

// PurchaseRecorder remembers purchase tokens for later verification.
type PurchaseRecorder interface {
	RecordPurchases(ctx context.Context, purchases []domain.Purchase) error
}

// ProductSink stores product details. *application.Handler implements it.
type ProductSink interface {
	OnProductDetails(ctx context.Context, details []domain.ProductDetails) error
}

// ErrPurchaseFlow wraps a failure reported by the device.
var ErrPurchaseFlow = errors.New("purchase flow failed")

// BillingSubscriber routes billing bridge messages.
type BillingSubscriber struct {
	sink     PurchaseSink
	products ProductSink
	recorder PurchaseRecorder
	logger   *slog.Logger
	metrics  observability.Metrics
}

// NewBillingSubscriber creates a subscriber. recorder may be nil when the
// billing client keeps no ledger.
func NewBillingSubscriber(sink PurchaseSink, products ProductSink, recorder PurchaseRecorder, logger *slog.Logger, metrics observability.Metrics) *BillingSubscriber {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &BillingSubscriber{
		sink:     sink,
		products: products,
		recorder: recorder,
		logger:   logger,
		metrics:  metrics,
	}
}

// EventTypes returns the routing keys this subscriber handles.
func (s *BillingSubscriber) EventTypes() []string {
	return []string{
		domain.RoutingKeyPurchasesUpdated,
		domain.RoutingKeyProductsUpdated,
		domain.RoutingKeyPurchaseCanceled,
		domain.RoutingKeyPurchaseFailed,
	}
}

// Handle processes a message. Undecodable bodies are logged and dropped.
func (s *BillingSubscriber) Handle(ctx context.Context, msg *eventbus.Message) error {
	s.metrics.Counter(observability.MetricEventsConsumed, 1, observability.T("routing_key", msg.RoutingKey))

	switch msg.RoutingKey {
	case domain.RoutingKeyPurchasesUpdated:
		return s.handlePurchases(ctx, msg)
	case domain.RoutingKeyProductsUpdated:
		return s.handleProducts(ctx, msg)
	case domain.RoutingKeyPurchaseCanceled:
		s.sink.DeliverPurchaseCanceled(ctx)
		return nil
	case domain.RoutingKeyPurchaseFailed:
		var payload domain.PurchaseFailed
		if err := msg.Decode(&payload); err != nil {
			s.dropped(msg, err)
			return nil
		}
		s.sink.DeliverPurchaseFailed(ctx, fmt.Errorf("%w: %s", ErrPurchaseFlow, payload.Reason))
		return nil
	default:
		s.logger.Warn("unknown event type",
			"routing_key", msg.RoutingKey,
		)
		return nil
	}
}

func (s *BillingSubscriber) handlePurchases(ctx context.Context, msg *eventbus.Message) error {
	var payload domain.PurchasesUpdated
	if err := msg.Decode(&payload); err != nil {
		s.dropped(msg, err)
		return nil
	}

	if s.recorder != nil {
		if err := s.recorder.RecordPurchases(ctx, payload.Purchases); err != nil {
			return fmt.Errorf("record purchases: %w", err)
		}
	}
	if payload.NewPurchase {
		return s.sink.DeliverPurchases(ctx, payload.Purchases)
	}
	return s.sink.DeliverInventory(ctx, payload.Purchases)
}

func (s *BillingSubscriber) handleProducts(ctx context.Context, msg *eventbus.Message) error {
	var payload domain.ProductsUpdated
	if err := msg.Decode(&payload); err != nil {
		s.dropped(msg, err)
		return nil
	}
	return s.products.OnProductDetails(ctx, payload.Products)
}

func (s *BillingSubscriber) dropped(msg *eventbus.Message, err error) {
	s.logger.Error("failed to decode billing message",
		"routing_key", msg.RoutingKey,
		"message_id", msg.ID,
		"error", err,
	)
}

var _ eventbus.EventConsumer = (*BillingSubscriber)(nil)
