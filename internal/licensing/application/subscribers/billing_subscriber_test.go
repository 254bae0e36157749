package subscribers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/tally/internal/licensing/domain"
	"github.com/felixgeelhaar/tally/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/tally/pkg/observability"
)

type mockSink struct {
	newPurchases [][]domain.Purchase
	inventories  [][]domain.Purchase
	canceled     int
	failures     []error
	err          error
}

func (m *mockSink) DeliverPurchases(_ context.Context, p []domain.Purchase) error {
	m.newPurchases = append(m.newPurchases, p)
	return m.err
}

func (m *mockSink) DeliverInventory(_ context.Context, p []domain.Purchase) error {
	m.inventories = append(m.inventories, p)
	return m.err
}

func (m *mockSink) DeliverPurchaseCanceled(context.Context) { m.canceled++ }

func (m *mockSink) DeliverPurchaseFailed(_ context.Context, err error) {
	m.failures = append(m.failures, err)
}

type mockProducts struct {
	details []domain.ProductDetails
}

func (m *mockProducts) OnProductDetails(_ context.Context, d []domain.ProductDetails) error {
	m.details = append(m.details, d...)
	return nil
}

type mockRecorder struct {
	recorded []domain.Purchase
	err      error
}

func (m *mockRecorder) RecordPurchases(_ context.Context, p []domain.Purchase) error {
	m.recorded = append(m.recorded, p...)
	return m.err
}

func newSubscriber() (*BillingSubscriber, *mockSink, *mockProducts, *mockRecorder, *observability.InMemoryMetrics) {
	sink := &mockSink{}
	products := &mockProducts{}
	recorder := &mockRecorder{}
	metrics := observability.NewInMemoryMetrics()
	return NewBillingSubscriber(sink, products, recorder, observability.NopLogger(), metrics), sink, products, recorder, metrics
}

func message(routingKey, body string) *eventbus.Message {
	return &eventbus.Message{ID: "m-1", RoutingKey: routingKey, Body: []byte(body)}
}

func TestBillingSubscriber_EventTypes(t *testing.T) {
	s, _, _, _, _ := newSubscriber()
	assert.ElementsMatch(t, []string{
		domain.RoutingKeyPurchasesUpdated,
		domain.RoutingKeyProductsUpdated,
		domain.RoutingKeyPurchaseCanceled,
		domain.RoutingKeyPurchaseFailed,
	}, s.EventTypes())
}

func TestBillingSubscriber_Purchases(t *testing.T) {
	tests := []struct {
		name          string
		newPurchase   bool
		wantNew       int
		wantInventory int
	}{
		{name: "purchase flow result", newPurchase: true, wantNew: 1},
		{name: "restored inventory", newPurchase: false, wantInventory: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, sink, _, recorder, metrics := newSubscriber()
			body := `{"purchases":[{"sku":"sku_professional","order_id":"GPA.1","token":"tok","state":1}],"new_purchase":false}`
			if tt.newPurchase {
				body = `{"purchases":[{"sku":"sku_professional","order_id":"GPA.1","token":"tok","state":1}],"new_purchase":true}`
			}

			err := s.Handle(context.Background(), message(domain.RoutingKeyPurchasesUpdated, body))

			require.NoError(t, err)
			assert.Len(t, sink.newPurchases, tt.wantNew)
			assert.Len(t, sink.inventories, tt.wantInventory)
			require.Len(t, recorder.recorded, 1)
			assert.Equal(t, "tok", recorder.recorded[0].Token)
			assert.Equal(t, domain.PurchaseStatePurchased, recorder.recorded[0].State)
			assert.Equal(t, int64(1), metrics.GetCounter(observability.MetricEventsConsumed,
				observability.T("routing_key", domain.RoutingKeyPurchasesUpdated)))
		})
	}
}

func TestBillingSubscriber_RecordFailureIsRetried(t *testing.T) {
	s, sink, _, recorder, _ := newSubscriber()
	recorder.err = errors.New("disk full")

	err := s.Handle(context.Background(), message(domain.RoutingKeyPurchasesUpdated, `{"purchases":[]}`))

	assert.Error(t, err)
	assert.Empty(t, sink.inventories)
}

func TestBillingSubscriber_Products(t *testing.T) {
	s, _, products, _, _ := newSubscriber()

	err := s.Handle(context.Background(), message(domain.RoutingKeyProductsUpdated,
		`{"products":[{"productId":"sku_professional","type":"inapp","price":"€4.49"}]}`))

	require.NoError(t, err)
	require.Len(t, products.details, 1)
	assert.Equal(t, "€4.49", products.details[0].Price)
}

func TestBillingSubscriber_CanceledAndFailed(t *testing.T) {
	s, sink, _, _, _ := newSubscriber()
	ctx := context.Background()

	require.NoError(t, s.Handle(ctx, message(domain.RoutingKeyPurchaseCanceled, `{}`)))
	require.NoError(t, s.Handle(ctx, message(domain.RoutingKeyPurchaseFailed, `{"sku":"sku_extended","reason":"card declined"}`)))

	assert.Equal(t, 1, sink.canceled)
	require.Len(t, sink.failures, 1)
	assert.ErrorIs(t, sink.failures[0], ErrPurchaseFlow)
	assert.Contains(t, sink.failures[0].Error(), "card declined")
}

func TestBillingSubscriber_DropsUndecodable(t *testing.T) {
	s, sink, products, _, _ := newSubscriber()
	ctx := context.Background()

	for _, key := range []string{domain.RoutingKeyPurchasesUpdated, domain.RoutingKeyProductsUpdated, domain.RoutingKeyPurchaseFailed} {
		assert.NoError(t, s.Handle(ctx, message(key, `[1,2]`)))
	}
	assert.NoError(t, s.Handle(ctx, message("billing.unknown", `{}`)))

	assert.Empty(t, sink.newPurchases)
	assert.Empty(t, sink.inventories)
	assert.Empty(t, sink.failures)
	assert.Empty(t, products.details)
}
