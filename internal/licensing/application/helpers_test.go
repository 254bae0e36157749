package application_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/felixgeelhaar/tally/internal/licensing/application"
	"github.com/felixgeelhaar/tally/internal/licensing/domain"
)

// mockStore is an in-memory key-value store for testing.
type mockStore struct {
	mu     sync.Mutex
	values map[string]string
	getErr error
}

func newMockStore() *mockStore {
	return &mockStore{values: make(map[string]string)}
}

func (s *mockStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return "", false, s.getErr
	}
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *mockStore) Put(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *mockStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

func (s *mockStore) Keys(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *mockStore) Close() error { return nil }

// mockDiagnostics records reports.
type mockDiagnostics struct {
	reports []error
}

func (d *mockDiagnostics) Report(ctx context.Context, err error, attrs ...any) {
	d.reports = append(d.reports, err)
}

// mockPublisher records published events.
type mockPublisher struct {
	routingKeys []string
	payloads    [][]byte
}

func (p *mockPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	p.routingKeys = append(p.routingKeys, routingKey)
	p.payloads = append(p.payloads, payload)
	return nil
}

// mockBillingClient is a scripted vendor client.
type mockBillingClient struct {
	connectErrs  []error
	connectCalls int
	purchases    []domain.Purchase
	queryErr     error
	details      []domain.ProductDetails
	detailsSkus  []string
	launched     []domain.PurchaseRequest
	launchErr    error
	acknowledged []string
	closed       bool
}

func (c *mockBillingClient) Connect(ctx context.Context) error {
	c.connectCalls++
	if len(c.connectErrs) > 0 {
		err := c.connectErrs[0]
		c.connectErrs = c.connectErrs[1:]
		return err
	}
	return nil
}

func (c *mockBillingClient) QueryPurchases(ctx context.Context) ([]domain.Purchase, error) {
	return c.purchases, c.queryErr
}

func (c *mockBillingClient) QueryProductDetails(ctx context.Context, skus []string) ([]domain.ProductDetails, error) {
	c.detailsSkus = skus
	return c.details, nil
}

func (c *mockBillingClient) LaunchPurchaseFlow(ctx context.Context, req domain.PurchaseRequest) error {
	if c.launchErr != nil {
		return c.launchErr
	}
	c.launched = append(c.launched, req)
	return nil
}

func (c *mockBillingClient) Acknowledge(ctx context.Context, p domain.Purchase) error {
	c.acknowledged = append(c.acknowledged, p.SKU)
	return nil
}

func (c *mockBillingClient) Close() error {
	c.closed = true
	return nil
}

// mockSetup records setup callbacks.
type mockSetup struct {
	finished int
	failures []error
}

func (s *mockSetup) OnBillingSetupFinished(ctx context.Context) { s.finished++ }

func (s *mockSetup) OnBillingSetupFailed(ctx context.Context, err error) {
	s.failures = append(s.failures, err)
}

var errConnect = errors.New("service unavailable")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixture wires the application components over in-memory fakes.
type fixture struct {
	now         time.Time
	licence     *mockStore
	prices      *mockStore
	diagnostics *mockDiagnostics
	publisher   *mockPublisher
	statuses    *application.StatusStore
	reconciler  *application.Reconciler
	cache       *application.PriceCache
	handler     *application.Handler
}

func newFixture(flavor domain.Flavor) *fixture {
	f := &fixture{
		now:         time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC),
		licence:     newMockStore(),
		prices:      newMockStore(),
		diagnostics: &mockDiagnostics{},
		publisher:   &mockPublisher{},
	}
	logger := testLogger()
	f.statuses = application.NewStatusStore(f.licence, f.diagnostics)
	f.reconciler = application.NewReconciler(f.statuses, f.diagnostics, logger,
		application.WithClock(func() time.Time { return f.now }))
	f.cache = application.NewPriceCache(f.prices, f.diagnostics, logger)
	f.handler = application.NewHandler(application.HandlerConfig{Flavor: flavor},
		f.statuses, f.reconciler, f.cache, f.publisher, logger)
	return f
}

func purchased(sku, orderID string) domain.Purchase {
	return domain.Purchase{SKU: sku, OrderID: orderID, State: domain.PurchaseStatePurchased}
}
