package cli

import (
	"context"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/tally/internal/licensing/application"
	"github.com/felixgeelhaar/tally/internal/licensing/domain"
	"github.com/felixgeelhaar/tally/internal/licensing/infrastructure/diagnostics"
	"github.com/felixgeelhaar/tally/internal/licensing/infrastructure/persistence"
	"github.com/felixgeelhaar/tally/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/tally/pkg/observability"
)

// fakeStore is a scripted billing client.
type fakeStore struct {
	purchases []domain.Purchase
	details   []domain.ProductDetails
	launched  []domain.PurchaseRequest
}

func (s *fakeStore) Connect(ctx context.Context) error { return nil }

func (s *fakeStore) QueryPurchases(ctx context.Context) ([]domain.Purchase, error) {
	return s.purchases, nil
}

func (s *fakeStore) QueryProductDetails(ctx context.Context, skus []string) ([]domain.ProductDetails, error) {
	return s.details, nil
}

func (s *fakeStore) LaunchPurchaseFlow(ctx context.Context, req domain.PurchaseRequest) error {
	s.launched = append(s.launched, req)
	return nil
}

func (s *fakeStore) Acknowledge(ctx context.Context, p domain.Purchase) error { return nil }

func (s *fakeStore) Close() error { return nil }

type testEnv struct {
	app      *App
	statuses *application.StatusStore
	prices   *application.PriceCache
}

// newTestApp installs an App over an in-memory store. A non-nil client
// gets a session that queries every SKU of the flavor.
func newTestApp(t *testing.T, flavor domain.Flavor, client domain.BillingClient) *testEnv {
	t.Helper()
	logger := observability.NopLogger()
	reporter := diagnostics.NewReporter(logger, nil, 10)
	store := persistence.NewMemoryStore()

	statuses := application.NewStatusStore(store, reporter)
	reconciler := application.NewReconciler(statuses, reporter, logger)
	prices := application.NewPriceCache(store, reporter, logger)
	handler := application.NewHandler(application.HandlerConfig{Flavor: flavor},
		statuses, reconciler, prices, eventbus.NewNoopPublisher(logger), logger)

	var session *application.Session
	if client != nil {
		session = application.NewSession(client, handler, logger, application.SessionConfig{
			Query: true,
			Skus:  flavor.AllSkus(),
		})
	}

	a := NewApp(flavor, handler, session, reporter)
	SetApp(a)
	t.Cleanup(func() { SetApp(nil) })
	return &testEnv{app: a, statuses: statuses, prices: prices}
}

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out strings.Builder
	cmd.SetContext(context.Background())
	cmd.SetOut(&out)
	err := cmd.RunE(cmd, args)
	return out.String(), err
}
