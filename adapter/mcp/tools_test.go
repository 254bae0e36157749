package mcp

import (
	"context"
	"testing"

	"github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/tally/adapter/cli"
	"github.com/felixgeelhaar/tally/internal/licensing/application"
	"github.com/felixgeelhaar/tally/internal/licensing/domain"
	"github.com/felixgeelhaar/tally/internal/licensing/infrastructure/diagnostics"
	"github.com/felixgeelhaar/tally/internal/licensing/infrastructure/persistence"
	"github.com/felixgeelhaar/tally/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/tally/pkg/observability"
)

type fakeStore struct {
	purchases []domain.Purchase
}

func (s *fakeStore) Connect(ctx context.Context) error { return nil }

func (s *fakeStore) QueryPurchases(ctx context.Context) ([]domain.Purchase, error) {
	return s.purchases, nil
}

func (s *fakeStore) QueryProductDetails(ctx context.Context, skus []string) ([]domain.ProductDetails, error) {
	return []domain.ProductDetails{
		{SKU: domain.SkuPremium, Price: "€2.99"},
		{SKU: domain.SkuProfessionalMonthly, Price: "€1.99"},
	}, nil
}

func (s *fakeStore) LaunchPurchaseFlow(ctx context.Context, req domain.PurchaseRequest) error {
	return nil
}

func (s *fakeStore) Acknowledge(ctx context.Context, p domain.Purchase) error { return nil }

func (s *fakeStore) Close() error { return nil }

type testApp struct {
	app      *cli.App
	statuses *application.StatusStore
}

func newTestApp(flavor domain.Flavor, client domain.BillingClient) *testApp {
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
	return &testApp{app: cli.NewApp(flavor, handler, session, reporter), statuses: statuses}
}

func TestRegisterCLITools_ListTools(t *testing.T) {
	srv := mcp.NewServer(mcp.ServerInfo{
		Name:    "test",
		Version: "1.0.0",
		Capabilities: mcp.Capabilities{
			Tools: true,
		},
	})

	require.NoError(t, RegisterCLITools(srv, ToolDependencies{App: newTestApp(domain.FlavorPlay, nil).app}))

	tc := testutil.NewTestClient(t, srv)
	defer tc.Close()

	tools, err := tc.ListTools()
	require.NoError(t, err)

	names := make(map[any]bool)
	for _, tool := range tools {
		names[tool["name"]] = true
	}
	for _, name := range []string{"licence.status", "licence.feature", "licence.price", "licence.packages", "licence.refresh"} {
		assert.True(t, names[name], "%s tool should be registered", name)
	}
}

func TestRegisterCLITools_RequiresApp(t *testing.T) {
	srv := mcp.NewServer(mcp.ServerInfo{Name: "test", Version: "1.0.0"})
	assert.Error(t, RegisterCLITools(nil, ToolDependencies{}))
	assert.Error(t, RegisterCLITools(srv, ToolDependencies{}))
}

func TestRegisterResourcesAndPrompts(t *testing.T) {
	srv := mcp.NewServer(mcp.ServerInfo{
		Name:    "test",
		Version: "1.0.0",
		Capabilities: mcp.Capabilities{
			Resources: true,
			Prompts:   true,
		},
	})
	deps := ToolDependencies{App: newTestApp(domain.FlavorPlay, nil).app}
	assert.NoError(t, RegisterResources(srv, deps))
	assert.NoError(t, RegisterPrompts(srv, deps))
	assert.Error(t, RegisterResources(nil, deps))
	assert.Error(t, RegisterPrompts(nil, deps))
}

func TestLicenceStatus(t *testing.T) {
	ctx := context.Background()
	env := newTestApp(domain.FlavorPlay, nil)
	require.NoError(t, env.statuses.SetContribStatus(ctx, domain.ContribExtendedPermanent))
	require.NoError(t, env.statuses.SetAddOnOrderID(ctx, domain.FeatureOCR, "GPA.1"))

	out, err := licenceStatus(ctx, env.app)
	require.NoError(t, err)
	assert.Equal(t, "play", out.Flavor)
	assert.Equal(t, "EXTENDED", out.Snapshot.LicenceStatus)
	assert.True(t, out.Features["ocr"])
	assert.False(t, out.Features["budget"])

	_, err = licenceStatus(ctx, nil)
	assert.ErrorIs(t, err, errHandlerUnavailable)
}

func TestFeatureEnabled(t *testing.T) {
	ctx := context.Background()
	env := newTestApp(domain.FlavorPlay, nil)

	out, err := featureEnabled(ctx, env.app, featureInput{Feature: "history"})
	require.NoError(t, err)
	assert.Equal(t, false, out["enabled"])

	_, err = featureEnabled(ctx, env.app, featureInput{Feature: "nope"})
	assert.Error(t, err)
}

func TestPackagePrice(t *testing.T) {
	ctx := context.Background()
	env := newTestApp(domain.FlavorPlay, nil)

	out, err := packagePrice(ctx, env.app, packageInput{Package: "Extended"})
	require.NoError(t, err)
	assert.Equal(t, domain.SkuExtended, out.SKU)
	assert.False(t, out.Cached)

	require.NoError(t, env.statuses.SetContribStatus(ctx, domain.ContribExtendedPermanent))
	out, err = packagePrice(ctx, env.app, packageInput{Package: "Professional_12"})
	require.NoError(t, err)
	assert.Equal(t, domain.SkuExtended2ProfessionalYearly, out.SKU)

	_, err = packagePrice(ctx, env.app, packageInput{Package: "Gold"})
	assert.ErrorIs(t, err, domain.ErrUnknownPackage)
}

func TestListPackages(t *testing.T) {
	ctx := context.Background()

	out, err := listPackages(ctx, newTestApp(domain.FlavorAmazon, nil).app)
	require.NoError(t, err)
	require.Len(t, out.Packages, 4)
	assert.Equal(t, string(domain.PackageProfessionalAmazon), out.Packages[3].Package)

	out, err = listPackages(ctx, newTestApp(domain.FlavorHuawei, nil).app)
	require.NoError(t, err)
	assert.Empty(t, out.Packages)
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()

	_, err := refresh(ctx, newTestApp(domain.FlavorPlay, nil).app)
	assert.ErrorIs(t, err, domain.ErrSessionNotReady)

	env := newTestApp(domain.FlavorPlay, &fakeStore{purchases: []domain.Purchase{
		{SKU: domain.SkuPremium, OrderID: "GPA.7", State: domain.PurchaseStatePurchased, Acknowledged: true},
	}})
	out, err := refresh(ctx, env.app)
	require.NoError(t, err)
	assert.Equal(t, "CONTRIB", out["licence"])
	assert.Equal(t, "ready", out["session"])

	pkgs, err := listPackages(ctx, env.app)
	require.NoError(t, err)
	assert.Equal(t, "€1.99 / month", pkgs.Professional)
	assert.True(t, pkgs.Packages[0].Cached)
	assert.Equal(t, "€2.99", pkgs.Packages[0].Price)
}
