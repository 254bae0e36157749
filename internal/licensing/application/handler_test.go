package application_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/felixgeelhaar/tally/internal/licensing/application"
	"github.com/felixgeelhaar/tally/internal/licensing/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readySession(t *testing.T, f *fixture, client *mockBillingClient) *application.Session {
	t.Helper()
	session := application.NewSession(client, f.handler, testLogger(), application.SessionConfig{})
	require.NoError(t, session.Start(context.Background()))
	return session
}

func TestHandler_LaunchPurchase_Play(t *testing.T) {
	ctx := context.Background()
	f := newFixture(domain.FlavorPlay)
	require.NoError(t, f.cache.StoreProductDetails(ctx, []domain.ProductDetails{
		{SKU: domain.SkuProfessionalYearly, Type: domain.ProductTypeSubscription, Price: "€19.99"},
	}))
	client := &mockBillingClient{}
	session := readySession(t, f, client)

	require.NoError(t, f.handler.LaunchPurchase(ctx, domain.PackageProfessional12, false, session))

	require.Len(t, client.launched, 1)
	assert.Equal(t, domain.SkuProfessionalYearly, client.launched[0].SKU)
	assert.Empty(t, client.launched[0].OldSKU)
	require.NotNil(t, client.launched[0].Details)
	assert.Equal(t, "€19.99", client.launched[0].Details.Price)
}

func TestHandler_LaunchPurchase_ReplaceExisting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(domain.FlavorPlay)
	require.NoError(t, f.cache.StoreProductDetails(ctx, []domain.ProductDetails{
		{SKU: domain.SkuProfessionalYearly, Price: "€19.99"},
	}))
	client := &mockBillingClient{}
	session := readySession(t, f, client)

	err := f.handler.LaunchPurchase(ctx, domain.PackageProfessional12, true, session)
	assert.ErrorIs(t, err, domain.ErrNoCurrentSubscription)

	require.NoError(t, f.reconciler.RegisterSubscription(ctx, domain.SkuProfessionalMonthly))
	require.NoError(t, f.handler.LaunchPurchase(ctx, domain.PackageProfessional12, true, session))
	require.Len(t, client.launched, 1)
	assert.Equal(t, domain.SkuProfessionalMonthly, client.launched[0].OldSKU)
}

func TestHandler_LaunchPurchase_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("session not ready", func(t *testing.T) {
		f := newFixture(domain.FlavorPlay)
		session := application.NewSession(&mockBillingClient{}, f.handler, testLogger(), application.SessionConfig{})
		err := f.handler.LaunchPurchase(ctx, domain.PackageContrib, false, session)
		assert.ErrorIs(t, err, domain.ErrSessionNotReady)
		assert.ErrorIs(t, f.handler.LaunchPurchase(ctx, domain.PackageContrib, false, nil), domain.ErrSessionNotReady)
	})

	t.Run("missing product details", func(t *testing.T) {
		f := newFixture(domain.FlavorPlay)
		session := readySession(t, f, &mockBillingClient{})
		err := f.handler.LaunchPurchase(ctx, domain.PackageContrib, false, session)
		assert.ErrorIs(t, err, domain.ErrProductDetailsMissing)
	})

	t.Run("huawei", func(t *testing.T) {
		f := newFixture(domain.FlavorHuawei)
		err := f.handler.LaunchPurchase(ctx, domain.PackageContrib, false, nil)
		assert.ErrorIs(t, err, domain.ErrPurchaseUnsupported)
	})

	t.Run("vendor failure", func(t *testing.T) {
		f := newFixture(domain.FlavorAmazon)
		launchErr := errors.New("flow rejected")
		session := readySession(t, f, &mockBillingClient{launchErr: launchErr})
		err := f.handler.LaunchPurchase(ctx, domain.PackageContrib, false, session)
		assert.ErrorIs(t, err, launchErr)
	})
}

func TestHandler_LaunchPurchase_AmazonUsesParentSku(t *testing.T) {
	ctx := context.Background()
	f := newFixture(domain.FlavorAmazon)
	_, err := f.reconciler.HandlePurchase(ctx, domain.SkuExtended, "R1")
	require.NoError(t, err)
	client := &mockBillingClient{}
	session := readySession(t, f, client)

	require.NoError(t, f.handler.LaunchPurchase(ctx, domain.PackageProfessionalAmazon, true, session))
	require.Len(t, client.launched, 1)
	assert.Equal(t, domain.SkuExtended2ProfessionalParent, client.launched[0].SKU)
	assert.Nil(t, client.launched[0].Details)
}

func TestHandler_FormattedPrice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(domain.FlavorPlay)
	require.NoError(t, f.handler.OnProductDetails(ctx, []domain.ProductDetails{
		{SKU: domain.SkuProfessionalMonthly, Price: "€1.99"},
		{SKU: domain.SkuProfessionalYearly, Price: "€19.99", IntroductoryPrice: "€9.99"},
	}))

	price, ok, err := f.handler.FormattedPrice(ctx, domain.PackageProfessional1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "€1.99 / month", price)

	info, err := f.handler.ProfessionalPriceShortInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "€1.99 / month, €9.99 / year", info)

	_, ok, err = f.handler.FormattedPrice(ctx, domain.PackageContrib)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHandler_OnPurchasesUpdated_PublishesChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(domain.FlavorPlay)

	ack, err := f.handler.OnPurchasesUpdated(ctx, []domain.Purchase{purchased(domain.SkuPremium, "GPA.1")}, false)
	require.NoError(t, err)
	assert.True(t, ack)
	require.Len(t, f.publisher.payloads, 1)

	var event domain.StatusChanged
	require.NoError(t, json.Unmarshal(f.publisher.payloads[0], &event))
	assert.Equal(t, "NONE", event.OldStatus)
	assert.Equal(t, "CONTRIB", event.NewStatus)
	assert.Equal(t, domain.FlavorPlay, event.Flavor)

	// same inventory again changes nothing
	_, err = f.handler.OnPurchasesUpdated(ctx, []domain.Purchase{purchased(domain.SkuPremium, "GPA.1")}, false)
	require.NoError(t, err)
	assert.Len(t, f.publisher.payloads, 1)

	ack, err = f.handler.OnPurchasesUpdated(ctx, nil, false)
	require.NoError(t, err)
	assert.False(t, ack)
}

func TestHandler_SubscriptionDetails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(domain.FlavorPlay)
	_, err := f.handler.OnPurchasesUpdated(ctx, []domain.Purchase{purchased(domain.SkuProfessionalYearly, "GPA.3")}, true)
	require.NoError(t, err)

	recurrence, err := f.handler.ProLicenceRecurrence(ctx)
	require.NoError(t, err)
	assert.Equal(t, "yearly", recurrence)

	pkg, ok, err := f.handler.PackageForSwitch(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, domain.PackageProfessional1, pkg)

	info, err := f.handler.PurchaseExtraInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "GPA.3", info)

	enabled, err := f.handler.IsEnabledFor(ctx, domain.StatusExtended)
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestHandler_IsFeatureEnabled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(domain.FlavorPlay)

	enabled, err := f.handler.IsFeatureEnabled(ctx, domain.FeatureBudget)
	require.NoError(t, err)
	assert.False(t, enabled)

	_, err = f.handler.OnPurchasesUpdated(ctx, []domain.Purchase{purchased(domain.SkuBudget, "GPA.8")}, true)
	require.NoError(t, err)

	enabled, err = f.handler.IsFeatureEnabled(ctx, domain.FeatureBudget)
	require.NoError(t, err)
	assert.True(t, enabled)

	enabled, err = f.handler.IsFeatureEnabled(ctx, domain.FeatureOCR)
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestHandler_UnlockSwitch(t *testing.T) {
	f := newFixture(domain.FlavorPlay)
	handler := application.NewHandler(application.HandlerConfig{Flavor: domain.FlavorPlay, UnlockSwitch: true},
		f.statuses, f.reconciler, f.cache, nil, testLogger())

	enabled, err := handler.IsEnabledFor(context.Background(), domain.StatusProfessional)
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestHandler_RegisterUnlockLegacy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(domain.FlavorPlay)

	changed, err := f.handler.RegisterUnlockLegacy(ctx)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Len(t, f.publisher.payloads, 1)

	changed, err = f.handler.RegisterUnlockLegacy(ctx)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Len(t, f.publisher.payloads, 1)
}

type mockVerifier struct {
	licence *domain.LicenceKey
	err     error
}

func (v mockVerifier) Verify(key string) (*domain.LicenceKey, error) {
	return v.licence, v.err
}

func TestHandler_ActivateKey(t *testing.T) {
	ctx := context.Background()

	t.Run("huawei accepts keys", func(t *testing.T) {
		f := newFixture(domain.FlavorHuawei)
		f.handler.SetKeyVerifier(mockVerifier{licence: &domain.LicenceKey{ID: "HW-1", Tier: "PROFESSIONAL"}})

		status, err := f.handler.ActivateKey(ctx, "key")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusProfessional, status)
		info, _ := f.handler.PurchaseExtraInfo(ctx)
		assert.Equal(t, "HW-1", info)
	})

	t.Run("invalid key", func(t *testing.T) {
		f := newFixture(domain.FlavorHuawei)
		f.handler.SetKeyVerifier(mockVerifier{err: domain.ErrInvalidSignature})

		_, err := f.handler.ActivateKey(ctx, "key")
		assert.ErrorIs(t, err, domain.ErrInvalidSignature)
		status, _ := f.handler.LicenceStatus(ctx)
		assert.Equal(t, domain.StatusNone, status)
	})

	t.Run("play does not take keys", func(t *testing.T) {
		f := newFixture(domain.FlavorPlay)
		f.handler.SetKeyVerifier(mockVerifier{licence: &domain.LicenceKey{ID: "HW-1", Tier: "CONTRIB"}})

		_, err := f.handler.ActivateKey(ctx, "key")
		assert.ErrorIs(t, err, domain.ErrKeyEntryUnsupported)
	})
}

func TestHandler_Flavor(t *testing.T) {
	f := newFixture(domain.FlavorHuawei)
	assert.True(t, f.handler.NeedsKeyEntry())
	assert.Empty(t, f.handler.ProPackages())

	_, ok, err := f.handler.FormattedPrice(context.Background(), domain.PackageContrib)
	require.NoError(t, err)
	assert.False(t, ok)
}
