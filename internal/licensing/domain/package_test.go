package domain_test

import (
	"testing"

	"github.com/felixgeelhaar/tally/internal/licensing/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSkuForPackage(t *testing.T) {
	tests := []struct {
		name     string
		pkg      domain.Package
		current  domain.LicenceStatus
		expected string
	}{
		{"contrib", domain.PackageContrib, domain.StatusNone, domain.SkuPremium},
		{"upgrade", domain.PackageUpgrade, domain.StatusContrib, domain.SkuPremium2Extended},
		{"extended", domain.PackageExtended, domain.StatusNone, domain.SkuExtended},
		{"monthly ignores extended", domain.PackageProfessional1, domain.StatusExtended, domain.SkuProfessionalMonthly},
		{"yearly without extended", domain.PackageProfessional12, domain.StatusContrib, domain.SkuProfessionalYearly},
		{"yearly with extended", domain.PackageProfessional12, domain.StatusExtended, domain.SkuExtended2ProfessionalYearly},
		{"amazon without extended", domain.PackageProfessionalAmazon, domain.StatusNone, domain.SkuProfessionalParent},
		{"amazon with extended", domain.PackageProfessionalAmazon, domain.StatusExtended, domain.SkuExtended2ProfessionalParent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sku, err := domain.SkuForPackage(tt.pkg, tt.current)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, sku)
		})
	}
}

func TestSkuForPackage_Unknown(t *testing.T) {
	_, err := domain.SkuForPackage(domain.Package("Lifetime"), domain.StatusNone)
	assert.ErrorIs(t, err, domain.ErrUnknownPackage)
}

func TestParsePackage(t *testing.T) {
	pkg, err := domain.ParsePackage("professional_12")
	require.NoError(t, err)
	assert.Equal(t, domain.PackageProfessional12, pkg)
	assert.True(t, pkg.IsProfessional())

	_, err = domain.ParsePackage("gold")
	assert.ErrorIs(t, err, domain.ErrUnknownPackage)
}

func TestPackage_FormatPrice(t *testing.T) {
	assert.Equal(t, "€4.99 / month", domain.PackageProfessional1.FormatPrice("€4.99"))
	assert.Equal(t, "€39.99 / year", domain.PackageProfessional12.FormatPrice("€39.99"))
	assert.Equal(t, "€2.99", domain.PackageContrib.FormatPrice("€2.99"))
}

func TestRecurrence(t *testing.T) {
	assert.Equal(t, "monthly", domain.Recurrence(domain.SkuExtended2ProfessionalMonthly))
	assert.Equal(t, "yearly", domain.Recurrence(domain.SkuProfessionalYearly))
	assert.Equal(t, "", domain.Recurrence(domain.SkuPremium))
}

func TestFlavor(t *testing.T) {
	t.Run("play", func(t *testing.T) {
		f, err := domain.ParseFlavor("Play")
		require.NoError(t, err)
		assert.True(t, f.UsesInAppPurchase())
		assert.False(t, f.NeedsKeyEntry())
		assert.Contains(t, f.InAppSkus(), domain.SkuWebUI)
		assert.Equal(t, []domain.Package{domain.PackageProfessional1, domain.PackageProfessional12}, f.ProPackages())
		assert.Len(t, f.AllSkus(), 11)
	})

	t.Run("amazon", func(t *testing.T) {
		f := domain.FlavorAmazon
		assert.True(t, f.UsesInAppPurchase())
		assert.Empty(t, f.SubscriptionSkus())
		assert.Contains(t, f.InAppSkus(), domain.SkuExtended2ProfessionalMonthly)
		_, ok := f.PackageForSwitch(domain.SkuProfessionalMonthly)
		assert.False(t, ok)
	})

	t.Run("huawei", func(t *testing.T) {
		f := domain.FlavorHuawei
		assert.False(t, f.UsesInAppPurchase())
		assert.True(t, f.NeedsKeyEntry())
		assert.Empty(t, f.AllSkus())
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := domain.ParseFlavor("fdroid")
		assert.Error(t, err)
	})
}

func TestFlavor_PackageForSwitch(t *testing.T) {
	tests := []struct {
		current  string
		expected domain.Package
		ok       bool
	}{
		{domain.SkuProfessionalMonthly, domain.PackageProfessional12, true},
		{domain.SkuProfessionalYearly, domain.PackageProfessional1, true},
		{domain.SkuExtended2ProfessionalYearly, domain.PackageProfessional1, true},
		{domain.SkuExtended2ProfessionalMonthly, "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.current, func(t *testing.T) {
			pkg, ok := domain.FlavorPlay.PackageForSwitch(tt.current)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, pkg)
		})
	}
}

func TestPurchase_NeedsAcknowledgement(t *testing.T) {
	assert.True(t, domain.Purchase{State: domain.PurchaseStatePurchased}.NeedsAcknowledgement())
	assert.False(t, domain.Purchase{State: domain.PurchaseStatePurchased, Acknowledged: true}.NeedsAcknowledgement())
	assert.False(t, domain.Purchase{State: domain.PurchaseStatePending}.NeedsAcknowledgement())
	assert.False(t, domain.Purchase{State: domain.PurchaseStatePurchased, Cancelled: true}.NeedsAcknowledgement())
}

func TestProductDetails_DisplayPrice(t *testing.T) {
	assert.Equal(t, "€1.99", domain.ProductDetails{Price: "€4.99", IntroductoryPrice: "€1.99"}.DisplayPrice())
	assert.Equal(t, "€4.99", domain.ProductDetails{Price: "€4.99"}.DisplayPrice())
}
