package domain

import (
	"fmt"
	"strings"
)

// Flavor identifies the store distribution the app was built for.
type Flavor string

const (
	FlavorPlay   Flavor = "play"
	FlavorAmazon Flavor = "amazon"
	FlavorHuawei Flavor = "huawei"
)

// ParseFlavor resolves a flavor name.
func ParseFlavor(name string) (Flavor, error) {
	switch Flavor(strings.ToLower(strings.TrimSpace(name))) {
	case FlavorPlay:
		return FlavorPlay, nil
	case FlavorAmazon:
		return FlavorAmazon, nil
	case FlavorHuawei:
		return FlavorHuawei, nil
	default:
		return "", fmt.Errorf("unknown store flavor %q", name)
	}
}

// String returns the flavor name.
func (f Flavor) String() string {
	return string(f)
}

// UsesInAppPurchase reports whether licences are bought through the store.
func (f Flavor) UsesInAppPurchase() bool {
	return f == FlavorPlay || f == FlavorAmazon
}

// NeedsKeyEntry reports whether the user unlocks by entering a licence key.
func (f Flavor) NeedsKeyEntry() bool {
	return !f.UsesInAppPurchase()
}

// InAppSkus are the one-time products queried from the store.
func (f Flavor) InAppSkus() []string {
	switch f {
	case FlavorPlay:
		return []string{
			SkuPremium, SkuExtended, SkuPremium2Extended,
			SkuSplitTemplate, SkuHistory, SkuBudget, SkuOCR, SkuWebUI,
		}
	case FlavorAmazon:
		return []string{
			SkuPremium, SkuExtended, SkuPremium2Extended,
			SkuProfessionalMonthly, SkuProfessionalYearly,
			SkuExtended2ProfessionalMonthly, SkuExtended2ProfessionalYearly,
		}
	default:
		return nil
	}
}

// SubscriptionSkus are the recurring products queried from the store.
// Amazon reports subscription terms together with the one-time products.
func (f Flavor) SubscriptionSkus() []string {
	if f != FlavorPlay {
		return nil
	}
	return []string{SkuProfessionalMonthly, SkuProfessionalYearly, SkuExtended2ProfessionalYearly}
}

// AllSkus returns in-app and subscription SKUs.
func (f Flavor) AllSkus() []string {
	return append(f.InAppSkus(), f.SubscriptionSkus()...)
}

// ProPackages returns the professional offerings sold in this flavor.
func (f Flavor) ProPackages() []Package {
	switch f {
	case FlavorPlay:
		return []Package{PackageProfessional1, PackageProfessional12}
	case FlavorAmazon:
		return []Package{PackageProfessionalAmazon}
	default:
		return nil
	}
}

// PackageForSwitch returns the offering that switches the current
// subscription to the other billing period. Only Play supports switching.
func (f Flavor) PackageForSwitch(currentSubscription string) (Package, bool) {
	if f != FlavorPlay {
		return "", false
	}
	switch currentSubscription {
	case SkuProfessionalMonthly:
		return PackageProfessional12, true
	case SkuProfessionalYearly, SkuExtended2ProfessionalYearly:
		return PackageProfessional1, true
	default:
		return "", false
	}
}
