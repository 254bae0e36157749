package domain

import (
	"fmt"
	"strings"
)

// Package is a purchasable offering as presented to the user.
type Package string

const (
	PackageContrib            Package = "Contrib"
	PackageUpgrade            Package = "Upgrade"
	PackageExtended           Package = "Extended"
	PackageProfessional1      Package = "Professional_1"
	PackageProfessional12     Package = "Professional_12"
	PackageProfessionalAmazon Package = "Professional_Amazon"
)

// Packages lists every offering.
var Packages = []Package{
	PackageContrib,
	PackageUpgrade,
	PackageExtended,
	PackageProfessional1,
	PackageProfessional12,
	PackageProfessionalAmazon,
}

// ParsePackage resolves a package name case-insensitively.
func ParsePackage(name string) (Package, error) {
	for _, p := range Packages {
		if strings.EqualFold(string(p), strings.TrimSpace(name)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownPackage, name)
}

// IsProfessional reports whether the package unlocks the professional tier.
func (p Package) IsProfessional() bool {
	switch p {
	case PackageProfessional1, PackageProfessional12, PackageProfessionalAmazon:
		return true
	}
	return false
}

// SkuForPackage returns the SKU to buy for a package given the current tier.
// Users on EXTENDED get the discounted upgrade SKU for yearly and Amazon
// professional offerings.
func SkuForPackage(p Package, current LicenceStatus) (string, error) {
	hasExtended := current == StatusExtended
	switch p {
	case PackageContrib:
		return SkuPremium, nil
	case PackageUpgrade:
		return SkuPremium2Extended, nil
	case PackageExtended:
		return SkuExtended, nil
	case PackageProfessional1:
		return SkuProfessionalMonthly, nil
	case PackageProfessional12:
		if hasExtended {
			return SkuExtended2ProfessionalYearly, nil
		}
		return SkuProfessionalYearly, nil
	case PackageProfessionalAmazon:
		if hasExtended {
			return SkuExtended2ProfessionalParent, nil
		}
		return SkuProfessionalParent, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownPackage, p)
	}
}

// FormatPrice decorates a display price with the package's billing period.
func (p Package) FormatPrice(price string) string {
	switch p {
	case PackageProfessional1:
		return price + " / month"
	case PackageProfessional12:
		return price + " / year"
	default:
		return price
	}
}

// Recurrence returns "monthly" or "yearly" for a subscription SKU, or "".
func Recurrence(sku string) string {
	switch sku {
	case SkuProfessionalMonthly, SkuExtended2ProfessionalMonthly:
		return "monthly"
	case SkuProfessionalYearly, SkuExtended2ProfessionalYearly:
		return "yearly"
	default:
		return ""
	}
}
