package domain

import "strings"

// Store product identifiers.
const (
	SkuPremium                      = "sku_premium"
	SkuExtended                     = "sku_extended"
	SkuPremium2Extended             = "sku_premium2extended"
	SkuProfessionalParent           = "sku_professional"
	SkuProfessionalMonthly          = "sku_professional_monthly"
	SkuProfessionalYearly           = "sku_professional_yearly"
	SkuExtended2ProfessionalParent  = "sku_extended2professional"
	SkuExtended2ProfessionalMonthly = "sku_extended2professional_monthly"
	SkuExtended2ProfessionalYearly  = "sku_extended2professional_yearly"
	SkuSplitTemplate                = "splittemplate"
	SkuHistory                      = "history"
	SkuBudget                       = "budget"
	SkuOCR                          = "ocr"
	SkuWebUI                        = "webui"
)

// StatusFromSku returns the tier a SKU grants. The match is a substring test
// on the tier keyword, checked from the highest tier down, so an upgrade SKU
// such as sku_extended2professional_monthly maps to PROFESSIONAL.
// SKUs without a keyword return false.
func StatusFromSku(sku string) (LicenceStatus, bool) {
	for i := len(Tiers) - 1; i >= 0; i-- {
		if strings.Contains(sku, Tiers[i].SkuKeyword()) {
			return Tiers[i], true
		}
	}
	return StatusNone, false
}

// IsSubscriptionSku reports whether the SKU is a recurring subscription.
func IsSubscriptionSku(sku string) bool {
	switch sku {
	case SkuProfessionalMonthly, SkuProfessionalYearly,
		SkuExtended2ProfessionalMonthly, SkuExtended2ProfessionalYearly:
		return true
	}
	return false
}

// AddOnFeature is a feature that can be bought separately from the tiers.
type AddOnFeature string

const (
	FeatureSplitTemplate AddOnFeature = "split_template"
	FeatureHistory       AddOnFeature = "history"
	FeatureBudget        AddOnFeature = "budget"
	FeatureOCR           AddOnFeature = "ocr"
	FeatureWebUI         AddOnFeature = "web_ui"
)

// AddOnFeatures lists every add-on in display order.
var AddOnFeatures = []AddOnFeature{FeatureSplitTemplate, FeatureHistory, FeatureBudget, FeatureOCR, FeatureWebUI}

var addOnSkus = map[string]AddOnFeature{
	SkuSplitTemplate: FeatureSplitTemplate,
	SkuHistory:       FeatureHistory,
	SkuBudget:        FeatureBudget,
	SkuOCR:           FeatureOCR,
	SkuWebUI:         FeatureWebUI,
}

// AddOnFromSku returns the add-on feature a SKU unlocks.
func AddOnFromSku(sku string) (AddOnFeature, bool) {
	f, ok := addOnSkus[sku]
	return f, ok
}

// RequiredStatus is the tier that includes the feature without a separate purchase.
func (f AddOnFeature) RequiredStatus() LicenceStatus {
	return StatusProfessional
}
