package domain

import "time"

// Routing keys on the billing exchange.
const (
	RoutingKeyStatusChanged    = "licence.status_changed"
	RoutingKeyPurchasesUpdated = "billing.purchases.updated"
	RoutingKeyProductsUpdated  = "billing.products.updated"
	RoutingKeyProductsQuery    = "billing.products.query"
	RoutingKeyPurchaseLaunch   = "billing.purchase.launch"
	RoutingKeyPurchaseFulfill  = "billing.purchase.fulfill"
	RoutingKeyPurchaseCanceled = "billing.purchase.canceled"
	RoutingKeyPurchaseFailed   = "billing.purchase.failed"
)

// StatusChanged is published after a reconciliation changed the licence.
type StatusChanged struct {
	Flavor      Flavor         `json:"flavor"`
	OldStatus   string         `json:"old_status"`
	NewStatus   string         `json:"new_status"`
	AddOns      []AddOnFeature `json:"add_ons,omitempty"`
	NewPurchase bool           `json:"new_purchase"`
	OccurredAt  time.Time      `json:"occurred_at"`
}

// PurchasesUpdated is sent by a device billing bridge when the vendor
// reports purchases.
type PurchasesUpdated struct {
	Purchases   []Purchase `json:"purchases"`
	NewPurchase bool       `json:"new_purchase"`
}

// ProductsUpdated is sent by a device billing bridge with product metadata.
type ProductsUpdated struct {
	Products []ProductDetails `json:"products"`
}

// PurchaseLaunch asks the device billing bridge to show a purchase flow.
type PurchaseLaunch struct {
	Flavor      Flavor          `json:"flavor"`
	SKU         string          `json:"sku"`
	OldSKU      string          `json:"old_sku,omitempty"`
	ProductType ProductType     `json:"product_type,omitempty"`
	Details     *ProductDetails `json:"details,omitempty"`
	RequestedAt time.Time       `json:"requested_at"`
}

// PurchaseFulfill asks the device billing bridge to confirm a receipt the
// vendor has no server API for.
type PurchaseFulfill struct {
	Flavor   Flavor   `json:"flavor"`
	Purchase Purchase `json:"purchase"`
}

// PurchaseFailed is sent by the bridge when a purchase flow ends in error.
type PurchaseFailed struct {
	SKU    string `json:"sku,omitempty"`
	Reason string `json:"reason"`
}

// ProductsQuery asks the device billing bridge to report product details
// for stores without a server-side catalogue API.
type ProductsQuery struct {
	Flavor Flavor   `json:"flavor"`
	Skus   []string `json:"skus"`
}
