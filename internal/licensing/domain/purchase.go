package domain

import "time"

// PurchaseState is the vendor-reported state of a purchase.
type PurchaseState int

const (
	// PurchaseStateUnspecified is reported when the vendor state is unknown.
	PurchaseStateUnspecified PurchaseState = iota
	// PurchaseStatePurchased is a completed payment.
	PurchaseStatePurchased
	// PurchaseStatePending is a payment still awaiting confirmation.
	PurchaseStatePending
)

// String returns the state name.
func (s PurchaseState) String() string {
	switch s {
	case PurchaseStatePurchased:
		return "purchased"
	case PurchaseStatePending:
		return "pending"
	default:
		return "unspecified"
	}
}

// Purchase is a vendor purchase or receipt record. It is owned by the vendor
// and only read here.
type Purchase struct {
	SKU          string        `json:"sku"`
	OrderID      string        `json:"order_id"`
	Token        string        `json:"token,omitempty"`
	State        PurchaseState `json:"state"`
	Acknowledged bool          `json:"acknowledged"`
	Cancelled    bool          `json:"cancelled"`
	PurchasedAt  time.Time     `json:"purchased_at,omitempty"`
}

// NeedsAcknowledgement reports whether the vendor still waits for the
// purchase to be confirmed.
func (p Purchase) NeedsAcknowledgement() bool {
	return p.State == PurchaseStatePurchased && !p.Acknowledged && !p.Cancelled
}

// ProductType distinguishes one-time products from subscriptions.
type ProductType string

const (
	ProductTypeInApp        ProductType = "inapp"
	ProductTypeSubscription ProductType = "subs"
)

// ProductDetails is vendor metadata about a SKU. The JSON form is what gets
// cached for display prices.
type ProductDetails struct {
	SKU               string      `json:"productId"`
	Type              ProductType `json:"type"`
	Title             string      `json:"title,omitempty"`
	Description       string      `json:"description,omitempty"`
	Price             string      `json:"price"`
	PriceAmountMicros int64       `json:"price_amount_micros,omitempty"`
	PriceCurrencyCode string      `json:"price_currency_code,omitempty"`
	IntroductoryPrice string      `json:"introductoryPrice,omitempty"`
}

// DisplayPrice prefers the introductory price when one is offered.
func (d ProductDetails) DisplayPrice() string {
	if d.IntroductoryPrice != "" {
		return d.IntroductoryPrice
	}
	return d.Price
}

// PurchaseRequest asks the vendor to start a purchase flow.
type PurchaseRequest struct {
	SKU     string          `json:"sku"`
	OldSKU  string          `json:"old_sku,omitempty"`
	Details *ProductDetails `json:"details,omitempty"`
}
