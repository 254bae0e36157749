package domain

import "context"

// BillingClient is the store-specific connection to a vendor billing system.
type BillingClient interface {
	// Connect establishes the vendor connection.
	Connect(ctx context.Context) error

	// QueryPurchases returns the purchases the vendor currently knows about.
	QueryPurchases(ctx context.Context) ([]Purchase, error)

	// QueryProductDetails returns metadata for the given SKUs.
	QueryProductDetails(ctx context.Context, skus []string) ([]ProductDetails, error)

	// LaunchPurchaseFlow starts a purchase. The result arrives later as a
	// purchase update.
	LaunchPurchaseFlow(ctx context.Context, req PurchaseRequest) error

	// Acknowledge confirms a purchase to the vendor.
	Acknowledge(ctx context.Context, purchase Purchase) error

	// Close terminates the connection.
	Close() error
}

// BillingUpdatesListener receives vendor results.
type BillingUpdatesListener interface {
	// OnPurchasesUpdated handles a purchase list. newPurchase is true when the
	// list results from a purchase flow rather than an inventory query.
	// It returns true when purchased records should be acknowledged.
	OnPurchasesUpdated(ctx context.Context, purchases []Purchase, newPurchase bool) (bool, error)

	// OnProductDetails handles product metadata.
	OnProductDetails(ctx context.Context, details []ProductDetails) error

	// OnPurchaseCanceled is called when the user aborts a purchase flow.
	OnPurchaseCanceled(ctx context.Context)

	// OnPurchaseFailed is called when a purchase flow fails.
	OnPurchaseFailed(ctx context.Context, err error)
}

// SetupListener is told when a billing session becomes usable or fails for good.
type SetupListener interface {
	OnBillingSetupFinished(ctx context.Context)
	OnBillingSetupFailed(ctx context.Context, err error)
}

// Diagnostics collects unexpected conditions for later analysis.
type Diagnostics interface {
	Report(ctx context.Context, err error, attrs ...any)
}
