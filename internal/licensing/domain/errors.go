package domain

import "errors"

var (
	// ErrUnknownPackage indicates a package name that is not sold.
	ErrUnknownPackage = errors.New("unknown package")

	// ErrSessionNotReady indicates a purchase was attempted before the billing session was ready.
	ErrSessionNotReady = errors.New("billing session not ready")

	// ErrProductDetailsMissing indicates no cached product details exist for a SKU.
	ErrProductDetailsMissing = errors.New("could not determine product details")

	// ErrNoCurrentSubscription indicates a replacement purchase without an active subscription.
	ErrNoCurrentSubscription = errors.New("could not determine current subscription")

	// ErrPurchaseUnsupported indicates the store flavor has no in-app purchases.
	ErrPurchaseUnsupported = errors.New("in-app purchase not supported by this store")

	// ErrBillingUnavailable indicates the vendor billing service could not be reached.
	ErrBillingUnavailable = errors.New("billing service unavailable")

	// ErrBillingSetupFailed indicates the billing session failed after the automatic reconnect.
	ErrBillingSetupFailed = errors.New("billing setup failed")

	// ErrUnsupportedDriver indicates an unknown key-value store driver.
	ErrUnsupportedDriver = errors.New("unsupported store driver")
)
