package domain

import "context"

// KeyValueStore is the flat string store backing licence state and prices.
// Numeric values are stored as decimal strings. Writes are applied
// immediately; there are no transactions.
type KeyValueStore interface {
	// Get returns the value for key. The boolean is false when the key is unset.
	Get(ctx context.Context, key string) (string, bool, error)

	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists all keys currently set.
	Keys(ctx context.Context) ([]string, error)

	// Close releases the backend.
	Close() error
}

// Licence status keys.
const (
	KeyLicenceStatus       = "licence_status"
	KeyInitialTimestamp    = "license_initial_timestamp"
	KeyCurrentSubscription = "current_subscription"
	KeyOrderID             = "order_id"
	KeyAddOnPrefix         = "addon_"
)
