package application

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/felixgeelhaar/tally/internal/licensing/domain"
)

// StatusStore reads and writes the licence status record.
type StatusStore struct {
	store       domain.KeyValueStore
	diagnostics domain.Diagnostics
}

// NewStatusStore creates a status store over a key-value store.
func NewStatusStore(store domain.KeyValueStore, diagnostics domain.Diagnostics) *StatusStore {
	return &StatusStore{store: store, diagnostics: diagnostics}
}

// Snapshot is the licence status record at one point in time.
type Snapshot struct {
	ContribStatus       domain.ContribStatus  `json:"contrib_status"`
	LicenceStatus       string                `json:"licence_status"`
	InitialTimestamp    int64                 `json:"initial_timestamp,omitempty"`
	CurrentSubscription string                `json:"current_subscription,omitempty"`
	OrderID             string                `json:"order_id,omitempty"`
	AddOns              []domain.AddOnFeature `json:"add_ons,omitempty"`
}

// ContribStatus returns the stored status code, 0 when unset.
func (s *StatusStore) ContribStatus(ctx context.Context) (domain.ContribStatus, error) {
	v, err := s.int64(ctx, domain.KeyLicenceStatus)
	return domain.ContribStatus(v), err
}

// SetContribStatus stores the status code.
func (s *StatusStore) SetContribStatus(ctx context.Context, status domain.ContribStatus) error {
	return s.store.Put(ctx, domain.KeyLicenceStatus, strconv.Itoa(int(status)))
}

// LicenceStatus returns the tier derived from the stored status code.
func (s *StatusStore) LicenceStatus(ctx context.Context) (domain.LicenceStatus, error) {
	code, err := s.ContribStatus(ctx)
	if err != nil {
		return domain.StatusNone, err
	}
	return code.LicenceStatus(), nil
}

// InitialTimestamp returns the first purchase time in unix millis, 0 when unset.
func (s *StatusStore) InitialTimestamp(ctx context.Context) (int64, error) {
	return s.int64(ctx, domain.KeyInitialTimestamp)
}

// SetInitialTimestamp stores the first purchase time.
func (s *StatusStore) SetInitialTimestamp(ctx context.Context, t time.Time) error {
	return s.store.Put(ctx, domain.KeyInitialTimestamp, strconv.FormatInt(t.UnixMilli(), 10))
}

// CurrentSubscription returns the SKU of the active subscription.
func (s *StatusStore) CurrentSubscription(ctx context.Context) (string, bool, error) {
	return s.store.Get(ctx, domain.KeyCurrentSubscription)
}

// SetCurrentSubscription stores the SKU of the active subscription.
func (s *StatusStore) SetCurrentSubscription(ctx context.Context, sku string) error {
	return s.store.Put(ctx, domain.KeyCurrentSubscription, sku)
}

// OrderID returns the order id of the last handled purchase.
func (s *StatusStore) OrderID(ctx context.Context) (string, bool, error) {
	return s.store.Get(ctx, domain.KeyOrderID)
}

// SetOrderID stores the order id of the last handled purchase.
func (s *StatusStore) SetOrderID(ctx context.Context, orderID string) error {
	return s.store.Put(ctx, domain.KeyOrderID, orderID)
}

// SetAddOnOrderID records the purchase of an add-on.
func (s *StatusStore) SetAddOnOrderID(ctx context.Context, feature domain.AddOnFeature, orderID string) error {
	return s.store.Put(ctx, addOnKey(feature), orderID)
}

// AddOnOrderID returns the order id an add-on was bought with.
func (s *StatusStore) AddOnOrderID(ctx context.Context, feature domain.AddOnFeature) (string, bool, error) {
	return s.store.Get(ctx, addOnKey(feature))
}

// ClearAddOn forgets an add-on purchase.
func (s *StatusStore) ClearAddOn(ctx context.Context, feature domain.AddOnFeature) error {
	return s.store.Delete(ctx, addOnKey(feature))
}

// AddOns lists the purchased add-on features in a stable order.
func (s *StatusStore) AddOns(ctx context.Context) ([]domain.AddOnFeature, error) {
	keys, err := s.store.Keys(ctx)
	if err != nil {
		return nil, err
	}
	var features []domain.AddOnFeature
	for _, k := range keys {
		if name, ok := strings.CutPrefix(k, domain.KeyAddOnPrefix); ok {
			features = append(features, domain.AddOnFeature(name))
		}
	}
	sort.Slice(features, func(i, j int) bool { return features[i] < features[j] })
	return features, nil
}

// Snapshot reads the whole record.
func (s *StatusStore) Snapshot(ctx context.Context) (Snapshot, error) {
	code, err := s.ContribStatus(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	ts, err := s.InitialTimestamp(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	sub, _, err := s.CurrentSubscription(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	orderID, _, err := s.OrderID(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	addOns, err := s.AddOns(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		ContribStatus:       code,
		LicenceStatus:       code.LicenceStatus().String(),
		InitialTimestamp:    ts,
		CurrentSubscription: sub,
		OrderID:             orderID,
		AddOns:              addOns,
	}, nil
}

// int64 reads a numeric value. Garbage reads as 0 and is reported.
func (s *StatusStore) int64(ctx context.Context, key string) (int64, error) {
	raw, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", key, err)
	}
	if !ok || raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.diagnostics.Report(ctx, fmt.Errorf("unable to parse %s: %w", key, err), "value", raw)
		return 0, nil
	}
	return v, nil
}

func addOnKey(feature domain.AddOnFeature) string {
	return domain.KeyAddOnPrefix + string(feature)
}
