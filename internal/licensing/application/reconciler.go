package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/tally/internal/licensing/domain"
	"github.com/felixgeelhaar/tally/pkg/observability"
)

// Outcome summarizes one reconciliation.
type Outcome struct {
	OldStatus domain.LicenceStatus
	NewStatus domain.LicenceStatus
	Winner    *domain.Purchase
	OldAddOns []domain.AddOnFeature
	AddOns    []domain.AddOnFeature
}

// Changed reports whether the tier changed or add-ons were gained.
func (o Outcome) Changed() bool {
	return o.OldStatus != o.NewStatus || len(o.AddOns) > len(o.OldAddOns)
}

// Reconciler maps vendor purchases to the persisted licence status.
type Reconciler struct {
	statuses    *StatusStore
	diagnostics domain.Diagnostics
	logger      *slog.Logger
	metrics     observability.Metrics
	now         func() time.Time
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithClock overrides the time source.
func WithClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) { r.now = now }
}

// WithMetrics records reconciliation metrics.
func WithMetrics(m observability.Metrics) ReconcilerOption {
	return func(r *Reconciler) { r.metrics = m }
}

// NewReconciler creates a reconciler.
func NewReconciler(statuses *StatusStore, diagnostics domain.Diagnostics, logger *slog.Logger, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		statuses:    statuses,
		diagnostics: diagnostics,
		logger:      logger,
		metrics:     observability.NoopMetrics{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FindHighestValidPurchase returns the purchase granting the highest tier.
// Records with an unknown SKU or a cancellation are skipped. Records in any
// state other than purchased are reported and skipped. On equal tiers the
// earlier record wins. Returns nil when nothing qualifies.
func (r *Reconciler) FindHighestValidPurchase(ctx context.Context, purchases []domain.Purchase) *domain.Purchase {
	var (
		best     *domain.Purchase
		bestTier domain.LicenceStatus
	)
	for i := range purchases {
		p := purchases[i]
		tier, ok := domain.StatusFromSku(p.SKU)
		if !ok || p.Cancelled {
			continue
		}
		if p.State != domain.PurchaseStatePurchased {
			r.diagnostics.Report(ctx, fmt.Errorf("found purchase in state %s", p.State),
				"sku", p.SKU, "order_id", p.OrderID)
			r.metrics.Counter(observability.MetricPurchasesIgnored, 1, observability.T("state", p.State.String()))
			continue
		}
		if best == nil || tier > bestTier {
			best = &purchases[i]
			bestTier = tier
		}
	}
	return best
}

// RegisterInventory reconciles a purchase list with the stored licence.
// With no valid purchase the refund window check runs, except for lists
// that come from a purchase flow.
func (r *Reconciler) RegisterInventory(ctx context.Context, purchases []domain.Purchase, newPurchase bool) (Outcome, error) {
	timer := observability.StartTimer("licence.reconcile").WithMetrics(r.metrics)

	outcome, err := r.registerInventory(ctx, purchases, newPurchase)
	timer.StopWithError(err)
	return outcome, err
}

func (r *Reconciler) registerInventory(ctx context.Context, purchases []domain.Purchase, newPurchase bool) (Outcome, error) {
	var outcome Outcome
	old, err := r.statuses.LicenceStatus(ctx)
	if err != nil {
		return outcome, err
	}
	outcome.OldStatus = old
	if outcome.OldAddOns, err = r.statuses.AddOns(ctx); err != nil {
		return outcome, err
	}

	for _, p := range purchases {
		r.logger.Info("purchase",
			"sku", p.SKU,
			"state", p.State.String(),
			"acknowledged", p.Acknowledged,
			"cancelled", p.Cancelled,
		)
	}

	if winner := r.FindHighestValidPurchase(ctx, purchases); winner != nil {
		outcome.Winner = winner
		if _, err := r.HandlePurchase(ctx, winner.SKU, winner.OrderID); err != nil {
			return outcome, err
		}
	} else if !newPurchase {
		if err := r.MaybeCancel(ctx); err != nil {
			return outcome, err
		}
	}

	if err := r.registerAddOns(ctx, purchases, newPurchase); err != nil {
		return outcome, err
	}

	if outcome.NewStatus, err = r.statuses.LicenceStatus(ctx); err != nil {
		return outcome, err
	}
	if outcome.AddOns, err = r.statuses.AddOns(ctx); err != nil {
		return outcome, err
	}
	r.metrics.Gauge(observability.MetricLicenceStatus, float64(outcome.NewStatus))
	if outcome.NewStatus < outcome.OldStatus {
		r.metrics.Counter(observability.MetricStatusDowngrades, 1)
	}
	return outcome, nil
}

// HandlePurchase records a purchase of sku and updates the status for the
// tier it grants. Unknown SKUs only update the order id.
func (r *Reconciler) HandlePurchase(ctx context.Context, sku, orderID string) (domain.LicenceStatus, error) {
	if err := r.statuses.SetOrderID(ctx, orderID); err != nil {
		return domain.StatusNone, fmt.Errorf("store order id: %w", err)
	}
	tier, ok := domain.StatusFromSku(sku)
	if !ok {
		return domain.StatusNone, nil
	}

	var err error
	switch tier {
	case domain.StatusContrib:
		err = r.RegisterPurchase(ctx, false)
	case domain.StatusExtended:
		err = r.RegisterPurchase(ctx, true)
	case domain.StatusProfessional:
		err = r.RegisterSubscription(ctx, sku)
	}
	return tier, err
}

// RegisterPurchase records a one-time purchase. The status stays temporary
// until the refund window since the first purchase has passed.
func (r *Reconciler) RegisterPurchase(ctx context.Context, extended bool) error {
	status := domain.ContribEnabledTemporary
	if extended {
		status = domain.ContribExtendedTemporary
	}

	ts, err := r.statuses.InitialTimestamp(ctx)
	if err != nil {
		return err
	}
	now := r.now()
	if ts == 0 {
		if err := r.statuses.SetInitialTimestamp(ctx, now); err != nil {
			return fmt.Errorf("store initial timestamp: %w", err)
		}
	} else {
		elapsed := now.Sub(time.UnixMilli(ts))
		r.logger.Debug("time since initial check", "elapsed_ms", elapsed.Milliseconds())
		if elapsed > domain.RefundWindow {
			status = domain.ContribEnabledPermanent
			if extended {
				status = domain.ContribExtendedPermanent
			}
		}
	}
	return r.updateContribStatus(ctx, status)
}

// RegisterSubscription records an active professional subscription.
func (r *Reconciler) RegisterSubscription(ctx context.Context, sku string) error {
	if err := r.statuses.SetCurrentSubscription(ctx, sku); err != nil {
		return fmt.Errorf("store current subscription: %w", err)
	}
	return r.updateContribStatus(ctx, domain.ContribProfessional)
}

// MaybeCancel disables the licence once the refund window since the first
// purchase has passed without a valid purchase. Legacy unlocks are kept.
func (r *Reconciler) MaybeCancel(ctx context.Context) error {
	code, err := r.statuses.ContribStatus(ctx)
	if err != nil {
		return err
	}
	if code == domain.ContribLegacySecond {
		return nil
	}
	ts, err := r.statuses.InitialTimestamp(ctx)
	if err != nil {
		return err
	}
	if r.now().Sub(time.UnixMilli(ts)) > domain.RefundWindow {
		return r.Cancel(ctx)
	}
	return nil
}

// Cancel disables the licence.
func (r *Reconciler) Cancel(ctx context.Context) error {
	return r.updateContribStatus(ctx, domain.ContribDisabled)
}

// RegisterUnlockLegacy grants the legacy status when no licence is active.
// It reports whether the status was changed.
func (r *Reconciler) RegisterUnlockLegacy(ctx context.Context) (bool, error) {
	status, err := r.statuses.LicenceStatus(ctx)
	if err != nil {
		return false, err
	}
	if !status.IsNone() {
		return false, nil
	}
	if err := r.updateContribStatus(ctx, domain.ContribLegacySecond); err != nil {
		return false, err
	}
	return true, nil
}

// registerAddOns stores the order ids of add-on purchases. A full inventory
// also drops add-ons the vendor no longer reports.
func (r *Reconciler) registerAddOns(ctx context.Context, purchases []domain.Purchase, newPurchase bool) error {
	seen := make(map[domain.AddOnFeature]bool)
	for _, p := range purchases {
		feature, ok := domain.AddOnFromSku(p.SKU)
		if !ok || p.Cancelled || p.State != domain.PurchaseStatePurchased {
			continue
		}
		seen[feature] = true
		if err := r.statuses.SetAddOnOrderID(ctx, feature, p.OrderID); err != nil {
			return fmt.Errorf("store add-on %s: %w", feature, err)
		}
	}
	if newPurchase {
		return nil
	}
	existing, err := r.statuses.AddOns(ctx)
	if err != nil {
		return err
	}
	for _, feature := range existing {
		if seen[feature] {
			continue
		}
		if err := r.statuses.ClearAddOn(ctx, feature); err != nil {
			return fmt.Errorf("clear add-on %s: %w", feature, err)
		}
		r.logger.Info("add-on removed", "feature", feature)
	}
	return nil
}

func (r *Reconciler) updateContribStatus(ctx context.Context, code domain.ContribStatus) error {
	if err := r.statuses.SetContribStatus(ctx, code); err != nil {
		return fmt.Errorf("store licence status: %w", err)
	}
	r.logger.Info("contrib status set", "code", code.String(), "licence", code.LicenceStatus().String())
	return nil
}
