package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/felixgeelhaar/tally/internal/licensing/domain"
)

// EventPublisher sends licence events to the message bus.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload []byte) error
}

// KeyVerifier checks offline licence keys.
type KeyVerifier interface {
	Verify(key string) (*domain.LicenceKey, error)
}

// HandlerConfig configures the licence handler.
type HandlerConfig struct {
	Flavor domain.Flavor
	// UnlockSwitch enables every tier regardless of purchases.
	UnlockSwitch bool
}

// Handler is the facade UI adapters use to read the licence, show prices
// and start purchases. It also consumes vendor results as a
// domain.BillingUpdatesListener.
type Handler struct {
	cfg        HandlerConfig
	statuses   *StatusStore
	reconciler *Reconciler
	prices     *PriceCache
	publisher  EventPublisher
	verifier   KeyVerifier
	logger     *slog.Logger
	now        func() time.Time
}

var _ domain.BillingUpdatesListener = (*Handler)(nil)

// NewHandler creates a licence handler. publisher may be nil.
func NewHandler(cfg HandlerConfig, statuses *StatusStore, reconciler *Reconciler, prices *PriceCache, publisher EventPublisher, logger *slog.Logger) *Handler {
	return &Handler{
		cfg:        cfg,
		statuses:   statuses,
		reconciler: reconciler,
		prices:     prices,
		publisher:  publisher,
		logger:     logger,
		now:        time.Now,
	}
}

// SetKeyVerifier enables licence key activation.
func (h *Handler) SetKeyVerifier(v KeyVerifier) {
	h.verifier = v
}

// Flavor returns the store flavor.
func (h *Handler) Flavor() domain.Flavor {
	return h.cfg.Flavor
}

// NeedsKeyEntry reports whether the flavor unlocks with a licence key.
func (h *Handler) NeedsKeyEntry() bool {
	return h.cfg.Flavor.NeedsKeyEntry()
}

// LicenceStatus returns the active tier.
func (h *Handler) LicenceStatus(ctx context.Context) (domain.LicenceStatus, error) {
	return h.statuses.LicenceStatus(ctx)
}

// IsEnabledFor reports whether the active tier covers required.
func (h *Handler) IsEnabledFor(ctx context.Context, required domain.LicenceStatus) (bool, error) {
	if h.cfg.UnlockSwitch {
		return true, nil
	}
	status, err := h.statuses.LicenceStatus(ctx)
	if err != nil {
		return false, err
	}
	return status.Covers(required), nil
}

// IsFeatureEnabled reports whether an add-on is usable, either through the
// tier or through a separate purchase.
func (h *Handler) IsFeatureEnabled(ctx context.Context, feature domain.AddOnFeature) (bool, error) {
	enabled, err := h.IsEnabledFor(ctx, feature.RequiredStatus())
	if err != nil || enabled {
		return enabled, err
	}
	_, ok, err := h.statuses.AddOnOrderID(ctx, feature)
	return ok, err
}

// SkuForPackage resolves the SKU to buy for pkg.
func (h *Handler) SkuForPackage(ctx context.Context, pkg domain.Package) (string, error) {
	status, err := h.statuses.LicenceStatus(ctx)
	if err != nil {
		return "", err
	}
	return domain.SkuForPackage(pkg, status)
}

// FormattedPrice returns the display price of pkg decorated with its billing
// period. The boolean is false when no price is cached.
func (h *Handler) FormattedPrice(ctx context.Context, pkg domain.Package) (string, bool, error) {
	if !h.cfg.Flavor.UsesInAppPurchase() {
		return "", false, nil
	}
	sku, err := h.SkuForPackage(ctx, pkg)
	if err != nil {
		return "", false, err
	}
	price, ok, err := h.prices.DisplayPrice(ctx, h.cfg.Flavor, sku)
	if err != nil || !ok {
		return "", false, err
	}
	return pkg.FormatPrice(price), true, nil
}

// ProPackages returns the professional offerings of the flavor.
func (h *Handler) ProPackages() []domain.Package {
	return h.cfg.Flavor.ProPackages()
}

// ProfessionalPriceShortInfo joins the formatted prices of the monthly and
// yearly professional offerings.
func (h *Handler) ProfessionalPriceShortInfo(ctx context.Context) (string, error) {
	var parts []string
	for _, pkg := range []domain.Package{domain.PackageProfessional1, domain.PackageProfessional12} {
		price, ok, err := h.FormattedPrice(ctx, pkg)
		if err != nil {
			return "", err
		}
		if ok {
			parts = append(parts, price)
		}
	}
	return strings.Join(parts, ", "), nil
}

// ProLicenceRecurrence returns "monthly" or "yearly" for the active
// subscription, or "" when there is none.
func (h *Handler) ProLicenceRecurrence(ctx context.Context) (string, error) {
	sku, _, err := h.statuses.CurrentSubscription(ctx)
	if err != nil {
		return "", err
	}
	return domain.Recurrence(sku), nil
}

// PackageForSwitch returns the offering that switches the active
// subscription to the other billing period.
func (h *Handler) PackageForSwitch(ctx context.Context) (domain.Package, bool, error) {
	sku, ok, err := h.statuses.CurrentSubscription(ctx)
	if err != nil || !ok {
		return "", false, err
	}
	pkg, ok := h.cfg.Flavor.PackageForSwitch(sku)
	return pkg, ok, nil
}

// PurchaseExtraInfo returns the order id of the last purchase.
func (h *Handler) PurchaseExtraInfo(ctx context.Context) (string, error) {
	orderID, _, err := h.statuses.OrderID(ctx)
	return orderID, err
}

// Snapshot returns the stored licence record.
func (h *Handler) Snapshot(ctx context.Context) (Snapshot, error) {
	return h.statuses.Snapshot(ctx)
}

// RegisterUnlockLegacy grants the legacy status if no licence is active.
func (h *Handler) RegisterUnlockLegacy(ctx context.Context) (bool, error) {
	old, err := h.statuses.LicenceStatus(ctx)
	if err != nil {
		return false, err
	}
	changed, err := h.reconciler.RegisterUnlockLegacy(ctx)
	if err != nil || !changed {
		return changed, err
	}
	h.publishStatusChanged(ctx, Outcome{OldStatus: old, NewStatus: domain.StatusContrib}, false)
	return true, nil
}

// ActivateKey unlocks the tier named by a signed licence key. Only flavors
// without in-app purchases accept keys.
func (h *Handler) ActivateKey(ctx context.Context, key string) (domain.LicenceStatus, error) {
	if !h.cfg.Flavor.NeedsKeyEntry() || h.verifier == nil {
		return domain.StatusNone, domain.ErrKeyEntryUnsupported
	}
	licence, err := h.verifier.Verify(key)
	if err != nil {
		return domain.StatusNone, err
	}
	code, err := licence.ContribStatus()
	if err != nil {
		return domain.StatusNone, err
	}
	old, err := h.statuses.LicenceStatus(ctx)
	if err != nil {
		return domain.StatusNone, err
	}
	if err := h.statuses.SetOrderID(ctx, licence.ID); err != nil {
		return domain.StatusNone, err
	}
	if err := h.statuses.SetContribStatus(ctx, code); err != nil {
		return domain.StatusNone, err
	}
	h.logger.Info("licence key activated", "id", licence.ID, "licence", code.LicenceStatus().String())
	h.publishStatusChanged(ctx, Outcome{OldStatus: old, NewStatus: code.LicenceStatus()}, false)
	return code.LicenceStatus(), nil
}

// LaunchPurchase starts a purchase of pkg through session. With
// replaceExisting the active subscription is replaced.
func (h *Handler) LaunchPurchase(ctx context.Context, pkg domain.Package, replaceExisting bool, session *Session) error {
	if !h.cfg.Flavor.UsesInAppPurchase() {
		return domain.ErrPurchaseUnsupported
	}
	if session == nil || session.State() != SessionReady {
		return domain.ErrSessionNotReady
	}
	sku, err := h.SkuForPackage(ctx, pkg)
	if err != nil {
		return err
	}

	req := domain.PurchaseRequest{SKU: sku}
	if h.cfg.Flavor == domain.FlavorPlay {
		details, err := h.prices.ProductDetails(ctx, sku)
		if err != nil {
			return err
		}
		if details == nil {
			return fmt.Errorf("%w: %s", domain.ErrProductDetailsMissing, sku)
		}
		req.Details = details
		if replaceExisting {
			oldSku, ok, err := h.statuses.CurrentSubscription(ctx)
			if err != nil {
				return err
			}
			if !ok || oldSku == "" {
				return domain.ErrNoCurrentSubscription
			}
			req.OldSKU = oldSku
		}
	}

	h.logger.Info("launching purchase", "package", string(pkg), "sku", sku, "old_sku", req.OldSKU)
	return session.Execute(ctx, func(ctx context.Context, client domain.BillingClient) error {
		return client.LaunchPurchaseFlow(ctx, req)
	})
}

// OnPurchasesUpdated reconciles a purchase list. It returns true when a
// tier or an add-on is active, which tells the session to acknowledge.
func (h *Handler) OnPurchasesUpdated(ctx context.Context, purchases []domain.Purchase, newPurchase bool) (bool, error) {
	if purchases == nil {
		return false, nil
	}
	outcome, err := h.reconciler.RegisterInventory(ctx, purchases, newPurchase)
	if err != nil {
		return false, err
	}
	if newPurchase || outcome.Changed() {
		h.logger.Info("licence status set",
			"old", outcome.OldStatus.String(),
			"new", outcome.NewStatus.String(),
			"add_ons", len(outcome.AddOns),
		)
		h.publishStatusChanged(ctx, outcome, newPurchase)
	}
	return !outcome.NewStatus.IsNone() || len(outcome.AddOns) > 0, nil
}

// OnProductDetails caches prices in the format of the flavor.
func (h *Handler) OnProductDetails(ctx context.Context, details []domain.ProductDetails) error {
	switch h.cfg.Flavor {
	case domain.FlavorPlay:
		return h.prices.StoreProductDetails(ctx, details)
	case domain.FlavorAmazon:
		return h.prices.StorePrices(ctx, h.cfg.Flavor.AllSkus(), details)
	default:
		return nil
	}
}

// OnPurchaseCanceled logs an aborted purchase flow.
func (h *Handler) OnPurchaseCanceled(ctx context.Context) {
	h.logger.Info("purchase cancelled by user")
}

// OnPurchaseFailed logs a failed purchase flow.
func (h *Handler) OnPurchaseFailed(ctx context.Context, err error) {
	h.logger.Warn("purchase failed", "error", err)
}

func (h *Handler) publishStatusChanged(ctx context.Context, outcome Outcome, newPurchase bool) {
	if h.publisher == nil {
		return
	}
	payload, err := json.Marshal(domain.StatusChanged{
		Flavor:      h.cfg.Flavor,
		OldStatus:   outcome.OldStatus.String(),
		NewStatus:   outcome.NewStatus.String(),
		AddOns:      outcome.AddOns,
		NewPurchase: newPurchase,
		OccurredAt:  h.now().UTC(),
	})
	if err != nil {
		h.logger.Warn("failed to encode status change", "error", err)
		return
	}
	if err := h.publisher.Publish(ctx, domain.RoutingKeyStatusChanged, payload); err != nil {
		h.logger.Warn("failed to publish status change", "error", err)
	}
}
