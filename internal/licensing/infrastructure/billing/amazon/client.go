// Package amazon verifies Amazon Appstore receipts through the Receipt
// Verification Service.
package amazon

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/felixgeelhaar/tally/internal/licensing/domain"
	"github.com/felixgeelhaar/tally/internal/licensing/infrastructure/billing"
	"github.com/felixgeelhaar/tally/pkg/observability"
)

const defaultBaseURL = "https://appstore-sdk.amazon.com"

// Config configures the Amazon client.
type Config struct {
	// BaseURL overrides the RVS endpoint, e.g. the sandbox.
	BaseURL string
	// SharedSecret is the developer shared secret.
	SharedSecret string
	// UserID is the Amazon user the receipts belong to.
	UserID    string
	Transport billing.TransportConfig
}

// Client implements domain.BillingClient for the Amazon Appstore. Receipts
// are verified server side; prices, purchase flows and fulfillment go
// through the device billing bridge and come back as events.
type Client struct {
	cfg       Config
	baseURL   string
	transport *billing.Transport
	ledger    *billing.Ledger
	bridge    billing.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

var _ domain.BillingClient = (*Client)(nil)

// NewClient creates an Amazon client.
func NewClient(cfg Config, ledger *billing.Ledger, bridge billing.Publisher, logger *slog.Logger, metrics observability.Metrics) (*Client, error) {
	if cfg.SharedSecret == "" {
		return nil, billing.ErrNoCredentials
	}
	if logger == nil {
		logger = slog.Default()
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if cfg.Transport.Name == "" {
		cfg.Transport = billing.DefaultTransportConfig("amazon")
	}

	return &Client{
		cfg:       cfg,
		baseURL:   baseURL,
		transport: billing.NewTransport(cfg.Transport, nil, logger, metrics),
		ledger:    ledger,
		bridge:    bridge,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Connect requires a user to verify receipts for.
func (c *Client) Connect(_ context.Context) error {
	if c.cfg.UserID == "" {
		return fmt.Errorf("%w: amazon user id not set", domain.ErrBillingUnavailable)
	}
	return nil
}

// RecordPurchases remembers receipt ids reported by the device.
func (c *Client) RecordPurchases(ctx context.Context, purchases []domain.Purchase) error {
	return c.ledger.RecordPurchases(ctx, purchases)
}

type receipt struct {
	ReceiptID    string `json:"receiptId"`
	ProductID    string `json:"productId"`
	ProductType  string `json:"productType"`
	PurchaseDate int64  `json:"purchaseDate"`
	CancelDate   *int64 `json:"cancelDate"`
}

// QueryPurchases verifies every known receipt. Receipts RVS rejects are
// forgotten.
func (c *Client) QueryPurchases(ctx context.Context) ([]domain.Purchase, error) {
	entries, err := c.ledger.Entries(ctx)
	if err != nil {
		return nil, err
	}

	purchases := make([]domain.Purchase, 0, len(entries))
	for _, entry := range entries {
		var r receipt
		err := c.transport.DoJSON(ctx, http.MethodGet, c.verifyURL(entry.Token), nil, &r)
		if billing.IsStatus(err, http.StatusBadRequest) || billing.IsStatus(err, http.StatusGone) {
			c.logger.Info("receipt no longer valid", "sku", entry.SKU)
			if err := c.ledger.Forget(ctx, entry.SKU); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("verify %s: %w", entry.SKU, err)
		}

		sku := r.ProductID
		if sku == "" {
			sku = entry.SKU
		}
		purchase := domain.Purchase{
			SKU:          sku,
			OrderID:      r.ReceiptID,
			Token:        entry.Token,
			State:        domain.PurchaseStatePurchased,
			Acknowledged: true,
		}
		if r.PurchaseDate > 0 {
			purchase.PurchasedAt = time.UnixMilli(r.PurchaseDate)
		}
		if r.CancelDate != nil && *r.CancelDate > 0 {
			purchase.Cancelled = true
		}
		purchases = append(purchases, purchase)
	}
	return purchases, nil
}

// QueryProductDetails asks the device for prices. Amazon has no server
// catalogue API; the answer arrives as a products update event, so this
// returns nothing.
func (c *Client) QueryProductDetails(ctx context.Context, skus []string) ([]domain.ProductDetails, error) {
	err := billing.PublishJSON(ctx, c.bridge, domain.RoutingKeyProductsQuery, domain.ProductsQuery{
		Flavor: domain.FlavorAmazon,
		Skus:   skus,
	})
	return nil, err
}

// LaunchPurchaseFlow asks the device to show the Appstore purchase dialog.
// Amazon has no subscription replacement, so OldSKU is dropped.
func (c *Client) LaunchPurchaseFlow(ctx context.Context, req domain.PurchaseRequest) error {
	return billing.PublishJSON(ctx, c.bridge, domain.RoutingKeyPurchaseLaunch, domain.PurchaseLaunch{
		Flavor:      domain.FlavorAmazon,
		SKU:         req.SKU,
		ProductType: domain.ProductTypeInApp,
		Details:     req.Details,
		RequestedAt: c.now().UTC(),
	})
}

// Acknowledge asks the device to notify fulfillment of the receipt.
func (c *Client) Acknowledge(ctx context.Context, purchase domain.Purchase) error {
	return billing.PublishJSON(ctx, c.bridge, domain.RoutingKeyPurchaseFulfill, domain.PurchaseFulfill{
		Flavor:   domain.FlavorAmazon,
		Purchase: purchase,
	})
}

// Close releases nothing.
func (c *Client) Close() error {
	return nil
}

func (c *Client) verifyURL(receiptID string) string {
	return fmt.Sprintf("%s/version/1.0/verifyReceiptId/developer/%s/user/%s/receiptId/%s",
		c.baseURL,
		url.PathEscape(c.cfg.SharedSecret),
		url.PathEscape(c.cfg.UserID),
		url.PathEscape(receiptID),
	)
}
