// Package play talks to the Google Play Developer API.
package play

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/felixgeelhaar/tally/internal/licensing/domain"
	"github.com/felixgeelhaar/tally/internal/licensing/infrastructure/billing"
	"github.com/felixgeelhaar/tally/pkg/observability"
)

const defaultBaseURL = "https://androidpublisher.googleapis.com/androidpublisher/v3/applications"

// Config configures the Play client.
type Config struct {
	PackageName string
	// BaseURL overrides the androidpublisher endpoint.
	BaseURL string
	// Region picks regional prices, e.g. "DE". Empty uses the default price.
	Region    string
	Transport billing.TransportConfig
}

// Client implements domain.BillingClient for Google Play. Purchases are
// verified server side from tokens in the ledger; purchase flows run on the
// device through the billing bridge.
type Client struct {
	cfg       Config
	baseURL   string
	tokens    oauth2.TokenSource
	transport *billing.Transport
	ledger    *billing.Ledger
	bridge    billing.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

var _ domain.BillingClient = (*Client)(nil)

// NewClient creates a Play client. tokens authorizes API calls.
func NewClient(cfg Config, tokens oauth2.TokenSource, ledger *billing.Ledger, bridge billing.Publisher, logger *slog.Logger, metrics observability.Metrics) (*Client, error) {
	if cfg.PackageName == "" {
		return nil, errors.New("play package name is required")
	}
	if tokens == nil {
		return nil, errors.New("play token source is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if cfg.Transport.Name == "" {
		cfg.Transport = billing.DefaultTransportConfig("play")
	}

	httpClient := &http.Client{
		Timeout:   cfg.Transport.Timeout,
		Transport: &oauth2.Transport{Source: tokens, Base: http.DefaultTransport},
	}

	return &Client{
		cfg:       cfg,
		baseURL:   baseURL,
		tokens:    tokens,
		transport: billing.NewTransport(cfg.Transport, httpClient, logger, metrics),
		ledger:    ledger,
		bridge:    bridge,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Connect checks that API credentials can be obtained.
func (c *Client) Connect(ctx context.Context) error {
	if _, err := c.tokens.Token(); err != nil {
		return fmt.Errorf("%w: obtain play token: %w", domain.ErrBillingUnavailable, err)
	}
	return nil
}

// RecordPurchases remembers purchase tokens reported by the device.
func (c *Client) RecordPurchases(ctx context.Context, purchases []domain.Purchase) error {
	return c.ledger.RecordPurchases(ctx, purchases)
}

// QueryPurchases verifies every known token. Tokens the store no longer
// recognizes and expired subscriptions are dropped.
func (c *Client) QueryPurchases(ctx context.Context) ([]domain.Purchase, error) {
	entries, err := c.ledger.Entries(ctx)
	if err != nil {
		return nil, err
	}

	purchases := make([]domain.Purchase, 0, len(entries))
	for _, entry := range entries {
		var (
			purchase *domain.Purchase
			err      error
		)
		if domain.IsSubscriptionSku(entry.SKU) {
			purchase, err = c.getSubscription(ctx, entry)
		} else {
			purchase, err = c.getProduct(ctx, entry)
		}
		if billing.IsStatus(err, http.StatusNotFound) || billing.IsStatus(err, http.StatusGone) {
			c.logger.Info("purchase token no longer valid", "sku", entry.SKU)
			if err := c.ledger.Forget(ctx, entry.SKU); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("verify %s: %w", entry.SKU, err)
		}
		if purchase != nil {
			purchases = append(purchases, *purchase)
		}
	}
	return purchases, nil
}

type productPurchase struct {
	OrderID              string `json:"orderId"`
	PurchaseState        int    `json:"purchaseState"`
	AcknowledgementState int    `json:"acknowledgementState"`
	PurchaseTimeMillis   string `json:"purchaseTimeMillis"`
}

func (c *Client) getProduct(ctx context.Context, entry billing.Entry) (*domain.Purchase, error) {
	var resp productPurchase
	if err := c.transport.DoJSON(ctx, http.MethodGet, c.purchaseURL("products", entry, ""), nil, &resp); err != nil {
		return nil, err
	}

	purchase := &domain.Purchase{
		SKU:          entry.SKU,
		OrderID:      resp.OrderID,
		Token:        entry.Token,
		Acknowledged: resp.AcknowledgementState == 1,
		PurchasedAt:  parseMillis(resp.PurchaseTimeMillis),
	}
	switch resp.PurchaseState {
	case 0:
		purchase.State = domain.PurchaseStatePurchased
	case 1:
		// refunded or voided; still reported so diagnostics see it
		purchase.State = domain.PurchaseStatePurchased
		purchase.Cancelled = true
	case 2:
		purchase.State = domain.PurchaseStatePending
	}
	return purchase, nil
}

type subscriptionPurchase struct {
	OrderID              string `json:"orderId"`
	StartTimeMillis      string `json:"startTimeMillis"`
	ExpiryTimeMillis     string `json:"expiryTimeMillis"`
	PaymentState         *int   `json:"paymentState"`
	AcknowledgementState int    `json:"acknowledgementState"`
}

func (c *Client) getSubscription(ctx context.Context, entry billing.Entry) (*domain.Purchase, error) {
	var resp subscriptionPurchase
	if err := c.transport.DoJSON(ctx, http.MethodGet, c.purchaseURL("subscriptions", entry, ""), nil, &resp); err != nil {
		return nil, err
	}

	if expiry := parseMillis(resp.ExpiryTimeMillis); !expiry.IsZero() && expiry.Before(c.now()) {
		return nil, nil
	}

	purchase := &domain.Purchase{
		SKU:          entry.SKU,
		OrderID:      resp.OrderID,
		Token:        entry.Token,
		State:        domain.PurchaseStatePurchased,
		Acknowledged: resp.AcknowledgementState == 1,
		PurchasedAt:  parseMillis(resp.StartTimeMillis),
	}
	// a cancelled subscription keeps its tier until it expires
	if resp.PaymentState != nil && *resp.PaymentState == 0 {
		purchase.State = domain.PurchaseStatePending
	}
	return purchase, nil
}

type inAppProductList struct {
	InAppProduct []inAppProduct `json:"inappproduct"`
}

type inAppProduct struct {
	SKU             string           `json:"sku"`
	Status          string           `json:"status"`
	PurchaseType    string           `json:"purchaseType"`
	DefaultPrice    price            `json:"defaultPrice"`
	Prices          map[string]price `json:"prices"`
	DefaultLanguage string           `json:"defaultLanguage"`
	Listings        map[string]struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"listings"`
}

type price struct {
	PriceMicros string `json:"priceMicros"`
	Currency    string `json:"currency"`
}

// QueryProductDetails lists the catalogue and returns the requested SKUs.
func (c *Client) QueryProductDetails(ctx context.Context, skus []string) ([]domain.ProductDetails, error) {
	var list inAppProductList
	endpoint := fmt.Sprintf("%s/%s/inappproducts", c.baseURL, url.PathEscape(c.cfg.PackageName))
	if err := c.transport.DoJSON(ctx, http.MethodGet, endpoint, nil, &list); err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(skus))
	for _, sku := range skus {
		wanted[sku] = true
	}

	var details []domain.ProductDetails
	for _, p := range list.InAppProduct {
		if !wanted[p.SKU] || (p.Status != "" && p.Status != "active") {
			continue
		}
		details = append(details, c.toDetails(p))
	}
	return details, nil
}

func (c *Client) toDetails(p inAppProduct) domain.ProductDetails {
	chosen := p.DefaultPrice
	if regional, ok := p.Prices[c.cfg.Region]; ok && c.cfg.Region != "" {
		chosen = regional
	}
	micros, _ := strconv.ParseInt(chosen.PriceMicros, 10, 64)

	details := domain.ProductDetails{
		SKU:               p.SKU,
		Type:              domain.ProductTypeInApp,
		Price:             billing.FormatMicros(micros, chosen.Currency),
		PriceAmountMicros: micros,
		PriceCurrencyCode: chosen.Currency,
	}
	if p.PurchaseType == "subscription" {
		details.Type = domain.ProductTypeSubscription
	}
	if listing, ok := p.Listings[p.DefaultLanguage]; ok {
		details.Title = listing.Title
		details.Description = listing.Description
	}
	return details
}

// LaunchPurchaseFlow asks the device bridge to show the Play purchase sheet.
func (c *Client) LaunchPurchaseFlow(ctx context.Context, req domain.PurchaseRequest) error {
	productType := domain.ProductTypeInApp
	if domain.IsSubscriptionSku(req.SKU) {
		productType = domain.ProductTypeSubscription
	}
	return billing.PublishJSON(ctx, c.bridge, domain.RoutingKeyPurchaseLaunch, domain.PurchaseLaunch{
		Flavor:      domain.FlavorPlay,
		SKU:         req.SKU,
		OldSKU:      req.OldSKU,
		ProductType: productType,
		Details:     req.Details,
		RequestedAt: c.now().UTC(),
	})
}

// Acknowledge confirms a purchase so Play does not refund it.
func (c *Client) Acknowledge(ctx context.Context, purchase domain.Purchase) error {
	if purchase.Token == "" {
		return fmt.Errorf("acknowledge %s: purchase has no token", purchase.SKU)
	}
	kind := "products"
	if domain.IsSubscriptionSku(purchase.SKU) {
		kind = "subscriptions"
	}
	entry := billing.Entry{SKU: purchase.SKU, Token: purchase.Token}
	return c.transport.DoJSON(ctx, http.MethodPost, c.purchaseURL(kind, entry, ":acknowledge"), struct{}{}, nil)
}

// Close releases nothing; HTTP connections are pooled.
func (c *Client) Close() error {
	return nil
}

func (c *Client) purchaseURL(kind string, entry billing.Entry, suffix string) string {
	return fmt.Sprintf("%s/%s/purchases/%s/%s/tokens/%s%s",
		c.baseURL,
		url.PathEscape(c.cfg.PackageName),
		kind,
		url.PathEscape(entry.SKU),
		url.PathEscape(entry.Token),
		suffix,
	)
}

func parseMillis(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
