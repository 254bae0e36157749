package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/tally/internal/licensing/domain"
)

// PriceCache keeps the last display price seen for each SKU. Entries never
// expire; the next product query overwrites them.
type PriceCache struct {
	store       domain.KeyValueStore
	diagnostics domain.Diagnostics
	logger      *slog.Logger
}

// NewPriceCache creates a price cache over a key-value store.
func NewPriceCache(store domain.KeyValueStore, diagnostics domain.Diagnostics, logger *slog.Logger) *PriceCache {
	return &PriceCache{store: store, diagnostics: diagnostics, logger: logger}
}

// StoreProductDetails caches full product metadata as JSON.
func (c *PriceCache) StoreProductDetails(ctx context.Context, details []domain.ProductDetails) error {
	for _, d := range details {
		data, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("encode details for %s: %w", d.SKU, err)
		}
		c.logger.Debug("product details", "sku", d.SKU, "price", d.Price)
		if err := c.store.Put(ctx, detailsKey(d.SKU), string(data)); err != nil {
			return fmt.Errorf("store details for %s: %w", d.SKU, err)
		}
	}
	return nil
}

// StorePrices caches the plain display price for each of skus found in details.
func (c *PriceCache) StorePrices(ctx context.Context, skus []string, details []domain.ProductDetails) error {
	bySku := make(map[string]domain.ProductDetails, len(details))
	for _, d := range details {
		bySku[d.SKU] = d
	}
	for _, sku := range skus {
		d, ok := bySku[sku]
		if !ok {
			c.logger.Debug("did not find details", "sku", sku)
			continue
		}
		if err := c.store.Put(ctx, sku, d.Price); err != nil {
			return fmt.Errorf("store price for %s: %w", sku, err)
		}
	}
	return nil
}

// ProductDetails returns the cached metadata for sku. Missing or malformed
// entries are reported and treated as absent.
func (c *PriceCache) ProductDetails(ctx context.Context, sku string) (*domain.ProductDetails, error) {
	raw, ok, err := c.store.Get(ctx, detailsKey(sku))
	if err != nil {
		return nil, err
	}
	if !ok {
		c.diagnostics.Report(ctx, fmt.Errorf("product details not found for %s", sku))
		return nil, nil
	}
	var d domain.ProductDetails
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		c.diagnostics.Report(ctx, fmt.Errorf("unable to parse product details: %w", err), "sku", sku, "json", raw)
		return nil, nil
	}
	return &d, nil
}

// DisplayPrice returns the price to show for sku in the given flavor.
func (c *PriceCache) DisplayPrice(ctx context.Context, flavor domain.Flavor, sku string) (string, bool, error) {
	switch flavor {
	case domain.FlavorPlay:
		d, err := c.ProductDetails(ctx, sku)
		if err != nil || d == nil {
			return "", false, err
		}
		price := d.DisplayPrice()
		return price, price != "", nil
	case domain.FlavorAmazon:
		return c.store.Get(ctx, sku)
	default:
		return "", false, nil
	}
}

func detailsKey(sku string) string {
	return sku + "_json"
}
