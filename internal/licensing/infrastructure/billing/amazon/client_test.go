package amazon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/tally/internal/licensing/domain"
	"github.com/felixgeelhaar/tally/internal/licensing/infrastructure/billing"
	"github.com/felixgeelhaar/tally/internal/licensing/infrastructure/persistence"
	"github.com/felixgeelhaar/tally/pkg/observability"
)

type bridge struct {
	keys     []string
	payloads [][]byte
}

func (b *bridge) Publish(_ context.Context, routingKey string, payload []byte) error {
	b.keys = append(b.keys, routingKey)
	b.payloads = append(b.payloads, payload)
	return nil
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *billing.Ledger, *bridge) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	ledger := billing.NewLedger(persistence.NewMemoryStore())
	br := &bridge{}
	client, err := NewClient(Config{BaseURL: srv.URL, SharedSecret: "shh", UserID: "user-1"},
		ledger, br, observability.NopLogger(), observability.NoopMetrics{})
	require.NoError(t, err)
	return client, ledger, br
}

func TestNewClient_RequiresSecret(t *testing.T) {
	_, err := NewClient(Config{}, nil, nil, nil, nil)
	assert.ErrorIs(t, err, billing.ErrNoCredentials)
}

func TestClient_Connect(t *testing.T) {
	client, _, _ := newTestClient(t, http.NotFoundHandler())
	assert.NoError(t, client.Connect(context.Background()))

	noUser, err := NewClient(Config{SharedSecret: "shh"}, nil, nil, nil, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, noUser.Connect(context.Background()), domain.ErrBillingUnavailable)
}

func TestClient_QueryPurchases(t *testing.T) {
	client, ledger, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.Path, "/version/1.0/verifyReceiptId/developer/shh/user/user-1/receiptId/"))
		switch {
		case strings.HasSuffix(r.URL.Path, "/r-pro"):
			_, _ = w.Write([]byte(`{"receiptId":"r-pro","productId":"sku_professional","productType":"ENTITLED","purchaseDate":1690000000000,"cancelDate":null}`))
		case strings.HasSuffix(r.URL.Path, "/r-ext"):
			_, _ = w.Write([]byte(`{"receiptId":"r-ext","productId":"sku_extended","productType":"ENTITLED","purchaseDate":1690000000000,"cancelDate":1691000000000}`))
		default:
			http.Error(w, "invalid receipt", http.StatusBadRequest)
		}
	}))
	ctx := context.Background()
	require.NoError(t, ledger.RecordPurchases(ctx, []domain.Purchase{
		{SKU: "sku_professional", Token: "r-pro"},
		{SKU: "sku_extended", Token: "r-ext"},
		{SKU: "sku_premium", Token: "r-bogus"},
	}))

	purchases, err := client.QueryPurchases(ctx)

	require.NoError(t, err)
	require.Len(t, purchases, 2)
	assert.Equal(t, domain.Purchase{
		SKU:          "sku_extended",
		OrderID:      "r-ext",
		Token:        "r-ext",
		State:        domain.PurchaseStatePurchased,
		Acknowledged: true,
		Cancelled:    true,
		PurchasedAt:  time.UnixMilli(1_690_000_000_000),
	}, purchases[0])
	assert.False(t, purchases[1].Cancelled)

	entries, err := ledger.Entries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestClient_QueryPurchases_Unavailable(t *testing.T) {
	client, ledger, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	ctx := context.Background()
	require.NoError(t, ledger.RecordPurchases(ctx, []domain.Purchase{{SKU: "sku_professional", Token: "r"}}))

	_, err := client.QueryPurchases(ctx)

	assert.ErrorIs(t, err, domain.ErrBillingUnavailable)
}

func TestClient_BridgeCommands(t *testing.T) {
	client, _, br := newTestClient(t, http.NotFoundHandler())
	ctx := context.Background()

	details, err := client.QueryProductDetails(ctx, []string{"sku_professional"})
	require.NoError(t, err)
	assert.Nil(t, details)

	require.NoError(t, client.LaunchPurchaseFlow(ctx, domain.PurchaseRequest{SKU: "sku_professional", OldSKU: "ignored"}))
	require.NoError(t, client.Acknowledge(ctx, domain.Purchase{SKU: "sku_professional", Token: "r"}))

	assert.Equal(t, []string{
		domain.RoutingKeyProductsQuery,
		domain.RoutingKeyPurchaseLaunch,
		domain.RoutingKeyPurchaseFulfill,
	}, br.keys)

	var query domain.ProductsQuery
	require.NoError(t, json.Unmarshal(br.payloads[0], &query))
	assert.Equal(t, []string{"sku_professional"}, query.Skus)

	var launch domain.PurchaseLaunch
	require.NoError(t, json.Unmarshal(br.payloads[1], &launch))
	assert.Equal(t, domain.FlavorAmazon, launch.Flavor)
	assert.Empty(t, launch.OldSKU)

	var fulfill domain.PurchaseFulfill
	require.NoError(t, json.Unmarshal(br.payloads[2], &fulfill))
	assert.Equal(t, "r", fulfill.Purchase.Token)
}
