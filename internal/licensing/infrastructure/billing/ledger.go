package billing

import (
	"context"
	"fmt"
	"sort"

	"github.com/felixgeelhaar/tally/internal/licensing/domain"
)

// Ledger remembers the purchase token or receipt id last seen per SKU.
// Store APIs verify a known token but cannot list a user's purchases, so
// the ledger is what QueryPurchases walks.
type Ledger struct {
	store domain.KeyValueStore
}

// NewLedger creates a ledger over store, usually a namespaced view.
func NewLedger(store domain.KeyValueStore) *Ledger {
	return &Ledger{store: store}
}

// RecordPurchases stores the tokens of purchases that carry one.
func (l *Ledger) RecordPurchases(ctx context.Context, purchases []domain.Purchase) error {
	for _, p := range purchases {
		if p.Token == "" || p.SKU == "" {
			continue
		}
		if err := l.store.Put(ctx, p.SKU, p.Token); err != nil {
			return fmt.Errorf("record token for %s: %w", p.SKU, err)
		}
	}
	return nil
}

// Forget drops the token for sku, e.g. after the store rejected it.
func (l *Ledger) Forget(ctx context.Context, sku string) error {
	return l.store.Delete(ctx, sku)
}

// Entry is one remembered token.
type Entry struct {
	SKU   string
	Token string
}

// Entries returns all remembered tokens ordered by SKU.
func (l *Ledger) Entries(ctx context.Context) ([]Entry, error) {
	skus, err := l.store.Keys(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(skus)

	entries := make([]Entry, 0, len(skus))
	for _, sku := range skus {
		token, ok, err := l.store.Get(ctx, sku)
		if err != nil {
			return nil, err
		}
		if ok && token != "" {
			entries = append(entries, Entry{SKU: sku, Token: token})
		}
	}
	return entries, nil
}
