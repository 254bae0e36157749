package persistence

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/tally/internal/licensing/domain"
	"github.com/felixgeelhaar/tally/internal/shared/infrastructure/crypto"
)

// ObfuscatedStore seals every value with AES-GCM bound to its key, so
// licence state cannot be edited or copied between keys by hand. Keys stay
// readable. A value that fails to open reads as unset and is reported.
type ObfuscatedStore struct {
	inner       domain.KeyValueStore
	sealer      crypto.Sealer
	diagnostics domain.Diagnostics
}

var _ domain.KeyValueStore = (*ObfuscatedStore)(nil)

// NewObfuscatedStore wraps inner. It owns inner and closes it.
func NewObfuscatedStore(inner domain.KeyValueStore, sealer crypto.Sealer, diagnostics domain.Diagnostics) *ObfuscatedStore {
	return &ObfuscatedStore{inner: inner, sealer: sealer, diagnostics: diagnostics}
}

func (s *ObfuscatedStore) Get(ctx context.Context, key string) (string, bool, error) {
	sealed, ok, err := s.inner.Get(ctx, key)
	if err != nil || !ok {
		return "", ok, err
	}
	value, err := s.sealer.Open(sealed, key)
	if err != nil {
		if s.diagnostics != nil {
			s.diagnostics.Report(ctx, fmt.Errorf("unable to open stored value: %w", err), "key", key)
		}
		return "", false, nil
	}
	return value, true, nil
}

func (s *ObfuscatedStore) Put(ctx context.Context, key, value string) error {
	sealed, err := s.sealer.Seal(value, key)
	if err != nil {
		return fmt.Errorf("failed to seal %s: %w", key, err)
	}
	return s.inner.Put(ctx, key, sealed)
}

func (s *ObfuscatedStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

func (s *ObfuscatedStore) Keys(ctx context.Context) ([]string, error) {
	return s.inner.Keys(ctx)
}

func (s *ObfuscatedStore) Close() error {
	return s.inner.Close()
}

// Reload forwards to inner when it caches backend state.
func (s *ObfuscatedStore) Reload() {
	if r, ok := s.inner.(interface{ Reload() }); ok {
		r.Reload()
	}
}

// Ping forwards to inner when it can be pinged.
func (s *ObfuscatedStore) Ping(ctx context.Context) error {
	if p, ok := s.inner.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}
