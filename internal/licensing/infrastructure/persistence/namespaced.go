package persistence

import (
	"context"
	"strings"

	"github.com/felixgeelhaar/tally/internal/licensing/domain"
)

// Namespaced returns a view of store whose keys are prefixed with ns and a
// colon. Licence state and prices share one backend through two views.
func Namespaced(store domain.KeyValueStore, ns string) domain.KeyValueStore {
	return &namespacedStore{inner: store, prefix: ns + ":"}
}

type namespacedStore struct {
	inner  domain.KeyValueStore
	prefix string
}

func (s *namespacedStore) Get(ctx context.Context, key string) (string, bool, error) {
	return s.inner.Get(ctx, s.prefix+key)
}

func (s *namespacedStore) Put(ctx context.Context, key, value string) error {
	return s.inner.Put(ctx, s.prefix+key, value)
}

func (s *namespacedStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, s.prefix+key)
}

func (s *namespacedStore) Keys(ctx context.Context) ([]string, error) {
	all, err := s.inner.Keys(ctx)
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, key := range all {
		if rest, ok := strings.CutPrefix(key, s.prefix); ok {
			keys = append(keys, rest)
		}
	}
	return keys, nil
}

// Close is a no-op; the shared backend is closed by its owner.
func (s *namespacedStore) Close() error {
	return nil
}
