package repo

import (
	"context"
	"errors"
	"time"

	"github.com/miradorstack/anomaly-engine/internal/cache"
)

// CacheStore mirrors the model into a cache.Provider so replicas without a
// local model file can skip training.
type CacheStore struct {
	provider cache.Provider
	key      string
	ttl      time.Duration
}

// NewCacheStore wraps provider; a nil provider behaves like cache.NoopProvider.
func NewCacheStore(provider cache.Provider, key string, ttl time.Duration) *CacheStore {
	if provider == nil {
		provider = cache.NoopProvider{}
	}
	return &CacheStore{provider: provider, key: key, ttl: ttl}
}

// Name implements ModelStore.
func (s *CacheStore) Name() string { return "valkey" }

// Load implements ModelStore.
func (s *CacheStore) Load(ctx context.Context) ([]byte, error) {
	data, err := s.provider.Get(ctx, s.key)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, ErrModelNotFound
	}
	return data, err
}

// Save implements ModelStore.
func (s *CacheStore) Save(ctx context.Context, payload []byte) error {
	return s.provider.Set(ctx, s.key, payload, s.ttl)
}

// Purge drops a mirrored model that failed to decode.
func (s *CacheStore) Purge(ctx context.Context) error {
	return s.provider.Del(ctx, s.key)
}
