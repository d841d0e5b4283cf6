// Package densitycache stores rendered density responses with a TTL. It is
// an ephemeral response cache, not a persistence layer: entries expire and
// the pipeline recomputes on miss.
package densitycache

import (
	"context"
	"fmt"
	"time"

	"github.com/citygrid/hexdensity/internal/cache"
	"github.com/citygrid/hexdensity/internal/cache/keys"
	"github.com/citygrid/hexdensity/internal/observability"
)

type Store struct {
	backend    cache.Interface
	defaultTTL time.Duration
}

func New(backend cache.Interface, defaultTTL time.Duration) *Store {
	return &Store{backend: backend, defaultTTL: defaultTTL}
}

// Get returns the cached response body for the query, or nil on miss.
func (s *Store) Get(ctx context.Context, source string, res int, op string, feeds []string) ([]byte, error) {
	key := keys.DensityKey(source, res, op, feeds)
	m, err := s.backend.MGet(ctx, []string{key})
	if err != nil {
		return nil, fmt.Errorf("densitycache get %q: %w", key, err)
	}
	body, ok := m[key]
	if !ok || len(body) == 0 {
		observability.IncCacheMiss()
		return nil, nil
	}
	observability.IncCacheHit()
	return body, nil
}

func (s *Store) Put(ctx context.Context, source string, res int, op string, feeds []string, body []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	key := keys.DensityKey(source, res, op, feeds)
	if err := s.backend.Set(ctx, key, body, ttl); err != nil {
		return fmt.Errorf("densitycache put %q: %w", key, err)
	}
	return nil
}

func (s *Store) Invalidate(ctx context.Context, source string, res int, op string, feeds []string) error {
	key := keys.DensityKey(source, res, op, feeds)
	if err := s.backend.Del(ctx, key); err != nil {
		return fmt.Errorf("densitycache del %q: %w", key, err)
	}
	return nil
}
