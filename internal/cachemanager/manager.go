// Package cachemanager provides a small generic caching layer used for
// session metadata listings.
package cachemanager

import (
	"context"
	"time"
)

// CacheManager is a TTL cache keyed by K. The app flushes it whenever the
// watched transcript changes so stale listings never outlive a turn.
type CacheManager[K comparable, V any] interface {
	Get(ctx context.Context, key K) (V, bool)
	// GetWithRefresh re-arms the TTL on a hit.
	GetWithRefresh(ctx context.Context, key K, ttl time.Duration) (V, bool)
	Set(ctx context.Context, key K, value V, ttl time.Duration)
	Delete(ctx context.Context, keys ...K) error
	Flush(ctx context.Context) error
}
