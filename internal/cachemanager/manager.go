package cachemanager

import (
	"context"
	"time"
)

// CacheManager is the caching contract render paths depend on. Keys are
// string-kinded so the go-cache store can hold them directly.
type CacheManager[K ~string, V any] interface {
	Get(ctx context.Context, key K) (V, bool)
	GetWithRefresh(ctx context.Context, key K, ttl time.Duration) (V, bool)
	Set(ctx context.Context, key K, value V, ttl time.Duration)
	Delete(ctx context.Context, keys ...K) error
	Flush(ctx context.Context) error
}
