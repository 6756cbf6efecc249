package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/zjrosen/tamis/internal/cachemanager"
)

// parseInput carries one parse request through the read-through cache.
type parseInput struct {
	name string
	src  string
}

// Cache parses templates through an expiring in-memory cache, so repeated
// renders of unchanged source skip the parse.
type Cache struct {
	ttl   time.Duration
	cache *cachemanager.ReadThroughCache[string, *Template, parseInput]
}

// NewCache creates a template cache. A zero ttl falls back to the cache
// manager default.
func NewCache(ttl time.Duration) *Cache {
	return newCache(ttl, false)
}

// NewPassthroughCache creates a cache that parses on every call. Watch
// loops use it when the caller wants edits picked up unconditionally.
func NewPassthroughCache() *Cache {
	return newCache(0, true)
}

func newCache(ttl time.Duration, skip bool) *Cache {
	if ttl <= 0 {
		ttl = cachemanager.DefaultExpiration
	}
	manager := cachemanager.NewInMemoryCacheManager[string, *Template]("templates", ttl, cachemanager.DefaultCleanupInterval)
	rt := cachemanager.NewReadThroughCache(manager, func(_ context.Context, in parseInput) (*Template, error) {
		return Parse(in.name, in.src)
	}, skip)
	return &Cache{ttl: ttl, cache: rt}
}

// Parse returns the cached template for src, parsing on first sight. The
// key covers name and content, so edited sources reparse instead of
// serving a stale tree.
func (c *Cache) Parse(ctx context.Context, name, src string) (*Template, error) {
	return c.cache.GetWithRefresh(ctx, cacheKey(name, src), parseInput{name: name, src: src}, c.ttl)
}

// TTL reports how long parsed templates stay cached.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

func cacheKey(name, src string) string {
	sum := sha256.Sum256([]byte(src))
	return name + ":" + hex.EncodeToString(sum[:8])
}
