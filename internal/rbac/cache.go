package rbac

import (
	"context"
	"sync"
)

// Cache memoizes permission lookups for the lifetime of one request. The
// middleware installs a fresh Cache per request and clears it when the
// request ends, so stale grants can never leak across requests even when
// worker processes are reused.
type Cache struct {
	mu      sync.Mutex
	entries map[int64]*UserPermissions
}

// NewCache constructs an empty request cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[int64]*UserPermissions)}
}

func (c *Cache) get(userID int64) (*UserPermissions, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	up, ok := c.entries[userID]
	return up, ok
}

func (c *Cache) put(userID int64, up *UserPermissions) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[userID] = up
}

// Clear drops every cached entry. Called at the request boundary.
func (c *Cache) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[int64]*UserPermissions)
}

type cacheContextKey struct{}

// ContextWithCache stores the request cache in context.
func ContextWithCache(ctx context.Context, cache *Cache) context.Context {
	return context.WithValue(ctx, cacheContextKey{}, cache)
}

// CacheFromContext extracts the request cache, or nil when none is
// installed.
func CacheFromContext(ctx context.Context) *Cache {
	cache, _ := ctx.Value(cacheContextKey{}).(*Cache)
	return cache
}
