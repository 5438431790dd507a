// Package querycache is the narrow interface over the shared data cache the
// coordinator evicts on tenant boundary crossings. Keys embed the owning
// tenant id, so eviction is predicate-driven ("any key containing tenant X").
package querycache

import (
	"context"
	"strings"
	"sync"
)

// Cache is the collaborator surface the coordinator depends on. Invalidate
// and Remove coincide in this cache: there is no stale-but-served state, an
// invalidated entry is dropped and the next read refetches.
type Cache interface {
	Set(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Invalidate marks every entry whose key matches the predicate stale.
	Invalidate(ctx context.Context, match func(key string) bool) error
	// Remove deletes every entry whose key matches the predicate.
	Remove(ctx context.Context, match func(key string) bool) error
	Clear(ctx context.Context) error
}

// TenantKey builds a cache key tagged with its owning tenant.
func TenantKey(tenantID, rest string) string {
	return "qc:" + tenantID + ":" + rest
}

// TenantPredicate matches any key tagged with the given tenant id.
func TenantPredicate(tenantID string) func(string) bool {
	tag := ":" + tenantID + ":"
	return func(key string) bool { return strings.Contains(key, tag) }
}

// Memory is the in-process implementation, used when no redis is configured
// and throughout the tests.
type Memory struct {
	mu sync.Mutex
	m  map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{m: map[string][]byte{}}
}

func (c *Memory) Set(ctx context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
	return nil
}

func (c *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	return v, ok, nil
}

func (c *Memory) Invalidate(ctx context.Context, match func(string) bool) error {
	return c.Remove(ctx, match)
}

func (c *Memory) Remove(ctx context.Context, match func(string) bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.m {
		if match(k) {
			delete(c.m, k)
		}
	}
	return nil
}

func (c *Memory) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m = map[string][]byte{}
	return nil
}

// Len is a test helper.
func (c *Memory) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}
