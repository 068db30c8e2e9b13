package balance

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/mrz1836/seedscout/internal/discovery"
)

// CacheRecorder receives cache hits and misses. *metrics.Metrics implements it.
type CacheRecorder interface {
	RecordCacheHit()
	RecordCacheMiss()
}

type cacheEntry struct {
	balance   float64
	fetchedAt time.Time
}

// CachedFetcher remembers successful lookups for a TTL. Failures are not cached.
type CachedFetcher struct {
	next    discovery.BalanceSyncService
	ttl     time.Duration
	metrics CacheRecorder
	now     func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// Compile-time interface check
var _ discovery.BalanceSyncService = (*CachedFetcher)(nil)

// NewCachedFetcher wraps next. rec may be nil.
func NewCachedFetcher(next discovery.BalanceSyncService, ttl time.Duration, rec CacheRecorder) *CachedFetcher {
	return &CachedFetcher{
		next:    next,
		ttl:     ttl,
		metrics: rec,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// FetchBalance implements discovery.BalanceSyncService.
func (c *CachedFetcher) FetchBalance(ctx context.Context, address string) (float64, error) {
	key := strings.ToLower(address)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		if c.metrics != nil {
			c.metrics.RecordCacheHit()
		}
		return entry.balance, nil
	}
	if c.metrics != nil {
		c.metrics.RecordCacheMiss()
	}

	balance, err := c.next.FetchBalance(ctx, address)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{balance: balance, fetchedAt: c.now()}
	c.mu.Unlock()
	return balance, nil
}

// Invalidate drops the entry for address.
func (c *CachedFetcher) Invalidate(address string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, strings.ToLower(address))
}

// Prune removes expired entries and returns how many were removed.
func (c *CachedFetcher) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	now := c.now()
	for key, e := range c.entries {
		if now.Sub(e.fetchedAt) >= c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of cached entries.
func (c *CachedFetcher) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
