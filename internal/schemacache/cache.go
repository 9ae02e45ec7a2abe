// Package schemacache is a request-coalescing, size-bounded, TTL-aware
// cache of full tool input schemas, loaded on demand from whichever
// upstream owns the tool.
package schemacache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"mcpaggregator/pkg/logging"
)

// MaxPreloadFanout bounds how many Preload keys are loaded concurrently.
const MaxPreloadFanout = 8

// Schema is the full tool definition cached for a single (server, name) key,
// as opposed to the lightweight ToolMetadata the registry indexes.
type Schema struct {
	Tool     interface{} // *mcp.Tool in practice; kept opaque to avoid an import cycle with callers that mock it
	CachedAt time.Time
}

// Loader fetches a schema from its owning upstream on a cache miss.
type Loader func(ctx context.Context, server, name string) (interface{}, error)

// entry is the internal cache record, timestamped for both TTL expiry and
// oldest-first eviction.
type entry struct {
	schema    interface{}
	fetchedAt time.Time
}

// Stats summarizes cache activity since construction.
type Stats struct {
	Hits      int64
	Misses    int64
	Coalesced int64
	Evictions int64
}

// HitRate returns Hits / (Hits + Misses), or 0 if there have been no lookups.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Cache is a singleflight-coalesced, TTL + size-bounded schema cache. The
// zero value is not usable; construct with New.
type Cache struct {
	ttl     time.Duration
	maxSize int

	mu      sync.RWMutex
	entries map[string]entry

	group singleflight.Group

	statsMu sync.Mutex
	stats   Stats
}

// New constructs a Cache. ttl <= 0 disables expiry; maxSize <= 0 disables
// the eviction bound.
func New(ttl time.Duration, maxSize int) *Cache {
	return &Cache{
		ttl:     ttl,
		maxSize: maxSize,
		entries: make(map[string]entry),
	}
}

func key(server, name string) string {
	return server + ":" + name
}

// GetOrLoad returns the cached schema for (server, name), loading it via
// load on a miss. Concurrent callers for the same key during a load are
// coalesced onto a single upstream call (singleflight).
func (c *Cache) GetOrLoad(ctx context.Context, server, name string, load Loader) (interface{}, error) {
	k := key(server, name)

	if schema, ok := c.getIfCached(k); ok {
		c.recordHit()
		return schema, nil
	}

	result, err, shared := c.group.Do(k, func() (interface{}, error) {
		if schema, ok := c.getIfCached(k); ok {
			return schema, nil
		}
		schema, err := load(ctx, server, name)
		if err != nil {
			return nil, err
		}
		c.set(server, name, schema)
		return schema, nil
	})
	if shared {
		c.recordCoalesced()
	} else {
		c.recordMiss()
	}
	return result, err
}

func (c *Cache) getIfCached(k string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[k]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && time.Since(e.fetchedAt) > c.ttl {
		return nil, false
	}
	return e.schema, true
}

// GetIfCached exposes a read-only, load-free lookup; it does not affect stats.
func (c *Cache) GetIfCached(server, name string) (interface{}, bool) {
	return c.getIfCached(key(server, name))
}

// Has reports whether (server, name) has a live, unexpired entry.
func (c *Cache) Has(server, name string) bool {
	_, ok := c.getIfCached(key(server, name))
	return ok
}

// Set inserts or refreshes a schema directly, bypassing the loader. Useful
// for preloading.
func (c *Cache) Set(server, name string, schema interface{}) {
	c.set(server, name, schema)
}

func (c *Cache) set(server, name string, schema interface{}) {
	k := key(server, name)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[k] = entry{schema: schema, fetchedAt: time.Now()}
	c.evictIfOverCapacityLocked()
}

// evictIfOverCapacityLocked drops the oldest entries until the cache is
// back within maxSize. Caller must hold c.mu.
func (c *Cache) evictIfOverCapacityLocked() {
	if c.maxSize <= 0 || len(c.entries) <= c.maxSize {
		return
	}

	for len(c.entries) > c.maxSize {
		var oldestKey string
		var oldestTime time.Time
		first := true
		for k, e := range c.entries {
			if first || e.fetchedAt.Before(oldestTime) {
				oldestKey, oldestTime = k, e.fetchedAt
				first = false
			}
		}
		delete(c.entries, oldestKey)
		c.recordEviction()
		logging.Debug("schemacache", "evicted %s to stay within capacity %d", oldestKey, c.maxSize)
	}
}

// Delete removes one cached entry.
func (c *Cache) Delete(server, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key(server, name))
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Size returns the current entry count.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// PreloadKey identifies one (server, tool) pair to warm via Preload.
type PreloadKey struct {
	Server string
	Name   string
}

// PreloadFailure records one key's loader error during a Preload call.
type PreloadFailure struct {
	Server string
	Name   string
	Err    error
}

// PreloadResult summarizes a bulk Preload call.
type PreloadResult struct {
	Loaded int
	Failed []PreloadFailure
}

// Preload bulk-loads every key in keys in parallel (bounded by
// MaxPreloadFanout) via GetOrLoad, so concurrent preloads of the same key
// still coalesce onto one upstream call. Individual failures are collected
// in the result rather than aborting the rest of the batch.
func (c *Cache) Preload(ctx context.Context, keys []PreloadKey, load Loader) PreloadResult {
	var (
		mu     sync.Mutex
		result PreloadResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxPreloadFanout)

	for _, k := range keys {
		k := k
		g.Go(func() error {
			_, err := c.GetOrLoad(gctx, k.Server, k.Name, load)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed = append(result.Failed, PreloadFailure{Server: k.Server, Name: k.Name, Err: err})
				return nil
			}
			result.Loaded++
			return nil
		})
	}
	_ = g.Wait()

	return result
}

// StatsSnapshot returns a point-in-time copy of the cache's activity counters.
func (c *Cache) StatsSnapshot() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

func (c *Cache) recordHit() {
	c.statsMu.Lock()
	c.stats.Hits++
	c.statsMu.Unlock()
}

func (c *Cache) recordMiss() {
	c.statsMu.Lock()
	c.stats.Misses++
	c.statsMu.Unlock()
}

func (c *Cache) recordCoalesced() {
	c.statsMu.Lock()
	c.stats.Coalesced++
	c.statsMu.Unlock()
}

func (c *Cache) recordEviction() {
	c.statsMu.Lock()
	c.stats.Evictions++
	c.statsMu.Unlock()
}
