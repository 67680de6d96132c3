// Package cache implements the Analytics Engine's report cache (spec
// §4.10, §9): a composite key keyed by (format, time-range hash), TTL
// eviction, and substring pattern invalidation. Built on
// hashicorp/golang-lru/v2's expirable.LRU, the same family of library the
// teacher uses for its in-process caches.
package cache

import (
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// ReportCache caches generated reports by composite key
// "report:{format}:{range_hash}". It is constructed per Engine instance
// (spec §9: "two Engines on the same store must not see each other's
// cache") — never a package-level global.
type ReportCache struct {
	lru *lru.LRU[string, any]
}

// New constructs a ReportCache with the given TTL and a generous capacity;
// entries beyond capacity are evicted LRU-first, same as a stale TTL
// expiry from the caller's perspective.
func New(ttl time.Duration) *ReportCache {
	return &ReportCache{lru: lru.NewLRU[string, any](4096, nil, ttl)}
}

// Key builds the composite cache key for a report format + time range.
func Key(format string, rangeStart, rangeEnd int64) string {
	return fmt.Sprintf("report:%s:%d-%d", format, rangeStart, rangeEnd)
}

// Get returns the cached report for key, if present and unexpired.
func (c *ReportCache) Get(key string) (any, bool) {
	return c.lru.Get(key)
}

// Set stores report under key, expiring after the cache's configured TTL.
func (c *ReportCache) Set(key string, report any) {
	c.lru.Add(key, report)
}

// Invalidate removes every key containing pattern as a substring (spec
// §4.10: "invalidate_cache(pattern) removes all keys containing the
// substring").
func (c *ReportCache) Invalidate(pattern string) int {
	removed := 0
	for _, key := range c.lru.Keys() {
		if strings.Contains(key, pattern) {
			if c.lru.Remove(key) {
				removed++
			}
		}
	}
	return removed
}

// Len reports the number of live entries, for diagnostics.
func (c *ReportCache) Len() int {
	return c.lru.Len()
}
