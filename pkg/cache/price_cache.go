// Package cache provides a sharded TTL cache for last-trade prices, keyed by
// venue name. It keeps the hot LastPrice path off the wire when several
// in-flight executions poll the same market.
package cache

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

const numShards = 16

// PriceCache shards entries across locks so concurrent executions on
// different venues never contend.
type PriceCache struct {
	shards [numShards]*shard
}

type shard struct {
	mu    sync.RWMutex
	items map[string]entry
}

type entry struct {
	price     decimal.Decimal
	updatedAt time.Time
}

func NewPriceCache() *PriceCache {
	c := &PriceCache{}
	for i := range c.shards {
		c.shards[i] = &shard{items: make(map[string]entry)}
	}
	return c
}

func (c *PriceCache) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return c.shards[h.Sum32()%numShards]
}

// Set stores the latest observed price for a venue.
func (c *PriceCache) Set(venue string, price decimal.Decimal) {
	s := c.shardFor(venue)
	s.mu.Lock()
	s.items[venue] = entry{price: price, updatedAt: time.Now()}
	s.mu.Unlock()
}

// Get returns the cached price when it is younger than maxAge.
func (c *PriceCache) Get(venue string, maxAge time.Duration) (decimal.Decimal, bool) {
	s := c.shardFor(venue)
	s.mu.RLock()
	e, ok := s.items[venue]
	s.mu.RUnlock()
	if !ok || time.Since(e.updatedAt) > maxAge {
		return decimal.Zero, false
	}
	return e.price, true
}

// Snapshot returns every cached price with its age, for the admin surface.
func (c *PriceCache) Snapshot() map[string]PriceInfo {
	out := make(map[string]PriceInfo)
	for _, s := range c.shards {
		s.mu.RLock()
		for venue, e := range s.items {
			out[venue] = PriceInfo{Price: e.price, Age: time.Since(e.updatedAt)}
		}
		s.mu.RUnlock()
	}
	return out
}

// PriceInfo pairs a cached price with its staleness.
type PriceInfo struct {
	Price decimal.Decimal `json:"price"`
	Age   time.Duration   `json:"age_ns"`
}

// Len returns total entries across all shards.
func (c *PriceCache) Len() int {
	total := 0
	for _, s := range c.shards {
		s.mu.RLock()
		total += len(s.items)
		s.mu.RUnlock()
	}
	return total
}

// Cleanup drops entries older than maxAge and reports how many were removed.
func (c *PriceCache) Cleanup(maxAge time.Duration) int {
	removed := 0
	cutoff := time.Now().Add(-maxAge)
	for _, s := range c.shards {
		s.mu.Lock()
		for venue, e := range s.items {
			if e.updatedAt.Before(cutoff) {
				delete(s.items, venue)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}
