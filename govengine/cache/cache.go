// Package cache provides the shared decision cache fronting package
// permission checks.
//
// The cache is namespaced per agent and supports only whole-cache
// invalidation: keys cannot be selectively addressed by package, so any
// registry mutation clears everything. An epoch counter lets readers
// detect a clear that raced their registry read, guaranteeing that a
// decision computed from pre-mutation state is never stored after the
// clear completed.
package cache

import (
	"sync"
)

// Stats reports cache effectiveness counters.
type Stats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Size   int    `json:"size"`
}

// DecisionCache is a small in-process key/value cache shared by all
// concurrent permission checks. Safe for concurrent use.
type DecisionCache struct {
	mu         sync.RWMutex
	entries    map[string]any
	epoch      uint64
	hits       uint64
	misses     uint64
	maxEntries int
}

// New creates a DecisionCache. maxEntries bounds memory; when the bound is
// reached the cache is dropped wholesale (there is no per-key eviction,
// mirroring the all-or-nothing invalidation model). Zero means unbounded.
func New(maxEntries int) *DecisionCache {
	return &DecisionCache{
		entries:    make(map[string]any),
		maxEntries: maxEntries,
	}
}

func compositeKey(agentID, key string) string {
	return agentID + "\x00" + key
}

// Get returns the cached value for the agent-scoped key.
func (c *DecisionCache) Get(agentID, key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[compositeKey(agentID, key)]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return v, ok
}

// Set stores a value for the agent-scoped key unconditionally.
func (c *DecisionCache) Set(agentID, key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(agentID, key, value)
}

// SetAt stores a value only if the cache epoch still matches the one the
// caller observed before computing the value. Returns false if an
// invalidation happened in between; the caller's value is discarded.
func (c *DecisionCache) SetAt(agentID, key string, value any, epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return false
	}
	c.setLocked(agentID, key, value)
	return true
}

func (c *DecisionCache) setLocked(agentID, key string, value any) {
	if c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.entries = make(map[string]any)
	}
	c.entries[compositeKey(agentID, key)] = value
}

// Epoch returns the current invalidation epoch. Snapshot it before any
// registry read whose result will be cached with SetAt.
func (c *DecisionCache) Epoch() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epoch
}

// Clear drops every entry and advances the epoch.
func (c *DecisionCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]any)
	c.epoch++
}

// Stats returns hit/miss counters and the current entry count.
func (c *DecisionCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{Hits: c.hits, Misses: c.misses, Size: len(c.entries)}
}
