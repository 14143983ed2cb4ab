// Package proposalcache holds the most recently synthesized change
// proposal per candidate id. Entries are overwritten on regeneration
// and live for the process lifetime; the cache is a review and
// debugging aid, not a performance cache, so it carries no TTL or
// eviction. The candidate id is a foreign key: the cache never owns
// the candidate, and entries for candidates that have disappeared from
// the store are simply discarded by callers.
package proposalcache

import (
	"sync"

	"github.com/skillminer/skillminer/pkg/types/mining"
)

// Cache is a concurrency-safe, last-write-wins proposal cache keyed by
// candidate id. Puts for different keys never interfere; puts for the
// same key race to last-write-wins.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]mining.ChangeProposal
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[string]mining.ChangeProposal)}
}

// Put stores the proposal for the candidate id, overwriting any prior
// entry.
func (c *Cache) Put(candidateID string, proposal mining.ChangeProposal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[candidateID] = proposal
}

// Get returns the latest proposal for the candidate id.
func (c *Cache) Get(candidateID string) (mining.ChangeProposal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.entries[candidateID]
	return p, ok
}

// Delete removes the entry for the candidate id, if any.
func (c *Cache) Delete(candidateID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, candidateID)
}

// Len returns the number of cached proposals.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
