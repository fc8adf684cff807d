package vattr

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// typePresenceCache is a bounded fast-path cache answering "does this entry
// have any provider-computable value for this attribute type at all",
// without touching the entry's own per-attribute cache or calling a
// provider. It exists purely to keep ListTypes (spec.md §4.1's
// "list_types" operation) cheap on entries that are repeatedly queried for
// the same handful of attribute types, and is bounded so a directory with
// pathologically many distinct entries cannot grow it without limit
// (DESIGN.md — grounded on the teacher's golang-lru usage, repurposed here
// for a presence cache rather than an eviction cache over domain objects).
type typePresenceCache struct {
	cache *lru.Cache[string, map[string]bool]
}

func newTypePresenceCache(size int) *typePresenceCache {
	c, err := lru.New[string, map[string]bool](size)
	if err != nil {
		// size <= 0; fall back to a minimally sized cache rather than
		// failing dispatcher construction over a tunable's bad value.
		c, _ = lru.New[string, map[string]bool](1)
	}
	return &typePresenceCache{cache: c}
}

// presentTypes returns the cached presence map for dn, or (nil, false) on a
// miss.
func (c *typePresenceCache) presentTypes(dn string) (map[string]bool, bool) {
	return c.cache.Get(dn)
}

// recordTypes stores the presence map for dn, evicting the least recently
// used entry if the cache is full.
func (c *typePresenceCache) recordTypes(dn string, types map[string]bool) {
	c.cache.Add(dn, types)
}

// invalidate drops any cached presence map for dn (called by
// Dispatcher.InvalidateEntry; registering or releasing a provider does not
// clear it).
func (c *typePresenceCache) invalidate(dn string) {
	c.cache.Remove(dn)
}
