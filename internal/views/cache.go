// Package views implements the Search Rewriter: a cache of virtual subtree
// definitions plus the filter composition and rewrite algorithm that lets
// a client search a view transparently (spec.md §4.5).
package views

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/389ds/389-ds-base-sub010/internal/slapi"
)

// APIGUID documents the Views v1.0 plug-in API identifier (spec.md §6),
// carried for fidelity even though nothing in-process dials by GUID.
const APIGUID = "000e5b1e-9958-41da-a573-db8064a3894e"

// node is one nsview entry: a virtual subtree plus the filter its members
// must satisfy.
type node struct {
	dn     slapi.DN
	filter *slapi.Filter

	// Precomputed, bottom-up memoised composite filters (spec.md §9's
	// redesign replacing the original recursive AVL filter join with one
	// pass per tree level). Built once per Cache.Refresh, never mutated
	// afterwards.
	ancestorFilter *slapi.Filter // this view's filter AND-ed with every ancestor view's filter
	childFilter    *slapi.Filter // OR of every direct child view's ancestorFilter, for exclusion composition
}

// Cache holds every registered view under one or more suffixes, indexed by
// a sorted DN slice for ancestor/descendant lookups (spec.md §4.5 "sorted
// DN index").
//
// Open Question (spec.md §9, resolved in DESIGN.md): every DN a node holds
// is normalised once, here, while building a fresh Cache — the cache never
// normalises a DN later while only holding a reader lock, which is the
// scenario the original implementation left ambiguous.
type Cache struct {
	backend slapi.SearchBackend

	mu    sync.RWMutex
	nodes []*node // sorted by dn.String()
}

// NewCache constructs an empty Cache reading view definitions from
// backend.
func NewCache(backend slapi.SearchBackend) *Cache {
	return &Cache{backend: backend}
}

// Refresh reloads every nsview entry under suffix and rebuilds the
// precomputed filter index.
func (c *Cache) Refresh(ctx context.Context, suffix slapi.DN) error {
	filter, err := slapi.ParseFilter("(objectClass=nsview)")
	if err != nil {
		return err
	}
	entries, err := c.backend.SearchSubtree(ctx, suffix, filter)
	if err != nil {
		return fmt.Errorf("views: search view definitions under %s: %w", suffix, err)
	}

	nodes := make([]*node, 0, len(entries))
	for _, e := range entries {
		raw := e.StoredValues(slapi.AttrNsViewFilter)
		var f *slapi.Filter
		if len(raw) > 0 {
			f, err = slapi.ParseFilter(raw[0])
			if err != nil {
				return fmt.Errorf("%w: view %s: %v", slapi.ErrInvalidDefinition, e.DN, err)
			}
		}
		// e.DN was already parsed (and therefore normalised) by the
		// backend when it constructed the Entry; node stores that same
		// DN value rather than re-deriving one under lock later.
		nodes = append(nodes, &node{dn: e.DN, filter: f})
	}

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].dn.String() < nodes[j].dn.String() })

	if err := composeFilters(nodes); err != nil {
		return err
	}

	c.mu.Lock()
	c.nodes = nodes
	c.mu.Unlock()
	return nil
}

// EntryExists reports whether dn names a known view node (spec.md §6
// "entry_exists").
func (c *Cache) EntryExists(dn slapi.DN) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.find(dn)
	return ok
}

// EntryDNExists is an alias kept for fidelity with the original API's two
// distinct but behaviourally identical entry points (spec.md §6
// "entry_dn_exists").
func (c *Cache) EntryDNExists(dn slapi.DN) bool {
	return c.EntryExists(dn)
}

func (c *Cache) find(dn slapi.DN) (*node, bool) {
	idx := sort.Search(len(c.nodes), func(i int) bool { return c.nodes[i].dn.String() >= dn.String() })
	if idx < len(c.nodes) && c.nodes[idx].dn.Equal(dn) {
		return c.nodes[idx], true
	}
	return nil, false
}

// ancestorsOf returns every node that is a (possibly indirect) ancestor of
// dn, nearest-first.
func (c *Cache) ancestorsOf(dn slapi.DN) []*node {
	var out []*node
	for _, n := range c.nodes {
		if n.dn.IsAncestorOf(dn) {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return len(out[i].dn.String()) > len(out[j].dn.String()) })
	return out
}

// InScope reports whether targetTree actually governs entryDN for COS/Roles
// scope purposes (spec.md §4.2 "scope filter via... views"): it does unless
// some other view node sits strictly between targetTree and entryDN, in
// which case that nested view's own boundary takes precedence over the
// broader tree's COS scope. A targetTree that is not an ancestor of (or
// equal to) entryDN never governs it. Satisfies cos.ScopeFilter.
func (c *Cache) InScope(entryDN, targetTree slapi.DN) bool {
	if !targetTree.IsAncestorOfOrEqual(entryDN) {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, n := range c.nodes {
		if n.dn.Equal(targetTree) {
			continue
		}
		if targetTree.IsAncestorOf(n.dn) && n.dn.IsAncestorOfOrEqual(entryDN) {
			return false
		}
	}
	return true
}

// childrenOf returns every node that is a direct child view of dn.
func (c *Cache) childrenOf(dn slapi.DN) []*node {
	var out []*node
	for _, n := range c.nodes {
		if parent, ok := n.dn.Parent(); ok && parent.Equal(dn) {
			out = append(out, n)
		}
	}
	return out
}
