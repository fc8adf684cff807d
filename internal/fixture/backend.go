package fixture

import (
	"context"
	"sort"

	"github.com/389ds/389-ds-base-sub010/internal/slapi"
)

// Backend is a minimal in-memory slapi.SearchBackend over a fixed entry
// set, used only to drive COS/Roles/Views snapshot builds offline. It has
// no access-control hook and no persistence — both explicitly out of
// scope for this module (spec.md §1).
type Backend struct {
	entries map[string]*slapi.Entry
	order   []string
}

// NewBackend constructs an empty Backend.
func NewBackend() *Backend {
	return &Backend{entries: make(map[string]*slapi.Entry)}
}

// Add inserts or replaces an entry, keyed by its DN.
func (b *Backend) Add(e *slapi.Entry) {
	key := e.DN.String()
	if _, exists := b.entries[key]; !exists {
		b.order = append(b.order, key)
	}
	b.entries[key] = e
}

// Entries returns every loaded entry, sorted by DN, for reporting.
func (b *Backend) Entries() []*slapi.Entry {
	keys := append([]string(nil), b.order...)
	sort.Strings(keys)
	out := make([]*slapi.Entry, 0, len(keys))
	for _, k := range keys {
		out = append(out, b.entries[k])
	}
	return out
}

func (b *Backend) GetEntry(_ context.Context, dn slapi.DN) (*slapi.Entry, error) {
	e, ok := b.entries[dn.String()]
	if !ok {
		return nil, slapi.ErrNotFound
	}
	return e, nil
}

func (b *Backend) SearchSubtree(_ context.Context, base slapi.DN, filter *slapi.Filter) ([]*slapi.Entry, error) {
	var out []*slapi.Entry
	for _, key := range b.order {
		e := b.entries[key]
		if !base.Empty() && !base.IsAncestorOfOrEqual(e.DN) {
			continue
		}
		if filter != nil && !filter.Matches(e) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (b *Backend) SearchOneLevel(_ context.Context, base slapi.DN, filter *slapi.Filter) ([]*slapi.Entry, error) {
	var out []*slapi.Entry
	for _, key := range b.order {
		e := b.entries[key]
		parent, ok := e.DN.Parent()
		if !ok || !parent.Equal(base) {
			continue
		}
		if filter != nil && !filter.Matches(e) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
