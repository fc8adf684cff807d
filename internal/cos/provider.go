package cos

import (
	"context"

	"github.com/389ds/389-ds-base-sub010/internal/slapi"
)

// Provider adapts a Cache to the vattr.Provider interface so the
// dispatcher can register and query it like any other virtual attribute
// source (spec.md §4.1 provider registration).
type Provider struct {
	cache *Cache
}

// NewProvider wraps cache for dispatcher registration.
func NewProvider(cache *Cache) *Provider {
	return &Provider{cache: cache}
}

func (p *Provider) Name() string { return "cos" }

// Compute resolves attr for entry against the cache's current snapshot.
func (p *Provider) Compute(ctx context.Context, entry *slapi.Entry, attr string) (*slapi.ValueSet, error) {
	return p.cache.Query(ctx, entry, attr)
}

// Cacheable reports true: COS values are cacheable on the entry until the
// next snapshot rebuild, whose Generation() the dispatcher checks against
// the cached entry (spec.md §4.2 "cacheable between template-cache
// rebuilds").
func (p *Provider) Cacheable(string) bool { return true }

// Generation returns the cache's current snapshot version, which the
// dispatcher compares against a cached entry value to decide whether it is
// still valid.
func (p *Provider) Generation() uint64 {
	snap := p.cache.Get()
	if snap == nil {
		return 0
	}
	return uint64(snap.Version)
}
