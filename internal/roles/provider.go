package roles

import (
	"context"
	"strings"

	"github.com/389ds/389-ds-base-sub010/internal/slapi"
)

// Provider adapts a Registry to the vattr.Provider interface, serving the
// always-cacheable nsRole attribute (spec.md §4.3 "always cacheable").
type Provider struct {
	registry       *Registry
	recursionBound int
}

// NewProvider wraps registry for dispatcher registration.
func NewProvider(registry *Registry, recursionBound int) *Provider {
	return &Provider{registry: registry, recursionBound: recursionBound}
}

func (p *Provider) Name() string { return "roles" }

// Compute returns every role DN entry is a member of. Only the nsRole
// attribute type is served; any other attribute request is ErrNotFound, so
// the dispatcher falls through to the next registered provider or to
// stored values.
func (p *Provider) Compute(_ context.Context, entry *slapi.Entry, attr string) (*slapi.ValueSet, error) {
	if !strings.EqualFold(attr, slapi.AttrNsRole) {
		return nil, slapi.ErrNotFound
	}
	roleDNs, err := p.registry.Roles(entry, p.recursionBound)
	if err != nil {
		return nil, err
	}
	if len(roleDNs) == 0 {
		return nil, slapi.ErrNotFound
	}
	return slapi.NewValueSet(roleDNs...), nil
}

// Cacheable is always true for nsRole (spec.md §4.3).
func (p *Provider) Cacheable(string) bool { return true }

// Generation sums the published tree versions of every registered suffix,
// so a role tree rebuild on any suffix changes it and the dispatcher stops
// serving nsRole values cached before that rebuild.
func (p *Provider) Generation() uint64 {
	p.registry.mu.RLock()
	defer p.registry.mu.RUnlock()
	var gen uint64
	for _, record := range p.registry.records {
		_, version := record.Get()
		gen += uint64(version)
	}
	return gen
}
