package roles

import (
	"context"
	"fmt"
	"sync"

	"github.com/389ds/389-ds-base-sub010/internal/slapi"
)

// Registry owns one SuffixRecord per configured backend suffix (spec.md
// §4.3 "per-suffix avl trees"). Carried as a field on the top-level
// subsystem struct rather than module-level mutable state (spec.md §9
// redesign guidance).
type Registry struct {
	backend slapi.SearchBackend

	mu      sync.RWMutex
	records map[string]*SuffixRecord
}

// NewRegistry constructs an empty registry reading from backend.
func NewRegistry(backend slapi.SearchBackend) *Registry {
	return &Registry{backend: backend, records: make(map[string]*SuffixRecord)}
}

// AddSuffix registers suffix and performs its initial synchronous build.
// views may be nil when no Views collaborator is available for this
// suffix.
func (r *Registry) AddSuffix(ctx context.Context, suffix slapi.DN, views ScopeFilter) error {
	record, err := NewSuffixRecord(ctx, suffix, r.backend, views)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.records[suffix.String()] = record
	r.mu.Unlock()
	return nil
}

// RemoveSuffix stops and unregisters a suffix, e.g. on a backend-offline
// event (spec.md §6 BackendStateEvent).
func (r *Registry) RemoveSuffix(suffix slapi.DN) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if record, ok := r.records[suffix.String()]; ok {
		record.Stop()
		delete(r.records, suffix.String())
	}
}

// recordFor returns the suffix record that governs dn: the longest
// registered suffix that is an ancestor of, or equal to, dn.
func (r *Registry) recordFor(dn slapi.DN) (*SuffixRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best *SuffixRecord
	var bestLen = -1
	for suffix, record := range r.records {
		if len(suffix) <= bestLen {
			continue
		}
		parsed, err := slapi.ParseDN(suffix)
		if err != nil {
			continue
		}
		if parsed.IsAncestorOfOrEqual(dn) {
			best = record
			bestLen = len(suffix)
		}
	}
	if best == nil {
		return nil, fmt.Errorf("roles: no suffix registered covering %s", dn)
	}
	return best, nil
}

// RequestRebuild signals the suffix covering dn to rebuild, used by the
// Change-Notify Bus subscriber that watches for role definition entry
// modifications (spec.md §4.4).
func (r *Registry) RequestRebuild(dn slapi.DN) {
	record, err := r.recordFor(dn)
	if err != nil {
		return
	}
	record.RequestRebuild()
}
