// Package vattr implements the VAS Dispatcher: the process-wide registry
// that maps attribute type names to provider chains, detects evaluation
// loops, enforces schema, and maintains the per-entry result cache
// (spec.md §4.1).
package vattr

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/389ds/389-ds-base-sub010/internal/slapi"
)

// Provider computes values for one or more attribute types. COS and Roles
// each register one Provider with the dispatcher (spec.md §4.1's
// "register"/"register_ex").
type Provider interface {
	// Name identifies the provider for diagnostics (e.g. "cos", "roles").
	Name() string

	// Compute returns the provider's value for attr on entry, or
	// ErrNotFound if the provider has nothing to say about this
	// particular entry (which is not an error — the dispatcher continues
	// to the next provider in the chain, if any).
	Compute(ctx context.Context, entry *slapi.Entry, attr string) (*slapi.ValueSet, error)

	// Cacheable reports whether values this provider computes for attr may
	// be cached on the entry across requests (spec.md §4.1 cacheability
	// policy — Roles' nsRole is always cacheable per spec.md §4.3; COS
	// values are cacheable only between template-cache rebuilds).
	Cacheable(attr string) bool

	// Generation returns the provider's current snapshot generation; a
	// cached entry value is valid only while this has not advanced.
	Generation() uint64
}

type registration struct {
	attr   string
	handle *Handle[Provider]
}

// Dispatcher is the process-wide, read-mostly type registry. Construction
// is cheap; Dispatcher is safe for concurrent use once built.
type Dispatcher struct {
	schema slapi.SchemaRegistry

	mu sync.RWMutex
	// types holds globally-registered provider chains, keyed by lowercased
	// attribute type.
	types map[string][]*registration
	// namespaced holds namespace-qualified chains: attribute type ->
	// namespace DN string -> chain (spec.md §4.1 "<namespace_ndn>::<type>"
	// composite key).
	namespaced map[string]map[string][]*registration

	loopCeiling int

	fastPath *typePresenceCache
}

// New constructs a Dispatcher. schema may be nil (permissive). loopCeiling
// bounds recursive values_get calls; fastPathSize bounds the per-entry type
// presence cache.
func New(schema slapi.SchemaRegistry, loopCeiling, fastPathSize int) *Dispatcher {
	return &Dispatcher{
		schema:      schema,
		types:       make(map[string][]*registration),
		namespaced:  make(map[string]map[string][]*registration),
		loopCeiling: loopCeiling,
		fastPath:    newTypePresenceCache(fastPathSize),
	}
}

// Register adds provider to attr's global chain, appended after any
// providers already registered for that type, and returns a Handle the
// caller must Release when the provider is torn down (spec.md §4.1's
// "register"/"register_attribute"). It is equivalent to calling
// RegisterNamespaced with a zero-value namespace and no hint.
func (d *Dispatcher) Register(attr string, provider Provider) *Handle[Provider] {
	return d.RegisterNamespaced(attr, slapi.DN{}, "", provider)
}

// RegisterNamespaced adds provider to attr's chain, scoped to namespaceDN if
// it is non-empty (producing the "<namespace_ndn>::<type>" composite key),
// else registered globally (spec.md §4.1 "register_attribute(handle, type,
// namespace_dn?, hint)"). hint is carried through for diagnostics parity
// with the original registration call and otherwise unused.
//
// Registering the same provider for the same (attr, namespaceDN) a second
// time does not create a second entry in the chain: it acquires another
// reference on the existing handle, so two Unregister calls are required to
// actually drop the provider and its on-zero callback fires exactly once
// (spec.md §8 Testable Property 4).
func (d *Dispatcher) RegisterNamespaced(attr string, namespaceDN slapi.DN, hint string, provider Provider) *Handle[Provider] {
	_ = hint
	d.mu.Lock()
	defer d.mu.Unlock()

	key := normalize(attr)

	if namespaceDN.Empty() {
		for _, reg := range d.types[key] {
			if sameProvider(reg.handle.Value(), provider) {
				return reg.handle.Acquire()
			}
		}
		handle := NewHandleWithOnZero[Provider](provider, func() { d.drop(key, namespaceDN, provider) })
		d.types[key] = append(d.types[key], &registration{attr: attr, handle: handle})
		return handle
	}

	byNS, ok := d.namespaced[key]
	if !ok {
		byNS = make(map[string][]*registration)
		d.namespaced[key] = byNS
	}
	ns := namespaceDN.String()
	for _, reg := range byNS[ns] {
		if sameProvider(reg.handle.Value(), provider) {
			return reg.handle.Acquire()
		}
	}
	handle := NewHandleWithOnZero[Provider](provider, func() { d.drop(key, namespaceDN, provider) })
	byNS[ns] = append(byNS[ns], &registration{attr: attr, handle: handle})
	return handle
}

// drop removes provider's registration from (attr, namespaceDN)'s chain
// once its refcount has reached zero.
func (d *Dispatcher) drop(key string, namespaceDN slapi.DN, provider Provider) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if namespaceDN.Empty() {
		d.types[key] = removeProvider(d.types[key], provider)
		if len(d.types[key]) == 0 {
			delete(d.types, key)
		}
		return
	}
	byNS := d.namespaced[key]
	if byNS == nil {
		return
	}
	ns := namespaceDN.String()
	byNS[ns] = removeProvider(byNS[ns], provider)
	if len(byNS[ns]) == 0 {
		delete(byNS, ns)
	}
	if len(byNS) == 0 {
		delete(d.namespaced, key)
	}
}

func removeProvider(chain []*registration, provider Provider) []*registration {
	out := chain[:0:0]
	for _, reg := range chain {
		if !sameProvider(reg.handle.Value(), provider) {
			out = append(out, reg)
		}
	}
	return out
}

func sameProvider(a, b Provider) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = a == nil && b == nil
		}
	}()
	return a == b
}

// Unregister releases handle's reference; once the refcount reaches zero
// the on-zero callback wired in at registration time removes the
// registration from its chain.
func (d *Dispatcher) Unregister(_ string, handle *Handle[Provider]) {
	handle.Release()
}

// ValuesGet resolves attr on entry under flags, consulting the per-entry
// cache first, then each registered provider in chain order (preferring a
// namespace-qualified chain over the global one), enforcing schema and loop
// detection, and falling back to stored values (including subtypes, unless
// suppressed) when no provider answers. It is the dispatcher's central
// operation (spec.md §4.1 "values_get").
func (d *Dispatcher) ValuesGet(ctx context.Context, entry *slapi.Entry, attr string, flags Flags) (*Result, error) {
	if flags.has(RealAttrsOnly) && flags.has(VirtualAttrsOnly) {
		return nil, fmt.Errorf("%w: %s", slapi.ErrConflictingFlags, attr)
	}

	ctx, lc := LoopContextFrom(ctx, d.loopCeiling)
	if err := lc.Enter(entry.DN, attr); err != nil {
		return nil, err
	}
	defer lc.Exit(entry.DN, attr)

	allowed, operational := checkSchema(d.schema, entry, attr)
	if !allowed {
		return nil, fmt.Errorf("%w: %s", slapi.ErrSchemaViolation, attr)
	}

	if !flags.has(RealAttrsOnly) {
		chain := d.resolveChain(attr, entry.DN)

		for _, reg := range chain {
			gen := reg.handle.Value().Generation()
			if cached, ok := entry.CachedVattr(attr, gen); ok {
				return &Result{Values: cached, ActualNames: []string{attr}, Dispositions: []MatchDisposition{ExactOrAlias}}, nil
			}
			values, err := reg.handle.Value().Compute(ctx, entry, attr)
			if err != nil {
				if isNotFound(err) {
					continue
				}
				return nil, err
			}
			cacheable := reg.handle.Value().Cacheable(attr)
			entry.StoreVattr(attr, gen, values, cacheable)
			return &Result{Values: values, ActualNames: []string{attr}, Dispositions: []MatchDisposition{ExactOrAlias}}, nil
		}

		if flags.has(VirtualAttrsOnly) {
			return nil, slapi.ErrNotFound
		}
	}

	if operational && !flags.has(ListOperationalAttrs) {
		return nil, slapi.ErrNotFound
	}

	result := storedWithSubtypes(entry, attr, flags)
	if result == nil {
		return nil, slapi.ErrNotFound
	}
	return result, nil
}

// resolveChain returns the provider chain to consult for attr on an entry
// at dn: the most specific namespace-qualified chain whose namespace is an
// ancestor-or-equal of dn, else the global chain (spec.md §4.1 "namespace-
// qualified key, else the global key").
func (d *Dispatcher) resolveChain(attr string, dn slapi.DN) []*registration {
	key := normalize(attr)

	d.mu.RLock()
	defer d.mu.RUnlock()

	var best []*registration
	bestLen := -1
	for ns, chain := range d.namespaced[key] {
		nsDN, err := slapi.ParseDN(ns)
		if err != nil {
			continue
		}
		if !nsDN.IsAncestorOfOrEqual(dn) {
			continue
		}
		if len(ns) > bestLen {
			best, bestLen = chain, len(ns)
		}
	}
	if best != nil {
		return append([]*registration(nil), best...)
	}
	return append([]*registration(nil), d.types[key]...)
}

// storedWithSubtypes resolves attr purely from entry's stored values,
// including subtyped keys (attr;option) unless SuppressSubtypes is set
// (spec.md glossary "base type / subtype"). When RequestPointers is set and
// exactly one stored key contributes, the returned ValueSet aliases entry's
// own backing slice instead of copying it.
func storedWithSubtypes(entry *slapi.Entry, attr string, flags Flags) *Result {
	if strings.EqualFold(attr, slapi.AttrObjectClass) {
		if len(entry.ObjectClasses) == 0 {
			return nil
		}
		values := entry.ObjectClasses
		if !flags.has(RequestPointers) {
			values = append([]string(nil), values...)
		}
		return &Result{
			Values:       &slapi.ValueSet{Values: values},
			ActualNames:  []string{attr},
			Dispositions: []MatchDisposition{ExactOrAlias},
			Pointer:      flags.has(RequestPointers),
		}
	}

	var keys []string
	for k := range entry.Attrs {
		base := k
		if i := strings.IndexByte(k, ';'); i >= 0 {
			base = k[:i]
		}
		if strings.EqualFold(base, attr) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var names []string
	var dispositions []MatchDisposition
	var merged *slapi.ValueSet
	var soleKey string
	contributing := 0

	for _, k := range keys {
		disposition := ExactOrAlias
		if !strings.EqualFold(k, attr) {
			if flags.has(SuppressSubtypes) {
				continue
			}
			disposition = Subtype
		}
		v := entry.Attrs[k]
		if len(v) == 0 {
			continue
		}
		contributing++
		soleKey = k
		if merged == nil {
			merged = slapi.NewValueSet()
		}
		merged = merged.Merge(slapi.NewValueSet(v...))
		names = append(names, k)
		dispositions = append(dispositions, disposition)
	}
	if merged == nil {
		return nil
	}

	if contributing == 1 && flags.has(RequestPointers) {
		return &Result{
			Values:       &slapi.ValueSet{Values: entry.Attrs[soleKey]},
			ActualNames:  names,
			Dispositions: dispositions,
			Pointer:      true,
		}
	}
	return &Result{Values: merged, ActualNames: names, Dispositions: dispositions}
}

// ValuesCompare reports whether any value returned for attr on entry
// equals want, short-circuiting on the first match without materialising
// the full value set twice (spec.md §4.1 "values_compare").
func (d *Dispatcher) ValuesCompare(ctx context.Context, entry *slapi.Entry, attr, want string) (bool, error) {
	result, err := d.ValuesGet(ctx, entry, attr, 0)
	if err != nil {
		return false, err
	}
	return result.Values.Contains(want), nil
}

// ListTypes returns every attribute type name present on entry, virtual or
// real: entry's own stored attribute base types first, then every
// provider-registered type, whether or not it overlaps a stored type
// (spec.md §4.1 "list_types" — a provider's add_type contribution always
// takes the type, even when the entry also stores it, so retrieval is
// forced through the provider). The result is sorted for deterministic
// output and served from a bounded per-entry fast-path cache when present.
func (d *Dispatcher) ListTypes(entry *slapi.Entry) []string {
	dn := entry.DN.String()
	if cached, ok := d.fastPath.presentTypes(dn); ok {
		return sortedKeys(cached)
	}

	present := make(map[string]bool)
	for k := range entry.Attrs {
		base := k
		if i := strings.IndexByte(k, ';'); i >= 0 {
			base = k[:i]
		}
		present[normalize(base)] = true
	}
	if len(entry.ObjectClasses) > 0 {
		present[normalize(slapi.AttrObjectClass)] = true
	}

	d.mu.RLock()
	for key := range d.types {
		present[key] = true
	}
	for key := range d.namespaced {
		present[key] = true
	}
	d.mu.RUnlock()

	d.fastPath.recordTypes(dn, present)
	return sortedKeys(present)
}

// InvalidateEntry drops both the per-entry vattr cache and the fast-path
// presence cache for entry, the counterpart of the StateChange
// invalidation callback (spec.md §6 "vattr_cache_invalidator_callback").
// Nothing in this module calls it.
func (d *Dispatcher) InvalidateEntry(entry *slapi.Entry) {
	entry.InvalidateAll()
	d.fastPath.invalidate(entry.DN.String())
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func normalize(attr string) string {
	return strings.ToLower(attr)
}

func isNotFound(err error) bool {
	return errors.Is(err, slapi.ErrNotFound)
}
