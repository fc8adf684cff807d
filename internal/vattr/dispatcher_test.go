package vattr

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/389ds/389-ds-base-sub010/internal/slapi"
)

type stubProvider struct {
	name      string
	values    map[string]*slapi.ValueSet
	cacheable bool
	gen       uint64
	calls     int
	mu        sync.Mutex
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Compute(_ context.Context, entry *slapi.Entry, attr string) (*slapi.ValueSet, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if vs, ok := p.values[entry.DN.String()+"|"+attr]; ok {
		return vs, nil
	}
	return nil, slapi.ErrNotFound
}

func (p *stubProvider) Cacheable(string) bool { return p.cacheable }
func (p *stubProvider) Generation() uint64    { return p.gen }

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// loopingProvider calls back into the dispatcher for the same attribute on
// the same entry, exercising the loop-detection ceiling.
type loopingProvider struct {
	d *Dispatcher
}

func (p *loopingProvider) Name() string { return "looping" }
func (p *loopingProvider) Compute(ctx context.Context, entry *slapi.Entry, attr string) (*slapi.ValueSet, error) {
	result, err := p.d.ValuesGet(ctx, entry, attr, 0)
	if err != nil {
		return nil, err
	}
	return result.Values, nil
}
func (p *loopingProvider) Cacheable(string) bool { return false }
func (p *loopingProvider) Generation() uint64    { return 0 }

func TestDispatcher_ValuesGet_FallsBackToStoredValues(t *testing.T) {
	d := New(nil, 50, 16)
	entry := slapi.NewEntry(slapi.MustParseDN("uid=alice,dc=example,dc=com"), nil, map[string][]string{"sn": {"Smith"}})

	result, err := d.ValuesGet(context.Background(), entry, "sn", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Smith"}, result.Values.Values)
	assert.Equal(t, []string{"sn"}, result.ActualNames)
	assert.Equal(t, []MatchDisposition{ExactOrAlias}, result.Dispositions)
}

func TestDispatcher_ValuesGet_NotFoundWhenAbsent(t *testing.T) {
	d := New(nil, 50, 16)
	entry := slapi.NewEntry(slapi.MustParseDN("uid=alice,dc=example,dc=com"), nil, nil)

	_, err := d.ValuesGet(context.Background(), entry, "mailQuota", 0)
	assert.True(t, errors.Is(err, slapi.ErrNotFound))
}

func TestDispatcher_ValuesGet_UsesProviderAndCaches(t *testing.T) {
	d := New(nil, 50, 16)
	entry := slapi.NewEntry(slapi.MustParseDN("uid=alice,dc=example,dc=com"), nil, nil)
	p := &stubProvider{
		name:      "cos",
		cacheable: true,
		values:    map[string]*slapi.ValueSet{entry.DN.String() + "|mailQuota": slapi.NewValueSet("1000")},
	}
	d.Register("mailQuota", p)

	result, err := d.ValuesGet(context.Background(), entry, "mailQuota", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"1000"}, result.Values.Values)

	// Second call should be served from the per-entry cache, not the
	// provider, since Generation() hasn't advanced.
	_, err = d.ValuesGet(context.Background(), entry, "mailQuota", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, p.callCount())
}

func TestDispatcher_ValuesGet_CacheInvalidatedByGeneration(t *testing.T) {
	d := New(nil, 50, 16)
	entry := slapi.NewEntry(slapi.MustParseDN("uid=alice,dc=example,dc=com"), nil, nil)
	p := &stubProvider{
		name:      "cos",
		cacheable: true,
		values:    map[string]*slapi.ValueSet{entry.DN.String() + "|mailQuota": slapi.NewValueSet("1000")},
	}
	d.Register("mailQuota", p)

	_, err := d.ValuesGet(context.Background(), entry, "mailQuota", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, p.callCount())

	p.gen++ // simulate a cache rebuild advancing the snapshot generation
	_, err = d.ValuesGet(context.Background(), entry, "mailQuota", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, p.callCount())
}

func TestDispatcher_ValuesGet_SchemaViolation(t *testing.T) {
	schema := schemaRegistryFunc(func(ocs []string, attr string) bool { return false })
	d := New(schema, 50, 16)
	entry := slapi.NewEntry(slapi.MustParseDN("uid=alice,dc=example,dc=com"), []string{"person"}, nil)

	_, err := d.ValuesGet(context.Background(), entry, "mailQuota", 0)
	assert.True(t, errors.Is(err, slapi.ErrSchemaViolation))
}

func TestDispatcher_ValuesGet_LoopDetected(t *testing.T) {
	d := New(nil, 50, 16)
	d.Register("recursive", &loopingProvider{d: d})
	entry := slapi.NewEntry(slapi.MustParseDN("uid=alice,dc=example,dc=com"), nil, nil)

	_, err := d.ValuesGet(context.Background(), entry, "recursive", 0)
	assert.True(t, errors.Is(err, slapi.ErrLoopDetected))
}

func TestDispatcher_ValuesGet_ConflictingFlags(t *testing.T) {
	d := New(nil, 50, 16)
	entry := slapi.NewEntry(slapi.MustParseDN("uid=alice,dc=example,dc=com"), nil, nil)

	_, err := d.ValuesGet(context.Background(), entry, "sn", RealAttrsOnly|VirtualAttrsOnly)
	assert.True(t, errors.Is(err, slapi.ErrConflictingFlags))
}

func TestDispatcher_ValuesGet_VirtualAttrsOnlySkipsStoredFallback(t *testing.T) {
	d := New(nil, 50, 16)
	entry := slapi.NewEntry(slapi.MustParseDN("uid=alice,dc=example,dc=com"), nil, map[string][]string{"sn": {"Smith"}})

	// No provider registered for sn: a plain call falls back to the stored
	// value, but VIRTUAL_ATTRS_ONLY must refuse that fallback.
	result, err := d.ValuesGet(context.Background(), entry, "sn", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Smith"}, result.Values.Values)

	_, err = d.ValuesGet(context.Background(), entry, "sn", VirtualAttrsOnly)
	assert.True(t, errors.Is(err, slapi.ErrNotFound))
}

func TestDispatcher_ValuesGet_RealAttrsOnlySkipsProviderChain(t *testing.T) {
	d := New(nil, 50, 16)
	entry := slapi.NewEntry(slapi.MustParseDN("uid=alice,dc=example,dc=com"), nil, map[string][]string{"mailquota": {"stored"}})
	p := &stubProvider{
		name:      "cos",
		cacheable: true,
		values:    map[string]*slapi.ValueSet{entry.DN.String() + "|mailQuota": slapi.NewValueSet("computed")},
	}
	d.Register("mailQuota", p)

	result, err := d.ValuesGet(context.Background(), entry, "mailQuota", RealAttrsOnly)
	require.NoError(t, err)
	assert.Equal(t, []string{"stored"}, result.Values.Values)
	assert.Equal(t, 0, p.callCount(), "RealAttrsOnly must never consult the provider chain")
}

func TestDispatcher_ValuesGet_SubtypeFallbackAndSuppression(t *testing.T) {
	d := New(nil, 50, 16)
	entry := slapi.NewEntry(slapi.MustParseDN("uid=alice,dc=example,dc=com"), nil, map[string][]string{
		"cn":         {"Alice"},
		"cn;lang-en": {"Alice (EN)"},
	})

	result, err := d.ValuesGet(context.Background(), entry, "cn", 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Alice", "Alice (EN)"}, result.Values.Values)
	assert.Equal(t, []string{"cn", "cn;lang-en"}, result.ActualNames)
	assert.Equal(t, []MatchDisposition{ExactOrAlias, Subtype}, result.Dispositions)

	suppressed, err := d.ValuesGet(context.Background(), entry, "cn", SuppressSubtypes)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice"}, suppressed.Values.Values)
	assert.Equal(t, []string{"cn"}, suppressed.ActualNames)
}

func TestDispatcher_ValuesGet_OperationalAttrSuppressedUnlessRequested(t *testing.T) {
	schema := operationalSchema{operational: map[string]bool{"createtimestamp": true}}
	d := New(schema, 50, 16)
	entry := slapi.NewEntry(slapi.MustParseDN("uid=alice,dc=example,dc=com"), nil, map[string][]string{"createtimestamp": {"20260101000000Z"}})

	_, err := d.ValuesGet(context.Background(), entry, "createtimestamp", 0)
	assert.True(t, errors.Is(err, slapi.ErrNotFound))

	result, err := d.ValuesGet(context.Background(), entry, "createtimestamp", ListOperationalAttrs)
	require.NoError(t, err)
	assert.Equal(t, []string{"20260101000000Z"}, result.Values.Values)
}

func TestDispatcher_ValuesCompare(t *testing.T) {
	d := New(nil, 50, 16)
	entry := slapi.NewEntry(slapi.MustParseDN("uid=alice,dc=example,dc=com"), nil, map[string][]string{"sn": {"Smith"}})

	ok, err := d.ValuesCompare(context.Background(), entry, "sn", "Smith")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.ValuesCompare(context.Background(), entry, "sn", "Jones")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDispatcher_ListTypes_SortedAndCached(t *testing.T) {
	d := New(nil, 50, 16)
	d.Register("mailQuota", &stubProvider{name: "cos"})
	d.Register("nsRole", &stubProvider{name: "roles"})
	entry := slapi.NewEntry(slapi.MustParseDN("uid=alice,dc=example,dc=com"), nil, nil)

	types := d.ListTypes(entry)
	assert.Equal(t, []string{"mailquota", "nsrole"}, types)

	// Second call hits the fast-path cache; still returns the same set.
	types2 := d.ListTypes(entry)
	assert.Equal(t, types, types2)
}

func TestDispatcher_ListTypes_IncludesStoredAttributes(t *testing.T) {
	d := New(nil, 50, 16)
	d.Register("nsRole", &stubProvider{name: "roles"})
	entry := slapi.NewEntry(slapi.MustParseDN("uid=alice,dc=example,dc=com"), []string{"person"},
		map[string][]string{"sn": {"Smith"}, "cn;lang-en": {"Alice"}})

	types := d.ListTypes(entry)
	assert.Equal(t, []string{"cn", "nsrole", "objectclass", "sn"}, types)
}

func TestDispatcher_UnregisterRemovesProvider(t *testing.T) {
	d := New(nil, 50, 16)
	entry := slapi.NewEntry(slapi.MustParseDN("uid=alice,dc=example,dc=com"), nil, nil)
	p := &stubProvider{name: "cos", values: map[string]*slapi.ValueSet{entry.DN.String() + "|mailQuota": slapi.NewValueSet("1000")}}
	handle := d.Register("mailQuota", p)

	d.Unregister("mailQuota", handle)

	_, err := d.ValuesGet(context.Background(), entry, "mailQuota", 0)
	assert.True(t, errors.Is(err, slapi.ErrNotFound))
}

func TestDispatcher_DuplicateRegistration_OnZeroFiresOnce(t *testing.T) {
	d := New(nil, 50, 16)
	p := &stubProvider{name: "cos"}

	first := d.RegisterNamespaced("mailQuota", slapi.DN{}, "", p)
	second := d.RegisterNamespaced("mailQuota", slapi.DN{}, "", p)
	assert.Same(t, first, second, "a duplicate (handle, type) registration must acquire the existing handle, not create a second one")

	// Release once: still referenced once more, registration must remain.
	first.Release()
	d.mu.RLock()
	_, stillPresent := d.types["mailquota"]
	d.mu.RUnlock()
	assert.True(t, stillPresent)

	// Release the second reference: the registration drops exactly once.
	second.Release()
	d.mu.RLock()
	_, present := d.types["mailquota"]
	d.mu.RUnlock()
	assert.False(t, present)
}

func TestDispatcher_RegisterNamespaced_PrefersNamespaceQualifiedChain(t *testing.T) {
	d := New(nil, 50, 16)
	global := &stubProvider{name: "global", values: map[string]*slapi.ValueSet{
		"uid=alice,ou=people,dc=example,dc=com|quota": slapi.NewValueSet("global"),
	}}
	scoped := &stubProvider{name: "scoped", values: map[string]*slapi.ValueSet{
		"uid=alice,ou=people,dc=example,dc=com|quota": slapi.NewValueSet("scoped"),
	}}
	d.Register("quota", global)
	d.RegisterNamespaced("quota", slapi.MustParseDN("ou=people,dc=example,dc=com"), "", scoped)

	entry := slapi.NewEntry(slapi.MustParseDN("uid=alice,ou=people,dc=example,dc=com"), nil, nil)
	result, err := d.ValuesGet(context.Background(), entry, "quota", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"scoped"}, result.Values.Values)

	outside := slapi.NewEntry(slapi.MustParseDN("uid=bob,ou=contractors,dc=example,dc=com"), nil, nil)
	result, err = d.ValuesGet(context.Background(), outside, "quota", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"global"}, result.Values.Values)
}

type schemaRegistryFunc func(objectClasses []string, attr string) bool

func (f schemaRegistryFunc) AttributeAllowed(objectClasses []string, attr string) bool {
	return f(objectClasses, attr)
}
func (schemaRegistryFunc) IsOperational(string) bool { return false }

type operationalSchema struct {
	operational map[string]bool
}

func (operationalSchema) AttributeAllowed([]string, string) bool { return true }
func (s operationalSchema) IsOperational(attr string) bool       { return s.operational[attr] }
