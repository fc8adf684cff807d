package views

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/389ds/389-ds-base-sub010/internal/slapi"
)

type fakeBackend struct {
	entries map[string]*slapi.Entry
}

func newFakeBackend() *fakeBackend { return &fakeBackend{entries: make(map[string]*slapi.Entry)} }

func (b *fakeBackend) add(e *slapi.Entry) { b.entries[e.DN.String()] = e }

func (b *fakeBackend) GetEntry(_ context.Context, dn slapi.DN) (*slapi.Entry, error) {
	e, ok := b.entries[dn.String()]
	if !ok {
		return nil, slapi.ErrNotFound
	}
	return e, nil
}

func (b *fakeBackend) SearchSubtree(_ context.Context, base slapi.DN, filter *slapi.Filter) ([]*slapi.Entry, error) {
	var out []*slapi.Entry
	for _, e := range b.entries {
		if !base.IsAncestorOfOrEqual(e.DN) {
			continue
		}
		if filter != nil && !filter.Matches(e) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (b *fakeBackend) SearchOneLevel(ctx context.Context, base slapi.DN, filter *slapi.Filter) ([]*slapi.Entry, error) {
	return b.SearchSubtree(ctx, base, filter)
}

func TestCache_RewriteSearch_ComposesAncestorFilterAndRealBase(t *testing.T) {
	backend := newFakeBackend()
	suffix := slapi.MustParseDN("dc=example,dc=com")

	parentView := slapi.NewEntry(
		slapi.MustParseDN("ou=activeUsers,dc=example,dc=com"),
		[]string{"nsview"},
		map[string][]string{slapi.AttrNsViewFilter: {"(!(nsAccountLock=true))"}},
	)
	backend.add(parentView)

	cache := NewCache(backend)
	require.NoError(t, cache.Refresh(context.Background(), suffix))

	base := slapi.MustParseDN("ou=activeUsers,dc=example,dc=com")
	clientFilter, err := slapi.ParseFilter("(objectClass=person)")
	require.NoError(t, err)

	newBase, newScope, newFilter, err := cache.RewriteSearch(context.Background(), base, slapi.ScopeSubtree, clientFilter)
	require.NoError(t, err)
	// A view entry is virtual: its members live under the view's parent,
	// not nested under the view DN itself, so the real search base is the
	// parent, not the view DN the client asked for.
	assert.Equal(t, "dc=example,dc=com", newBase.String())
	assert.Equal(t, slapi.ScopeSubtree, newScope)
	assert.Contains(t, newFilter.String(), "nsAccountLock")
	assert.Contains(t, newFilter.String(), "objectClass=person")
}

func TestCache_RewriteSearch_NonViewBaseUnchanged(t *testing.T) {
	backend := newFakeBackend()
	suffix := slapi.MustParseDN("dc=example,dc=com")
	cache := NewCache(backend)
	require.NoError(t, cache.Refresh(context.Background(), suffix))

	base := slapi.MustParseDN("ou=people,dc=example,dc=com")
	filter, err := slapi.ParseFilter("(objectClass=person)")
	require.NoError(t, err)

	newBase, newScope, newFilter, err := cache.RewriteSearch(context.Background(), base, slapi.ScopeSubtree, filter)
	require.NoError(t, err)
	assert.Equal(t, base.String(), newBase.String())
	assert.Equal(t, slapi.ScopeSubtree, newScope)
	assert.Equal(t, filter.String(), newFilter.String())
}

func TestCache_EntryExists(t *testing.T) {
	backend := newFakeBackend()
	suffix := slapi.MustParseDN("dc=example,dc=com")
	view := slapi.NewEntry(slapi.MustParseDN("ou=activeUsers,dc=example,dc=com"), []string{"nsview"}, nil)
	backend.add(view)

	cache := NewCache(backend)
	require.NoError(t, cache.Refresh(context.Background(), suffix))

	assert.True(t, cache.EntryExists(slapi.MustParseDN("ou=activeUsers,dc=example,dc=com")))
	assert.False(t, cache.EntryExists(slapi.MustParseDN("ou=otherUsers,dc=example,dc=com")))
}

func TestCache_ExcludesChildViewScopeOnOneLevelSearch(t *testing.T) {
	backend := newFakeBackend()
	suffix := slapi.MustParseDN("dc=example,dc=com")

	parent := slapi.NewEntry(slapi.MustParseDN("ou=all,dc=example,dc=com"), []string{"nsview"}, nil)
	child := slapi.NewEntry(
		slapi.MustParseDN("ou=contractors,ou=all,dc=example,dc=com"),
		[]string{"nsview"},
		map[string][]string{slapi.AttrNsViewFilter: {"(employeeType=contractor)"}},
	)
	backend.add(parent)
	backend.add(child)

	cache := NewCache(backend)
	require.NoError(t, cache.Refresh(context.Background(), suffix))

	base := slapi.MustParseDN("ou=all,dc=example,dc=com")
	filter, err := slapi.ParseFilter("(objectClass=person)")
	require.NoError(t, err)

	_, newScope, newFilter, err := cache.RewriteSearch(context.Background(), base, slapi.ScopeOneLevel, filter)
	require.NoError(t, err)
	assert.Equal(t, slapi.ScopeSubtree, newScope)
	assert.Contains(t, newFilter.String(), "contractor")
}

func TestCache_IncludesChildViewScopeOnSubtreeSearch(t *testing.T) {
	backend := newFakeBackend()
	suffix := slapi.MustParseDN("dc=example,dc=com")

	parent := slapi.NewEntry(
		slapi.MustParseDN("ou=all,dc=example,dc=com"),
		[]string{"nsview"},
		map[string][]string{slapi.AttrNsViewFilter: {"(department=Eng)"}},
	)
	child := slapi.NewEntry(
		slapi.MustParseDN("ou=contractors,ou=all,dc=example,dc=com"),
		[]string{"nsview"},
		map[string][]string{slapi.AttrNsViewFilter: {"(employeeType=contractor)"}},
	)
	backend.add(parent)
	backend.add(child)

	cache := NewCache(backend)
	require.NoError(t, cache.Refresh(context.Background(), suffix))

	base := slapi.MustParseDN("ou=all,dc=example,dc=com")
	filter, err := slapi.ParseFilter("(objectClass=person)")
	require.NoError(t, err)

	_, newScope, newFilter, err := cache.RewriteSearch(context.Background(), base, slapi.ScopeSubtree, filter)
	require.NoError(t, err)
	assert.Equal(t, slapi.ScopeSubtree, newScope)
	// A subtree search against the parent view must still surface
	// entries that only qualify via the nested contractor view's own
	// filter, not just the parent's (include_child_views).
	assert.Contains(t, newFilter.String(), "contractor")
}

func TestCache_Search_ExecutesRewrittenQueryAgainstBackend(t *testing.T) {
	backend := newFakeBackend()
	suffix := slapi.MustParseDN("dc=example,dc=com")

	view := slapi.NewEntry(
		slapi.MustParseDN("ou=activeUsers,dc=example,dc=com"),
		[]string{"nsview"},
		map[string][]string{slapi.AttrNsViewFilter: {"(!(nsAccountLock=true))"}},
	)
	backend.add(view)

	alice := slapi.NewEntry(
		slapi.MustParseDN("uid=alice,dc=example,dc=com"),
		[]string{"person"},
		nil,
	)
	backend.add(alice)
	locked := slapi.NewEntry(
		slapi.MustParseDN("uid=locked,dc=example,dc=com"),
		[]string{"person"},
		map[string][]string{"nsAccountLock": {"true"}},
	)
	backend.add(locked)

	cache := NewCache(backend)
	require.NoError(t, cache.Refresh(context.Background(), suffix))

	filter, err := slapi.ParseFilter("(objectClass=person)")
	require.NoError(t, err)

	results, err := cache.Search(context.Background(), slapi.MustParseDN("ou=activeUsers,dc=example,dc=com"), slapi.ScopeSubtree, filter)
	require.NoError(t, err)

	var dns []string
	for _, e := range results {
		dns = append(dns, e.DN.String())
	}
	assert.Contains(t, dns, "uid=alice,dc=example,dc=com")
	assert.NotContains(t, dns, "uid=locked,dc=example,dc=com")
}
