package slapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDN_IsAncestorOf(t *testing.T) {
	parent := MustParseDN("dc=example,dc=com")
	child := MustParseDN("ou=people,dc=example,dc=com")
	grandchild := MustParseDN("uid=alice,ou=people,dc=example,dc=com")
	other := MustParseDN("dc=other,dc=com")

	assert.True(t, parent.IsAncestorOf(child))
	assert.True(t, parent.IsAncestorOf(grandchild))
	assert.True(t, child.IsAncestorOf(grandchild))
	assert.False(t, parent.IsAncestorOf(parent))
	assert.False(t, child.IsAncestorOf(parent))
	assert.False(t, parent.IsAncestorOf(other))

	assert.True(t, parent.IsAncestorOfOrEqual(parent))
	assert.True(t, parent.IsAncestorOfOrEqual(grandchild))
}

func TestDN_Parent(t *testing.T) {
	dn := MustParseDN("uid=alice,ou=people,dc=example,dc=com")
	parent, ok := dn.Parent()
	require.True(t, ok)
	assert.True(t, parent.Equal(MustParseDN("ou=people,dc=example,dc=com")))

	root := MustParseDN("dc=com")
	_, ok = root.Parent()
	assert.False(t, ok)
}

func TestDN_RDNValue(t *testing.T) {
	dn := MustParseDN("cn=gold,ou=classOfService,dc=example,dc=com")
	v, ok := dn.RDNValue()
	require.True(t, ok)
	assert.Equal(t, "gold", v)
}

func TestParseDN_Invalid(t *testing.T) {
	_, err := ParseDN("this is not a distinguished name")
	assert.ErrorIs(t, err, ErrInvalidDefinition)
}

func TestFilter_Matches(t *testing.T) {
	entry := NewEntry(MustParseDN("uid=alice,dc=example,dc=com"), []string{"top", "person"},
		map[string][]string{"employeetype": {"gold"}})

	f, err := ParseFilter("(&(objectClass=person)(employeeType=gold))")
	require.NoError(t, err)
	assert.True(t, f.Matches(entry))

	f2, err := ParseFilter("(employeeType=silver)")
	require.NoError(t, err)
	assert.False(t, f2.Matches(entry))

	f3, err := ParseFilter("(employeeType=g*)")
	require.NoError(t, err)
	assert.True(t, f3.Matches(entry))
}

func TestFilter_ReferencesAttribute(t *testing.T) {
	f, err := ParseFilter("(&(objectClass=person)(nsRole=cn=managers,dc=example,dc=com))")
	require.NoError(t, err)
	assert.True(t, f.ReferencesAttribute("nsRole"))
	assert.False(t, f.ReferencesAttribute("mail"))
}

func TestParseFilter_RejectsMalformed(t *testing.T) {
	_, err := ParseFilter("(&(objectClass=person)")
	assert.ErrorIs(t, err, ErrFilterParseError)

	_, err = ParseFilter("   ")
	assert.ErrorIs(t, err, ErrFilterParseError)
}

func TestEntry_StoredValues_ObjectClassFromField(t *testing.T) {
	entry := NewEntry(MustParseDN("dc=example,dc=com"), []string{"top", "domain"}, nil)
	assert.Equal(t, []string{"top", "domain"}, entry.StoredValues("objectClass"))
	assert.True(t, entry.HasObjectClass("DOMAIN"))
}

func TestEntry_VattrCacheRoundTrip(t *testing.T) {
	entry := NewEntry(MustParseDN("dc=example,dc=com"), nil, nil)

	_, ok := entry.CachedVattr("mailQuota", 1)
	assert.False(t, ok)

	entry.StoreVattr("mailQuota", 1, NewValueSet("10GB"), true)
	vs, ok := entry.CachedVattr("mailquota", 1)
	require.True(t, ok)
	assert.Equal(t, []string{"10GB"}, vs.Values)

	_, ok = entry.CachedVattr("mailQuota", 2)
	assert.False(t, ok, "stale generation must miss")

	entry.StoreVattr("nsRole", 1, NewValueSet("cn=x"), false)
	_, ok = entry.CachedVattr("nsRole", 1)
	assert.False(t, ok, "non-cacheable provider must never serve from cache")

	entry.InvalidateAll()
	_, ok = entry.CachedVattr("mailQuota", 1)
	assert.False(t, ok)
}

func TestValueSet_MergeAndContains(t *testing.T) {
	vs := NewValueSet("a", "b")
	merged := vs.Merge(NewValueSet("b", "c"))
	assert.Equal(t, []string{"a", "b", "c"}, merged.Values)
	assert.True(t, merged.Contains("c"))
	assert.False(t, merged.Contains("d"))

	clone := merged.Clone()
	clone.Values[0] = "z"
	assert.Equal(t, "a", merged.Values[0], "clone must not alias the original backing array")
}
