package fixture

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/389ds/389-ds-base-sub010/internal/slapi"
)

func writeFixture(t *testing.T, dir, name, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644))
}

func TestLoadDir_ParsesEntriesAndObjectClasses(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "people.ldif", `
dn: uid=alice,ou=people,dc=example,dc=com
objectClass: top
objectClass: person
employeetype: gold
cn: Alice

dn: uid=bob,ou=people,dc=example,dc=com
objectClass: top
objectClass: person
employeetype: silver
`)

	backend, err := LoadDir(dir)
	require.NoError(t, err)

	alice, err := backend.GetEntry(context.Background(), slapi.MustParseDN("uid=alice,ou=people,dc=example,dc=com"))
	require.NoError(t, err)
	assert.True(t, alice.HasObjectClass("person"))
	assert.Equal(t, []string{"gold"}, alice.StoredValues("employeetype"))

	entries := backend.Entries()
	assert.Len(t, entries, 2)
}

func TestLoadDir_SearchSubtreeAndOneLevel(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "tree.ldif", `
dn: ou=people,dc=example,dc=com
objectClass: organizationalUnit

dn: uid=alice,ou=people,dc=example,dc=com
objectClass: person

dn: uid=bob,ou=people,dc=example,dc=com
objectClass: person
`)

	backend, err := LoadDir(dir)
	require.NoError(t, err)

	sub, err := backend.SearchSubtree(context.Background(), slapi.MustParseDN("ou=people,dc=example,dc=com"), nil)
	require.NoError(t, err)
	assert.Len(t, sub, 3)

	one, err := backend.SearchOneLevel(context.Background(), slapi.MustParseDN("ou=people,dc=example,dc=com"), nil)
	require.NoError(t, err)
	assert.Len(t, one, 2)
}

func TestLoadDir_RejectsMalformedDN(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "bad.ldif", `
dn: this is not a distinguished name
objectClass: top
`)

	_, err := LoadDir(dir)
	assert.Error(t, err)
}
