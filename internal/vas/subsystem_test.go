package vas

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/389ds/389-ds-base-sub010/internal/config"
	"github.com/389ds/389-ds-base-sub010/internal/fixture"
	"github.com/389ds/389-ds-base-sub010/internal/slapi"
)

func testConfig() *config.Config {
	return &config.Config{
		LoopCeiling:               50,
		CosTemplateRecursionBound: 30,
		RolesNestedRecursionBound: 5,
		EntryCachePolicy:          config.CacheAll,
		EntryCacheFastPathSize:    1024,
	}
}

func TestSubsystem_AddSuffix_ResolvesCosAndRoles(t *testing.T) {
	backend := fixture.NewBackend()
	suffix := slapi.MustParseDN("dc=example,dc=com")

	backend.Add(slapi.NewEntry(
		slapi.MustParseDN("cn=gold,dc=example,dc=com"),
		[]string{"top", "costemplate"},
		map[string][]string{"mailquota": {"10GB"}},
	))
	backend.Add(slapi.NewEntry(
		slapi.MustParseDN("cn=quotaDefinition,dc=example,dc=com"),
		[]string{"top", "cosSuperDefinition", "cosClassicDefinition", "ldapsubentry"},
		map[string][]string{
			"cosattribute":  {"mailquota default"},
			"cosspecifier":  {"employeetype"},
			"costemplatedn": {"dc=example,dc=com"},
		},
	))
	backend.Add(slapi.NewEntry(
		slapi.MustParseDN("cn=managers,dc=example,dc=com"),
		[]string{"nsRoleDefinition", "nsManagedRoleDefinition", "ldapsubentry"},
		nil,
	))
	alice := slapi.NewEntry(
		slapi.MustParseDN("uid=alice,ou=people,dc=example,dc=com"),
		[]string{"person"},
		map[string][]string{
			"employeetype": {"gold"},
			"nsroledn":     {"cn=managers,dc=example,dc=com"},
		},
	)
	backend.Add(alice)

	sub := New(backend, nil, testConfig())
	require.NoError(t, sub.AddSuffix(context.Background(), suffix))
	defer sub.RemoveSuffix(suffix)

	result, err := sub.Dispatcher.ValuesGet(context.Background(), alice, "mailquota", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"10GB"}, result.Values.Values)

	roleResult, err := sub.Dispatcher.ValuesGet(context.Background(), alice, slapi.AttrNsRole, 0)
	require.NoError(t, err)
	assert.Contains(t, roleResult.Values.Values, "cn=managers,dc=example,dc=com")
}

func TestSubsystem_HandlePostOp_TriggersRebuild(t *testing.T) {
	backend := fixture.NewBackend()
	suffix := slapi.MustParseDN("dc=example,dc=com")

	sub := New(backend, nil, testConfig())
	require.NoError(t, sub.AddSuffix(context.Background(), suffix))
	defer sub.RemoveSuffix(suffix)

	roleDN := slapi.MustParseDN("cn=managers,dc=example,dc=com")
	backend.Add(slapi.NewEntry(roleDN, []string{"nsRoleDefinition", "nsManagedRoleDefinition", "ldapsubentry"}, nil))

	bob := slapi.NewEntry(
		slapi.MustParseDN("uid=bob,ou=people,dc=example,dc=com"),
		[]string{"person"},
		map[string][]string{"nsroledn": {roleDN.String()}},
	)

	sub.HandlePostOp(slapi.PostOpEvent{TargetDN: roleDN, ChangeType: slapi.ChangeAdd}, nil)

	assert.Eventually(t, func() bool {
		result, err := sub.Dispatcher.ValuesGet(context.Background(), bob, slapi.AttrNsRole, 0)
		return err == nil && result.Values.Contains(roleDN.String())
	}, time.Second, 5*time.Millisecond)
}
