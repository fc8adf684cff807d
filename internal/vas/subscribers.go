package vas

import (
	"github.com/389ds/389-ds-base-sub010/internal/cos"
	"github.com/389ds/389-ds-base-sub010/internal/notify"
	"github.com/389ds/389-ds-base-sub010/internal/roles"
	"github.com/389ds/389-ds-base-sub010/internal/slapi"
)

// cosInvalidationSubscriber requests a COS cache rebuild whenever a
// cosDefinition, cosSuperDefinition or costemplate entry changes under its
// suffix, the same coalescing RequestRebuild path the background updater
// already drains (spec.md §4.2, §4.4).
type cosInvalidationSubscriber struct {
	cache *cos.Cache
}

func (s cosInvalidationSubscriber) Notify(slapi.PostOpEvent) {
	s.cache.RequestRebuild()
}

func registerCosInvalidation(bus *notify.Bus, suffix slapi.DN, cache *cos.Cache) (string, error) {
	filter, err := slapi.ParseFilter(
		"(|(objectClass=cosDefinition)(objectClass=" + slapi.OCCosSuperDefinition + ")(objectClass=" + slapi.OCCosTemplate + "))",
	)
	if err != nil {
		return "", err
	}
	return bus.Register(suffix, filter, cosInvalidationSubscriber{cache: cache}), nil
}

// rolesInvalidationSubscriber requests a rebuild of suffix's role tree
// whenever a role definition entry under it changes (spec.md §4.3, §4.4).
type rolesInvalidationSubscriber struct {
	registry *roles.Registry
	suffix   slapi.DN
}

func (s rolesInvalidationSubscriber) Notify(slapi.PostOpEvent) {
	s.registry.RequestRebuild(s.suffix)
}
