package views

import (
	"context"
	"log"

	"github.com/389ds/389-ds-base-sub010/internal/notify"
	"github.com/389ds/389-ds-base-sub010/internal/slapi"
)

// busSubscriber adapts a Cache to notify.Subscriber so view definition
// changes trigger a cache rebuild, matching the way cos.Cache and
// roles.SuffixRecord are driven by the Change-Notify Bus (spec.md §4.4,
// §4.5).
type busSubscriber struct {
	cache  *Cache
	suffix slapi.DN
}

// RegisterForInvalidation subscribes cache to every modification under
// suffix whose target carries the nsview object class, returning the
// caller id a notify.Bus.Unregister call needs.
func (c *Cache) RegisterForInvalidation(bus *notify.Bus, suffix slapi.DN) (string, error) {
	filter, err := slapi.ParseFilter("(objectClass=nsview)")
	if err != nil {
		return "", err
	}
	sub := &busSubscriber{cache: c, suffix: suffix}
	return bus.Register(suffix, filter, sub), nil
}

// Notify rebuilds the view cache; errors are logged since the bus dispatch
// path has no caller to return them to.
func (s *busSubscriber) Notify(_ slapi.PostOpEvent) {
	if err := s.cache.Refresh(context.Background(), s.suffix); err != nil {
		log.Printf("views: rebuild for suffix %s failed: %v", s.suffix, err)
	}
}
