// Package notify implements the Change-Notify Bus: the post-operation
// dispatch plumbing that lets the COS and Roles caches learn about
// directory modifications without polling (spec.md §4.4).
package notify

import (
	"container/list"
	"sync"

	"github.com/google/uuid"

	"github.com/389ds/389-ds-base-sub010/internal/slapi"
)

// StateChangeAPIGUID documents the StateChange v1.0 plug-in API identifier
// this bus implements (spec.md §6), carried for fidelity even though
// nothing in-process dials by GUID.
const StateChangeAPIGUID = "0A340151-6FB3-11d3-80D2-006008A6EFF3"

// Subscriber is notified of post-operation events whose target falls under
// its registered base DN.
type Subscriber interface {
	// Notify is called on the bus's dispatching goroutine; implementations
	// must not block for long or call back into the bus from within Notify.
	Notify(event slapi.PostOpEvent)
}

type subscription struct {
	callerID string
	base     slapi.DN
	filter   *slapi.Filter
	sub      Subscriber
}

// Bus is a circular doubly-linked list of subscribers, matching the data
// model spec.md §4.4 names explicitly. container/list is the stdlib
// structure closest to that shape; no third-party intrusive-list package
// appears anywhere in the retrieval pack (see DESIGN.md).
type Bus struct {
	mu   sync.Mutex
	subs *list.List // of *subscription
}

// New constructs an empty bus.
func New() *Bus {
	return &Bus{subs: list.New()}
}

// Register adds sub as a listener for events under base matching filter
// (a nil filter matches unconditionally). Returns an opaque caller id used
// by Unregister.
func (b *Bus) Register(base slapi.DN, filter *slapi.Filter, sub Subscriber) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := uuid.NewString()
	b.subs.PushBack(&subscription{callerID: id, base: base, filter: filter, sub: sub})
	return id
}

// Unregister removes a single subscription by the id Register returned.
func (b *Bus) Unregister(callerID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for e := b.subs.Front(); e != nil; e = e.Next() {
		if e.Value.(*subscription).callerID == callerID {
			b.subs.Remove(e)
			return true
		}
	}
	return false
}

// UnregisterAll removes every subscription whose base DN equals base, used
// when a backend goes offline. It is keyed by base DN, not by caller id;
// removing all subscriptions of one caller id is not supported.
func (b *Bus) UnregisterAll(base slapi.DN) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	removed := 0
	for e := b.subs.Front(); e != nil; {
		next := e.Next()
		if e.Value.(*subscription).base.Equal(base) {
			b.subs.Remove(e)
			removed++
		}
		e = next
	}
	return removed
}

// Dispatch delivers event to every subscriber whose base DN is an ancestor
// of (or equal to) the event's target and whose filter, if any, matches the
// target entry. entry may be nil when the event carries no entry snapshot
// (e.g. a delete after the entry has already been removed), in which case
// filtered subscriptions are skipped rather than guessed at.
func (b *Bus) Dispatch(event slapi.PostOpEvent, entry *slapi.Entry) {
	b.mu.Lock()
	matches := make([]*subscription, 0, 4)
	for e := b.subs.Front(); e != nil; e = e.Next() {
		s := e.Value.(*subscription)
		if !s.base.IsAncestorOfOrEqual(event.TargetDN) {
			continue
		}
		if s.filter != nil {
			if entry == nil || !s.filter.Matches(entry) {
				continue
			}
		}
		matches = append(matches, s)
	}
	b.mu.Unlock()

	for _, s := range matches {
		s.sub.Notify(event)
	}
}
