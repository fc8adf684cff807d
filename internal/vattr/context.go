package vattr

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/389ds/389-ds-base-sub010/internal/slapi"
)

// LoopContext threads a dispatcher-evaluation's recursion depth through
// nested values_get calls (spec.md §4.1, §5 "loop detection... ceiling").
// Go has no thread-local storage, so it travels explicitly in a
// context.Context; it carries loop-detection state only.
type LoopContext struct {
	correlationID string
	ceiling       int

	mu      sync.Mutex
	visited map[visitKey]int // attribute/entry pair -> depth at first visit
	depth   int

	logOnce sync.Once
}

type visitKey struct {
	dn   string
	attr string
}

// NewLoopContext creates a fresh evaluation context bounded at ceiling
// recursive descents.
func NewLoopContext(ceiling int) *LoopContext {
	return &LoopContext{
		correlationID: uuid.NewString(),
		ceiling:       ceiling,
		visited:       make(map[visitKey]int),
	}
}

type loopContextKey struct{}

// WithLoopContext attaches lc to ctx for propagation through provider
// calls.
func WithLoopContext(ctx context.Context, lc *LoopContext) context.Context {
	return context.WithValue(ctx, loopContextKey{}, lc)
}

// LoopContextFrom retrieves the LoopContext attached by WithLoopContext, or
// constructs a fresh one bounded by ceiling if none is present (the first
// caller into the dispatcher for a given request).
func LoopContextFrom(ctx context.Context, ceiling int) (context.Context, *LoopContext) {
	if lc, ok := ctx.Value(loopContextKey{}).(*LoopContext); ok {
		return ctx, lc
	}
	lc := NewLoopContext(ceiling)
	return WithLoopContext(ctx, lc), lc
}

// Enter records a descent into (dn, attr) and reports ErrLoopDetected if
// the same pair is already being resolved higher up the call stack, or if
// the ceiling has been exceeded. Callers call Exit when done, and only
// after Enter returned nil.
func (lc *LoopContext) Enter(dn slapi.DN, attr string) error {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	key := visitKey{dn: dn.String(), attr: attr}
	if _, seen := lc.visited[key]; seen {
		lc.logLoopOnce(dn, attr)
		return fmt.Errorf("%w: %s on %s", slapi.ErrLoopDetected, attr, dn.String())
	}
	if lc.depth >= lc.ceiling {
		lc.logLoopOnce(dn, attr)
		return fmt.Errorf("%w: recursion ceiling %d exceeded", slapi.ErrLoopDetected, lc.ceiling)
	}
	lc.visited[key] = lc.depth
	lc.depth++
	return nil
}

// Exit undoes the bookkeeping Enter performed for (dn, attr).
func (lc *LoopContext) Exit(dn slapi.DN, attr string) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	key := visitKey{dn: dn.String(), attr: attr}
	delete(lc.visited, key)
	if lc.depth > 0 {
		lc.depth--
	}
}

// logLoopOnce logs exactly one diagnostic per evaluation, per spec.md §7's
// "sticky flag... log once" policy.
func (lc *LoopContext) logLoopOnce(dn slapi.DN, attr string) {
	lc.logOnce.Do(func() {
		log.Printf("vattr[%s]: loop detected resolving %s on %s", lc.correlationID, attr, dn.String())
	})
}
