package vattr

import (
	"sync"

	uatomic "go.uber.org/atomic"
)

// Handle is a small refcounted wrapper around a provider registration,
// matching spec.md §4.1's "shared reference with a refcount" requirement
// (the original hand-rolled intrusive refcount with an on-zero callback
// becomes this generic wrapper per spec.md §9's redesign guidance: "the
// on-zero callback becomes the drop implementation"). Release decrements
// the count; when it reaches zero, onZero (if any) fires exactly once and
// the provider is considered eligible for removal from the dispatcher's
// type map.
type Handle[T any] struct {
	value T
	count *uatomic.Int64

	onZeroOnce sync.Once
	onZero     func()
}

// NewHandle creates a handle with an initial refcount of 1 and no on-zero
// callback.
func NewHandle[T any](value T) *Handle[T] {
	return &Handle[T]{value: value, count: uatomic.NewInt64(1)}
}

// NewHandleWithOnZero creates a handle whose refcount reaching zero fires
// onZero exactly once, however many times Release is called afterwards or
// however many times the zero-crossing itself is observed (spec.md §8
// Testable Property 4: duplicate (handle, type) registrations must
// contribute one free to the on-zero callback, not two).
func NewHandleWithOnZero[T any](value T, onZero func()) *Handle[T] {
	return &Handle[T]{value: value, count: uatomic.NewInt64(1), onZero: onZero}
}

// Acquire increments the refcount and returns the same handle, mirroring
// the original "take another reference" call.
func (h *Handle[T]) Acquire() *Handle[T] {
	h.count.Inc()
	return h
}

// Release decrements the refcount and reports whether it reached zero. If
// an on-zero callback was supplied, it fires the first (and only the
// first) time the count reaches zero.
func (h *Handle[T]) Release() bool {
	zero := h.count.Dec() == 0
	if zero && h.onZero != nil {
		h.onZeroOnce.Do(h.onZero)
	}
	return zero
}

// Value returns the wrapped provider registration.
func (h *Handle[T]) Value() T {
	return h.value
}

// Count returns the current refcount, for diagnostics only.
func (h *Handle[T]) Count() int64 {
	return h.count.Load()
}
