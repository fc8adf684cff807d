package vattr

import "github.com/389ds/389-ds-base-sub010/internal/slapi"

// Flags narrows a values_get/list_types call (spec.md §4.1 op 3, op 5). The
// zero value imposes no restriction: both real and virtual sources are
// consulted, subtypes are included, and operational attributes are
// suppressed unless ListOperationalAttrs is set.
type Flags uint8

const (
	// RealAttrsOnly skips the provider chain entirely and resolves attr
	// only from entry's stored values.
	RealAttrsOnly Flags = 1 << iota

	// VirtualAttrsOnly skips the stored-value fallback: a provider miss is
	// a hard miss, not something StoredValues gets to answer.
	VirtualAttrsOnly

	// RequestPointers tells the dispatcher it may return a value set that
	// aliases entry's own backing storage instead of a defensive copy.
	// Callers that set this must not mutate the returned ValueSet.
	RequestPointers

	// SuppressSubtypes excludes subtyped stored attributes (e.g. cn;lang-en
	// when resolving cn) from the stored-value fallback.
	SuppressSubtypes

	// ListOperationalAttrs allows operational attributes to be resolved
	// from stored values; without it an operational attribute's stored
	// value is treated as absent, matching default-search suppression.
	ListOperationalAttrs
)

func (f Flags) has(bit Flags) bool { return f&bit != 0 }

// MatchDisposition records how a returned attribute name matched the
// requested type (spec.md §4.1 "match_dispositions").
type MatchDisposition int

const (
	// ExactOrAlias means the returned name is the requested type itself,
	// or a provider-computed alias of it.
	ExactOrAlias MatchDisposition = iota

	// Subtype means the returned name is a subtype of the requested base
	// type (e.g. cn;lang-en for a request of cn).
	Subtype
)

// Result is the outcome of a ValuesGet call. ActualNames and Dispositions
// are parallel slices, one entry per contributing stored attribute key;
// a provider-sourced result always has exactly one entry naming the
// requested type itself.
type Result struct {
	Values       *slapi.ValueSet
	ActualNames  []string
	Dispositions []MatchDisposition

	// Pointer reports whether Values aliases entry's own storage rather
	// than holding a private copy (only possible when RequestPointers was
	// set and exactly one stored attribute key contributed).
	Pointer bool
}
