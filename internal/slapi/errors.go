// Package slapi defines the external-collaborator contracts the virtual
// attribute subsystem is built against: entries, DNs, filters, and the
// backend/schema interfaces a host directory server would supply.
package slapi

import "errors"

var (
	// ErrNotFound is returned when a requested attribute, definition, or
	// entry does not exist.
	ErrNotFound = errors.New("slapi: not found")

	// ErrLoopDetected is returned when virtual attribute evaluation would
	// recurse through the same entry/type pair it is already resolving.
	ErrLoopDetected = errors.New("slapi: virtual attribute loop detected")

	// ErrNoMemory mirrors the original subsystem's allocation-failure path;
	// in Go this is only ever raised deliberately (e.g. by a fixture) since
	// the runtime otherwise handles allocation failure by panicking.
	ErrNoMemory = errors.New("slapi: allocation failed")

	// ErrSchemaViolation is returned when a provider would compute a value
	// for an attribute type the target entry's object classes do not permit.
	ErrSchemaViolation = errors.New("slapi: attribute not permitted by schema")

	// ErrInvalidDefinition is returned when a COS or role definition entry
	// is malformed (missing required attribute, conflicting qualifiers).
	ErrInvalidDefinition = errors.New("slapi: invalid definition entry")

	// ErrFilterParseError is returned when a filter string fails to parse.
	ErrFilterParseError = errors.New("slapi: filter parse error")

	// ErrConflictingFlags is returned when a values_get call sets mutually
	// exclusive flags (REAL_ATTRS_ONLY and VIRTUAL_ATTRS_ONLY together).
	ErrConflictingFlags = errors.New("slapi: conflicting values_get flags")
)
