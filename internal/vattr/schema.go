package vattr

import "github.com/389ds/389-ds-base-sub010/internal/slapi"

// checkSchema reports whether attr may be returned for entry under
// registry's schema, and whether attr is operational (returned only when
// explicitly requested). It is the dispatcher's one mandatory gate before a
// provider-computed value reaches a caller (spec.md §4.1 "schema check").
func checkSchema(registry slapi.SchemaRegistry, entry *slapi.Entry, attr string) (allowed, operational bool) {
	if registry == nil {
		// No schema collaborator configured: permissive, matching a
		// directory running with schema checking off.
		return true, false
	}
	return registry.AttributeAllowed(entry.ObjectClasses, attr), registry.IsOperational(attr)
}
