package cos

import (
	"context"
	"fmt"
	"strings"

	"github.com/389ds/389-ds-base-sub010/internal/slapi"
)

// resolver evaluates COS definitions for one attribute query. recursionBound
// is the depth limit valuesFromDefinition checks (default 30, separate from
// the Roles nested-membership bound of 5); Query always evaluates at depth
// 0, since no template value is resolved through a second COS definition.
type resolver struct {
	snapshot       *Snapshot
	backend        slapi.SearchBackend
	views          ScopeFilter
	schema         slapi.SchemaRegistry
	recursionBound int
}

// ScopeFilter is the optional Views collaborator a COS query consults to
// decide whether a definition's target tree actually governs entryDN, when
// virtual subtrees are in play (spec.md §4.2 "scope filter via... views").
type ScopeFilter interface {
	InScope(entryDN, targetTree slapi.DN) bool
}

// Query resolves attr on entry against the snapshot, applying priority and
// merge/override semantics across every matching definition (spec.md §4.2
// query algorithm).
func (r *resolver) Query(ctx context.Context, entry *slapi.Entry, attr string) (*slapi.ValueSet, error) {
	defs := r.snapshot.definitionsForAttr(attr)
	if len(defs) == 0 {
		return nil, slapi.ErrNotFound
	}

	var result *slapi.ValueSet
	found := false

	for _, def := range defs {
		if !def.TargetTree.IsAncestorOfOrEqual(entry.DN) {
			continue
		}
		if r.views != nil && !r.views.InScope(entry.DN, def.TargetTree) {
			continue
		}

		spec, ok := specFor(def, attr)
		if !ok {
			continue
		}

		if !r.schemaAllows(entry, attr, spec) {
			continue
		}

		// Stored values win over a default-qualified definition, and
		// always win over a plain (no-qualifier) definition unless the
		// definition is marked override.
		if existing := entry.StoredValues(attr); len(existing) > 0 {
			switch spec.Qualifier {
			case QualifierOverride:
				// definition wins regardless of stored value; fall through
			case QualifierDefault, QualifierOperationalDefault:
				continue // stored value already present, default never applies
			default:
				return slapi.NewValueSet(existing...), nil
			}
		}

		values, err := r.valuesFromDefinition(ctx, entry, def, attr, 0)
		if err != nil {
			if err == slapi.ErrNotFound {
				continue
			}
			return nil, err
		}
		if values.Empty() {
			continue
		}

		switch spec.Qualifier {
		case QualifierMerge:
			if result == nil {
				result = slapi.NewValueSet()
			}
			result = result.Merge(values)
			found = true
			continue
		default:
			// First matching definition of non-merge qualifier wins
			// (definitions are already priority-sorted by the snapshot).
			return values, nil
		}
	}

	if !found {
		return nil, slapi.ErrNotFound
	}
	return result, nil
}

// schemaAllows enforces COS's own schema gate (spec.md §4.2: "before
// returning a computed value, if schema checking is enabled and the
// attribute is not operational, verify that the entry carries one of the
// object classes bound to that attribute; on failure, return nothing").
// Operational and operational-default qualified attributes are exempt.
func (r *resolver) schemaAllows(entry *slapi.Entry, attr string, spec AttributeSpec) bool {
	if r.schema == nil {
		return true
	}
	if spec.Qualifier == QualifierOperational || spec.Qualifier == QualifierOperationalDefault {
		return true
	}
	if r.schema.IsOperational(attr) {
		return true
	}
	return r.schema.AttributeAllowed(entry.ObjectClasses, attr)
}

func specFor(def *Definition, attr string) (AttributeSpec, bool) {
	for _, a := range def.Attributes {
		if a.Name == attr {
			return a, true
		}
	}
	return AttributeSpec{}, false
}

// valuesFromDefinition resolves def's value for attr on entry under the
// chosen scheme. It does not recurse: depth is checked once against
// recursionBound.
func (r *resolver) valuesFromDefinition(ctx context.Context, entry *slapi.Entry, def *Definition, attr string, depth int) (*slapi.ValueSet, error) {
	if depth >= r.recursionBound {
		return nil, fmt.Errorf("%w: cos template recursion bound %d exceeded", slapi.ErrLoopDetected, r.recursionBound)
	}

	switch def.Scheme {
	case SchemeClassic:
		specifierValues := entry.StoredValues(def.Specifier)
		if len(specifierValues) == 0 {
			return nil, slapi.ErrNotFound
		}
		tmpl, ok := templateForGrade(def.Templates, specifierValues[0], def.Specifier)
		if !ok {
			return nil, slapi.ErrNotFound
		}
		return valueFromTemplate(tmpl, attr)

	case SchemePointer:
		if len(def.Templates) == 0 {
			return nil, slapi.ErrNotFound
		}
		return valueFromTemplate(def.Templates[0], attr)

	case SchemeIndirect:
		// Indirect has no templates of its own: the specifier names a DN
		// whose own stored value for attr is returned directly (spec.md
		// §4.2 step 2, §8 worked example — "return the value from that
		// entry", not a grade re-resolved off a second attribute).
		indirectValues := entry.StoredValues(def.Specifier)
		if len(indirectValues) == 0 {
			return nil, slapi.ErrNotFound
		}
		otherDN, err := slapi.ParseDN(indirectValues[0])
		if err != nil {
			return nil, slapi.ErrNotFound
		}
		otherEntry, err := r.backend.GetEntry(ctx, otherDN)
		if err != nil {
			return nil, slapi.ErrNotFound
		}
		if v := otherEntry.StoredValues(attr); len(v) > 0 {
			return slapi.NewValueSet(v...), nil
		}
		return nil, slapi.ErrNotFound
	}

	return nil, slapi.ErrNotFound
}

// templateForGrade finds the template whose grade case-insensitively
// matches grade, falling back to "<specifier>-default" (spec.md §4.2
// Classic resolution).
func templateForGrade(templates []*Template, grade, specifier string) (*Template, bool) {
	for _, t := range templates {
		if strings.EqualFold(t.Grade, grade) {
			return t, true
		}
	}
	defaultGrade := specifier + "-default"
	for _, t := range templates {
		if strings.EqualFold(t.Grade, defaultGrade) {
			return t, true
		}
	}
	return nil, false
}

func valueFromTemplate(tmpl *Template, attr string) (*slapi.ValueSet, error) {
	for k, v := range tmpl.Values {
		if strings.EqualFold(k, attr) && len(v) > 0 {
			return slapi.NewValueSet(v...), nil
		}
	}
	return nil, slapi.ErrNotFound
}
