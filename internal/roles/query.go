package roles

import (
	"log"
	"sync"

	"github.com/389ds/389-ds-base-sub010/internal/slapi"
)

// ScopeFilter is the optional Views collaborator a role evaluation consults
// to recognize an entry as in-scope even when it falls outside the role's
// ancestor-DN scope, mirroring cos.ScopeFilter (spec.md §4.3 "scope filter
// via... views"). views.Cache satisfies this interface structurally.
type ScopeFilter interface {
	InScope(entryDN, targetTree slapi.DN) bool
}

// Roles returns the DNs of every role definition dn is a member of,
// evaluated against entry's stored and filter-matchable attributes
// (spec.md §4.3 query algorithm). recursionBound caps nested-role descent
// (default 5, separate from COS's template recursion bound of 30).
func (r *Registry) Roles(entry *slapi.Entry, recursionBound int) ([]string, error) {
	record, err := r.recordFor(entry.DN)
	if err != nil {
		return nil, err
	}
	tree, _ := record.Get()
	if tree == nil {
		return nil, slapi.ErrNotFound
	}

	eval := &evaluation{tree: tree, bound: recursionBound, views: record.views}

	var result []string
	tree.Walk(func(key string, def *Definition) {
		if eval.isMember(def, entry, 0, make(map[string]bool)) {
			result = append(result, key)
		}
	})
	return result, nil
}

type evaluation struct {
	tree    *avlTree
	bound   int
	views   ScopeFilter
	logOnce sync.Once
}

// isMember reports whether entry belongs to def, enforcing ancestor-scope
// before evaluating membership for every role kind (spec.md §4.3: "a role
// only governs entries within its scope"). A recursion-ceiling hit on a
// nested role aborts only that path, not the whole Roles() call — it is
// reported as non-membership, never as an error (spec.md §4.3 edge case).
func (e *evaluation) isMember(def *Definition, entry *slapi.Entry, depth int, seen map[string]bool) bool {
	if !e.inScope(def, entry.DN) {
		return false
	}

	switch def.Kind {
	case KindManaged:
		for _, v := range entry.StoredValues(slapi.AttrNsRoleDN) {
			if v == def.DN.String() {
				return true
			}
		}
		return false
	case KindFiltered:
		return def.Filter.Matches(entry)
	case KindNested:
		if depth >= e.bound {
			e.logOnce.Do(func() {
				log.Printf("roles: nested role recursion bound %d exceeded resolving %s", e.bound, def.DN)
			})
			return false
		}
		key := def.DN.String()
		if seen[key] {
			return false
		}
		seen[key] = true
		for _, memberDN := range def.NestedDNs {
			memberDef, ok := e.tree.Get(memberDN.String())
			if !ok {
				continue
			}
			if e.isMember(memberDef, entry, depth+1, seen) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// inScope computes def's governing scope — Scope if explicitly set,
// otherwise def's own DN — takes that DN's parent, and checks entryDN is
// at or below it, or is recognized in-scope by the optional Views
// collaborator.
func (e *evaluation) inScope(def *Definition, entryDN slapi.DN) bool {
	scopeDN := def.Scope
	if scopeDN.Empty() {
		scopeDN = def.DN
	}
	parent, ok := scopeDN.Parent()
	if !ok {
		parent = scopeDN
	}
	if parent.IsAncestorOfOrEqual(entryDN) {
		return true
	}
	return e.views != nil && e.views.InScope(entryDN, parent)
}
