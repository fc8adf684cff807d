package roles

import (
	"fmt"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/389ds/389-ds-base-sub010/internal/slapi"
)

// Kind distinguishes the three role definition types (spec.md §4.3).
type Kind int

const (
	KindManaged Kind = iota
	KindFiltered
	KindNested
)

// Definition is one nsRoleDefinition-derived entry.
type Definition struct {
	DN        slapi.DN
	Kind      Kind
	Filter    *slapi.Filter // filtered roles only
	NestedDNs []slapi.DN    // nested roles only: the member role DNs

	// Scope holds this role's explicit nsRoleScopeDN, or the zero DN when
	// unset (every role kind may carry one; spec.md §4.3 scope
	// enforcement). Membership evaluation always takes the *parent* of
	// whichever DN governs scope — Scope if set, DN otherwise — confirmed
	// against original_source's role_new: role_parent is computed from
	// slapi_dn_parent(rolescopedn) even when rolescopedn was explicitly
	// given, never the scope DN itself (see DESIGN.md).
	Scope slapi.DN
}

// ParseDefinition builds a Definition from a raw role definition entry,
// enforcing spec.md §4.3's self-reference rule: a filtered role's filter
// may not itself test nsRole, which would make membership depend on the
// result being computed.
func ParseDefinition(entry *slapi.Entry) (*Definition, error) {
	def := &Definition{DN: entry.DN}

	switch {
	case entry.HasObjectClass(slapi.OCNsManagedRoleDefinition):
		def.Kind = KindManaged
	case entry.HasObjectClass(slapi.OCNsFilteredRoleDefinition):
		def.Kind = KindFiltered
		raw := entry.StoredValues(slapi.AttrNsRoleFilter)
		if len(raw) == 0 {
			return nil, fmt.Errorf("%w: filtered role %s missing %s", slapi.ErrInvalidDefinition, entry.DN, slapi.AttrNsRoleFilter)
		}
		filter, err := slapi.ParseFilter(raw[0])
		if err != nil {
			return nil, fmt.Errorf("%w: filtered role %s: %v", slapi.ErrInvalidDefinition, entry.DN, err)
		}
		if filter.ReferencesAttribute(slapi.AttrNsRole) {
			return nil, fmt.Errorf("%w: filtered role %s filter may not reference %s", slapi.ErrInvalidDefinition, entry.DN, slapi.AttrNsRole)
		}
		def.Filter = filter
	case entry.HasObjectClass(slapi.OCNsNestedRoleDefinition):
		def.Kind = KindNested
		raw := entry.StoredValues(slapi.AttrNsRoleDN)
		if len(raw) == 0 {
			return nil, fmt.Errorf("%w: nested role %s missing %s", slapi.ErrInvalidDefinition, entry.DN, slapi.AttrNsRoleDN)
		}
		for _, r := range raw {
			dn, err := slapi.ParseDN(r)
			if err != nil {
				return nil, fmt.Errorf("%w: nested role %s has invalid member DN %q", slapi.ErrInvalidDefinition, entry.DN, r)
			}
			if dn.Equal(entry.DN) {
				return nil, fmt.Errorf("%w: nested role %s may not nest itself", slapi.ErrInvalidDefinition, entry.DN)
			}
			def.NestedDNs = append(def.NestedDNs, dn)
		}
	default:
		return nil, fmt.Errorf("%w: %s is not a recognised role definition", slapi.ErrInvalidDefinition, entry.DN)
	}

	if raw := entry.StoredValues(slapi.AttrNsRoleScopeDN); len(raw) > 0 {
		dn, err := slapi.ParseDN(raw[0])
		if err != nil {
			return nil, fmt.Errorf("%w: role %s has invalid %s", slapi.ErrInvalidDefinition, entry.DN, slapi.AttrNsRoleScopeDN)
		}
		def.Scope = dn
	}

	return def, nil
}

// CheckNestedCycles statically verifies that no cycle exists among nested
// role definitions before they are installed in a suffix's tree, in
// addition to (not instead of) the runtime recursion-depth ceiling
// membership evaluation enforces (spec.md §4.3). Grounded on the teacher's
// internal/graph/toposort.go, which uses the same
// gonum.org/v1/gonum/graph/{simple,topo} pair for dependency-edge cycle
// detection (see DESIGN.md).
func CheckNestedCycles(defs map[string]*Definition) error {
	g := simple.NewDirectedGraph()
	ids := make(map[string]int64, len(defs))
	next := int64(0)
	nodeID := func(dn string) int64 {
		if id, ok := ids[dn]; ok {
			return id
		}
		id := next
		ids[dn] = id
		next++
		g.AddNode(simple.Node(id))
		return id
	}

	for dn, def := range defs {
		from := nodeID(dn)
		if def.Kind != KindNested {
			continue
		}
		for _, member := range def.NestedDNs {
			to := nodeID(member.String())
			if from == to {
				continue
			}
			g.SetEdge(g.NewEdge(simple.Node(from), simple.Node(to)))
		}
	}

	if _, err := topo.Sort(g); err != nil {
		return fmt.Errorf("%w: nested role definitions contain a cycle: %v", slapi.ErrInvalidDefinition, err)
	}
	return nil
}
