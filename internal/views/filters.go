package views

import "github.com/389ds/389-ds-base-sub010/internal/slapi"

// composeFilters builds each node's ancestorFilter and childFilter via
// memoised parent lookups rather than recursive AVL filter joins (spec.md
// §9's bottom-up redesign).
func composeFilters(nodes []*node) error {
	byDN := make(map[string]*node, len(nodes))
	for _, n := range nodes {
		byDN[n.dn.String()] = n
	}

	memo := make(map[string]*slapi.Filter)
	var ancestorFilterFor func(n *node) (*slapi.Filter, error)
	ancestorFilterFor = func(n *node) (*slapi.Filter, error) {
		if f, ok := memo[n.dn.String()]; ok {
			return f, nil
		}
		composite := n.filter
		parent, ok := n.dn.Parent()
		if ok {
			if parentNode, ok := byDN[parent.String()]; ok {
				parentFilter, err := ancestorFilterFor(parentNode)
				if err != nil {
					return nil, err
				}
				composite = andFilters(composite, parentFilter)
			}
		}
		memo[n.dn.String()] = composite
		n.ancestorFilter = composite
		return composite, nil
	}

	for _, n := range nodes {
		if _, err := ancestorFilterFor(n); err != nil {
			return err
		}
	}

	// childFilter: OR of every direct child's ancestorFilter, used by the
	// rewrite algorithm to exclude grandchild views' scope from a
	// one-level view query (spec.md §4.5 "exclude_grand_child_views").
	for _, n := range nodes {
		var childComposite *slapi.Filter
		for _, other := range nodes {
			parent, ok := other.dn.Parent()
			if !ok || !parent.Equal(n.dn) {
				continue
			}
			childComposite = orFilters(childComposite, other.ancestorFilter)
		}
		n.childFilter = childComposite
	}

	return nil
}

// andFilters and orFilters combine two possibly-nil filters textually and
// re-parse the result; the composites are handed back to the search path,
// and Cache.Search evaluates them against entries through the backend.
func andFilters(a, b *slapi.Filter) *slapi.Filter {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	default:
		f, err := slapi.ParseFilter("(&" + a.String() + b.String() + ")")
		if err != nil {
			return a
		}
		return f
	}
}

func orFilters(a, b *slapi.Filter) *slapi.Filter {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	default:
		f, err := slapi.ParseFilter("(|" + a.String() + b.String() + ")")
		if err != nil {
			return a
		}
		return f
	}
}
