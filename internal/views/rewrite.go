package views

import (
	"context"
	"fmt"

	"github.com/389ds/389-ds-base-sub010/internal/slapi"
)

var _ slapi.RewriteHook = (*Cache)(nil)

// RewriteSearch transparently expands a search whose base is a view node
// into an equivalent search over the real subtree the view's members
// actually live in (spec.md §4.5 rewrite algorithm). A view entry is
// virtual — its members are not physically nested under the view's own
// DN — so the real search must run against the view's parent, scoped to
// the whole subtree, with the view's filter chain folded in; a client's
// original scope (base/one-level/subtree) only affects how that filter
// chain is composed, never the real base or real scope returned.
//
// Four named filter-composition steps build the final filter:
//   - include_ancestor_filters: AND this view's own filter with every
//     ancestor view's filter, so membership is the intersection of the
//     whole chain, not just this view's own test.
//   - exclude_child_filters: when the client's original scope was
//     narrower than subtree, NOT out any direct child view's own filter,
//     so an entry that belongs to a more specific nested view isn't also
//     attributed to this broader one.
//   - exclude_grand_child_views: exclude_child_filters only ever draws
//     from *direct* children (composeFilters never collects anything
//     deeper), so a grandchild view's filter is its own parent's
//     responsibility to exclude, never this view's.
//   - include_child_views: when the client's original scope WAS subtree,
//     OR each direct child's full ancestor-composed filter back in, so a
//     child view whose membership differs from (rather than narrows) this
//     view's own filter still contributes its members to a real subtree
//     search.
func (c *Cache) RewriteSearch(_ context.Context, base slapi.DN, scope slapi.ScopeKind, filter *slapi.Filter) (slapi.DN, slapi.ScopeKind, *slapi.Filter, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n, ok := c.find(base)
	if !ok {
		// base is not a view; nothing to rewrite.
		return base, scope, filter, nil
	}

	composite := andFilters(filter, n.ancestorFilter) // include_ancestor_filters

	if scope != slapi.ScopeSubtree {
		if n.childFilter != nil {
			excluded, err := slapi.ParseFilter("(!" + n.childFilter.String() + ")")
			if err != nil {
				return base, scope, filter, fmt.Errorf("views: compose exclusion filter for %s: %w", base, err)
			}
			composite = andFilters(composite, excluded) // exclude_child_filters, exclude_grand_child_views
		}
	} else if n.childFilter != nil {
		composite = orFilters(composite, n.childFilter) // include_child_views
	}

	realBase := n.dn
	if parent, ok := n.dn.Parent(); ok {
		realBase = parent
	}

	return realBase, slapi.ScopeSubtree, composite, nil
}

// Search rewrites a search through any view node at base and executes it
// directly against the backend, so a host search path doesn't need to
// separately call RewriteSearch and then re-dispatch to the right backend
// method itself (Testable Property 6: searching through a view returns
// exactly the entries an equivalent direct search against the rewritten
// base/scope/filter would).
func (c *Cache) Search(ctx context.Context, base slapi.DN, scope slapi.ScopeKind, filter *slapi.Filter) ([]*slapi.Entry, error) {
	newBase, newScope, newFilter, err := c.RewriteSearch(ctx, base, scope, filter)
	if err != nil {
		return nil, err
	}
	if newScope == slapi.ScopeOneLevel {
		return c.backend.SearchOneLevel(ctx, newBase, newFilter)
	}
	return c.backend.SearchSubtree(ctx, newBase, newFilter)
}
