package roles

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/389ds/389-ds-base-sub010/internal/slapi"
)

// defFilterText is byte-exact per spec.md §6's filter-fragment table.
const defFilterText = "(&(objectclass=nsRoleDefinition)(objectclass=ldapsubentry))"

// treeSnapshot is the immutable, per-suffix published state: the AVL tree
// of role definitions plus a generation counter the dispatcher uses to
// decide whether a cached nsRole value is still valid.
type treeSnapshot struct {
	version int
	tree    *avlTree
}

// SuffixRecord owns one suffix's role definition tree and the single
// dedicated background goroutine that rebuilds it on change notification
// (spec.md §5 "one dedicated background thread per roles suffix"). As with
// cos.Cache, the tree is published via atomic.Value and the rebuild
// request arrives over a capacity-1 channel rather than a condvar+flag
// pair (spec.md §9).
type SuffixRecord struct {
	suffix  slapi.DN
	backend slapi.SearchBackend
	views   ScopeFilter

	snapshot atomic.Value // *treeSnapshot

	rebuildCh chan struct{}
	stopCh    chan struct{}

	version int32
}

// NewSuffixRecord constructs a record and performs the initial synchronous
// build. views may be nil (no Views collaborator for this suffix).
func NewSuffixRecord(ctx context.Context, suffix slapi.DN, backend slapi.SearchBackend, views ScopeFilter) (*SuffixRecord, error) {
	r := &SuffixRecord{
		suffix:    suffix,
		backend:   backend,
		views:     views,
		rebuildCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
	if err := r.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("roles: initial cache load for suffix %s: %w", suffix, err)
	}
	go r.updaterLoop()
	return r, nil
}

// Get returns the current tree snapshot for lock-free reads.
func (r *SuffixRecord) Get() (*avlTree, int) {
	v := r.snapshot.Load()
	if v == nil {
		return nil, 0
	}
	snap := v.(*treeSnapshot)
	return snap.tree, snap.version
}

// Refresh rebuilds the suffix's role definition tree from the backend and
// atomically swaps it in, after statically checking for nested-role
// cycles, validating every explicit nsRoleScopeDN shares this suffix, and
// rejecting any filtered role whose filter would itself match a cosTemplate
// entry (spec.md §4.3).
func (r *SuffixRecord) Refresh(ctx context.Context) error {
	filter, err := slapi.ParseFilter(defFilterText)
	if err != nil {
		return err
	}
	entries, err := r.backend.SearchSubtree(ctx, r.suffix, filter)
	if err != nil {
		return fmt.Errorf("roles: search definitions under %s: %w", r.suffix, err)
	}

	defs := make(map[string]*Definition, len(entries))
	for _, e := range entries {
		def, err := ParseDefinition(e)
		if err != nil {
			return err
		}
		defs[e.DN.String()] = def
	}

	if err := CheckNestedCycles(defs); err != nil {
		return err
	}

	for _, def := range defs {
		r.enforceScopeWithinSuffix(def)
		if def.Kind == KindFiltered {
			if err := r.rejectCosTemplateSelfReference(ctx, def); err != nil {
				return err
			}
		}
	}

	tree := newAVLTree()
	for dn, def := range defs {
		tree.Insert(dn, def)
	}

	version := int(atomic.AddInt32(&r.version, 1))
	r.snapshot.Store(&treeSnapshot{version: version, tree: tree})
	return nil
}

// enforceScopeWithinSuffix clears an explicit nsRoleScopeDN that names a DN
// outside this suffix, falling back to the role's own parent-derived scope
// (spec.md §4.3: an out-of-suffix scope is silently ignored, not a build
// failure — a misconfigured scope shouldn't take down the whole suffix).
func (r *SuffixRecord) enforceScopeWithinSuffix(def *Definition) {
	if def.Scope.Empty() {
		return
	}
	if !r.suffix.IsAncestorOfOrEqual(def.Scope) {
		log.Printf("roles: role %s nsRoleScopeDN %s is outside suffix %s, ignoring explicit scope", def.DN, def.Scope, r.suffix)
		def.Scope = slapi.DN{}
	}
}

// rejectCosTemplateSelfReference searches under def's parent for any
// cosTemplate entry the filtered role's own filter would also match — a
// filtered role is not permitted to apply to COS template entries (spec.md
// §4.3 edge case). This needs live backend access, so it runs here rather
// than in the backend-independent ParseDefinition.
func (r *SuffixRecord) rejectCosTemplateSelfReference(ctx context.Context, def *Definition) error {
	parent, ok := def.DN.Parent()
	if !ok {
		return nil
	}
	combined, err := slapi.ParseFilter(fmt.Sprintf("(&(objectclass=costemplate)%s)", def.Filter.String()))
	if err != nil {
		return nil
	}
	matches, err := r.backend.SearchSubtree(ctx, parent, combined)
	if err != nil {
		return fmt.Errorf("roles: cosTemplate self-reference check for %s: %w", def.DN, err)
	}
	if len(matches) > 0 {
		return fmt.Errorf("%w: filtered role %s filter matches a cosTemplate entry under %s", slapi.ErrInvalidDefinition, def.DN, parent)
	}
	return nil
}

// RequestRebuild signals the background updater to rebuild at its
// convenience, coalescing with any already-pending request.
func (r *SuffixRecord) RequestRebuild() {
	select {
	case r.rebuildCh <- struct{}{}:
	default:
	}
}

// Stop terminates the background updater goroutine.
func (r *SuffixRecord) Stop() {
	close(r.stopCh)
}

func (r *SuffixRecord) updaterLoop() {
	for {
		select {
		case <-r.stopCh:
			return
		case <-r.rebuildCh:
			if err := r.Refresh(context.Background()); err != nil {
				log.Printf("roles: rebuild for suffix %s failed: %v", r.suffix, err)
			}
		}
	}
}
