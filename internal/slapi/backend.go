package slapi

import "context"

// SearchBackend is the storage-backend collaborator VAS depends on but does
// not implement (spec.md §1, "The storage backend... out of scope"). COS
// and Roles use it to read template/definition entries and to resolve
// pointer/indirect COS specifiers and managed-role membership lists.
type SearchBackend interface {
	// GetEntry fetches a single entry by DN. Returns ErrNotFound if absent.
	GetEntry(ctx context.Context, dn DN) (*Entry, error)

	// SearchSubtree returns entries at or below base matching filter,
	// scoped no deeper than the backend's own access-control view (ACL
	// evaluation itself is invoked through a single hook, out of scope
	// here — see AccessCheck).
	SearchSubtree(ctx context.Context, base DN, filter *Filter) ([]*Entry, error)

	// SearchOneLevel returns immediate children of base matching filter.
	SearchOneLevel(ctx context.Context, base DN, filter *Filter) ([]*Entry, error)
}

// SchemaRegistry is the schema collaborator VAS depends on but does not
// implement. The dispatcher consults it before handing a provider-computed
// value back to a caller (spec.md §4.1 "schema check").
type SchemaRegistry interface {
	// AttributeAllowed reports whether objectClasses permits attr, either
	// directly or via an auxiliary/operational attribute allowance.
	AttributeAllowed(objectClasses []string, attr string) bool

	// IsOperational reports whether attr is defined as an operational
	// attribute (returned only on explicit request, never by default
	// search).
	IsOperational(attr string) bool
}

// AccessChecker is the single access-control hook VAS calls through
// (spec.md §1, "Access-control evaluation (invoked via a single hook)").
type AccessChecker interface {
	// CanRead reports whether the requesting identity may see attr on
	// entry. No package in this module calls it; the dispatcher returns
	// values without an access check.
	CanRead(ctx context.Context, entry *Entry, attr string) bool
}

// PostOpEvent describes a completed directory modification the
// Change-Notify Bus dispatches to subscribers (spec.md §4.4, §6).
type PostOpEvent struct {
	TargetDN     DN
	ChangeType   ChangeType
	ChangedAttrs []string
}

// ChangeType enumerates the kinds of post-operation event the bus
// recognises.
type ChangeType int

const (
	ChangeAdd ChangeType = iota
	ChangeModify
	ChangeModRDN
	ChangeDelete
)

// BackendStateEvent describes a backend coming online/offline, which
// forces every suffix-scoped cache under it to rebuild from scratch
// (spec.md §4.3, §6).
type BackendStateEvent struct {
	Suffix DN
	Online bool
}

// ScopeKind mirrors the subset of LDAP search scopes the rewrite algorithm
// needs to distinguish (spec.md §4.5).
type ScopeKind int

const (
	ScopeBase ScopeKind = iota
	ScopeOneLevel
	ScopeSubtree
)

// RewriteHook is the search-rewriter contract Views exposes to the host
// search code path (spec.md §4.5, §6). A view rewrite always forces
// scope=subtree on the real search it hands back; callers must use
// newScope, not their original scope, against newBase.
type RewriteHook interface {
	RewriteSearch(ctx context.Context, base DN, scope ScopeKind, filter *Filter) (newBase DN, newScope ScopeKind, newFilter *Filter, err error)
}
