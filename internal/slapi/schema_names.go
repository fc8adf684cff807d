package slapi

// Object classes and attribute names recognised by the virtual attribute
// subsystem. Carried over byte-exact from the directory server schema this
// subsystem plugs into.
const (
	OCCosSuperDefinition      = "cosSuperDefinition"
	OCCosClassicDefinition    = "cosClassicDefinition"
	OCCosPointerDefinition    = "cosPointerDefinition"
	OCCosIndirectDefinition   = "cosIndirectDefinition"
	OCCosTemplate             = "costemplate"
	OCLDAPSubEntry            = "ldapsubentry"
	OCNsRoleDefinition        = "nsRoleDefinition"
	OCNsSimpleRoleDefinition  = "nsSimpleRoleDefinition"
	OCNsManagedRoleDefinition = "nsManagedRoleDefinition"
	OCNsFilteredRoleDefinition = "nsFilteredRoleDefinition"
	OCNsNestedRoleDefinition  = "nsNestedRoleDefinition"
	OCNsView                  = "nsview"

	AttrCosAttribute      = "cosAttribute"
	AttrCosTargetTree     = "cosTargetTree"
	AttrCosTemplateDN     = "cosTemplateDn"
	AttrCosSpecifier      = "cosSpecifier"
	AttrCosIndirectSpec   = "cosIndirectSpecifier"
	AttrCosPriority       = "cosPriority"
	AttrObjectClass       = "objectClass"

	AttrNsRole        = "nsRole"
	AttrNsRoleDN      = "nsRoleDN"
	AttrNsRoleFilter  = "nsRoleFilter"
	AttrNsRoleScopeDN = "nsRoleScopeDN"

	AttrNsViewFilter = "nsViewFilter"
	AttrEntryDN      = "entrydn"

	// QualifierOverride/Merge/Operational/Default/OperationalDefault name
	// the cosAttribute value suffixes that select COS value-resolution
	// semantics ("mailQuota merge-schemes" style qualifiers following the
	// attribute name after a space).
	QualifierOverride         = "override"
	QualifierMerge            = "merge-schemes"
	QualifierOperational      = "operational"
	QualifierDefault          = "default"
	QualifierOperationalDefault = "operational-default"
)
