// Package cos implements the Class-of-Service cache: a rebuild-and-swap
// snapshot that distributes template attribute values to entries by
// classification, pointer, or indirect lookup (spec.md §4.2).
package cos

import (
	"fmt"
	"strings"

	"github.com/389ds/389-ds-base-sub010/internal/slapi"
)

// Scheme selects how a definition locates its template(s).
type Scheme int

const (
	// SchemeClassic selects a template whose RDN equals the value of a
	// named "specifier" attribute on the target entry.
	SchemeClassic Scheme = iota
	// SchemePointer addresses a single, fixed template DN.
	SchemePointer
	// SchemeIndirect follows the DN held in the target entry's indirect
	// specifier attribute and returns that other entry's own stored value;
	// it uses no templates.
	SchemeIndirect
)

// Qualifier selects value-resolution semantics for one cosAttribute entry.
type Qualifier int

const (
	QualifierNone Qualifier = iota
	QualifierOverride
	QualifierMerge
	QualifierOperational
	QualifierDefault
	QualifierOperationalDefault
)

// AttributeSpec names one attribute a definition distributes, plus its
// resolution qualifier.
type AttributeSpec struct {
	Name      string
	Qualifier Qualifier
}

// Definition is one cosSuperDefinition-derived entry (spec.md §4.2 "COS
// definition").
type Definition struct {
	DN         slapi.DN
	TargetTree slapi.DN // the subtree this definition applies under
	Scheme     Scheme
	Specifier  string   // classic: attribute naming the template RDN; indirect: attribute holding the other entry's DN
	TemplateDN slapi.DN // classic: container searched one-level for templates; pointer: the template entry itself
	Attributes []AttributeSpec
	Priority   int // lower value wins on conflict; spec.md §4.2 priority semantics

	// Templates holds this definition's own templates, populated by the
	// build pipeline: one-level search results under TemplateDN for
	// Classic, the single fetched TemplateDN entry for Pointer, and always
	// empty for Indirect (spec.md §4.2 build pipeline step 3).
	Templates []*Template
}

// ParseDefinition builds a Definition from a raw definition entry,
// validating the qualifier combinations and scheme requirements spec.md
// §4.2 names as edge cases.
func ParseDefinition(entry *slapi.Entry, targetTree slapi.DN) (*Definition, error) {
	def := &Definition{DN: entry.DN, TargetTree: targetTree}

	switch {
	case entry.HasObjectClass(slapi.OCCosClassicDefinition):
		def.Scheme = SchemeClassic
		specs := entry.StoredValues(slapi.AttrCosSpecifier)
		if len(specs) == 0 {
			return nil, fmt.Errorf("%w: classic definition %s missing %s", slapi.ErrInvalidDefinition, entry.DN, slapi.AttrCosSpecifier)
		}
		def.Specifier = specs[0]
		tdns := entry.StoredValues(slapi.AttrCosTemplateDN)
		if len(tdns) == 0 {
			return nil, fmt.Errorf("%w: classic definition %s missing %s", slapi.ErrInvalidDefinition, entry.DN, slapi.AttrCosTemplateDN)
		}
		tdn, err := slapi.ParseDN(tdns[0])
		if err != nil {
			return nil, fmt.Errorf("%w: classic definition %s has invalid template DN", slapi.ErrInvalidDefinition, entry.DN)
		}
		def.TemplateDN = tdn
	case entry.HasObjectClass(slapi.OCCosPointerDefinition):
		def.Scheme = SchemePointer
		tdns := entry.StoredValues(slapi.AttrCosTemplateDN)
		if len(tdns) == 0 {
			return nil, fmt.Errorf("%w: pointer definition %s missing %s", slapi.ErrInvalidDefinition, entry.DN, slapi.AttrCosTemplateDN)
		}
		tdn, err := slapi.ParseDN(tdns[0])
		if err != nil {
			return nil, fmt.Errorf("%w: pointer definition %s has invalid template DN", slapi.ErrInvalidDefinition, entry.DN)
		}
		def.TemplateDN = tdn
	case entry.HasObjectClass(slapi.OCCosIndirectDefinition):
		def.Scheme = SchemeIndirect
		specs := entry.StoredValues(slapi.AttrCosIndirectSpec)
		if len(specs) == 0 {
			return nil, fmt.Errorf("%w: indirect definition %s missing %s", slapi.ErrInvalidDefinition, entry.DN, slapi.AttrCosIndirectSpec)
		}
		def.Specifier = specs[0]
	default:
		return nil, fmt.Errorf("%w: %s is not a recognised cos definition", slapi.ErrInvalidDefinition, entry.DN)
	}

	for _, raw := range entry.StoredValues(slapi.AttrCosAttribute) {
		spec, err := parseAttributeSpec(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", slapi.ErrInvalidDefinition, entry.DN, err)
		}
		if def.Specifier != "" && strings.EqualFold(spec.Name, def.Specifier) {
			return nil, fmt.Errorf("%w: definition %s distributes its own specifier attribute %s (self-serving)", slapi.ErrInvalidDefinition, entry.DN, def.Specifier)
		}
		def.Attributes = append(def.Attributes, spec)
	}
	if len(def.Attributes) == 0 {
		return nil, fmt.Errorf("%w: definition %s declares no %s", slapi.ErrInvalidDefinition, entry.DN, slapi.AttrCosAttribute)
	}

	if pr := entry.StoredValues(slapi.AttrCosPriority); len(pr) > 0 {
		var p int
		if _, err := fmt.Sscanf(pr[0], "%d", &p); err == nil {
			def.Priority = p
		}
	}

	return def, nil
}

// parseAttributeSpec splits a "mailQuota override" or "mailQuota"
// cosAttribute value at its first space into a name and qualifier. An unqualified name carries
// QualifierNone, which resolves as first-match-wins (spec.md §4.2).
func parseAttributeSpec(raw string) (AttributeSpec, error) {
	parts := strings.SplitN(raw, " ", 2)
	name := parts[0]
	spec := AttributeSpec{Name: name, Qualifier: QualifierNone}
	if len(parts) == 1 {
		return spec, nil
	}
	switch strings.TrimSpace(parts[1]) {
	case slapi.QualifierOverride:
		spec.Qualifier = QualifierOverride
	case slapi.QualifierMerge:
		spec.Qualifier = QualifierMerge
	case slapi.QualifierOperational:
		spec.Qualifier = QualifierOperational
	case slapi.QualifierDefault:
		spec.Qualifier = QualifierDefault
	case slapi.QualifierOperationalDefault:
		spec.Qualifier = QualifierOperationalDefault
	default:
		return spec, fmt.Errorf("unrecognised cosAttribute qualifier %q", parts[1])
	}
	return spec, nil
}
