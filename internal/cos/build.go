package cos

import (
	"context"
	"fmt"
	"log"

	"github.com/389ds/389-ds-base-sub010/internal/slapi"
)

// defFilter and tmplFilter are byte-exact per spec.md §6's filter-fragment
// table.
const (
	defFilterText  = "(&(|(objectclass=cosSuperDefinition)(objectclass=cosDefinition))(objectclass=ldapsubentry))"
	tmplFilterText = "(&(objectclass=costemplate)(|(objectclass=costemplate)(objectclass=ldapsubentry)))"
)

// Builder loads definition and template entries from a backend and
// produces a Snapshot. Held separately from Cache so tests can exercise
// the build pipeline without a running background updater.
type Builder struct {
	backend slapi.SearchBackend
}

// NewBuilder constructs a Builder reading from backend.
func NewBuilder(backend slapi.SearchBackend) *Builder {
	return &Builder{backend: backend}
}

// Build loads every cosSuperDefinition-derived entry under suffix, resolves
// each definition's own templates, and returns an indexed Snapshot (spec.md
// §4.2 "build pipeline").
func (b *Builder) Build(ctx context.Context, suffix slapi.DN, version int) (*Snapshot, error) {
	defFilter, err := slapi.ParseFilter(defFilterText)
	if err != nil {
		return nil, err
	}
	defEntries, err := b.backend.SearchSubtree(ctx, suffix, defFilter)
	if err != nil {
		return nil, fmt.Errorf("cos: search definitions under %s: %w", suffix, err)
	}

	tmplFilter, err := slapi.ParseFilter(tmplFilterText)
	if err != nil {
		return nil, err
	}

	var defs []*Definition
	for _, e := range defEntries {
		targetTree, err := targetTreeFor(e, suffix)
		if err != nil {
			return nil, err
		}

		def, err := ParseDefinition(e, targetTree)
		if err != nil {
			return nil, err
		}

		templates, err := b.loadTemplates(ctx, def, tmplFilter)
		if err != nil {
			return nil, err
		}

		if len(templates) == 0 && def.Scheme == SchemeClassic {
			// spec.md §4.2 step 3: a Classic definition with no matching
			// templates is skipped with a diagnostic, not a build failure.
			log.Printf("cos: classic definition %s has no templates under %s, skipping", def.DN, def.TemplateDN)
			continue
		}
		if len(templates) == 0 && def.Scheme == SchemePointer {
			return nil, fmt.Errorf("%w: pointer definition %s's template %s does not exist or does not match %s", slapi.ErrInvalidDefinition, def.DN, def.TemplateDN, tmplFilterText)
		}
		def.Templates = templates

		defs = append(defs, def)
	}

	return newSnapshot(version, defs), nil
}

// targetTreeFor reads the cosTargetTree attribute when present, falling
// back to the definition entry's parent DN otherwise (spec.md §6 "COS
// attrs: cosTargetTree..."; confirmed against original_source's
// cos_cache_add_defn, which only synthesizes the parent-DN default when
// cosTargetTree is absent).
func targetTreeFor(e *slapi.Entry, suffix slapi.DN) (slapi.DN, error) {
	if values := e.StoredValues(slapi.AttrCosTargetTree); len(values) > 0 {
		return slapi.ParseDN(values[0])
	}
	if parent, ok := e.DN.Parent(); ok {
		return parent, nil
	}
	return suffix, nil
}

// loadTemplates resolves def's own templates: a one-level search under
// TemplateDN for Classic, a single base-scope fetch of TemplateDN for
// Pointer, and nothing at all for Indirect — which has no templates,
// resolving straight through the followed entry's own stored value instead
// (spec.md §4.2 build pipeline step 3, confirmed against
// original_source's cos_cache_add_dn_tmpls: LDAP_SCOPE_ONELEVEL when a
// cosSpecifier is present, LDAP_SCOPE_BASE otherwise).
func (b *Builder) loadTemplates(ctx context.Context, def *Definition, tmplFilter *slapi.Filter) ([]*Template, error) {
	switch def.Scheme {
	case SchemeClassic:
		entries, err := b.backend.SearchOneLevel(ctx, def.TemplateDN, tmplFilter)
		if err != nil {
			return nil, fmt.Errorf("cos: search templates under %s: %w", def.TemplateDN, err)
		}
		templates := make([]*Template, 0, len(entries))
		for _, e := range entries {
			tmpl, err := ParseTemplate(e)
			if err != nil {
				return nil, err
			}
			templates = append(templates, tmpl)
		}
		return templates, nil

	case SchemePointer:
		entry, err := b.backend.GetEntry(ctx, def.TemplateDN)
		if err != nil {
			return nil, nil
		}
		if !tmplFilter.Matches(entry) {
			return nil, nil
		}
		tmpl, err := ParseTemplate(entry)
		if err != nil {
			return nil, err
		}
		return []*Template{tmpl}, nil

	default: // SchemeIndirect
		return nil, nil
	}
}
