package cos

import (
	"github.com/389ds/389-ds-base-sub010/internal/slapi"
)

// Template is one costemplate entry: a named "grade" plus the attribute
// values it supplies to matching entries (spec.md §4.2 "COS template").
type Template struct {
	DN     slapi.DN
	Grade  string // the template's RDN value, e.g. "gold" in cn=gold,...
	Values map[string][]string
}

// ParseTemplate builds a Template from a raw costemplate entry.
func ParseTemplate(entry *slapi.Entry) (*Template, error) {
	grade, err := extractGrade(entry.DN)
	if err != nil {
		return nil, err
	}
	return &Template{DN: entry.DN, Grade: grade, Values: entry.Attrs}, nil
}

// extractGrade pulls the template's grade from its leftmost RDN value.
//
// Open Question (spec.md §9, decided in DESIGN.md): the value comes from
// go-ldap's DN parser via DN.RDNValue, which decodes RFC 4514 escape
// sequences (e.g. "\2C" becomes a literal comma). This differs from the
// original, which unescaped only one level of quote nesting. The decoded
// grade is then matched against a specifier value by case-insensitive
// string equality.
func extractGrade(dn slapi.DN) (string, error) {
	value, ok := dn.RDNValue()
	if !ok {
		return "", slapi.ErrInvalidDefinition
	}
	return value, nil
}
