package slapi

import (
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// DN is a normalised distinguished name. The zero value is the empty (root)
// DN.
type DN struct {
	raw    string
	parsed *ldap.DN
}

// ParseDN parses raw into a DN, keeping raw unchanged as its String form.
// Equal compares the parsed forms; IsAncestorOf compares the raw strings
// case-insensitively.
func ParseDN(raw string) (DN, error) {
	if raw == "" {
		return DN{raw: ""}, nil
	}
	parsed, err := ldap.ParseDN(raw)
	if err != nil {
		return DN{}, ErrInvalidDefinition
	}
	return DN{raw: raw, parsed: parsed}, nil
}

// MustParseDN parses raw or panics; used only for compile-time-known
// constant DNs (schema fixtures, tests).
func MustParseDN(raw string) DN {
	dn, err := ParseDN(raw)
	if err != nil {
		panic(err)
	}
	return dn
}

// String returns the original, unnormalised DN text.
func (d DN) String() string { return d.raw }

// Empty reports whether d is the root DN.
func (d DN) Empty() bool { return d.raw == "" }

// Equal reports whether d and other refer to the same DN. Falls back to
// case-sensitive string comparison if either DN failed structural parsing
// (e.g. in fixtures that intentionally exercise malformed input).
func (d DN) Equal(other DN) bool {
	if d.parsed != nil && other.parsed != nil {
		return d.parsed.Equal(other.parsed)
	}
	return d.raw == other.raw
}

// IsAncestorOf reports whether d is a strict ancestor of other, i.e. other
// is within the subtree rooted at d.
func (d DN) IsAncestorOf(other DN) bool {
	if d.Empty() {
		return !other.Empty()
	}
	if d.Equal(other) {
		return false
	}
	return strings.HasSuffix(strings.ToLower(other.raw), ","+strings.ToLower(d.raw))
}

// IsAncestorOfOrEqual reports whether other is d or within d's subtree.
func (d DN) IsAncestorOfOrEqual(other DN) bool {
	return d.Equal(other) || d.IsAncestorOf(other)
}

// Parent returns the immediate parent DN and true, or the zero DN and false
// if d is already the root.
func (d DN) Parent() (DN, bool) {
	if d.parsed == nil || len(d.parsed.RDNs) <= 1 {
		return DN{}, false
	}
	idx := strings.Index(d.raw, ",")
	if idx < 0 {
		return DN{}, false
	}
	parent, err := ParseDN(d.raw[idx+1:])
	if err != nil {
		return DN{}, false
	}
	return parent, true
}

// RDNValue returns the first attribute value of d's leftmost RDN (e.g. "gold"
// for "cn=gold,ou=classOfService,dc=example,dc=com"), used by COS grade
// extraction (spec.md §4.2, Open Question 1 — see DESIGN.md).
func (d DN) RDNValue() (string, bool) {
	if d.parsed == nil || len(d.parsed.RDNs) == 0 || len(d.parsed.RDNs[0].Attributes) == 0 {
		return "", false
	}
	return d.parsed.RDNs[0].Attributes[0].Value, true
}
