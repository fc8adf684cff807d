package slapi

import (
	"fmt"
	"strings"

	ber "github.com/go-asn1-ber/asn1-ber"
	"github.com/go-ldap/ldap/v3"
)

// Filter wraps a parsed LDAP search filter (RFC 4515). The AST is kept as
// the raw string plus a lazily-verified compile; go-ldap exposes filters as
// BER packets rather than a typed tree, which is what Matches walks.
type Filter struct {
	raw string
}

// ParseFilter parses an RFC 4515 filter string.
func ParseFilter(raw string) (*Filter, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: empty filter", ErrFilterParseError)
	}
	if _, err := ldap.CompileFilter(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFilterParseError, err)
	}
	return &Filter{raw: raw}, nil
}

// String returns the original filter text.
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.raw
}

// Matches reports whether entry satisfies the filter. Evaluation runs over
// stored attribute values only — computed (virtual) attributes are not
// consulted here, matching the rule that filtered-role evaluation and view
// scoping run against an entry's persisted state, never its own virtual
// attributes (which would reintroduce the loops the dispatcher guards
// against).
func (f *Filter) Matches(entry *Entry) bool {
	if f == nil {
		return true
	}
	packet, err := ldap.CompileFilter(f.raw)
	if err != nil {
		return false
	}
	return matchPacket(packet, entry)
}

func matchPacket(p *ber.Packet, entry *Entry) bool {
	switch ldap.FilterMap[p.Tag] {
	case "And":
		for _, child := range p.Children {
			if !matchPacket(child, entry) {
				return false
			}
		}
		return true
	case "Or":
		for _, child := range p.Children {
			if matchPacket(child, entry) {
				return true
			}
		}
		return len(p.Children) == 0
	case "Not":
		if len(p.Children) != 1 {
			return false
		}
		return !matchPacket(p.Children[0], entry)
	case "Equality Match":
		attr, val := childStrings(p)
		return containsFold(entry.StoredValues(attr), val)
	case "Present":
		attr, _ := p.Value.(string)
		return len(entry.StoredValues(attr)) > 0
	case "Greater Or Equal":
		attr, val := childStrings(p)
		return compareValues(entry.StoredValues(attr), val) >= 0
	case "Less Or Equal":
		attr, val := childStrings(p)
		return compareValues(entry.StoredValues(attr), val) <= 0
	case "Approx Match":
		attr, val := childStrings(p)
		return containsFold(entry.StoredValues(attr), val)
	case "Substrings":
		return matchSubstrings(p, entry)
	default:
		// Extensible match and any future filter kind: fail closed rather
		// than silently matching everything.
		return false
	}
}

func childStrings(p *ber.Packet) (attr, val string) {
	if len(p.Children) < 2 {
		return "", ""
	}
	attr, _ = p.Children[0].Value.(string)
	val, _ = p.Children[1].Value.(string)
	return attr, val
}

func matchSubstrings(p *ber.Packet, entry *Entry) bool {
	if len(p.Children) < 2 {
		return false
	}
	attr, _ := p.Children[0].Value.(string)
	values := entry.StoredValues(attr)
	var initial, final string
	var any []string
	for _, seg := range p.Children[1].Children {
		s, _ := seg.Value.(string)
		switch seg.Tag {
		case ber.TagEOC, 0:
			initial = s
		case 1:
			any = append(any, s)
		case 2:
			final = s
		}
	}
	for _, v := range values {
		if substringMatches(v, initial, any, final) {
			return true
		}
	}
	return false
}

func substringMatches(value, initial string, any []string, final string) bool {
	v := value
	if initial != "" {
		if !strings.HasPrefix(strings.ToLower(v), strings.ToLower(initial)) {
			return false
		}
		v = v[len(initial):]
	}
	if final != "" {
		if !strings.HasSuffix(strings.ToLower(v), strings.ToLower(final)) {
			return false
		}
		v = v[:len(v)-len(final)]
	}
	lv := strings.ToLower(v)
	for _, a := range any {
		idx := strings.Index(lv, strings.ToLower(a))
		if idx < 0 {
			return false
		}
		lv = lv[idx+len(a):]
	}
	return true
}

func containsFold(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}

func compareValues(values []string, want string) int {
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return 0
		}
		if v < want {
			return -1
		}
	}
	return 1
}

// ReferencesAttribute reports whether attr appears as an equality,
// ordering, or presence test anywhere in the filter, used by the
// self-reference rule that forbids a filtered role's filter from testing
// nsRole (spec.md §4.3 edge case).
func (f *Filter) ReferencesAttribute(attr string) bool {
	if f == nil {
		return false
	}
	packet, err := ldap.CompileFilter(f.raw)
	if err != nil {
		return false
	}
	return referencesAttribute(packet, strings.ToLower(attr))
}

func referencesAttribute(p *ber.Packet, attr string) bool {
	switch ldap.FilterMap[p.Tag] {
	case "And", "Or", "Not":
		for _, child := range p.Children {
			if referencesAttribute(child, attr) {
				return true
			}
		}
		return false
	case "Present":
		s, _ := p.Value.(string)
		return strings.ToLower(s) == attr
	default:
		if len(p.Children) > 0 {
			s, _ := p.Children[0].Value.(string)
			if strings.ToLower(s) == attr {
				return true
			}
		}
		return false
	}
}
