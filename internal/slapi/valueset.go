package slapi

// ValueSet is an ordered, possibly-duplicate-free collection of attribute
// values. Providers return ValueSets from computed-attribute evaluation;
// the dispatcher merges, overrides, or replaces them per §4.1/§4.2 merge
// semantics.
type ValueSet struct {
	Values []string
}

// NewValueSet builds a ValueSet from the given values, preserving order.
func NewValueSet(values ...string) *ValueSet {
	return &ValueSet{Values: append([]string(nil), values...)}
}

// Clone returns a deep copy so a caller can freely mutate the result
// without corrupting a cached snapshot.
func (vs *ValueSet) Clone() *ValueSet {
	if vs == nil {
		return nil
	}
	return &ValueSet{Values: append([]string(nil), vs.Values...)}
}

// Contains reports whether value is already present (case-sensitive; the
// backend is responsible for any schema-driven case folding before values
// reach this layer).
func (vs *ValueSet) Contains(value string) bool {
	if vs == nil {
		return false
	}
	for _, v := range vs.Values {
		if v == value {
			return true
		}
	}
	return false
}

// Merge appends values from other that are not already present.
func (vs *ValueSet) Merge(other *ValueSet) *ValueSet {
	if other == nil {
		return vs
	}
	if vs == nil {
		vs = &ValueSet{}
	}
	for _, v := range other.Values {
		if !vs.Contains(v) {
			vs.Values = append(vs.Values, v)
		}
	}
	return vs
}

// Empty reports whether the set has no values.
func (vs *ValueSet) Empty() bool {
	return vs == nil || len(vs.Values) == 0
}
