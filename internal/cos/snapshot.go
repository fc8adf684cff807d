package cos

import "sort"

// Snapshot is an immutable, indexed view of every definition and template
// under one suffix. Snapshots are built off to the side and published
// atomically by Cache.Refresh (spec.md §4.2's rebuild-and-swap cache,
// modeled directly on the teacher's GroupRoleCache — see DESIGN.md).
type Snapshot struct {
	Version int

	definitions []*Definition // sorted by (TargetTree, Priority, DN) for deterministic evaluation order
	byTreeAttr  []indexEntry  // sorted by (attribute name, target tree, priority, DN) for O(log N) attribute queries
}

type indexEntry struct {
	attr       string
	targetTree string
	defIndex   int
}

// newSnapshot builds a Snapshot's derived indices from a flat definition
// set, each already carrying its own resolved templates. version is the
// monotonically increasing generation counter GroupRoleCache-style callers
// expect.
func newSnapshot(version int, defs []*Definition) *Snapshot {
	sort.Slice(defs, func(i, j int) bool {
		if defs[i].TargetTree.String() != defs[j].TargetTree.String() {
			return defs[i].TargetTree.String() < defs[j].TargetTree.String()
		}
		if defs[i].Priority != defs[j].Priority {
			return defs[i].Priority < defs[j].Priority
		}
		return defs[i].DN.String() < defs[j].DN.String()
	})

	var index []indexEntry
	for i, def := range defs {
		for _, attrSpec := range def.Attributes {
			index = append(index, indexEntry{attr: attrSpec.Name, targetTree: def.TargetTree.String(), defIndex: i})
		}
	}
	sort.Slice(index, func(i, j int) bool {
		if index[i].attr != index[j].attr {
			return index[i].attr < index[j].attr
		}
		if index[i].targetTree != index[j].targetTree {
			return index[i].targetTree < index[j].targetTree
		}
		return index[i].defIndex < index[j].defIndex
	})

	return &Snapshot{
		Version:     version,
		definitions: defs,
		byTreeAttr:  index,
	}
}

// definitionsForAttr returns the definitions that distribute attr, ordered
// by target tree, then priority, then DN — the O(log N) attribute lookup
// spec.md §3 requires, implemented as a binary search over the sorted index
// followed by a scan of the entries sharing that attribute name. Checking
// a definition's target tree against an entry is left to the caller.
func (s *Snapshot) definitionsForAttr(attr string) []*Definition {
	lo := sort.Search(len(s.byTreeAttr), func(i int) bool { return s.byTreeAttr[i].attr >= attr })
	var out []*Definition
	for i := lo; i < len(s.byTreeAttr) && s.byTreeAttr[i].attr == attr; i++ {
		out = append(out, s.definitions[s.byTreeAttr[i].defIndex])
	}
	return out
}

// attributeNames returns every distinct attribute name some definition in
// the snapshot distributes, used by the wiring layer to register a single
// cos.Provider against every attribute type it could plausibly serve
// (spec.md §4.1 registration is per attribute type, not wildcard).
func (s *Snapshot) attributeNames() []string {
	seen := make(map[string]bool, len(s.byTreeAttr))
	var out []string
	for _, e := range s.byTreeAttr {
		if !seen[e.attr] {
			seen[e.attr] = true
			out = append(out, e.attr)
		}
	}
	return out
}
