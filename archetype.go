package silo

import "github.com/TheBitDrifter/mask"

// ArchetypeHash identifies an archetype table. The hash of an archetype
// whose component-name set is S is the XOR-fold of every member's per-name
// hash — commutative and order-independent, so the same set of components
// always maps to the same archetype regardless of the order its members
// were added in.
type ArchetypeHash uint64

// voidHash is the always-present, no-components archetype.
const voidHash ArchetypeHash = 0

// Archetype is a row-oriented tuple of columns: an ordered sequence of
// entity IDs plus one type-erased column per component type, all sharing
// the same row count.
//
// Archetype is stored by value in Registry.archetypes (see registry.go) so
// that every operation extending entities — which may grow the slice's
// backing array — must write the updated value back into the map. A stale
// copy of Archetype is not memory-unsafe to hold, but it is stale:
// mutations made to it are silently lost unless written back. The
// read-mutate-write-back cycle in registry.go exists to avoid that trap.
type Archetype struct {
	hash     ArchetypeHash
	mask     mask.Mask
	entities []EntityID
	columns  map[ComponentID]*column
}

func newArchetype(hash ArchetypeHash, m mask.Mask) Archetype {
	return Archetype{
		hash:     hash,
		mask:     m,
		entities: nil,
		columns:  make(map[ComponentID]*column),
	}
}

// ID returns the archetype's hash, used as its identity by queries and
// diagnostics.
func (a Archetype) ID() ArchetypeHash { return a.hash }

// Len returns the current row count.
func (a Archetype) Len() int { return len(a.entities) }

// HasColumn reports whether this archetype stores a column for id.
func (a Archetype) HasColumn(id ComponentID) bool {
	_, ok := a.columns[id]
	return ok
}

// Entities returns the archetype's entity IDs in row order. Callers must not
// retain the slice past the next structural mutation of this archetype.
func (a Archetype) Entities() []EntityID { return a.entities }
