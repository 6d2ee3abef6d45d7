package silo

// EntityID is a monotonically assigned handle to a row across one
// archetype's columns. IDs are never recycled during a registry's
// lifetime — destroying an entity discards its ID for good.
type EntityID uint32

// entityPointer locates an entity's data: which archetype it lives in, and
// at which row. Invariant: entities[e] = (h, i) implies
// archetypes[h].entity_ids[i] == e; registry.go is the sole owner of that
// invariant's upkeep.
type entityPointer struct {
	archetype ArchetypeHash
	row       uint32
}

// EntityDestroyCallback is invoked when an entity that has been registered
// as a parent (via Registry.SetParent) is destroyed.
type EntityDestroyCallback func(EntityID)
