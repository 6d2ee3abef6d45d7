package silo

import (
	"unsafe"

	"github.com/TheBitDrifter/bark"
	"github.com/TheBitDrifter/mask"
	"github.com/kamstrup/intmap"
)

// Registry is the root object of the storage engine: the owner of every
// archetype table, the entity→location index, registered resources, the
// plugin list and the Pipeline — the one object an embedding application
// holds onto. It collapses storage, schema, and the deferred-operation
// queue into a single type, since there is exactly one storage
// representation: archetype tables, not a swappable backend.
type Registry struct {
	cfg RegistryConfig

	archetypes map[ArchetypeHash]Archetype
	entities   *intmap.Map[uint32, entityPointer]
	nextEntity uint32

	resources map[string]*resourceSlot

	plugins  []Plugin
	pipeline *Pipeline

	buffered []bufferedUpdate

	iterLock    mask.Mask256
	lockBitUsed [maxIterationLocks]bool

	parents    map[EntityID]EntityID
	destroyCBs map[EntityID]EntityDestroyCallback

	torndown bool
}

// NewRegistry constructs an empty Registry with the void archetype already
// present.
func NewRegistry(cfg RegistryConfig) *Registry {
	r := &Registry{
		cfg:        cfg.withDefaults(),
		archetypes: map[ArchetypeHash]Archetype{voidHash: newArchetype(voidHash, mask.Mask{})},
		entities:   intmap.New[uint32, entityPointer](1024),
		resources:  map[string]*resourceSlot{},
		parents:    map[EntityID]EntityID{},
		destroyCBs: map[EntityID]EntityDestroyCallback{},
	}
	r.pipeline = newPipeline(r.cfg.Logger)
	return r
}

// Pipeline returns the registry's stage scheduler.
func (r *Registry) Pipeline() *Pipeline { return r.pipeline }

// SetPipeline replaces the registry's pipeline wholesale, e.g. to install
// one built and configured independently of the registry before any ticks
// have run. The previous pipeline's stages are not torn down by this call;
// a caller replacing a live, already-ticking pipeline is responsible for
// tearing down the old one itself first.
func (r *Registry) SetPipeline(p *Pipeline) { r.pipeline = p }

func (r *Registry) locked() bool { return !r.iterLock.IsEmpty() }

// maxIterationLocks bounds how many Cursors may hold the iteration lock
// concurrently (i.e. Initialized but not yet Reset/drained). It matches
// mask.Mask256's bit width, the structure backing iterLock.
const maxIterationLocks = 256

// lockIteration marks a free bit of the iteration lock and returns it so the
// caller can release the same bit later. Bits are reclaimed by
// unlockIteration and reused by a first-zero scan of lockBitUsed rather than
// handed out from a monotonic counter — a monotonic counter would run past
// mask.Mask256's 256-bit width after a few hundred iterated queries (well
// within one per-frame game loop), at which point marking an out-of-range
// bit stops the lock from engaging at all, silently reopening the exact
// structural-mutation-during-iteration hazard the lock exists to prevent.
// Structural mutation while any bit is held is rejected outright rather
// than made safe; LockedRegistryError is how that rejection surfaces to
// callers.
func (r *Registry) lockIteration() uint32 {
	for bit := 0; bit < maxIterationLocks; bit++ {
		if !r.lockBitUsed[bit] {
			r.lockBitUsed[bit] = true
			r.iterLock.Mark(uint32(bit))
			return uint32(bit)
		}
	}
	panic(bark.AddTrace(InternalInconsistencyError{
		Detail: "iteration lock exhausted: more than 256 Cursors held open without Reset",
	}))
}

func (r *Registry) unlockIteration(bit uint32) {
	r.iterLock.Unmark(bit)
	r.lockBitUsed[bit] = false
}

// archPush appends e to the archetype at hash and writes the archetype back
// to the map, returning the row it now occupies. Every caller that grows an
// Archetype's entity slice must go through this helper (or replicate its
// write-back) rather than holding a long-lived Archetype value across the
// append — see archetype.go's doc comment.
func (r *Registry) archPush(hash ArchetypeHash, e EntityID) int {
	a := r.archetypes[hash]
	row := len(a.entities)
	a.entities = append(a.entities, e)
	r.archetypes[hash] = a
	return row
}

// archSwapRemove removes row from the archetype at hash, moving the
// formerly-last entity into its place, and writes the archetype back. Every
// column's value at row is genuinely discarded (teardown hooks fire), so
// this is only correct when the entity itself is being destroyed, not moved
// — see archSwapRemoveMigrated for the migration case.
// It reports the entity that was removed and, if a swap
// occurred, which entity was moved and into what row the caller must now
// repoint.
func (r *Registry) archSwapRemove(hash ArchetypeHash, row int) (removed, swapped EntityID, hadSwap bool) {
	a := r.archetypes[hash]
	last := len(a.entities) - 1
	removed = a.entities[row]
	for _, col := range a.columns {
		col.swapRemove(row)
	}
	if row != last {
		swapped = a.entities[last]
		a.entities[row] = swapped
		hadSwap = true
	}
	a.entities = a.entities[:last]
	r.archetypes[hash] = a
	return removed, swapped, hadSwap
}

// archSwapRemoveMigrated frees row from the archetype at hash during an
// AddComponent/RemoveComponent migration, after every surviving column has
// already been copied forward into the target archetype via copyTo.
// Columns are freed with swapRemoveRelocated (no teardown) since their row
// values are still logically alive in the target archetype, except
// droppedID when hasDropped is true: that column's value was never copied
// anywhere (it is the component RemoveComponent is discarding) and must run
// its real teardown hook via swapRemove.
func (r *Registry) archSwapRemoveMigrated(hash ArchetypeHash, row int, droppedID ComponentID, hasDropped bool) (removed, swapped EntityID, hadSwap bool) {
	a := r.archetypes[hash]
	last := len(a.entities) - 1
	removed = a.entities[row]
	for cid, col := range a.columns {
		if hasDropped && cid == droppedID {
			col.swapRemove(row)
			continue
		}
		col.swapRemoveRelocated(row)
	}
	if row != last {
		swapped = a.entities[last]
		a.entities[row] = swapped
		hadSwap = true
	}
	a.entities = a.entities[:last]
	r.archetypes[hash] = a
	return removed, swapped, hadSwap
}

// CreateEntity allocates a new EntityID in the void archetype. IDs are
// never recycled; once the 32-bit space is exhausted every subsequent
// call fails with IDSpaceExhaustedError.
func (r *Registry) CreateEntity() (EntityID, error) {
	if r.locked() {
		return 0, LockedRegistryError{}
	}
	if r.nextEntity == ^uint32(0) {
		return 0, IDSpaceExhaustedError{}
	}
	id := EntityID(r.nextEntity)
	row := r.archPush(voidHash, id)
	r.entities.Put(uint32(id), entityPointer{archetype: voidHash, row: uint32(row)})
	r.nextEntity++
	return id, nil
}

// DestroyEntity removes e from its archetype, patches the swapped-in
// entity's pointer, invokes any registered destroy callback, and discards
// e's ID permanently.
func (r *Registry) DestroyEntity(e EntityID) error {
	if r.locked() {
		return LockedRegistryError{}
	}
	ptr, ok := r.entities.Get(uint32(e))
	if !ok {
		return NoSuchEntityError{e}
	}
	if _, ok := r.archetypes[ptr.archetype]; !ok {
		return InternalInconsistencyError{Detail: NoSuchArchetypeError{ptr.archetype}.Error()}
	}

	removed, swapped, hadSwap := r.archSwapRemove(ptr.archetype, int(ptr.row))
	if removed != e {
		panic(bark.AddTrace(InternalInconsistencyError{Detail: "swap_remove returned unexpected entity during destroy"}))
	}
	if hadSwap {
		sp, ok := r.entities.Get(uint32(swapped))
		if !ok {
			panic(bark.AddTrace(InternalInconsistencyError{Detail: "swapped entity has no entity pointer"}))
		}
		sp.row = ptr.row
		r.entities.Put(uint32(swapped), sp)
	}
	r.entities.Del(uint32(e))

	if r.cfg.DestroyEmptyArchetypes && ptr.archetype != voidHash {
		if a := r.archetypes[ptr.archetype]; len(a.entities) == 0 {
			for _, col := range a.columns {
				col.dropAll()
			}
			delete(r.archetypes, ptr.archetype)
		}
	}

	if cb, ok := r.destroyCBs[e]; ok {
		cb(e)
		delete(r.destroyCBs, e)
	}
	delete(r.parents, e)
	return nil
}

// ComponentValue is one component assignment to apply during Spawn, built
// by With.
type ComponentValue interface {
	applyTo(r *Registry, e EntityID) error
}

type componentValueFunc func(r *Registry, e EntityID) error

func (f componentValueFunc) applyTo(r *Registry, e EntityID) error { return f(r, e) }

// With bundles a component value for Spawn. The ComponentDef is produced by
// DefineComponent[T]() (query.go); value is copied into the entity's new
// archetype when Spawn applies it.
func With[T any](_ ComponentDef[T], value T) ComponentValue {
	return componentValueFunc(func(r *Registry, e EntityID) error {
		return AddComponent(r, e, value)
	})
}

// Spawn creates an entity and adds every given component to it in order:
// spawning with components C1..Cn is equivalent to CreateEntity followed by
// AddComponent(C1)..AddComponent(Cn). If any AddComponent call fails, the
// partially built entity is destroyed and the error is returned; no
// partial entity is left behind.
func Spawn(r *Registry, values ...ComponentValue) (EntityID, error) {
	e, err := r.CreateEntity()
	if err != nil {
		return 0, err
	}
	for _, v := range values {
		if err := v.applyTo(r, e); err != nil {
			_ = r.DestroyEntity(e)
			return 0, err
		}
	}
	return e, nil
}

// AddComponent migrates e into the archetype with T's bit set, moving its
// existing columns across and writing value into the new column. Go has no
// generic methods, so the type parameter T forces this to be a free
// function taking *Registry rather than a Registry method.
func AddComponent[T any](r *Registry, e EntityID, value T) error {
	if r.locked() {
		return LockedRegistryError{}
	}
	id := componentID[T]()
	vt := vtableFor(id)
	return r.migrateAdd(e, id, vt, unsafe.Pointer(&value))
}

// RemoveComponent is AddComponent's mirror image: it migrates e to the
// archetype with the bit for T cleared, dropping the removed column's value
// via its teardown hook if any.
func RemoveComponent[T any](r *Registry, e EntityID) error {
	if r.locked() {
		return LockedRegistryError{}
	}
	id := componentID[T]()
	return r.migrateRemove(e, id)
}

// HasComponent reports whether e currently carries the component identified
// by id.
func (r *Registry) HasComponent(e EntityID, id ComponentID) (bool, error) {
	ptr, ok := r.entities.Get(uint32(e))
	if !ok {
		return false, NoSuchEntityError{e}
	}
	a, ok := r.archetypes[ptr.archetype]
	if !ok {
		return false, InternalInconsistencyError{Detail: NoSuchArchetypeError{ptr.archetype}.Error()}
	}
	return a.HasColumn(id), nil
}

func (r *Registry) migrateAdd(e EntityID, id ComponentID, vt *componentVTable, valuePtr unsafe.Pointer) error {
	ptr, ok := r.entities.Get(uint32(e))
	if !ok {
		return NoSuchEntityError{e}
	}
	aVal, ok := r.archetypes[ptr.archetype]
	if !ok {
		return InternalInconsistencyError{Detail: NoSuchArchetypeError{ptr.archetype}.Error()}
	}
	if aVal.HasColumn(id) {
		return DuplicateComponentError{Entity: e, Name: vt.name}
	}

	hTarget := aVal.hash ^ ArchetypeHash(vt.hash)

	// Get-or-create the target archetype B. This may grow r.archetypes (a Go
	// map), which invalidates no Go references, but any map-growing step is
	// followed by re-fetching A by hash rather than reusing aVal above, to
	// keep the migration sequence robust to a future storage representation
	// where that reference could be invalidated.
	bVal, exists := r.archetypes[hTarget]
	if !exists {
		newMask := aVal.mask
		newMask.Mark(componentMaskBit(id))
		bVal = newArchetype(hTarget, newMask)
		for cid, col := range aVal.columns {
			bVal.columns[cid] = col.cloneEmpty()
		}
		bVal.columns[id] = newColumn(vt)
		r.archetypes[hTarget] = bVal
	}

	// Re-fetch A by hash.
	aVal = r.archetypes[ptr.archetype]

	i := int(ptr.row)
	j := len(bVal.entities)
	bVal.entities = append(bVal.entities, e)

	for cid, srcCol := range aVal.columns {
		srcCol.copyTo(i, bVal.columns[cid], j)
	}
	bVal.columns[id].set(j, valuePtr)
	r.archetypes[hTarget] = bVal

	r.entities.Put(uint32(e), entityPointer{archetype: hTarget, row: uint32(j)})

	// AddComponent drops no column: every value at row i was copied forward
	// into B above and is still live there, so freeing row i must not run
	// any teardown hook (archSwapRemoveMigrated with hasDropped=false).
	removed, swapped, hadSwap := r.archSwapRemoveMigrated(ptr.archetype, i, 0, false)
	if removed != e {
		panic(bark.AddTrace(InternalInconsistencyError{Detail: "swap_remove returned unexpected entity during migration"}))
	}
	if hadSwap {
		sp, ok := r.entities.Get(uint32(swapped))
		if !ok {
			panic(bark.AddTrace(InternalInconsistencyError{Detail: "swapped entity has no entity pointer"}))
		}
		sp.row = uint32(i)
		r.entities.Put(uint32(swapped), sp)
	}

	if r.cfg.DestroyEmptyArchetypes && ptr.archetype != voidHash {
		if a2 := r.archetypes[ptr.archetype]; len(a2.entities) == 0 {
			for _, col := range a2.columns {
				col.dropAll()
			}
			delete(r.archetypes, ptr.archetype)
		}
	}
	return nil
}

func (r *Registry) migrateRemove(e EntityID, id ComponentID) error {
	ptr, ok := r.entities.Get(uint32(e))
	if !ok {
		return NoSuchEntityError{e}
	}
	aVal, ok := r.archetypes[ptr.archetype]
	if !ok {
		return InternalInconsistencyError{Detail: NoSuchArchetypeError{ptr.archetype}.Error()}
	}
	vt := vtableFor(id)
	if !aVal.HasColumn(id) {
		return MissingComponentError{Entity: e, Name: vt.name}
	}

	hTarget := aVal.hash ^ ArchetypeHash(vt.hash)

	bVal, exists := r.archetypes[hTarget]
	if !exists {
		newMask := aVal.mask
		newMask.Unmark(componentMaskBit(id))
		bVal = newArchetype(hTarget, newMask)
		for cid, col := range aVal.columns {
			if cid == id {
				continue
			}
			bVal.columns[cid] = col.cloneEmpty()
		}
		r.archetypes[hTarget] = bVal
	}

	aVal = r.archetypes[ptr.archetype]

	i := int(ptr.row)
	j := len(bVal.entities)
	bVal.entities = append(bVal.entities, e)

	for cid, srcCol := range aVal.columns {
		if cid == id {
			continue
		}
		srcCol.copyTo(i, bVal.columns[cid], j)
	}
	r.archetypes[hTarget] = bVal

	r.entities.Put(uint32(e), entityPointer{archetype: hTarget, row: uint32(j)})

	// RemoveComponent drops exactly one column (id): every other value at
	// row i was copied forward into B above and must be freed without
	// teardown, but id's value was never copied anywhere — it is the
	// component being discarded — so its teardown hook must run.
	removed, swapped, hadSwap := r.archSwapRemoveMigrated(ptr.archetype, i, id, true)
	if removed != e {
		panic(bark.AddTrace(InternalInconsistencyError{Detail: "swap_remove returned unexpected entity during migration"}))
	}
	if hadSwap {
		sp, ok := r.entities.Get(uint32(swapped))
		if !ok {
			panic(bark.AddTrace(InternalInconsistencyError{Detail: "swapped entity has no entity pointer"}))
		}
		sp.row = uint32(i)
		r.entities.Put(uint32(swapped), sp)
	}

	if r.cfg.DestroyEmptyArchetypes && ptr.archetype != voidHash {
		if a2 := r.archetypes[ptr.archetype]; len(a2.entities) == 0 {
			for _, col := range a2.columns {
				col.dropAll()
			}
			delete(r.archetypes, ptr.archetype)
		}
	}
	return nil
}

// SetParent records that child is owned by parent: destroying parent
// invokes cb and then, if child still exists, destroys child too. This
// rounds out an archetype engine meant to host a scene graph, where a
// destroyed node should take its children with it.
func (r *Registry) SetParent(child, parent EntityID, cb EntityDestroyCallback) error {
	if !r.entities.Has(uint32(child)) {
		return NoSuchEntityError{child}
	}
	if !r.entities.Has(uint32(parent)) {
		return NoSuchEntityError{parent}
	}
	if existing, ok := r.parents[child]; ok {
		return EntityRelationError{Child: child, Parent: parent, Existing: existing}
	}
	r.parents[child] = parent
	wrapped := r.destroyCBs[parent]
	r.destroyCBs[parent] = func(destroyed EntityID) {
		if wrapped != nil {
			wrapped(destroyed)
		}
		if cb != nil {
			cb(destroyed)
		}
		if r.entities.Has(uint32(child)) {
			_ = r.DestroyEntity(child)
		}
	}
	return nil
}

// Parent returns child's registered parent, if any.
func (r *Registry) Parent(child EntityID) (EntityID, bool) {
	p, ok := r.parents[child]
	return p, ok
}

// AddPlugin registers a plugin, running its Init immediately.
func (r *Registry) AddPlugin(p Plugin) error {
	if p.Init != nil {
		if err := p.Init(r); err != nil {
			return err
		}
	}
	r.plugins = append(r.plugins, p)
	return nil
}

// Teardown releases every resource the registry owns, in the order spec
// §4.3.7 specifies: plugin teardowns (reverse registration order), pipeline
// teardown, resource teardown, then component/archetype teardown.
func (r *Registry) Teardown() {
	if r.torndown {
		return
	}
	r.torndown = true

	for i := len(r.plugins) - 1; i >= 0; i-- {
		if r.plugins[i].Teardown != nil {
			r.plugins[i].Teardown(r)
		}
	}
	r.pipeline.teardown(r)
	for _, slot := range r.resources {
		slot.teardown()
	}
	for hash, a := range r.archetypes {
		for _, col := range a.columns {
			col.dropAll()
		}
		delete(r.archetypes, hash)
	}
}

// DebugComponents returns the canonical names of every component e
// currently carries, sorted by name. A natural complement to
// HasComponent for tooling and tests.
func (r *Registry) DebugComponents(e EntityID) ([]string, error) {
	ptr, ok := r.entities.Get(uint32(e))
	if !ok {
		return nil, NoSuchEntityError{e}
	}
	a, ok := r.archetypes[ptr.archetype]
	if !ok {
		return nil, InternalInconsistencyError{Detail: NoSuchArchetypeError{ptr.archetype}.Error()}
	}
	names := make([]string, 0, len(a.columns))
	for id := range a.columns {
		names = append(names, vtableFor(id).name)
	}
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			if names[j] < names[i] {
				names[i], names[j] = names[j], names[i]
			}
		}
	}
	return names, nil
}
