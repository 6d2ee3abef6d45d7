package silo

import (
	"unsafe"

	"github.com/TheBitDrifter/mask"
)

// Cursor iterates the entities matching a Query: every archetype whose mask
// is a superset of the requested component types, a tuple of one or more
// distinct component types matched by superset (see DESIGN.md for why this
// implementation doesn't carry forward a full AND/OR/NOT query tree).
//
// Initialize snapshots the list of matching archetypes once and locks the
// registry against structural mutation for the cursor's lifetime, rather
// than trying to make concurrent structural mutation during iteration
// well-defined.
type Cursor struct {
	r        *Registry
	ids      []ComponentID
	qmask    mask.Mask
	buffered bool

	lockBit     uint32
	initialized bool

	matched     []ArchetypeHash
	archIndex   int
	entityIndex int
	remaining   int
}

// Query returns a Cursor over every entity whose archetype carries all of
// the given component types. ids must be non-empty and pairwise distinct.
func (r *Registry) Query(ids ...ComponentID) (*Cursor, error) {
	if err := validateQueryIDs(ids); err != nil {
		return nil, err
	}
	return &Cursor{r: r, ids: ids, qmask: maskFor(ids...)}, nil
}

// QueryBuffered returns a Cursor identical to Query, except every
// ComponentDef[T].Set call made against it is recorded as a deferred update
// (buffered.go) instead of being written immediately — for systems that
// must not let one entity's write be observed by the next entity's read
// within the same iteration.
func (r *Registry) QueryBuffered(ids ...ComponentID) (*Cursor, error) {
	cur, err := r.Query(ids...)
	if err != nil {
		return nil, err
	}
	cur.buffered = true
	return cur, nil
}

func validateQueryIDs(ids []ComponentID) error {
	if len(ids) == 0 {
		return InvalidQueryError{Reason: "query requires at least one component type"}
	}
	seen := make(map[ComponentID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return InvalidQueryError{Reason: "duplicate component type in query"}
		}
		seen[id] = true
	}
	return nil
}

// Initialize snapshots the matching archetypes and locks the registry. It
// is called automatically by Next and TotalMatched; calling it directly is
// only useful to pay that cost up front.
func (c *Cursor) Initialize() {
	if c.initialized {
		return
	}
	c.lockBit = c.r.lockIteration()
	for hash, a := range c.r.archetypes {
		if a.mask.ContainsAll(c.qmask) {
			c.matched = append(c.matched, hash)
		}
	}
	c.initialized = true
	if len(c.matched) > 0 {
		c.remaining = c.r.archetypes[c.matched[0]].Len()
	}
}

// Next advances the cursor to the next matching entity, returning false
// (and releasing the iteration lock) once exhausted.
func (c *Cursor) Next() bool {
	if !c.initialized {
		c.Initialize()
	}
	if c.entityIndex < c.remaining {
		c.entityIndex++
		return true
	}
	return c.advance()
}

func (c *Cursor) advance() bool {
	for c.archIndex < len(c.matched) {
		c.remaining = c.r.archetypes[c.matched[c.archIndex]].Len()
		if c.entityIndex < c.remaining {
			c.entityIndex++
			return true
		}
		c.archIndex++
		c.entityIndex = 0
	}
	c.Reset()
	return false
}

// Reset releases the iteration lock and rewinds the cursor so it can be
// reused for another pass.
func (c *Cursor) Reset() {
	if c.initialized {
		c.r.unlockIteration(c.lockBit)
	}
	c.archIndex = 0
	c.entityIndex = 0
	c.remaining = 0
	c.matched = nil
	c.initialized = false
}

func (c *Cursor) currentHash() ArchetypeHash { return c.matched[c.archIndex] }
func (c *Cursor) currentRow() int            { return c.entityIndex - 1 }

// CurrentEntity returns the entity at the cursor's current position.
func (c *Cursor) CurrentEntity() (EntityID, error) {
	if c.entityIndex == 0 {
		return 0, InvalidQueryError{Reason: "Next has not been called"}
	}
	a := c.r.archetypes[c.currentHash()]
	return a.entities[c.currentRow()], nil
}

// TotalMatched returns how many entities the query matches in total,
// without requiring the caller to drive Next() to exhaustion first.
func (c *Cursor) TotalMatched() int {
	if !c.initialized {
		c.Initialize()
	}
	total := 0
	for _, hash := range c.matched {
		total += c.r.archetypes[hash].Len()
	}
	c.Reset()
	return total
}

// ComponentDef is the typed accessor returned by DefineComponent[T]: the
// handle used to read or write a T value at a cursor position or for a
// specific entity.
type ComponentDef[T any] struct{ id ComponentID }

// DefineComponent registers T as a component type (if not already
// registered) and returns its accessor.
func DefineComponent[T any]() ComponentDef[T] {
	return ComponentDef[T]{id: componentID[T]()}
}

// ID returns the ComponentID this definition was built for.
func (d ComponentDef[T]) ID() ComponentID { return d.id }

// GetFromCursor returns a pointer to T at the cursor's current position. It
// panics if the current archetype does not carry T — callers that build a
// query from this def's ID never hit that case; callers mixing defs across
// unrelated queries should use GetFromCursorSafe.
func (d ComponentDef[T]) GetFromCursor(cur *Cursor) *T {
	a := cur.r.archetypes[cur.currentHash()]
	return columnAt[T](a.columns[d.id], cur.currentRow())
}

// GetFromCursorSafe is GetFromCursor guarded by a presence check.
func (d ComponentDef[T]) GetFromCursorSafe(cur *Cursor) (*T, bool) {
	a := cur.r.archetypes[cur.currentHash()]
	col, ok := a.columns[d.id]
	if !ok {
		return nil, false
	}
	return columnAt[T](col, cur.currentRow()), true
}

// CheckCursor reports whether the archetype at the cursor's current
// position carries T.
func (d ComponentDef[T]) CheckCursor(cur *Cursor) bool {
	a := cur.r.archetypes[cur.currentHash()]
	return a.HasColumn(d.id)
}

// GetFromEntity returns a pointer to e's T value directly, bypassing any
// cursor.
func (d ComponentDef[T]) GetFromEntity(r *Registry, e EntityID) (*T, error) {
	ptr, ok := r.entities.Get(uint32(e))
	if !ok {
		return nil, NoSuchEntityError{e}
	}
	a, ok := r.archetypes[ptr.archetype]
	if !ok {
		return nil, InternalInconsistencyError{Detail: NoSuchArchetypeError{ptr.archetype}.Error()}
	}
	col, ok := a.columns[d.id]
	if !ok {
		return nil, MissingComponentError{Entity: e, Name: vtableFor(d.id).name}
	}
	return columnAt[T](col, int(ptr.row)), nil
}

// Set writes value for the entity at the cursor's current position. On a
// plain Query cursor the write is immediate; on a QueryBuffered cursor it is
// recorded as a deferred update (buffered.go) and only takes effect once
// ApplyBufferedUpdates runs.
func (d ComponentDef[T]) Set(cur *Cursor, value T) error {
	if !cur.buffered {
		a := cur.r.archetypes[cur.currentHash()]
		col, ok := a.columns[d.id]
		if !ok {
			return MissingComponentError{Name: vtableFor(d.id).name}
		}
		col.set(cur.currentRow(), unsafe.Pointer(&value))
		return nil
	}
	e, err := cur.CurrentEntity()
	if err != nil {
		return err
	}
	vt := vtableFor(d.id)
	data := make([]byte, vt.elemSize)
	if vt.elemSize > 0 {
		copyBytes(unsafe.Pointer(&data[0]), unsafe.Pointer(&value), vt.elemSize)
	}
	cur.r.buffered = append(cur.r.buffered, bufferedUpdate{
		entity:      e,
		componentID: d.id,
		data:        data,
	})
	return nil
}
