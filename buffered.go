package silo

import "unsafe"

// bufferedUpdate is a deferred write recorded by ComponentDef[T].Set against
// a QueryBuffered cursor: a FIFO queue entry of entity, component type, and
// owned byte buffer. The destination cell is re-resolved at apply time
// rather than captured as a raw pointer, since a buffered update may
// outlive several structural mutations before it is applied.
type bufferedUpdate struct {
	entity      EntityID
	componentID ComponentID
	data        []byte
}

type bufferedKey struct {
	entity EntityID
	id     ComponentID
}

// ApplyBufferedUpdates applies every update queued since the last apply or
// discard, last-writer-wins per (entity, component type): if the same cell
// was Set more than once, only the most recent value survives.
// An update whose entity was destroyed, or whose component was removed,
// since it was queued is silently dropped rather than erroring — the
// buffered-write contract only promises "last writer wins among writers to
// a cell that still exists by apply time".
func ApplyBufferedUpdates(r *Registry) error {
	if r.locked() {
		return LockedRegistryError{}
	}
	lastIndex := make(map[bufferedKey]int, len(r.buffered))
	order := make([]bufferedKey, 0, len(r.buffered))
	for i, u := range r.buffered {
		k := bufferedKey{u.entity, u.componentID}
		if _, seen := lastIndex[k]; !seen {
			order = append(order, k)
		}
		lastIndex[k] = i
	}

	for _, k := range order {
		u := r.buffered[lastIndex[k]]
		ptr, ok := r.entities.Get(uint32(u.entity))
		if !ok {
			continue
		}
		a, ok := r.archetypes[ptr.archetype]
		if !ok {
			continue
		}
		col, ok := a.columns[u.componentID]
		if !ok {
			continue
		}
		if len(u.data) == 0 {
			continue
		}
		col.set(int(ptr.row), unsafe.Pointer(&u.data[0]))
	}

	r.buffered = r.buffered[:0]
	return nil
}

// DiscardBufferedUpdates drops every queued update without applying it.
func DiscardBufferedUpdates(r *Registry) {
	r.buffered = r.buffered[:0]
}

// HasPendingUpdates reports whether any buffered update is queued.
func HasPendingUpdates(r *Registry) bool {
	return len(r.buffered) > 0
}
