package silo

import "reflect"

// ResourceKind distinguishes a resource's storage shape: a single shared
// instance, or an ordered collection of instances (e.g. one
// Registry-wide Config, versus a growing list of PendingEvent).
type ResourceKind int

const (
	// ResourceSingleton stores exactly one value of the registered type.
	ResourceSingleton ResourceKind = iota
	// ResourceCollection stores zero or more values of the registered type.
	ResourceCollection
)

// resourceSlot is the type-erased storage for one registered resource type,
// mirroring how component.go erases component storage: the kind and the
// values are kept generically, and only the generic resource functions
// below (PushResource[T], QueryResourceSingleton[T], ...) ever recover the
// concrete type.
type resourceSlot struct {
	kind     ResourceKind
	typeName string
	values   []interface{} // len 0 or 1 for ResourceSingleton
	drop     func(interface{})
}

func newResourceSlot(kind ResourceKind, typeName string, drop func(interface{})) *resourceSlot {
	return &resourceSlot{kind: kind, typeName: typeName, drop: drop}
}

func (s *resourceSlot) teardown() {
	if s.drop == nil {
		return
	}
	for _, v := range s.values {
		s.drop(v)
	}
}

func resourceTeardownHook[T any](v interface{}) {
	tv := v.(T)
	if h, ok := any(&tv).(teardownHook); ok {
		h.Teardown()
	}
}

func resourceKeyFor[T any]() string {
	var zero T
	return canonicalName(reflect.TypeOf(zero))
}

// RegisterResource registers T as a resource of the given kind. It is an
// error to register the same type twice. Registration is explicit, not
// implicit on first push, so a typo'd type can't silently create a
// brand-new empty resource slot.
func RegisterResource[T any](r *Registry, kind ResourceKind) error {
	key := resourceKeyFor[T]()
	if _, exists := r.resources[key]; exists {
		return ResourceAlreadyRegisteredError{TypeName: key}
	}
	var drop func(interface{})
	var zero T
	if reflect.PointerTo(reflect.TypeOf(zero)).Implements(teardownType) {
		drop = resourceTeardownHook[T]
	}
	r.resources[key] = newResourceSlot(kind, key, drop)
	return nil
}

// ResourceRegistered reports whether T has been registered as a resource.
func ResourceRegistered[T any](r *Registry) bool {
	_, ok := r.resources[resourceKeyFor[T]()]
	return ok
}

// PushResource adds a value to T's resource slot. For ResourceSingleton it
// replaces any existing value (invoking its teardown hook first); for
// ResourceCollection it appends.
func PushResource[T any](r *Registry, value T) error {
	key := resourceKeyFor[T]()
	slot, ok := r.resources[key]
	if !ok {
		return UnregisteredResourceError{TypeName: key}
	}
	switch slot.kind {
	case ResourceSingleton:
		if len(slot.values) == 1 && slot.drop != nil {
			slot.drop(slot.values[0])
		}
		slot.values = []interface{}{value}
	case ResourceCollection:
		slot.values = append(slot.values, value)
	}
	return nil
}

// QueryResourceSingleton returns T's singleton value. ok is false if T has
// never been pushed (registered but empty) or was never registered.
func QueryResourceSingleton[T any](r *Registry) (T, bool) {
	var zero T
	key := resourceKeyFor[T]()
	slot, ok := r.resources[key]
	if !ok || slot.kind != ResourceSingleton || len(slot.values) == 0 {
		return zero, false
	}
	return slot.values[0].(T), true
}

// QueryResourceCollection returns a snapshot slice of every value currently
// held in T's collection resource. The returned slice is a copy; mutating
// it does not affect the registry's storage.
func QueryResourceCollection[T any](r *Registry) []T {
	key := resourceKeyFor[T]()
	slot, ok := r.resources[key]
	if !ok || slot.kind != ResourceCollection {
		return nil
	}
	out := make([]T, len(slot.values))
	for i, v := range slot.values {
		out[i] = v.(T)
	}
	return out
}

// ClearResource empties T's resource slot, invoking teardown hooks on every
// discarded value, without unregistering the type.
func ClearResource[T any](r *Registry) error {
	key := resourceKeyFor[T]()
	slot, ok := r.resources[key]
	if !ok {
		return UnregisteredResourceError{TypeName: key}
	}
	slot.teardown()
	slot.values = nil
	return nil
}

// RemoveResource removes one stored value from T's resource slot, tearing
// it down if it carries a Teardown hook. For ResourceSingleton idx is
// ignored and the cell (if occupied) is dropped; for ResourceCollection the
// value at idx is removed via ordered (index-stability-preserving) removal,
// shifting later elements down rather than swap-removing. An out-of-range
// idx against a collection is a no-op, mirroring how a stale buffered
// update against an already-removed cell is silently dropped rather than
// erroring. The type itself remains registered.
func RemoveResource[T any](r *Registry, idx int) error {
	key := resourceKeyFor[T]()
	slot, ok := r.resources[key]
	if !ok {
		return UnregisteredResourceError{TypeName: key}
	}
	switch slot.kind {
	case ResourceSingleton:
		if len(slot.values) == 1 {
			if slot.drop != nil {
				slot.drop(slot.values[0])
			}
			slot.values = nil
		}
	case ResourceCollection:
		if idx < 0 || idx >= len(slot.values) {
			return nil
		}
		if slot.drop != nil {
			slot.drop(slot.values[idx])
		}
		slot.values = append(slot.values[:idx], slot.values[idx+1:]...)
	}
	return nil
}

// UnregisterResource tears down and forgets T's resource slot entirely,
// freeing a typo'd or decommissioned resource type from the registry. Not
// part of spec.md's remove_resource op (which only drops a value), but the
// natural counterpart needed to fully reverse RegisterResource.
func UnregisterResource[T any](r *Registry) error {
	key := resourceKeyFor[T]()
	slot, ok := r.resources[key]
	if !ok {
		return UnregisteredResourceError{TypeName: key}
	}
	slot.teardown()
	delete(r.resources, key)
	return nil
}
