package silo

import "fmt"

// NoSuchEntityError is returned when an entity lookup misses — the entity
// was never created, or has already been destroyed.
type NoSuchEntityError struct{ Entity EntityID }

func (e NoSuchEntityError) Error() string {
	return fmt.Sprintf("no such entity: %d", e.Entity)
}

// NoSuchArchetypeError indicates an entity pointer referenced an archetype
// hash with no corresponding archetype table. Treated as an
// internal-inconsistency condition, surfaced through InternalInconsistencyError.
type NoSuchArchetypeError struct{ Hash ArchetypeHash }

func (e NoSuchArchetypeError) Error() string {
	return fmt.Sprintf("no such archetype: %#x", uint64(e.Hash))
}

// InternalInconsistencyError reports a runtime invariant violation — a
// swapped entity with no entity pointer, a removed ID that didn't match —
// that indicates the registry's internal bookkeeping has been corrupted.
type InternalInconsistencyError struct{ Detail string }

func (e InternalInconsistencyError) Error() string {
	return fmt.Sprintf("internal inconsistency: %s", e.Detail)
}

// InvalidQueryError is returned when a query's component-type argument list
// does not conform to "one or more distinct component types".
type InvalidQueryError struct{ Reason string }

func (e InvalidQueryError) Error() string {
	return fmt.Sprintf("invalid query: %s", e.Reason)
}

// DuplicateComponentError is returned by AddComponent when the entity
// already carries a component of that type, rather than panicking.
type DuplicateComponentError struct {
	Entity EntityID
	Name   string
}

func (e DuplicateComponentError) Error() string {
	return fmt.Sprintf("entity %d already has component %s", e.Entity, e.Name)
}

// MissingComponentError is returned by RemoveComponent when the entity does
// not currently carry a component of that type.
type MissingComponentError struct {
	Entity EntityID
	Name   string
}

func (e MissingComponentError) Error() string {
	return fmt.Sprintf("entity %d has no component %s", e.Entity, e.Name)
}

// UnregisteredResourceError is returned by any resource operation issued
// before RegisterResource for that type.
type UnregisteredResourceError struct{ TypeName string }

func (e UnregisteredResourceError) Error() string {
	return fmt.Sprintf("resource not registered: %s", e.TypeName)
}

// ResourceAlreadyRegisteredError is returned by a repeat RegisterResource
// call for the same type.
type ResourceAlreadyRegisteredError struct{ TypeName string }

func (e ResourceAlreadyRegisteredError) Error() string {
	return fmt.Sprintf("resource already registered: %s", e.TypeName)
}

// DuplicateStageError is returned when adding a stage whose name already
// exists at the same pipeline nesting level.
type DuplicateStageError struct{ Name string }

func (e DuplicateStageError) Error() string {
	return fmt.Sprintf("duplicate stage: %s", e.Name)
}

// StageNotFoundError is returned when a pipeline structural operation
// references a stage name that doesn't exist.
type StageNotFoundError struct{ Name string }

func (e StageNotFoundError) Error() string {
	return fmt.Sprintf("stage not found: %s", e.Name)
}

// IDSpaceExhaustedError is returned, unwrapped, when the 32-bit entity ID
// space is exhausted.
type IDSpaceExhaustedError struct{}

func (e IDSpaceExhaustedError) Error() string { return "entity ID space exhausted" }

// LockedRegistryError is returned when a structural operation (AddComponent,
// RemoveComponent, CreateEntity, DestroyEntity, Spawn) is attempted while a
// query iteration holds the registry's iteration lock.
type LockedRegistryError struct{}

func (e LockedRegistryError) Error() string { return "registry is locked for iteration" }

// EntityRelationError is returned by SetParent when the child entity
// already has a parent registered.
type EntityRelationError struct {
	Child, Parent, Existing EntityID
}

func (e EntityRelationError) Error() string {
	return fmt.Sprintf("entity %d already has parent %d (attempted new parent %d)", e.Child, e.Existing, e.Parent)
}

// SystemError wraps an error returned by a system's Process method, for
// logging by the pipeline. It unwraps to the original error.
type SystemError struct {
	Stage  string
	System string
	Err    error
}

func (e SystemError) Error() string {
	return fmt.Sprintf("system %q in stage %q failed: %v", e.System, e.Stage, e.Err)
}

func (e SystemError) Unwrap() error { return e.Err }

func errTooManyComponents(typeName string) error {
	return fmt.Errorf("cannot register component %s: maximum of %d component types reached", typeName, componentCapacity)
}
