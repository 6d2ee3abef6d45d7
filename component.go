package silo

import (
	"reflect"
	"unsafe"

	"github.com/TheBitDrifter/mask"
)

// ComponentID identifies a registered component type. It is assigned once
// per type, in registration order, the first time DefineComponent[T],
// AddComponent[T] or RemoveComponent[T] is called for that type.
type ComponentID uint32

// componentCapacity bounds how many distinct component types a process may
// register. lazyecs (teishoku) enforces the same kind of hard cap
// (maxComponentTypes) for exactly the same reason: component masks are
// fixed-width, so the type space must be bounded up front.
const componentCapacity = 256

// componentVTable is the type-erased handle for one component type: a set of
// operations over one concrete component type T, built once per type and
// referred to by every column storing that type. Downcasting to T is only
// ever performed at call sites that carry T as a static type parameter
// (DefineComponent[T], columnAt[T]); the vtable itself never does it.
type componentVTable struct {
	id       ComponentID
	name     string
	hash     uint64
	elemSize uintptr
	drop     func(ptr unsafe.Pointer) // nil if T has no Teardown hook
}

var (
	typeToID      = map[reflect.Type]ComponentID{}
	vtablesByID   = make([]*componentVTable, 0, componentCapacity)
	nameHashCache = map[string]uint64{}
)

// teardownHook is the optional interface a component or resource value may
// implement to be notified when its owning row/cell is discarded.
type teardownHook interface {
	Teardown()
}

var teardownType = reflect.TypeOf((*teardownHook)(nil)).Elem()

// componentID returns the ComponentID for T, registering it on first use.
func componentID[T any]() ComponentID {
	var zero T
	typ := reflect.TypeOf(zero)
	if id, ok := typeToID[typ]; ok {
		return id
	}
	if len(vtablesByID) >= componentCapacity {
		panic(errTooManyComponents(typ.String()))
	}
	id := ComponentID(len(vtablesByID))
	name := canonicalName(typ)
	vt := &componentVTable{
		id:       id,
		name:     name,
		hash:     stringHash(name),
		elemSize: typ.Size(),
	}
	if reflect.PointerTo(typ).Implements(teardownType) {
		vt.drop = func(ptr unsafe.Pointer) {
			v := (*T)(ptr)
			any(v).(teardownHook).Teardown()
		}
	}
	typeToID[typ] = id
	vtablesByID = append(vtablesByID, vt)
	return id
}

func vtableFor(id ComponentID) *componentVTable {
	return vtablesByID[id]
}

func canonicalName(t reflect.Type) string {
	if pkg := t.PkgPath(); pkg != "" {
		return pkg + "." + t.Name()
	}
	return t.String()
}

// componentMaskBit returns the bit this component occupies in a mask.Mask
// used for the query fast-path (see query.go). Bits are assigned 1:1 with
// ComponentID, so the mask and the canonical hash always agree on identity.
func componentMaskBit(id ComponentID) uint32 {
	return uint32(id)
}

// maskFor builds the mask.Mask fast-path key for a set of component IDs.
func maskFor(ids ...ComponentID) mask.Mask {
	var m mask.Mask
	for _, id := range ids {
		m.Mark(componentMaskBit(id))
	}
	return m
}
