package silo

import "unsafe"

// column is a densely packed, ordered sequence of values of one component
// type, stored as a raw byte buffer and
// addressed only through the functions below plus the vtable that describes
// its element type. This is the type-erased handle: every operation it
// exposes (drop one, swap-remove a row, copy a row to another column, clone
// an empty column of the same element type) is available without the
// caller ever naming the concrete type T — only columnAt[T] recovers T, and
// only at call sites that already know T statically (query.go).
type column struct {
	vt   *componentVTable
	data []byte // len(data) == rows*elemSize, except when elemSize==0
	rows int     // tracked explicitly so zero-sized (marker) components still work
}

// zeroSizedRow is the address handed out for every row of a zero-sized
// component type, since such a column never allocates any backing bytes.
var zeroSizedRow byte

func newColumn(vt *componentVTable) *column {
	return &column{vt: vt}
}

func (c *column) length() int {
	return c.rows
}

func (c *column) rowPtr(row int) unsafe.Pointer {
	if c.vt.elemSize == 0 {
		return unsafe.Pointer(&zeroSizedRow)
	}
	off := uintptr(row) * c.vt.elemSize
	return unsafe.Pointer(&c.data[off])
}

// growTo extends the column with zeroed rows so that row is a valid index:
// if row >= the current length, the column grows with zeroed slots up to
// and including row. Zeroing is the closest safe Go equivalent to
// "uninitialized"; callers are still responsible for writing every row they
// extend into before it is read through a query.
func (c *column) growTo(row int) {
	if row < c.rows {
		return
	}
	need := (row + 1) * int(c.vt.elemSize)
	for len(c.data) < need {
		c.data = append(c.data, 0)
	}
	c.rows = row + 1
}

// set writes raw bytes into row, growing the column first if necessary.
func (c *column) set(row int, value unsafe.Pointer) {
	c.growTo(row)
	if c.vt.elemSize == 0 {
		return
	}
	copyBytes(c.rowPtr(row), value, c.vt.elemSize)
}

// swapRemove removes row, moving the formerly-last row into its place. If
// the element type carries a teardown hook it is invoked on the removed
// value first. Use this when the row's value is genuinely being discarded
// (DestroyEntity, or the dropped column of a RemoveComponent migration);
// use swapRemoveRelocated instead when the value has already been copied
// elsewhere and is still logically alive.
func (c *column) swapRemove(row int) {
	if c.vt.drop != nil {
		c.vt.drop(c.rowPtr(row))
	}
	c.swapRemoveRelocated(row)
}

// swapRemoveRelocated performs the same row removal as swapRemove but
// without invoking the element's teardown hook. Archetype migration calls
// copyTo to move a surviving column's value into the target archetype
// before freeing the source row; that value is now live in the target
// archetype, not discarded, so running its teardown hook here would tear
// down a value the caller still owns — a use-after-teardown bug.
func (c *column) swapRemoveRelocated(row int) {
	last := c.rows - 1
	if row != last && c.vt.elemSize != 0 {
		copyBytes(c.rowPtr(row), c.rowPtr(last), c.vt.elemSize)
	}
	if c.vt.elemSize != 0 {
		c.data = c.data[:uintptr(last)*c.vt.elemSize]
	}
	c.rows = last
}

// copyTo reads the value at srcRow and writes it at dstRow of dst, used
// during archetype migration. The source row is left logically live; the
// caller frees it immediately after via swapRemoveRelocated, so
// component values must be trivially relocatable (true of any Go value not
// holding a self-referential pointer into itself, which components never
// do).
func (c *column) copyTo(srcRow int, dst *column, dstRow int) {
	dst.growTo(dstRow)
	if c.vt.elemSize == 0 {
		return
	}
	copyBytes(dst.rowPtr(dstRow), c.rowPtr(srcRow), c.vt.elemSize)
}

// cloneEmpty allocates a fresh, empty column for the same element type.
func (c *column) cloneEmpty() *column {
	return newColumn(c.vt)
}

// dropAll invokes the teardown hook (if any) on every remaining row. Used
// when an archetype itself is torn down wholesale (registry teardown),
// rather than row by row via swapRemove.
func (c *column) dropAll() {
	if c.vt.drop == nil {
		return
	}
	for row := 0; row < c.rows; row++ {
		c.vt.drop(c.rowPtr(row))
	}
}

func copyBytes(dst, src unsafe.Pointer, size uintptr) {
	copy(unsafe.Slice((*byte)(dst), size), unsafe.Slice((*byte)(src), size))
}

// columnAt recovers a typed pointer to row of c. This is the one place a
// caller downcasts through the vtable's erased storage back to a concrete
// T; it is undefined behavior if T does not match the column's registered
// element type. Callers only ever reach this through ComponentDef[T],
// which carries T statically from DefineComponent[T]() through to every
// accessor.
func columnAt[T any](c *column, row int) *T {
	return (*T)(c.rowPtr(row))
}
