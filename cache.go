package silo

import "fmt"

// SimpleCache is a small name→index table, generic over the stored item.
// It backs Pipeline's stage-name index (pipeline.go), rebuilt wholesale via
// Clear+Register every time the stage list's shape changes rather than
// patched incrementally in place.
type SimpleCache[T any] struct {
	items       []T
	itemIndices map[string]int
	maxCapacity int
}

// NewSimpleCache constructs an empty cache bounded to cap entries.
func NewSimpleCache[T any](cap int) *SimpleCache[T] {
	return &SimpleCache[T]{
		itemIndices: make(map[string]int),
		maxCapacity: cap,
	}
}

// GetIndex returns the index registered under key, if any.
func (c *SimpleCache[T]) GetIndex(key string) (int, bool) {
	index, ok := c.itemIndices[key]
	return index, ok
}

// GetItem returns a pointer to the item at index.
func (c *SimpleCache[T]) GetItem(index int) *T {
	return &c.items[index]
}

// Register adds item under key, returning its index. It fails once the
// cache holds maxCapacity entries.
func (c *SimpleCache[T]) Register(key string, item T) (int, error) {
	if len(c.itemIndices) >= c.maxCapacity {
		return -1, fmt.Errorf("cache at maximum capacity (%d)", c.maxCapacity)
	}
	idx := len(c.items)
	c.itemIndices[key] = idx
	c.items = append(c.items, item)
	return idx, nil
}

// Clear empties the cache, ready for a fresh round of Register calls.
func (c *SimpleCache[T]) Clear() {
	c.items = c.items[:0]
	c.itemIndices = make(map[string]int)
}

// Len reports how many entries the cache currently holds.
func (c *SimpleCache[T]) Len() int { return len(c.items) }
