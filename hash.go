package silo

import "hash/fnv"

// stringHash computes the per-name hash contribution folded together into
// an archetype's 64-bit hash via XOR. FNV-1a is the standard library's
// string hash and nothing in the example pack offers a third-party
// alternative for this narrow, purely-mechanical concern, so hash/fnv is
// used directly (see DESIGN.md).
//
// Results are cached per name since a component's canonical name never
// changes for the lifetime of the process and the hash is recomputed
// whenever an archetype is grown or shrunk by one component.
func stringHash(name string) uint64 {
	if h, ok := nameHashCache[name]; ok {
		return h
	}
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(name))
	h := hasher.Sum64()
	nameHashCache[name] = h
	return h
}
