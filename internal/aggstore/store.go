// Package aggstore provides the ordered key -> accumulated metric container
// the samplers write into.
//
// A Store only accumulates. It never drops an entry on its own; callers that
// want zero-valued entries gone erase them when Add returns 0.
package aggstore

import (
	"cmp"
)

// Store maps keys to signed accumulated values.
type Store[K cmp.Ordered] interface {
	// Get returns the accumulated value for key and whether an entry exists.
	Get(key K) (int64, bool)
	// Add adds delta to key's entry, creating it if absent, and returns
	// the new accumulated value.
	Add(key K, delta int64) int64
	// Erase removes key's entry if present.
	Erase(key K)
	// Len returns the number of entries.
	Len() int
}
