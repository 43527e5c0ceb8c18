package sample

import (
	"cmp"
	"fmt"

	"github.com/xtxerr/keysample/internal/aggstore"
)

// Exact exposes accumulated per-key values from an aggregate store.
type Exact[K cmp.Ordered] struct {
	store aggstore.Store[K]
	unit  int64
}

// NewExact creates an Exact sampler over store. A nil store gets a fresh
// B-tree. unit must be positive.
func NewExact[K cmp.Ordered](store aggstore.Store[K], unit int64) *Exact[K] {
	e := newExact(store, unit)
	return &e
}

func newExact[K cmp.Ordered](store aggstore.Store[K], unit int64) Exact[K] {
	if unit <= 0 {
		panic(fmt.Sprintf("sample: metric units per sample must be positive, got %d", unit))
	}
	if store == nil {
		store = aggstore.NewBTree[K]()
	}
	return Exact[K]{store: store, unit: unit}
}

// GetMetric returns the accumulated value for key, or 0 if it is not tracked.
func (e *Exact[K]) GetMetric(key K) int64 {
	v, ok := e.store.Get(key)
	if !ok {
		return 0
	}
	return v
}

// Unit returns the sample unit (metric units per sample).
func (e *Exact[K]) Unit() int64 {
	return e.unit
}

// Len returns the number of tracked keys.
func (e *Exact[K]) Len() int {
	return e.store.Len()
}

// Store returns the underlying aggregate store for range and rank queries.
func (e *Exact[K]) Store() aggstore.Store[K] {
	return e.store
}

// apply adds delta to key and erases the entry if it collapses to zero.
func (e *Exact[K]) apply(key K, delta int64) int64 {
	v := e.store.Add(key, delta)
	if v == 0 {
		e.store.Erase(key)
	}
	return v
}
