package aggstore

import (
	"cmp"

	"github.com/tidwall/btree"
)

type entry[K cmp.Ordered] struct {
	key   K
	value int64
}

// BTree is a Store backed by a B-tree ordered on key.
//
// Point operations are O(log n). The running total is kept incrementally;
// range sums and split keys walk the range. BTree is not synchronized.
type BTree[K cmp.Ordered] struct {
	tree  *btree.BTreeG[entry[K]]
	total int64
}

// NewBTree creates an empty BTree store.
func NewBTree[K cmp.Ordered]() *BTree[K] {
	less := func(a, b entry[K]) bool {
		return cmp.Less(a.key, b.key)
	}
	return &BTree[K]{
		tree: btree.NewBTreeGOptions(less, btree.Options{NoLocks: true}),
	}
}

func (s *BTree[K]) Get(key K) (int64, bool) {
	e, ok := s.tree.Get(entry[K]{key: key})
	if !ok {
		return 0, false
	}
	return e.value, true
}

func (s *BTree[K]) Add(key K, delta int64) int64 {
	e, _ := s.tree.Get(entry[K]{key: key})
	e.key = key
	e.value += delta
	s.tree.Set(e)
	s.total += delta
	return e.value
}

func (s *BTree[K]) Erase(key K) {
	if e, ok := s.tree.Delete(entry[K]{key: key}); ok {
		s.total -= e.value
	}
}

func (s *BTree[K]) Len() int {
	return s.tree.Len()
}

// Total returns the sum of all accumulated values.
func (s *BTree[K]) Total() int64 {
	return s.total
}

// SumRange returns the sum of values for keys in [begin, end).
func (s *BTree[K]) SumRange(begin, end K) int64 {
	var sum int64
	s.tree.Ascend(entry[K]{key: begin}, func(e entry[K]) bool {
		if cmp.Compare(e.key, end) >= 0 {
			return false
		}
		sum += e.value
		return true
	})
	return sum
}

// SplitKey walks keys in [begin, end) accumulating their values and returns
// the first key at which the running sum reaches offset. It returns false
// if the range sums to less than offset.
func (s *BTree[K]) SplitKey(begin, end K, offset int64) (K, bool) {
	var (
		sum   int64
		found K
		ok    bool
	)
	s.tree.Ascend(entry[K]{key: begin}, func(e entry[K]) bool {
		if cmp.Compare(e.key, end) >= 0 {
			return false
		}
		sum += e.value
		if sum >= offset {
			found, ok = e.key, true
			return false
		}
		return true
	})
	return found, ok
}

// Ascend calls fn for each entry with key >= pivot in ascending order
// until fn returns false.
func (s *BTree[K]) Ascend(pivot K, fn func(key K, value int64) bool) {
	s.tree.Ascend(entry[K]{key: pivot}, func(e entry[K]) bool {
		return fn(e.key, e.value)
	})
}

// Scan calls fn for every entry in ascending key order until fn returns false.
func (s *BTree[K]) Scan(fn func(key K, value int64) bool) {
	s.tree.Scan(func(e entry[K]) bool {
		return fn(e.key, e.value)
	})
}
