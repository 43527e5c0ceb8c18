package expiry

import (
	"container/heap"
)

// Heap is a min-heap on expiration time. Entries with equal expirations
// come out in insertion order, so for monotonic input it behaves exactly
// like FIFO at O(log n) per operation.
type Heap[K any] struct {
	items entryHeap[K]
	seq   uint64
}

// NewHeap creates an empty heap queue.
func NewHeap[K any]() *Heap[K] {
	return &Heap[K]{}
}

func (q *Heap[K]) Push(e Entry[K]) {
	heap.Push(&q.items, heapItem[K]{entry: e, seq: q.seq})
	q.seq++
}

func (q *Heap[K]) Peek() (Entry[K], bool) {
	if len(q.items) == 0 {
		return Entry[K]{}, false
	}
	return q.items[0].entry, true
}

func (q *Heap[K]) Pop() (Entry[K], bool) {
	if len(q.items) == 0 {
		return Entry[K]{}, false
	}
	item := heap.Pop(&q.items).(heapItem[K])
	return item.entry, true
}

func (q *Heap[K]) Len() int {
	return len(q.items)
}

type heapItem[K any] struct {
	entry Entry[K]
	seq   uint64
}

// entryHeap implements heap.Interface.
type entryHeap[K any] []heapItem[K]

func (h entryHeap[K]) Len() int { return len(h) }

func (h entryHeap[K]) Less(i, j int) bool {
	if h[i].entry.Expiration.Equal(h[j].entry.Expiration) {
		return h[i].seq < h[j].seq
	}
	return h[i].entry.Expiration.Before(h[j].entry.Expiration)
}

func (h entryHeap[K]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap[K]) Push(x any) {
	*h = append(*h, x.(heapItem[K]))
}

func (h *entryHeap[K]) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = heapItem[K]{}
	*h = old[:n-1]
	return item
}
