package expiry

import (
	"github.com/xtxerr/keysample/internal/buffer"
)

// FIFO is a strict first-in first-out queue.
//
// Only the front entry is ever inspected, so expirations must be pushed in
// non-decreasing order. An entry pushed out of order is not lost; it expires
// once every entry queued before it has been popped.
type FIFO[K any] struct {
	entries *buffer.Deque[Entry[K]]
}

// NewFIFO creates an empty FIFO queue.
func NewFIFO[K any]() *FIFO[K] {
	return &FIFO[K]{entries: buffer.New[Entry[K]](64)}
}

func (q *FIFO[K]) Push(e Entry[K]) {
	q.entries.PushBack(e)
}

func (q *FIFO[K]) Peek() (Entry[K], bool) {
	return q.entries.Front()
}

func (q *FIFO[K]) Pop() (Entry[K], bool) {
	return q.entries.PopFront()
}

func (q *FIFO[K]) Len() int {
	return q.entries.Len()
}
