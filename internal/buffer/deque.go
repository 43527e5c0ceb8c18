// Package buffer provides the ring-backed FIFO used for pending expirations.
package buffer

// Deque is a growable circular buffer.
//
// Unlike a fixed ring, pushes never drop: when the buffer is full its backing
// slice doubles. It is not synchronized; a Deque belongs to a single owner.
type Deque[T any] struct {
	data  []T
	head  int // Oldest element position
	count int // Current number of elements

	// Statistics
	pushCount int64
	popCount  int64
	growCount int64
}

const minCapacity = 16

// New creates a Deque with room for capacity elements before growing.
func New[T any](capacity int) *Deque[T] {
	if capacity < minCapacity {
		capacity = minCapacity
	}
	return &Deque[T]{
		data: make([]T, capacity),
	}
}

// PushBack appends v at the back.
func (d *Deque[T]) PushBack(v T) {
	if d.data == nil {
		d.data = make([]T, minCapacity)
	}
	if d.count == len(d.data) {
		d.grow()
	}

	idx := (d.head + d.count) % len(d.data)
	d.data[idx] = v
	d.count++
	d.pushCount++
}

// Front returns the oldest element without removing it.
// Returns false if the deque is empty.
func (d *Deque[T]) Front() (T, bool) {
	if d.count == 0 {
		var zero T
		return zero, false
	}
	return d.data[d.head], true
}

// Back returns the newest element without removing it.
// Returns false if the deque is empty.
func (d *Deque[T]) Back() (T, bool) {
	if d.count == 0 {
		var zero T
		return zero, false
	}
	idx := (d.head + d.count - 1) % len(d.data)
	return d.data[idx], true
}

// PopFront removes and returns the oldest element.
// Returns false if the deque is empty.
func (d *Deque[T]) PopFront() (T, bool) {
	var zero T
	if d.count == 0 {
		return zero, false
	}

	v := d.data[d.head]
	d.data[d.head] = zero // Clear for GC
	d.head = (d.head + 1) % len(d.data)
	d.count--
	d.popCount++

	return v, true
}

// At returns the i-th element counting from the front.
func (d *Deque[T]) At(i int) T {
	if i < 0 || i >= d.count {
		panic("buffer: index out of range")
	}
	return d.data[(d.head+i)%len(d.data)]
}

// Len returns the number of elements.
func (d *Deque[T]) Len() int {
	return d.count
}

// Cap returns the current capacity of the backing slice.
func (d *Deque[T]) Cap() int {
	return len(d.data)
}

// IsEmpty returns true if the deque is empty.
func (d *Deque[T]) IsEmpty() bool {
	return d.count == 0
}

// Clear removes all elements and keeps the allocated capacity.
func (d *Deque[T]) Clear() {
	var zero T
	for i := range d.data {
		d.data[i] = zero
	}
	d.head = 0
	d.count = 0
}

// grow doubles the backing slice, unrolling the ring so head is at 0.
func (d *Deque[T]) grow() {
	next := make([]T, len(d.data)*2)
	n := copy(next, d.data[d.head:])
	copy(next[n:], d.data[:d.head])
	d.data = next
	d.head = 0
	d.growCount++
}

// Stats returns deque statistics.
func (d *Deque[T]) Stats() Stats {
	return Stats{
		Capacity:  len(d.data),
		Count:     d.count,
		PushCount: d.pushCount,
		PopCount:  d.popCount,
		GrowCount: d.growCount,
	}
}

// Stats holds deque statistics.
type Stats struct {
	Capacity  int
	Count     int
	PushCount int64
	PopCount  int64
	GrowCount int64
}
