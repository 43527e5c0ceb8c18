// Package expiry holds the pending-expiration queues used by the transient
// sampler. An entry records the reversal of a delta that was applied to the
// aggregate store, to be replayed once its expiration time has passed.
package expiry

import (
	"fmt"
	"time"

	"github.com/xtxerr/keysample/internal/errors"
)

// Entry is a pending reversal.
type Entry[K any] struct {
	Expiration time.Time
	Key        K
	// Delta is the negation of the delta that was applied.
	Delta int64
}

// Queue orders pending reversals for the expiration sweep.
type Queue[K any] interface {
	// Push adds an entry.
	Push(e Entry[K])
	// Peek returns the entry the sweep should look at next.
	Peek() (Entry[K], bool)
	// Pop removes and returns the entry Peek would return.
	Pop() (Entry[K], bool)
	// Len returns the number of pending entries.
	Len() int
}

// Kind selects a Queue implementation.
type Kind string

const (
	// KindFIFO expects non-decreasing expirations from the caller.
	KindFIFO Kind = "fifo"
	// KindHeap orders entries by expiration regardless of insertion order.
	KindHeap Kind = "heap"
)

// ParseKind parses a queue kind; the empty string means KindFIFO.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindFIFO, "":
		return KindFIFO, nil
	case KindHeap:
		return KindHeap, nil
	default:
		return "", fmt.Errorf("%q: %w", s, errors.ErrInvalidQueue)
	}
}

// NewQueue creates a queue of the given kind.
func NewQueue[K any](kind Kind) Queue[K] {
	if kind == KindHeap {
		return NewHeap[K]()
	}
	return NewFIFO[K]()
}
