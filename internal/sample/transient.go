package sample

import (
	"cmp"
	"fmt"
	"math"
	"time"

	"github.com/xtxerr/keysample/internal/aggstore"
	"github.com/xtxerr/keysample/internal/expiry"
)

// Transient is an Exact sampler that randomly rounds small updates and can
// reverse accepted samples once they expire.
type Transient[K cmp.Ordered] struct {
	Exact[K]

	queue expiry.Queue[K]
	rnd   Source
	clock Clock

	stats Stats
}

// Stats holds sampler counters.
type Stats struct {
	Updates   int64 // Non-zero Add calls
	Rounded   int64 // Small updates rounded up to a full unit
	Discarded int64 // Small updates rounded down to nothing
	Applied   int64 // Deltas written to the store
	Expired   int64 // Reversals applied by Poll
	Keys      int   // Tracked keys
	Pending   int   // Queued reversals
}

// NewTransient creates a Transient sampler with a FIFO expiry queue.
// Nil store, rnd or clock get a B-tree, a randomly seeded PCG source and
// the system clock respectively.
func NewTransient[K cmp.Ordered](store aggstore.Store[K], unit int64, rnd Source, clock Clock) *Transient[K] {
	return NewTransientWithQueue(store, unit, rnd, clock, expiry.NewFIFO[K]())
}

// NewTransientWithQueue creates a Transient sampler with a custom expiry queue.
func NewTransientWithQueue[K cmp.Ordered](store aggstore.Store[K], unit int64, rnd Source, clock Clock, queue expiry.Queue[K]) *Transient[K] {
	if rnd == nil {
		rnd = NewSource(0)
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if queue == nil {
		queue = expiry.NewFIFO[K]()
	}
	return &Transient[K]{
		Exact: newExact(store, unit),
		queue: queue,
		rnd:   rnd,
		clock: clock,
	}
}

// roll reports whether a small update of magnitude mag is kept.
func (t *Transient[K]) roll(mag int64) bool {
	return t.rnd.Float64() < float64(mag)/float64(t.unit)
}

// Add records metric under key and returns the delta actually applied.
//
// Updates with magnitude below the sample unit are kept with probability
// |metric|/unit and then applied as a full unit carrying metric's sign, so
// the expected applied delta equals metric. Larger updates are applied as is.
// A zero return means nothing was written.
func (t *Transient[K]) Add(key K, metric int64) int64 {
	if metric == 0 {
		return 0
	}
	t.stats.Updates++

	mag := metric
	if mag < 0 {
		mag = -mag
		if mag < 0 {
			mag = math.MaxInt64
		}
	}

	if mag < t.unit {
		if !t.roll(mag) {
			t.stats.Discarded++
			return 0
		}
		t.stats.Rounded++
		if metric < 0 {
			metric = -t.unit
		} else {
			metric = t.unit
		}
	}

	t.apply(key, metric)
	t.stats.Applied++
	return metric
}

// AddAndExpire is Add, and schedules the applied delta to be reversed by the
// first Poll at or after expiration.
//
// With the default FIFO queue, expiration must not be earlier than any
// expiration passed before. An out-of-order entry is reversed late: only
// after every entry queued ahead of it has expired.
func (t *Transient[K]) AddAndExpire(key K, metric int64, expiration time.Time) int64 {
	x := t.Add(key, metric)
	if x != 0 {
		t.queue.Push(expiry.Entry[K]{Expiration: expiration, Key: key, Delta: -x})
	}
	return x
}

// Poll reverses every queued sample whose expiration is not after now.
func (t *Transient[K]) Poll() {
	now := t.clock.Now()
	for {
		e, ok := t.queue.Peek()
		if !ok || e.Expiration.After(now) {
			return
		}
		if e.Delta == 0 {
			panic(fmt.Sprintf("sample: queued reversal for key %v has zero delta", e.Key))
		}

		t.apply(e.Key, e.Delta)
		t.queue.Pop()
		t.stats.Expired++
	}
}

// Pending returns the number of queued reversals.
func (t *Transient[K]) Pending() int {
	return t.queue.Len()
}

// Now returns the sampler clock's current time.
func (t *Transient[K]) Now() time.Time {
	return t.clock.Now()
}

// Stats returns the sampler counters.
func (t *Transient[K]) Stats() Stats {
	s := t.stats
	s.Keys = t.Len()
	s.Pending = t.queue.Len()
	return s
}
