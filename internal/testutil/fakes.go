// Package testutil provides deterministic clocks and random sources for
// sampler tests, plus helpers for tests that spawn goroutines.
package testutil

import (
	"sync"
	"time"
)

// Epoch is the default start time of a FakeClock.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// FakeClock is a manually driven clock. It is safe for concurrent use.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock creates a clock reading Epoch.
func NewFakeClock() *FakeClock {
	return &FakeClock{now: Epoch}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Set moves the clock to t.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// At returns Epoch plus d, for building expirations relative to a fresh clock.
func At(d time.Duration) time.Time {
	return Epoch.Add(d)
}

// FixedSource always returns the same value.
type FixedSource struct {
	Value float64
}

// Float64 returns s.Value.
func (s FixedSource) Float64() float64 {
	return s.Value
}

// SequenceSource returns its values in order, cycling when exhausted.
type SequenceSource struct {
	mu     sync.Mutex
	values []float64
	next   int
	calls  int
}

// NewSequenceSource creates a source cycling through values.
func NewSequenceSource(values ...float64) *SequenceSource {
	if len(values) == 0 {
		values = []float64{0}
	}
	return &SequenceSource{values: values}
}

// Float64 returns the next value in the sequence.
func (s *SequenceSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.values[s.next]
	s.next = (s.next + 1) % len(s.values)
	s.calls++
	return v
}

// Calls returns how many values were drawn.
func (s *SequenceSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
