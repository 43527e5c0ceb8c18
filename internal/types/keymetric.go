package types

import (
	"sort"
	"time"
)

// KeyMetric is a tracked key with its accumulated value at snapshot time.
type KeyMetric struct {
	Key    string
	Metric int64
	Shard  int // Owning shard
}

// Snapshot is a point-in-time copy of every tracked key.
type Snapshot struct {
	TakenAtMs int64 // Unix timestamp in milliseconds
	Entries   []KeyMetric
}

// NewSnapshot creates an empty snapshot stamped with t.
func NewSnapshot(t time.Time, capacity int) *Snapshot {
	return &Snapshot{
		TakenAtMs: t.UnixMilli(),
		Entries:   make([]KeyMetric, 0, capacity),
	}
}

// Add appends an entry.
func (s *Snapshot) Add(km KeyMetric) {
	s.Entries = append(s.Entries, km)
}

// Len returns the number of entries.
func (s *Snapshot) Len() int {
	return len(s.Entries)
}

// TakenAt returns the snapshot time.
func (s *Snapshot) TakenAt() time.Time {
	return time.UnixMilli(s.TakenAtMs)
}

// Total returns the sum of all entries.
func (s *Snapshot) Total() int64 {
	var total int64
	for i := range s.Entries {
		total += s.Entries[i].Metric
	}
	return total
}

// SortByKey orders entries by key.
func (s *Snapshot) SortByKey() {
	sort.Slice(s.Entries, func(i, j int) bool {
		return s.Entries[i].Key < s.Entries[j].Key
	})
}
