// Package summary condenses a snapshot of tracked keys into a load
// distribution: basic statistics, DDSketch percentiles and the heaviest keys.
package summary

import (
	"container/heap"
	"fmt"
	"math"
	"sort"

	"github.com/DataDog/sketches-go/ddsketch"

	"github.com/xtxerr/keysample/internal/types"
)

// Builder accumulates per-key values into a Summary.
type Builder struct {
	count int64
	sum   int64
	min   int64
	max   int64

	sketch *ddsketch.DDSketch

	topN int
	top  topHeap
}

// NewBuilder creates a Builder with the given percentile relative accuracy
// that keeps the topN heaviest keys.
func NewBuilder(accuracy float64, topN int) (*Builder, error) {
	sketch, err := ddsketch.NewDefaultDDSketch(accuracy)
	if err != nil {
		return nil, fmt.Errorf("create sketch: %w", err)
	}
	return &Builder{
		min:    math.MaxInt64,
		max:    math.MinInt64,
		sketch: sketch,
		topN:   topN,
	}, nil
}

// Add adds one key's value.
func (b *Builder) Add(km types.KeyMetric) {
	b.count++
	b.sum += km.Metric

	if km.Metric < b.min {
		b.min = km.Metric
	}
	if km.Metric > b.max {
		b.max = km.Metric
	}

	// The sketch only rejects NaN and infinities.
	_ = b.sketch.Add(float64(km.Metric))

	if b.topN <= 0 {
		return
	}
	if len(b.top) < b.topN {
		heap.Push(&b.top, km)
	} else if weight(km) > weight(b.top[0]) {
		b.top[0] = km
		heap.Fix(&b.top, 0)
	}
}

// AddAll adds every entry.
func (b *Builder) AddAll(entries []types.KeyMetric) {
	for i := range entries {
		b.Add(entries[i])
	}
}

// Result returns the summary of everything added so far.
func (b *Builder) Result() types.Summary {
	result := types.Summary{
		Keys: b.count,
		Sum:  b.sum,
	}

	if b.count == 0 {
		return result
	}

	result.Min = b.min
	result.Max = b.max
	result.Avg = float64(b.sum) / float64(b.count)

	p50, _ := b.sketch.GetValueAtQuantile(0.50)
	p90, _ := b.sketch.GetValueAtQuantile(0.90)
	p95, _ := b.sketch.GetValueAtQuantile(0.95)
	p99, _ := b.sketch.GetValueAtQuantile(0.99)
	result.SetPercentiles(p50, p90, p95, p99)

	result.Top = make([]types.KeyMetric, len(b.top))
	copy(result.Top, b.top)
	sort.Slice(result.Top, func(i, j int) bool {
		wi, wj := weight(result.Top[i]), weight(result.Top[j])
		if wi != wj {
			return wi > wj
		}
		return result.Top[i].Key < result.Top[j].Key
	})

	return result
}

// Summarize builds a summary of entries in one call.
func Summarize(entries []types.KeyMetric, accuracy float64, topN int) (types.Summary, error) {
	b, err := NewBuilder(accuracy, topN)
	if err != nil {
		return types.Summary{}, err
	}
	b.AddAll(entries)
	return b.Result(), nil
}

// weight ranks keys by absolute value.
func weight(km types.KeyMetric) uint64 {
	if km.Metric < 0 {
		return uint64(-(km.Metric + 1)) + 1
	}
	return uint64(km.Metric)
}

// topHeap is a min-heap on weight so the lightest retained key is at the root.
type topHeap []types.KeyMetric

func (h topHeap) Len() int { return len(h) }

func (h topHeap) Less(i, j int) bool {
	wi, wj := weight(h[i]), weight(h[j])
	if wi != wj {
		return wi < wj
	}
	return h[i].Key > h[j].Key
}

func (h topHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *topHeap) Push(x any) {
	*h = append(*h, x.(types.KeyMetric))
}

func (h *topHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
