package summary

import (
	"fmt"
	"math"
	"testing"

	"github.com/xtxerr/keysample/internal/types"
)

func TestBuilder_Basic(t *testing.T) {
	b, err := NewBuilder(0.01, 3)
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}

	for i := 1; i <= 100; i++ {
		b.Add(types.KeyMetric{Key: fmt.Sprintf("k%03d", i), Metric: int64(i)})
	}

	result := b.Result()

	if result.Keys != 100 {
		t.Errorf("expected keys=100, got %d", result.Keys)
	}
	if result.Sum != 5050 {
		t.Errorf("expected sum=5050, got %d", result.Sum)
	}
	if result.Min != 1 {
		t.Errorf("expected min=1, got %d", result.Min)
	}
	if result.Max != 100 {
		t.Errorf("expected max=100, got %d", result.Max)
	}
	if math.Abs(result.Avg-50.5) > 0.001 {
		t.Errorf("expected avg=50.5, got %f", result.Avg)
	}

	if !result.HasPercentiles() {
		t.Fatal("should have percentiles")
	}

	// P50 should be around 50
	if math.Abs(*result.P50-50.0) > 2.0 {
		t.Errorf("expected P50 near 50, got %f", *result.P50)
	}

	// P99 should be around 99
	if math.Abs(*result.P99-99.0) > 2.0 {
		t.Errorf("expected P99 near 99, got %f", *result.P99)
	}
}

func TestBuilder_TopKeys(t *testing.T) {
	b, err := NewBuilder(0.01, 3)
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}

	for i := 1; i <= 50; i++ {
		b.Add(types.KeyMetric{Key: fmt.Sprintf("k%02d", i), Metric: int64(i)})
	}
	b.Add(types.KeyMetric{Key: "neg", Metric: -500})

	top := b.Result().Top
	want := []string{"neg", "k50", "k49"}

	if len(top) != len(want) {
		t.Fatalf("expected %d top keys, got %d", len(want), len(top))
	}
	for i, k := range want {
		if top[i].Key != k {
			t.Errorf("top[%d]: expected %s, got %s", i, k, top[i].Key)
		}
	}
}

func TestBuilder_Empty(t *testing.T) {
	b, err := NewBuilder(0.01, 5)
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}

	result := b.Result()
	if !result.IsEmpty() {
		t.Error("expected empty summary")
	}
	if result.HasPercentiles() {
		t.Error("empty summary should not have percentiles")
	}
	if result.Min != 0 || result.Max != 0 {
		t.Errorf("empty summary should have zero min/max, got %d/%d", result.Min, result.Max)
	}
}

func TestBuilder_NegativeValues(t *testing.T) {
	result, err := Summarize([]types.KeyMetric{
		{Key: "a", Metric: -100},
		{Key: "b", Metric: -100},
		{Key: "c", Metric: -100},
	}, 0.01, 0)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}

	if result.Min != -100 || result.Max != -100 {
		t.Errorf("expected min=max=-100, got %d/%d", result.Min, result.Max)
	}
	if math.Abs(*result.P50+100) > 2.0 {
		t.Errorf("expected P50 near -100, got %f", *result.P50)
	}
	if len(result.Top) != 0 {
		t.Errorf("topN=0 should keep no keys, got %d", len(result.Top))
	}
}

func TestSummarize_InvalidAccuracy(t *testing.T) {
	if _, err := Summarize(nil, 0, 1); err == nil {
		t.Error("expected error for zero accuracy")
	}
}

func TestWeight(t *testing.T) {
	tests := []struct {
		metric int64
		want   uint64
	}{
		{0, 0},
		{5, 5},
		{-5, 5},
		{math.MinInt64, 1 << 63},
	}

	for _, tt := range tests {
		if got := weight(types.KeyMetric{Metric: tt.metric}); got != tt.want {
			t.Errorf("weight(%d): expected %d, got %d", tt.metric, tt.want, got)
		}
	}
}
