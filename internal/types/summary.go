package types

// Summary describes how tracked values are distributed over keys.
type Summary struct {
	// Basic statistics (always present)
	Keys int64   // Number of tracked keys
	Sum  int64   // Sum of all values
	Min  int64   // Smallest value
	Max  int64   // Largest value
	Avg  float64 // Average value (Sum / Keys)

	// Percentiles over per-key values (nil if there were no keys)
	P50 *float64
	P90 *float64
	P95 *float64
	P99 *float64

	// Top holds the heaviest keys by absolute value, heaviest first.
	Top []KeyMetric
}

// IsEmpty returns true if no keys were summarized.
func (s *Summary) IsEmpty() bool {
	return s.Keys == 0
}

// HasPercentiles returns true if percentile data is available.
func (s *Summary) HasPercentiles() bool {
	return s.P50 != nil
}

// SetPercentiles sets all percentile values.
func (s *Summary) SetPercentiles(p50, p90, p95, p99 float64) {
	s.P50 = &p50
	s.P90 = &p90
	s.P95 = &p95
	s.P99 = &p99
}
