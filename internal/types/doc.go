// Package types defines the data exchanged between the accountant, load
// summaries and snapshot export.
//
// Key types:
//   - KeyMetric: one tracked key and its accumulated value
//   - Summary: distribution of tracked values across the keyspace
package types
