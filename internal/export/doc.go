// Package export writes accountant snapshots to Parquet files for offline
// analysis of key load, and reads them back.
//
// Exports are reports only. Nothing reads a snapshot back into a sampler.
package export
