// Package config provides configuration defaults for keysample.
//
// This package defines all configurable constants with documented defaults.
// Users can override these values via config.yaml.
package config

import "time"

// =============================================================================
// Sampler Defaults
// =============================================================================

const (
	// DefaultMetricUnitsPerSample is the sample unit. Updates smaller than
	// this are randomly rounded to zero or one full unit.
	// Override via config: sampler.metric_units_per_sample
	DefaultMetricUnitsPerSample = 2000

	// DefaultExpiryWindow is how long a sample stays counted when the caller
	// gives no explicit time to live.
	// Override via config: sampler.expiry_window
	DefaultExpiryWindow = 2 * time.Minute

	// DefaultExpiryQueue is the pending-expiration queue kind.
	// "fifo" requires non-decreasing expirations; "heap" does not.
	// Override via config: sampler.queue
	DefaultExpiryQueue = "fifo"
)

// =============================================================================
// Shard Defaults
// =============================================================================

const (
	// DefaultShardCount is the number of independently owned samplers.
	// Override via config: shards.count
	DefaultShardCount = 4

	// DefaultShardRequestBuffer is the capacity of each shard's request channel.
	// Override via config: shards.request_buffer
	DefaultShardRequestBuffer = 1024

	// DefaultShardPollInterval is how often each shard runs its expiration sweep.
	// Override via config: shards.poll_interval
	DefaultShardPollInterval = 100 * time.Millisecond
)

// =============================================================================
// Backpressure Defaults
// =============================================================================

const (
	// DefaultBackpressureEnabled turns on request queue monitoring.
	// Override via config: shards.backpressure.enabled
	DefaultBackpressureEnabled = true

	// Request queue usage ratios at which a shard changes level.
	// Override via config: shards.backpressure.{warning,critical,emergency}
	DefaultBackpressureWarning   = 0.50
	DefaultBackpressureCritical  = 0.80
	DefaultBackpressureEmergency = 0.95

	// DefaultBackpressureHysteresis is how far usage must fall below a
	// threshold before the level drops.
	// Override via config: shards.backpressure.hysteresis
	DefaultBackpressureHysteresis = 0.10
)

// =============================================================================
// Report Defaults
// =============================================================================

const (
	// DefaultReportInterval is how often the daemon logs a load report.
	// Override via config: report.interval
	DefaultReportInterval = 10 * time.Second

	// DefaultReportTopKeys is how many of the heaviest keys a report lists.
	// Override via config: report.top_keys
	DefaultReportTopKeys = 10

	// DefaultPercentileAccuracy is the DDSketch relative accuracy (0.01 = 1%).
	// Override via config: report.percentile_accuracy
	DefaultPercentileAccuracy = 0.01
)

// =============================================================================
// Export Defaults
// =============================================================================

const (
	// DefaultExportDir is where snapshot Parquet files are written.
	// Override via config: export.dir
	DefaultExportDir = "./exports"

	// DefaultExportCompression is the Parquet compression codec.
	// Override via config: export.compression
	DefaultExportCompression = "zstd"
)
