// Package config loads and validates keysample configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	defaults "github.com/xtxerr/keysample/config"
)

// Config represents the complete keysample configuration.
type Config struct {
	// Sampler configures each shard's transient sampler.
	Sampler SamplerConfig `yaml:"sampler"`

	// Shards configures the sharded accountant.
	Shards ShardsConfig `yaml:"shards"`

	// Report configures load reports.
	Report ReportConfig `yaml:"report"`

	// Export configures Parquet snapshot export.
	Export ExportConfig `yaml:"export"`

	// Logging configures log output.
	Logging LoggingConfig `yaml:"logging"`
}

// SamplerConfig configures the transient sampler.
type SamplerConfig struct {
	// MetricUnitsPerSample is the rounding quantum for small updates.
	MetricUnitsPerSample int64 `yaml:"metric_units_per_sample"`

	// ExpiryWindow is the time to live of a sample when none is given.
	ExpiryWindow time.Duration `yaml:"expiry_window"`

	// Queue is the expiry queue kind: fifo or heap.
	Queue string `yaml:"queue"`

	// Seed seeds the shards' random sources. Zero picks a random seed.
	Seed uint64 `yaml:"seed"`
}

// ShardsConfig configures the sharded accountant.
type ShardsConfig struct {
	// Count is the number of shards.
	Count int `yaml:"count"`

	// RequestBuffer is the capacity of each shard's request channel.
	RequestBuffer int `yaml:"request_buffer"`

	// PollInterval is the expiration sweep interval.
	PollInterval time.Duration `yaml:"poll_interval"`

	// Backpressure configures request queue monitoring.
	Backpressure BackpressureConfig `yaml:"backpressure"`
}

// BackpressureConfig configures request queue monitoring. Levels are
// reported and logged; requests are never dropped.
type BackpressureConfig struct {
	// Enabled turns on monitoring.
	Enabled bool `yaml:"enabled"`

	// Warning threshold (0.0-1.0).
	Warning float64 `yaml:"warning"`

	// Critical threshold (0.0-1.0).
	Critical float64 `yaml:"critical"`

	// Emergency threshold (0.0-1.0).
	Emergency float64 `yaml:"emergency"`

	// Hysteresis below a threshold before the level drops.
	Hysteresis float64 `yaml:"hysteresis"`
}

// ReportConfig configures load reports.
type ReportConfig struct {
	// Interval is the report interval for the daemon.
	Interval time.Duration `yaml:"interval"`

	// TopKeys is the number of heaviest keys listed.
	TopKeys int `yaml:"top_keys"`

	// PercentileAccuracy is the DDSketch relative accuracy.
	PercentileAccuracy float64 `yaml:"percentile_accuracy"`
}

// ExportConfig configures Parquet snapshot export.
type ExportConfig struct {
	// Enabled writes a snapshot when the daemon stops.
	Enabled bool `yaml:"enabled"`

	// Dir is the output directory.
	Dir string `yaml:"dir"`

	// Compression is the codec: snappy, zstd, lz4, gzip, none.
	Compression string `yaml:"compression"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`

	// Format is text, json, or auto (json unless stdout is a terminal).
	Format string `yaml:"format"`
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	return Parse(data)
}

// Parse parses YAML configuration on top of the defaults.
func Parse(data []byte) (*Config, error) {
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Sampler: SamplerConfig{
			MetricUnitsPerSample: defaults.DefaultMetricUnitsPerSample,
			ExpiryWindow:         defaults.DefaultExpiryWindow,
			Queue:                defaults.DefaultExpiryQueue,
		},
		Shards: ShardsConfig{
			Count:         defaults.DefaultShardCount,
			RequestBuffer: defaults.DefaultShardRequestBuffer,
			PollInterval:  defaults.DefaultShardPollInterval,
			Backpressure: BackpressureConfig{
				Enabled:    defaults.DefaultBackpressureEnabled,
				Warning:    defaults.DefaultBackpressureWarning,
				Critical:   defaults.DefaultBackpressureCritical,
				Emergency:  defaults.DefaultBackpressureEmergency,
				Hysteresis: defaults.DefaultBackpressureHysteresis,
			},
		},
		Report: ReportConfig{
			Interval:           defaults.DefaultReportInterval,
			TopKeys:            defaults.DefaultReportTopKeys,
			PercentileAccuracy: defaults.DefaultPercentileAccuracy,
		},
		Export: ExportConfig{
			Enabled:     false,
			Dir:         defaults.DefaultExportDir,
			Compression: defaults.DefaultExportCompression,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}
