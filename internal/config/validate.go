package config

import (
	"errors"
	"fmt"

	kserrors "github.com/xtxerr/keysample/internal/errors"
	"github.com/xtxerr/keysample/internal/expiry"
	"github.com/xtxerr/keysample/internal/logging"
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Sampler.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("sampler: %w", err))
	}

	if err := c.Shards.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("shards: %w", err))
	}

	if err := c.Report.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("report: %w", err))
	}

	if err := c.Export.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("export: %w", err))
	}

	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the sampler configuration.
func (c *SamplerConfig) Validate() error {
	var errs []error

	if c.MetricUnitsPerSample <= 0 {
		errs = append(errs, fmt.Errorf("metric_units_per_sample %d: %w", c.MetricUnitsPerSample, kserrors.ErrInvalidUnit))
	}

	if c.ExpiryWindow <= 0 {
		errs = append(errs, fmt.Errorf("expiry_window must be positive: %w", kserrors.ErrInvalidInterval))
	}

	if _, err := expiry.ParseKind(c.Queue); err != nil {
		errs = append(errs, fmt.Errorf("queue: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the shards configuration.
func (c *ShardsConfig) Validate() error {
	var errs []error

	if c.Count <= 0 {
		errs = append(errs, kserrors.NewInvalidValue("count", c.Count, "must be positive"))
	}

	if c.RequestBuffer < 0 {
		errs = append(errs, kserrors.NewInvalidValue("request_buffer", c.RequestBuffer, "must not be negative"))
	}

	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll_interval must be positive: %w", kserrors.ErrInvalidInterval))
	}

	if err := c.Backpressure.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("backpressure: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the backpressure configuration.
func (c *BackpressureConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	var errs []error

	t := []struct {
		name  string
		value float64
	}{
		{"warning", c.Warning},
		{"critical", c.Critical},
		{"emergency", c.Emergency},
	}
	for _, th := range t {
		if th.value <= 0 || th.value > 1 {
			errs = append(errs, kserrors.NewInvalidValue(th.name, th.value, "must be in (0, 1]"))
		}
	}

	if c.Warning >= c.Critical || c.Critical >= c.Emergency {
		errs = append(errs, kserrors.NewValidation("thresholds", "must satisfy warning < critical < emergency"))
	}

	if c.Hysteresis < 0 || c.Hysteresis >= c.Warning {
		errs = append(errs, kserrors.NewInvalidValue("hysteresis", c.Hysteresis, "must be in [0, warning)"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the report configuration.
func (c *ReportConfig) Validate() error {
	var errs []error

	if c.Interval <= 0 {
		errs = append(errs, fmt.Errorf("interval must be positive: %w", kserrors.ErrInvalidInterval))
	}

	if c.TopKeys < 0 {
		errs = append(errs, kserrors.NewInvalidValue("top_keys", c.TopKeys, "must not be negative"))
	}

	if c.PercentileAccuracy <= 0 || c.PercentileAccuracy >= 1 {
		errs = append(errs, kserrors.NewValidation("percentile_accuracy", "must be between 0 and 1"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the export configuration.
func (c *ExportConfig) Validate() error {
	var errs []error

	if c.Enabled && c.Dir == "" {
		errs = append(errs, kserrors.NewMissingField("dir"))
	}

	validCompression := map[string]bool{
		"snappy": true,
		"zstd":   true,
		"lz4":    true,
		"gzip":   true,
		"none":   true,
		"":       true, // Empty means none
	}
	if !validCompression[c.Compression] {
		errs = append(errs, kserrors.NewValidation("compression", "must be one of: snappy, zstd, lz4, gzip, none"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the logging configuration.
func (c *LoggingConfig) Validate() error {
	var errs []error

	if _, err := logging.ParseLevel(c.Level); err != nil {
		errs = append(errs, kserrors.NewValidation("level", err.Error()))
	}

	switch c.Format {
	case "text", "json", "auto", "":
	default:
		errs = append(errs, kserrors.NewValidation("format", "must be one of: text, json, auto"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
