// Package backpressure tracks how full a shard's request queue is and
// classifies it into pressure levels.
//
// A Controller only observes. Callers decide what to do with a level; the
// accountant logs level changes and reports them, it never sheds updates.
package backpressure

import (
	"sync"
	"sync/atomic"

	"github.com/xtxerr/keysample/internal/config"
)

// Level represents the current backpressure level.
type Level int

const (
	// LevelNormal - queue mostly empty.
	LevelNormal Level = iota

	// LevelWarning - the shard is falling behind.
	LevelWarning

	// LevelCritical - callers are likely to block on enqueue soon.
	LevelCritical

	// LevelEmergency - the queue is effectively full.
	LevelEmergency
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelNormal:
		return "normal"
	case LevelWarning:
		return "warning"
	case LevelCritical:
		return "critical"
	case LevelEmergency:
		return "emergency"
	default:
		return "unknown"
	}
}

// Gauge is a bounded queue whose fill level can be sampled.
type Gauge interface {
	Len() int
	Cap() int
}

// Controller manages backpressure levels based on queue utilization.
type Controller struct {
	mu sync.Mutex

	config config.BackpressureConfig
	gauge  Gauge

	// Current state
	level     atomic.Int32
	lastLevel Level
	lastUsage float64

	// Statistics
	stats Stats

	// Level change callback
	onLevelChange func(old, new Level, usage float64)
}

// Stats holds backpressure statistics.
type Stats struct {
	CurrentLevel   Level
	Usage          float64 // Queue usage at the last check
	LevelChanges   int64
	WarningCount   int64
	CriticalCount  int64
	EmergencyCount int64
}

// New creates a controller watching gauge.
func New(cfg config.BackpressureConfig, gauge Gauge) *Controller {
	return &Controller{
		config: cfg,
		gauge:  gauge,
	}
}

// SetOnLevelChange sets the callback for level changes. The callback runs
// on the goroutine calling Check.
func (c *Controller) SetOnLevelChange(fn func(old, new Level, usage float64)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onLevelChange = fn
}

// Check samples the gauge and updates the level.
// This should be called periodically.
func (c *Controller) Check() Level {
	if !c.config.Enabled {
		return LevelNormal
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	usage := c.usage()
	c.lastUsage = usage

	// Determine new level with hysteresis
	newLevel := c.determineLevel(usage)

	if newLevel != c.lastLevel {
		c.setLevel(newLevel, usage)
	}

	return newLevel
}

func (c *Controller) usage() float64 {
	capacity := c.gauge.Cap()
	if capacity <= 0 {
		return 0
	}
	return float64(c.gauge.Len()) / float64(capacity)
}

// determineLevel determines the backpressure level based on usage.
func (c *Controller) determineLevel(usage float64) Level {
	cfg := c.config

	// Going up (increasing pressure)
	if usage >= cfg.Emergency {
		return LevelEmergency
	}
	if usage >= cfg.Critical {
		return LevelCritical
	}
	if usage >= cfg.Warning {
		return LevelWarning
	}

	// Going down (decreasing pressure) - apply hysteresis
	switch c.lastLevel {
	case LevelEmergency:
		if usage < cfg.Emergency-cfg.Hysteresis {
			return LevelCritical
		}
		return LevelEmergency
	case LevelCritical:
		if usage < cfg.Critical-cfg.Hysteresis {
			return LevelWarning
		}
		return LevelCritical
	case LevelWarning:
		if usage < cfg.Warning-cfg.Hysteresis {
			return LevelNormal
		}
		return LevelWarning
	default:
		return LevelNormal
	}
}

// setLevel updates the current level and fires callback.
func (c *Controller) setLevel(newLevel Level, usage float64) {
	oldLevel := c.lastLevel
	c.lastLevel = newLevel
	c.level.Store(int32(newLevel))
	c.stats.LevelChanges++

	switch newLevel {
	case LevelWarning:
		c.stats.WarningCount++
	case LevelCritical:
		c.stats.CriticalCount++
	case LevelEmergency:
		c.stats.EmergencyCount++
	}

	if c.onLevelChange != nil {
		c.onLevelChange(oldLevel, newLevel, usage)
	}
}

// CurrentLevel returns the current backpressure level.
func (c *Controller) CurrentLevel() Level {
	return Level(c.level.Load())
}

// IsEnabled returns whether monitoring is enabled.
func (c *Controller) IsEnabled() bool {
	return c.config.Enabled
}

// Stats returns current statistics.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.CurrentLevel = c.CurrentLevel()
	s.Usage = c.lastUsage
	return s
}
