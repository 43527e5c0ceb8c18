package backpressure

import (
	"testing"

	"github.com/xtxerr/keysample/internal/config"
)

type fakeGauge struct {
	n, capacity int
}

func (g *fakeGauge) Len() int { return g.n }
func (g *fakeGauge) Cap() int { return g.capacity }

func testConfig() config.BackpressureConfig {
	return config.BackpressureConfig{
		Enabled:    true,
		Warning:    0.50,
		Critical:   0.80,
		Emergency:  0.95,
		Hysteresis: 0.10,
	}
}

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{LevelNormal, "normal"},
		{LevelWarning, "warning"},
		{LevelCritical, "critical"},
		{LevelEmergency, "emergency"},
		{Level(42), "unknown"},
	}

	for _, tt := range tests {
		if tt.level.String() != tt.expected {
			t.Errorf("level %d: expected %s, got %s", tt.level, tt.expected, tt.level.String())
		}
	}
}

func TestController_Check(t *testing.T) {
	g := &fakeGauge{capacity: 100}
	c := New(testConfig(), g)

	if level := c.Check(); level != LevelNormal {
		t.Errorf("expected normal, got %s", level)
	}

	steps := []struct {
		n    int
		want Level
	}{
		{50, LevelWarning},
		{80, LevelCritical},
		{95, LevelEmergency},
		{100, LevelEmergency},
	}
	for _, s := range steps {
		g.n = s.n
		if level := c.Check(); level != s.want {
			t.Errorf("at %d%%: expected %s, got %s", s.n, s.want, level)
		}
	}

	if c.CurrentLevel() != LevelEmergency {
		t.Errorf("expected emergency, got %s", c.CurrentLevel())
	}
}

func TestController_Hysteresis(t *testing.T) {
	g := &fakeGauge{n: 55, capacity: 100}
	c := New(testConfig(), g)

	if level := c.Check(); level != LevelWarning {
		t.Fatalf("expected warning at 55%%, got %s", level)
	}

	// Below the threshold but inside the hysteresis band.
	g.n = 45
	if level := c.Check(); level != LevelWarning {
		t.Errorf("expected warning at 45%%, got %s", level)
	}

	g.n = 39
	if level := c.Check(); level != LevelNormal {
		t.Errorf("expected normal at 39%%, got %s", level)
	}
}

func TestController_StepsDownOneLevel(t *testing.T) {
	g := &fakeGauge{n: 99, capacity: 100}
	c := New(testConfig(), g)
	c.Check()

	g.n = 0
	if level := c.Check(); level != LevelCritical {
		t.Errorf("expected critical after emptying, got %s", level)
	}
	if level := c.Check(); level != LevelWarning {
		t.Errorf("expected warning, got %s", level)
	}
	if level := c.Check(); level != LevelNormal {
		t.Errorf("expected normal, got %s", level)
	}
}

func TestController_Callback(t *testing.T) {
	g := &fakeGauge{capacity: 10}
	c := New(testConfig(), g)

	var changes [][2]Level
	c.SetOnLevelChange(func(old, new Level, usage float64) {
		changes = append(changes, [2]Level{old, new})
	})

	g.n = 8
	c.Check()
	c.Check()

	if len(changes) != 1 {
		t.Fatalf("expected 1 change, got %d", len(changes))
	}
	if changes[0] != [2]Level{LevelNormal, LevelCritical} {
		t.Errorf("unexpected change %v", changes[0])
	}

	stats := c.Stats()
	if stats.LevelChanges != 1 || stats.CriticalCount != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.Usage != 0.8 {
		t.Errorf("expected usage=0.8, got %v", stats.Usage)
	}
}

func TestController_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	c := New(cfg, &fakeGauge{n: 100, capacity: 100})

	if c.IsEnabled() {
		t.Error("controller should be disabled")
	}
	if level := c.Check(); level != LevelNormal {
		t.Errorf("disabled controller should stay normal, got %s", level)
	}
}

func TestController_UnbufferedQueue(t *testing.T) {
	c := New(testConfig(), &fakeGauge{})

	if level := c.Check(); level != LevelNormal {
		t.Errorf("zero capacity should read as normal, got %s", level)
	}
}
