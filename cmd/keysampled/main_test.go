package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xtxerr/keysample/internal/accounting"
	"github.com/xtxerr/keysample/internal/config"
	"github.com/xtxerr/keysample/internal/export"
	"github.com/xtxerr/keysample/internal/testutil"
)

func testSetup(t *testing.T) (*accounting.Accountant, *testutil.FakeClock, *bytes.Buffer, *slog.Logger) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Sampler.MetricUnitsPerSample = 1
	cfg.Sampler.ExpiryWindow = time.Minute
	cfg.Sampler.Queue = "heap"
	cfg.Shards.Count = 2
	cfg.Shards.PollInterval = time.Hour

	clock := testutil.NewFakeClock()
	acct := accounting.New(cfg, accounting.WithClock(clock))
	if err := acct.Start(testutil.Context(t)); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { acct.Stop() })

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return acct, clock, &buf, log
}

func writeWorkload(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workload.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write workload: %v", err)
	}
	return path
}

func TestReplay(t *testing.T) {
	acct, clock, buf, log := testSetup(t)
	ctx := context.Background()

	path := writeWorkload(t, `# two keys
a 100
b 7 10s
a -40
`)

	if err := replay(ctx, acct, path, log); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !strings.Contains(buf.String(), "replay complete") {
		t.Errorf("expected completion log, got %q", buf.String())
	}

	if v, _ := acct.GetMetric(ctx, "a"); v != 60 {
		t.Errorf("expected a=60, got %d", v)
	}

	// b carries its own ttl, a uses the one minute window.
	clock.Advance(10 * time.Second)
	if v, _ := acct.GetMetric(ctx, "b"); v != 0 {
		t.Errorf("expected b to expire after 10s, got %d", v)
	}
	if v, _ := acct.GetMetric(ctx, "a"); v != 60 {
		t.Errorf("expected a=60 before the window ends, got %d", v)
	}

	clock.Advance(time.Minute)
	if v, _ := acct.GetMetric(ctx, "a"); v != 0 {
		t.Errorf("expected a to expire after the window, got %d", v)
	}
}

func TestReplay_Errors(t *testing.T) {
	acct, _, _, log := testSetup(t)
	ctx := context.Background()

	if err := replay(ctx, acct, filepath.Join(t.TempDir(), "missing"), log); err == nil {
		t.Error("expected error for a missing workload file")
	}

	path := writeWorkload(t, "a 1\nbroken line here now\n")
	err := replay(ctx, acct, path, log)
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("expected parse error on line 2, got %v", err)
	}

	if err := replay(ctx, acct, "", log); err != nil {
		t.Errorf("empty path should be a no-op, got %v", err)
	}
}

func TestLogReportAndExport(t *testing.T) {
	acct, _, buf, log := testSetup(t)
	ctx := context.Background()

	acct.Add(ctx, "heavy", 1000)
	acct.Add(ctx, "light", 3)

	r, err := acct.Report(ctx)
	if err != nil {
		t.Fatalf("report: %v", err)
	}

	logReport(log, r)
	out := buf.String()
	for _, want := range []string{"load report", "keys=2", "sum=1003", "pressure=normal", "key=heavy"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}

	dir := t.TempDir()
	if err := writeExport(config.ExportConfig{Dir: dir, Compression: "snappy"}, r, log); err != nil {
		t.Fatalf("export: %v", err)
	}

	files, _ := filepath.Glob(filepath.Join(dir, "*.parquet"))
	if len(files) != 1 {
		t.Fatalf("expected 1 export file, got %d", len(files))
	}

	rd, err := export.NewReader(files[0])
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer rd.Close()

	if rd.NumRows() != 2 {
		t.Errorf("expected 2 rows, got %d", rd.NumRows())
	}
}

func TestInitLogging(t *testing.T) {
	if err := initLogging(config.LoggingConfig{Level: "debug", Format: "json"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := initLogging(config.LoggingConfig{Level: "loud", Format: "text"}); err == nil {
		t.Error("expected error for unknown level")
	}
}
