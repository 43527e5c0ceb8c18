package accounting

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/xtxerr/keysample/internal/backpressure"
	"github.com/xtxerr/keysample/internal/config"
	"github.com/xtxerr/keysample/internal/errors"
	"github.com/xtxerr/keysample/internal/sample"
	"github.com/xtxerr/keysample/internal/testutil"
)

func testConfig(unit int64) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Sampler.MetricUnitsPerSample = unit
	cfg.Sampler.ExpiryWindow = 30 * time.Second
	cfg.Shards.Count = 4
	cfg.Shards.PollInterval = time.Hour
	cfg.Report.TopKeys = 2
	return cfg
}

func startAccountant(t *testing.T, cfg *config.Config, opts ...Option) *Accountant {
	t.Helper()

	a := New(cfg, opts...)
	if err := a.Start(testutil.Context(t)); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() {
		if err := a.Stop(); err != nil {
			t.Errorf("stop: %v", err)
		}
	})
	return a
}

func TestAccountant_NotRunning(t *testing.T) {
	a := New(testConfig(1))
	ctx := context.Background()

	if _, err := a.Add(ctx, "k", 1); !errors.Is(err, errors.ErrNotRunning) {
		t.Errorf("expected ErrNotRunning before start, got %v", err)
	}
	if err := a.Wait(); !errors.Is(err, errors.ErrNotRunning) {
		t.Errorf("expected ErrNotRunning from Wait before start, got %v", err)
	}
	if err := a.Stop(); err != nil {
		t.Errorf("stop before start should be a no-op, got %v", err)
	}
}

func TestAccountant_StartTwice(t *testing.T) {
	a := startAccountant(t, testConfig(1))

	if err := a.Start(context.Background()); !errors.Is(err, errors.ErrAlreadyRunning) {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}
	if !a.IsRunning() {
		t.Error("accountant should be running")
	}
}

func TestAccountant_StoppedRejectsRequests(t *testing.T) {
	a := New(testConfig(1))
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := a.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if a.IsRunning() {
		t.Error("accountant should not be running after stop")
	}
	if _, err := a.GetMetric(context.Background(), "k"); !errors.Is(err, errors.ErrNotRunning) {
		t.Errorf("expected ErrNotRunning after stop, got %v", err)
	}
}

func TestAccountant_AddAndGet(t *testing.T) {
	a := startAccountant(t, testConfig(1))
	ctx := context.Background()

	for _, m := range []int64{100, 50, -30} {
		if got, err := a.Add(ctx, "users/1", m); err != nil || got != m {
			t.Errorf("Add(%d): expected %d, got %d (err=%v)", m, m, got, err)
		}
	}

	v, err := a.GetMetric(ctx, "users/1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v != 120 {
		t.Errorf("expected 120, got %d", v)
	}

	if v, _ := a.GetMetric(ctx, "missing"); v != 0 {
		t.Errorf("expected 0 for missing key, got %d", v)
	}
}

func TestAccountant_ShardFor(t *testing.T) {
	a := New(testConfig(1))

	seen := make(map[int]bool)
	for i := 0; i < 200; i++ {
		key := fmt.Sprintf("key-%d", i)
		s := a.ShardFor(key)
		if s < 0 || s >= a.ShardCount() {
			t.Fatalf("shard %d out of range", s)
		}
		if s != a.ShardFor(key) {
			t.Fatalf("routing for %s is not stable", key)
		}
		seen[s] = true
	}

	if len(seen) != a.ShardCount() {
		t.Errorf("expected keys on all %d shards, got %d", a.ShardCount(), len(seen))
	}
}

func TestAccountant_AddForExpires(t *testing.T) {
	clock := testutil.NewFakeClock()
	a := startAccountant(t, testConfig(1), WithClock(clock))
	ctx := context.Background()

	if _, err := a.AddFor(ctx, "a", 100, 10*time.Second); err != nil {
		t.Fatalf("add: %v", err)
	}
	// Non-positive ttl falls back to the 30s window.
	if _, err := a.AddFor(ctx, "b", 100, 0); err != nil {
		t.Fatalf("add: %v", err)
	}

	clock.Advance(10 * time.Second)

	if v, _ := a.GetMetric(ctx, "a"); v != 0 {
		t.Errorf("expected a expired, got %d", v)
	}
	if v, _ := a.GetMetric(ctx, "b"); v != 100 {
		t.Errorf("expected b=100 before its window, got %d", v)
	}

	clock.Advance(20 * time.Second)
	if err := a.Poll(ctx); err != nil {
		t.Fatalf("poll: %v", err)
	}

	snap, err := a.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Len() != 0 {
		t.Errorf("expected empty snapshot, got %d entries", snap.Len())
	}
}

func TestAccountant_AddAndExpire(t *testing.T) {
	clock := testutil.NewFakeClock()
	a := startAccountant(t, testConfig(1), WithClock(clock))
	ctx := context.Background()

	a.AddAndExpire(ctx, "A", 100, testutil.At(10*time.Second))
	a.AddAndExpire(ctx, "B", 100, testutil.At(20*time.Second))

	clock.Set(testutil.At(15 * time.Second))
	a.Poll(ctx)

	if v, _ := a.GetMetric(ctx, "A"); v != 0 {
		t.Errorf("expected A=0, got %d", v)
	}
	if v, _ := a.GetMetric(ctx, "B"); v != 100 {
		t.Errorf("expected B=100, got %d", v)
	}
}

func TestAccountant_SmallUpdatesUseShardSource(t *testing.T) {
	cfg := testConfig(1000)
	a := startAccountant(t, cfg, WithSources(func(int) sample.Source {
		return testutil.FixedSource{Value: 0.5}
	}))
	ctx := context.Background()

	// Kept iff 0.5 < m/1000.
	if got, _ := a.Add(ctx, "k", 400); got != 0 {
		t.Errorf("expected discard, got %d", got)
	}
	if got, _ := a.Add(ctx, "k", 600); got != 1000 {
		t.Errorf("expected rounding to 1000, got %d", got)
	}
}

func TestAccountant_ConcurrentAdds(t *testing.T) {
	a := startAccountant(t, testConfig(1))
	ctx := context.Background()

	const (
		workers = 8
		perKey  = 500
	)

	gt := testutil.NewGoroutineTest(t)
	for w := 0; w < workers; w++ {
		gt.Go(func() error {
			for i := 0; i < perKey; i++ {
				key := fmt.Sprintf("k%d", i%10)
				if _, err := a.Add(ctx, key, 1); err != nil {
					return fmt.Errorf("worker %d add: %w", w, err)
				}
			}
			return nil
		})
	}
	gt.Wait()

	snap, err := a.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Len() != 10 {
		t.Errorf("expected 10 keys, got %d", snap.Len())
	}
	if snap.Total() != workers*perKey {
		t.Errorf("expected total=%d, got %d", workers*perKey, snap.Total())
	}
	for _, e := range snap.Entries {
		if e.Shard != a.ShardFor(e.Key) {
			t.Errorf("%s reported on shard %d, routed to %d", e.Key, e.Shard, a.ShardFor(e.Key))
		}
	}
}

func TestAccountant_SumRange(t *testing.T) {
	a := startAccountant(t, testConfig(1))
	ctx := context.Background()

	for i, k := range []string{"a", "b", "c", "d"} {
		a.Add(ctx, k, int64(i+1)*10)
	}

	got, err := a.SumRange(ctx, "b", "d")
	if err != nil {
		t.Fatalf("sum range: %v", err)
	}
	if got != 50 {
		t.Errorf("expected b+c=50, got %d", got)
	}
}

func TestAccountant_Report(t *testing.T) {
	a := startAccountant(t, testConfig(1))
	ctx := context.Background()

	a.Add(ctx, "small", 5)
	a.Add(ctx, "medium", 50)
	a.Add(ctx, "large", 500)

	report, err := a.Report(ctx)
	if err != nil {
		t.Fatalf("report: %v", err)
	}

	if report.Snapshot.Len() != 3 {
		t.Errorf("expected 3 entries, got %d", report.Snapshot.Len())
	}
	if report.Summary.Keys != 3 || report.Summary.Sum != 555 {
		t.Errorf("unexpected summary: keys=%d sum=%d", report.Summary.Keys, report.Summary.Sum)
	}
	if len(report.Summary.Top) != 2 || report.Summary.Top[0].Key != "large" {
		t.Errorf("expected top keys [large medium], got %+v", report.Summary.Top)
	}
	if len(report.Stats) != 4 {
		t.Errorf("expected stats for 4 shards, got %d", len(report.Stats))
	}

	var applied int64
	for _, s := range report.Stats {
		applied += s.Applied
	}
	if applied != 3 {
		t.Errorf("expected 3 applied updates, got %d", applied)
	}

	if len(report.Pressure) != 4 {
		t.Errorf("expected pressure for 4 shards, got %d", len(report.Pressure))
	}
}

func TestAccountant_CancelledContext(t *testing.T) {
	a := startAccountant(t, testConfig(1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Either the request is refused or it raced through; it must not hang.
	done := make(chan struct{})
	go func() {
		a.Add(ctx, "k", 1)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("request with cancelled context hung")
	}
}

func TestAccountant_RunStopsOnCancel(t *testing.T) {
	a := New(testConfig(1))
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Run(ctx)
	}()

	if err := testutil.Eventually(5*time.Second, 10*time.Millisecond, a.IsRunning); err != nil {
		t.Fatal(err)
	}
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestAccountant_Pressure(t *testing.T) {
	cfg := testConfig(1)
	cfg.Shards.Count = 1
	cfg.Shards.RequestBuffer = 4

	// Not started, so queued requests stay queued.
	a := New(cfg)
	sh := a.shards[0]
	for i := 0; i < 4; i++ {
		sh.reqs <- func(*shard) {}
	}
	sh.pressure.Check()

	p := a.Pressure()
	if len(p) != 1 {
		t.Fatalf("expected 1 shard, got %d", len(p))
	}
	if p[0].CurrentLevel != backpressure.LevelEmergency {
		t.Errorf("expected emergency with a full queue, got %s", p[0].CurrentLevel)
	}
	if p[0].Usage != 1 {
		t.Errorf("expected usage=1, got %v", p[0].Usage)
	}
}

func TestAccountant_StartStopConcurrent(t *testing.T) {
	for i := 0; i < 200; i++ {
		a := New(testConfig(1))
		ctx, cancel := context.WithCancel(context.Background())

		gt := testutil.NewGoroutineTest(t)
		gt.Go(func() error {
			a.Start(ctx)
			return nil
		})
		gt.Go(func() error {
			a.Stop()
			return nil
		})
		gt.Wait()

		// Whichever order they ran in, a final Stop must leave it stopped.
		if err := a.Stop(); err != nil {
			t.Fatalf("iteration %d: stop: %v", i, err)
		}
		if a.IsRunning() {
			t.Fatalf("iteration %d: accountant still running after stop", i)
		}
		cancel()
	}
}

func TestAccountant_ReportSurvivesCancelledCaller(t *testing.T) {
	cfg := testConfig(1)
	cfg.Shards.Count = 1
	a := startAccountant(t, cfg)
	ctx := context.Background()

	a.Add(ctx, "k", 10)

	// Hold the only shard so the report build has to wait.
	release := make(chan struct{})
	go call(ctx, a, a.shards[0], func(*shard) struct{} {
		<-release
		return struct{}{}
	})

	first, cancelFirst := context.WithCancel(ctx)
	firstErr := make(chan error, 1)
	go func() {
		_, err := a.Report(first)
		firstErr <- err
	}()

	second := make(chan error, 1)
	var secondReport Report
	go func() {
		r, err := a.Report(ctx)
		secondReport = r
		second <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancelFirst()

	select {
	case err := <-firstErr:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected the cancelled caller to see context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(release)

	select {
	case err := <-second:
		if err != nil {
			t.Fatalf("expected the live caller to get a report, got %v", err)
		}
		if secondReport.Summary.Sum != 10 {
			t.Errorf("expected sum=10, got %d", secondReport.Summary.Sum)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("live caller did not return")
	}
}
