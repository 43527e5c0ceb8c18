// Package accounting runs sharded transient samplers, each confined to its
// own goroutine, behind a concurrency-safe API.
//
// A key always maps to the same shard. Each shard loop owns its sampler,
// store, random source and expiry queue outright; callers reach them only by
// sending requests over the shard's channel. The loop also runs the
// expiration sweep on a ticker.
package accounting

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/xtxerr/keysample/internal/aggstore"
	"github.com/xtxerr/keysample/internal/backpressure"
	"github.com/xtxerr/keysample/internal/config"
	"github.com/xtxerr/keysample/internal/errors"
	"github.com/xtxerr/keysample/internal/expiry"
	"github.com/xtxerr/keysample/internal/logging"
	"github.com/xtxerr/keysample/internal/sample"
	"github.com/xtxerr/keysample/internal/summary"
	"github.com/xtxerr/keysample/internal/types"
)

// Accountant routes metric updates to per-shard samplers.
type Accountant struct {
	config *config.Config
	clock  sample.Clock
	log    *slog.Logger

	shards []*shard

	// State. mu guards started, cancel and group.
	mu      sync.Mutex
	started bool
	running atomic.Bool
	cancel  context.CancelFunc
	group   *errgroup.Group
	stopped chan struct{}
	waitErr error
	once    sync.Once

	reports singleflight.Group
}

// Option customizes an Accountant.
type Option func(*options)

type options struct {
	clock   sample.Clock
	sources func(shard int) sample.Source
}

// WithClock sets the clock shared by all shards.
func WithClock(clock sample.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// WithSources sets a per-shard random source factory.
func WithSources(fn func(shard int) sample.Source) Option {
	return func(o *options) { o.sources = fn }
}

// New creates an accountant. The configuration must already be valid.
func New(cfg *config.Config, opts ...Option) *Accountant {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	o := options{clock: sample.SystemClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.sources == nil {
		seed := cfg.Sampler.Seed
		o.sources = func(i int) sample.Source {
			if seed == 0 {
				return sample.NewSource(0)
			}
			return sample.NewSource(seed + uint64(i))
		}
	}

	kind, err := expiry.ParseKind(cfg.Sampler.Queue)
	if err != nil {
		kind = expiry.KindFIFO
	}

	a := &Accountant{
		config:  cfg,
		clock:   o.clock,
		log:     logging.Component("accounting"),
		shards:  make([]*shard, cfg.Shards.Count),
		stopped: make(chan struct{}),
	}

	for i := range a.shards {
		store := aggstore.NewBTree[string]()
		reqs := make(chan request, cfg.Shards.RequestBuffer)
		a.shards[i] = &shard{
			id:    i,
			store: store,
			sampler: sample.NewTransientWithQueue(
				store,
				cfg.Sampler.MetricUnitsPerSample,
				o.sources(i),
				o.clock,
				expiry.NewQueue[string](kind),
			),
			reqs:         reqs,
			pressure:     backpressure.New(cfg.Shards.Backpressure, requestQueue(reqs)),
			pollInterval: cfg.Shards.PollInterval,
			log:          a.log.With("shard", i),
		}
		a.shards[i].pressure.SetOnLevelChange(a.shards[i].onPressure)
	}

	return a
}

// Start launches the shard loops. They stop when ctx is cancelled or Stop
// is called. An accountant can be started once.
func (a *Accountant) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return errors.ErrAlreadyRunning
	}

	ctx, a.cancel = context.WithCancel(ctx)
	a.group, ctx = errgroup.WithContext(ctx)

	for _, sh := range a.shards {
		a.group.Go(func() error {
			return sh.run(ctx)
		})
	}

	a.running.Store(true)
	a.started = true
	a.mu.Unlock()

	// Closes a.stopped once the loops exit, even if ctx is cancelled and
	// nobody calls Wait, so pending callers are released.
	go a.Wait()

	a.log.Info("accountant started",
		"shards", len(a.shards),
		"unit", a.config.Sampler.MetricUnitsPerSample,
		"queue", a.config.Sampler.Queue,
		"poll_interval", a.config.Shards.PollInterval)

	return nil
}

// Wait blocks until every shard loop has returned.
func (a *Accountant) Wait() error {
	a.mu.Lock()
	started, group := a.started, a.group
	a.mu.Unlock()

	if !started {
		return errors.ErrNotRunning
	}
	a.once.Do(func() {
		a.waitErr = group.Wait()
		a.running.Store(false)
		close(a.stopped)
		a.log.Info("accountant stopped")
	})
	return a.waitErr
}

// Stop cancels the shard loops and waits for them.
func (a *Accountant) Stop() error {
	a.mu.Lock()
	started, cancel := a.started, a.cancel
	a.mu.Unlock()

	if !started {
		return nil
	}
	cancel()
	return a.Wait()
}

// Run starts the accountant and blocks until ctx is cancelled.
func (a *Accountant) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	return a.Wait()
}

// IsRunning returns whether the shard loops are running.
func (a *Accountant) IsRunning() bool {
	return a.running.Load()
}

// ShardCount returns the number of shards.
func (a *Accountant) ShardCount() int {
	return len(a.shards)
}

// ShardFor returns the shard index that owns key.
func (a *Accountant) ShardFor(key string) int {
	return int(xxhash.Sum64String(key) % uint64(len(a.shards)))
}

func (a *Accountant) shardFor(key string) *shard {
	return a.shards[a.ShardFor(key)]
}

// Add records metric under key; see sample.Transient.Add.
func (a *Accountant) Add(ctx context.Context, key string, metric int64) (int64, error) {
	return call(ctx, a, a.shardFor(key), func(s *shard) int64 {
		return s.sampler.Add(key, metric)
	})
}

// AddAndExpire records metric under key and reverses it at expiration.
// Expirations sent to one shard should not decrease; AddFor guarantees that.
func (a *Accountant) AddAndExpire(ctx context.Context, key string, metric int64, expiration time.Time) (int64, error) {
	return call(ctx, a, a.shardFor(key), func(s *shard) int64 {
		return s.sampler.AddAndExpire(key, metric, expiration)
	})
}

// AddFor records metric under key for ttl. The expiration is taken from the
// shard's clock inside the shard loop, so a constant ttl keeps the shard's
// queue ordered. A non-positive ttl uses the configured expiry window.
func (a *Accountant) AddFor(ctx context.Context, key string, metric int64, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		ttl = a.config.Sampler.ExpiryWindow
	}
	return call(ctx, a, a.shardFor(key), func(s *shard) int64 {
		return s.sampler.AddAndExpire(key, metric, s.sampler.Now().Add(ttl))
	})
}

// GetMetric returns key's accumulated value after sweeping expired samples.
func (a *Accountant) GetMetric(ctx context.Context, key string) (int64, error) {
	return call(ctx, a, a.shardFor(key), func(s *shard) int64 {
		s.poll()
		return s.sampler.GetMetric(key)
	})
}

// Poll sweeps every shard now.
func (a *Accountant) Poll(ctx context.Context) error {
	for _, sh := range a.shards {
		_, err := call(ctx, a, sh, func(s *shard) struct{} {
			s.poll()
			return struct{}{}
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// SumRange returns the sum of values for keys in [begin, end) over all shards.
func (a *Accountant) SumRange(ctx context.Context, begin, end string) (int64, error) {
	var total int64
	for _, sh := range a.shards {
		sum, err := call(ctx, a, sh, func(s *shard) int64 {
			s.poll()
			return s.store.SumRange(begin, end)
		})
		if err != nil {
			return 0, err
		}
		total += sum
	}
	return total, nil
}

// Snapshot copies every tracked key after sweeping expired samples.
func (a *Accountant) Snapshot(ctx context.Context) (*types.Snapshot, error) {
	snap := types.NewSnapshot(a.clock.Now(), 0)
	for _, sh := range a.shards {
		entries, err := call(ctx, a, sh, func(s *shard) []types.KeyMetric {
			s.poll()
			out := make([]types.KeyMetric, 0, s.store.Len())
			s.store.Scan(func(key string, v int64) bool {
				out = append(out, types.KeyMetric{Key: key, Metric: v, Shard: s.id})
				return true
			})
			return out
		})
		if err != nil {
			return nil, err
		}
		snap.Entries = append(snap.Entries, entries...)
	}
	snap.SortByKey()
	return snap, nil
}

// Stats returns every shard's sampler counters.
func (a *Accountant) Stats(ctx context.Context) ([]sample.Stats, error) {
	stats := make([]sample.Stats, len(a.shards))
	for i, sh := range a.shards {
		st, err := call(ctx, a, sh, func(s *shard) sample.Stats {
			return s.sampler.Stats()
		})
		if err != nil {
			return nil, err
		}
		stats[i] = st
	}
	return stats, nil
}

// Pressure returns every shard's request queue backpressure statistics.
// It does not go through the shard loops and works on a stopped accountant.
func (a *Accountant) Pressure() []backpressure.Stats {
	out := make([]backpressure.Stats, len(a.shards))
	for i, sh := range a.shards {
		out[i] = sh.pressure.Stats()
	}
	return out
}

// Report is a snapshot with its load summary.
type Report struct {
	Snapshot *types.Snapshot
	Summary  types.Summary
	Stats    []sample.Stats
	Pressure []backpressure.Stats
}

// reportTimeout bounds a shared report build.
const reportTimeout = 30 * time.Second

// Report builds a load report. Concurrent callers share one build, which
// runs detached from any single caller's cancellation; each caller still
// stops waiting when its own ctx is done.
func (a *Accountant) Report(ctx context.Context) (Report, error) {
	ch := a.reports.DoChan("report", func() (interface{}, error) {
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
		defer cancel()
		return a.buildReport(buildCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Report{}, res.Err
		}
		return res.Val.(Report), nil
	case <-ctx.Done():
		return Report{}, errors.Wrap(ctx.Err(), "await report")
	}
}

func (a *Accountant) buildReport(ctx context.Context) (Report, error) {
	snap, err := a.Snapshot(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("snapshot: %w", err)
	}

	sum, err := summary.Summarize(snap.Entries, a.config.Report.PercentileAccuracy, a.config.Report.TopKeys)
	if err != nil {
		return Report{}, fmt.Errorf("summarize: %w", err)
	}

	stats, err := a.Stats(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("stats: %w", err)
	}

	return Report{Snapshot: snap, Summary: sum, Stats: stats, Pressure: a.Pressure()}, nil
}

// call runs fn on sh's loop and returns its result. The result travels over
// a channel so an abandoned request never writes to caller memory.
func call[T any](ctx context.Context, a *Accountant, sh *shard, fn func(*shard) T) (T, error) {
	var zero T
	if !a.running.Load() {
		return zero, errors.ErrNotRunning
	}
	if err := ctx.Err(); err != nil {
		return zero, errors.Wrap(err, "enqueue request")
	}

	out := make(chan T, 1)
	req := func(s *shard) {
		out <- fn(s)
	}

	select {
	case sh.reqs <- req:
	case <-ctx.Done():
		return zero, errors.Wrap(ctx.Err(), "enqueue request")
	case <-a.stopped:
		return zero, errors.ErrNotRunning
	}

	select {
	case v := <-out:
		return v, nil
	case <-ctx.Done():
		return zero, errors.Wrap(ctx.Err(), "await request")
	case <-a.stopped:
		select {
		case v := <-out:
			return v, nil
		default:
			return zero, errors.ErrNotRunning
		}
	}
}
