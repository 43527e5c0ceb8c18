// keysampled replays a metric update stream through the sharded key
// accountant and reports the resulting load distribution.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/xtxerr/keysample/internal/accounting"
	"github.com/xtxerr/keysample/internal/backpressure"
	"github.com/xtxerr/keysample/internal/config"
	"github.com/xtxerr/keysample/internal/errors"
	"github.com/xtxerr/keysample/internal/export"
	"github.com/xtxerr/keysample/internal/logging"
	"github.com/xtxerr/keysample/internal/workload"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// CLI flags
	cfgPath := flag.String("config", "config.yaml", "config file path")
	workloadPath := flag.String("workload", "", "workload file ('-' for stdin, empty to run until signalled)")
	exportDir := flag.String("export", "", "write a final snapshot to this directory (overrides config)")
	seed := flag.Uint64("seed", 0, "random seed (overrides config, 0 keeps config)")
	flag.Parse()

	// Load config
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg = config.DefaultConfig()
		} else {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
	}

	// CLI overrides
	if *exportDir != "" {
		cfg.Export.Enabled = true
		cfg.Export.Dir = *exportDir
	}
	if *seed != 0 {
		cfg.Sampler.Seed = *seed
	}

	if err := initLogging(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "init logging: %v\n", err)
		os.Exit(1)
	}
	log := logging.Component("keysampled")
	log.Info("starting", "version", Version,
		"shards", cfg.Shards.Count,
		"unit", cfg.Sampler.MetricUnitsPerSample,
		"expiry_window", cfg.Sampler.ExpiryWindow,
		"queue", cfg.Sampler.Queue)

	if err := run(cfg, *workloadPath, log); err != nil {
		log.Error("exiting", "error", err)
		os.Exit(1)
	}
}

func initLogging(cfg config.LoggingConfig) error {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}

	var jsonFormat bool
	switch strings.ToLower(cfg.Format) {
	case "json":
		jsonFormat = true
	case "text":
		jsonFormat = false
	default:
		jsonFormat = !term.IsTerminal(int(os.Stdout.Fd()))
	}

	logging.Init(level, jsonFormat)
	return nil
}

func run(cfg *config.Config, workloadPath string, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The accountant outlives the signal context so the final report and
	// export still see every shard.
	acct := accounting.New(cfg)
	if err := acct.Start(context.Background()); err != nil {
		return fmt.Errorf("start accountant: %w", err)
	}

	reporterDone := make(chan struct{})
	reportCtx, stopReports := context.WithCancel(ctx)
	go func() {
		defer close(reporterDone)
		reportLoop(reportCtx, acct, cfg.Report.Interval, log)
	}()

	replayErr := replay(ctx, acct, workloadPath, log)
	if replayErr == nil && workloadPath == "" {
		<-ctx.Done()
	}

	stopReports()
	<-reporterDone

	finalCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if r, err := acct.Report(finalCtx); err != nil {
		log.Warn("final report failed", "error", err)
	} else {
		logReport(log, r)
		if cfg.Export.Enabled {
			if err := writeExport(cfg.Export, r, log); err != nil {
				log.Warn("export failed", "error", err)
			}
		}
	}

	log.Info("shutting down")
	if err := acct.Stop(); err != nil {
		return fmt.Errorf("stop accountant: %w", err)
	}
	return replayErr
}

// replay feeds every workload update to acct. Updates without a ttl use the
// configured expiry window.
func replay(ctx context.Context, acct *accounting.Accountant, path string, log *slog.Logger) error {
	if path == "" {
		return nil
	}

	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open workload: %w", err)
		}
		defer f.Close()
		r = f
	}

	start := time.Now()
	var n int
	s := workload.NewScanner(r)
	for s.Scan() {
		u := s.Update()
		if _, err := acct.AddFor(ctx, u.Key, u.Delta, u.TTL); err != nil {
			if ctx.Err() != nil {
				log.Info("replay interrupted", "updates", n)
				return nil
			}
			return fmt.Errorf("replay line %d: %w", u.Line, err)
		}
		n++
	}
	if err := s.Err(); err != nil {
		return fmt.Errorf("read workload: %w", err)
	}

	log.Info("replay complete", "updates", n, "elapsed", time.Since(start))
	return nil
}

func reportLoop(ctx context.Context, acct *accounting.Accountant, interval time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r, err := acct.Report(ctx)
			if err != nil {
				if ctx.Err() == nil {
					log.Warn("report failed", "error", err)
				}
				continue
			}
			logReport(log, r)
		}
	}
}

func logReport(log *slog.Logger, r accounting.Report) {
	s := r.Summary

	var expired, pending int64
	for _, st := range r.Stats {
		expired += st.Expired
		pending += int64(st.Pending)
	}

	attrs := []any{
		"keys", s.Keys,
		"sum", s.Sum,
		"min", s.Min,
		"max", s.Max,
		"expired", expired,
		"pending", pending,
	}
	if s.HasPercentiles() {
		attrs = append(attrs, "p50", *s.P50, "p99", *s.P99)
	}

	var worst backpressure.Level
	for _, p := range r.Pressure {
		worst = max(worst, p.CurrentLevel)
	}
	attrs = append(attrs, "pressure", worst.String())
	log.Info("load report", attrs...)

	for i, km := range s.Top {
		log.Debug("top key", "rank", i+1, "key", km.Key, "metric", km.Metric, "shard", km.Shard)
	}
}

func writeExport(cfg config.ExportConfig, r accounting.Report, log *slog.Logger) error {
	path, err := export.WriteFile(cfg.Dir, r.Snapshot, export.ParseCompressionType(cfg.Compression))
	if err != nil {
		return err
	}
	log.Info("snapshot exported", "path", path, "rows", r.Snapshot.Len())
	return nil
}
