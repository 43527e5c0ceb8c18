package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/c-bata/go-prompt"

	"github.com/xtxerr/keysample/internal/accounting"
	"github.com/xtxerr/keysample/internal/config"
	"github.com/xtxerr/keysample/internal/export"
	"github.com/xtxerr/keysample/internal/validation"
	"github.com/xtxerr/keysample/internal/workload"
)

type command struct {
	name  string
	usage string
	desc  string
	keyed bool // First argument is a key
	run   func(ctx context.Context, s *shell, args []string) error
}

var commands []command

// Registered in init because cmdHelp and usage read the table.
func init() {
	commands = []command{
		{"add", "add <key> <metric>", "add a sample that never expires", true, cmdAdd},
		{"expire", "expire <key> <metric> <ttl>", "add a sample that is reversed after ttl", true, cmdExpire},
		{"get", "get <key>", "show the current metric of a key", true, cmdGet},
		{"poll", "poll", "reverse every due sample now", false, cmdPoll},
		{"summary", "summary", "show the load distribution over keys", false, cmdSummary},
		{"stats", "stats", "show per-shard sampler counters", false, cmdStats},
		{"export", "export <path>", "write a Parquet snapshot", false, cmdExport},
		{"help", "help", "list commands", false, cmdHelp},
		{"exit", "exit", "leave the shell", false, cmdExit},
	}
}

type shell struct {
	acct *accounting.Accountant
	cfg  *config.Config
	out  io.Writer
	quit bool
}

func newShell(acct *accounting.Accountant, cfg *config.Config, out io.Writer) *shell {
	return &shell{acct: acct, cfg: cfg, out: out}
}

// exec runs one input line, printing errors rather than returning them.
func (s *shell) exec(ctx context.Context, line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	name := strings.ToLower(fields[0])
	if name == "quit" {
		name = "exit"
	}

	for _, c := range commands {
		if c.name == name {
			if c.keyed && len(fields) > 1 {
				if err := validation.Key(fields[1]); err != nil {
					fmt.Fprintf(s.out, "error: %v\n", err)
					return
				}
			}
			if err := c.run(ctx, s, fields[1:]); err != nil {
				fmt.Fprintf(s.out, "error: %v\n", err)
			}
			return
		}
	}
	fmt.Fprintf(s.out, "unknown command %q, try 'help'\n", fields[0])
}

func (s *shell) complete(d prompt.Document) []prompt.Suggest {
	before := d.TextBeforeCursor()
	if strings.Contains(before, " ") {
		return nil
	}

	suggests := make([]prompt.Suggest, len(commands))
	for i, c := range commands {
		suggests[i] = prompt.Suggest{Text: c.name, Description: c.desc}
	}
	return prompt.FilterHasPrefix(suggests, d.GetWordBeforeCursor(), true)
}

func usage(name string) error {
	for _, c := range commands {
		if c.name == name {
			return fmt.Errorf("usage: %s", c.usage)
		}
	}
	return fmt.Errorf("unknown command %s", name)
}

func cmdAdd(ctx context.Context, s *shell, args []string) error {
	if len(args) != 2 {
		return usage("add")
	}
	metric, err := workload.ParseDelta(args[1])
	if err != nil {
		return fmt.Errorf("bad metric %s", args[1])
	}

	v, err := s.acct.Add(ctx, args[0], metric)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%s = %d\n", args[0], v)
	return nil
}

func cmdExpire(ctx context.Context, s *shell, args []string) error {
	if len(args) != 3 {
		return usage("expire")
	}
	metric, err := workload.ParseDelta(args[1])
	if err != nil {
		return fmt.Errorf("bad metric %s", args[1])
	}
	ttl, err := workload.ParseTTL(args[2])
	if err != nil {
		return err
	}

	v, err := s.acct.AddFor(ctx, args[0], metric, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%s = %d (expires in %s)\n", args[0], v, ttl)
	return nil
}

func cmdGet(ctx context.Context, s *shell, args []string) error {
	if len(args) != 1 {
		return usage("get")
	}
	v, err := s.acct.GetMetric(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%s = %d (shard %d)\n", args[0], v, s.acct.ShardFor(args[0]))
	return nil
}

func cmdPoll(ctx context.Context, s *shell, _ []string) error {
	if err := s.acct.Poll(ctx); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "ok")
	return nil
}

func cmdSummary(ctx context.Context, s *shell, _ []string) error {
	r, err := s.acct.Report(ctx)
	if err != nil {
		return err
	}

	sum := r.Summary
	if sum.IsEmpty() {
		fmt.Fprintln(s.out, "no tracked keys")
		return nil
	}

	fmt.Fprintf(s.out, "keys=%d sum=%d min=%d max=%d avg=%.1f\n",
		sum.Keys, sum.Sum, sum.Min, sum.Max, sum.Avg)
	if sum.HasPercentiles() {
		fmt.Fprintf(s.out, "p50=%.0f p90=%.0f p95=%.0f p99=%.0f\n",
			*sum.P50, *sum.P90, *sum.P95, *sum.P99)
	}

	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tKEY\tMETRIC\tSHARD")
	for i, km := range sum.Top {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\n", i+1, km.Key, km.Metric, km.Shard)
	}
	return tw.Flush()
}

func cmdStats(ctx context.Context, s *shell, _ []string) error {
	stats, err := s.acct.Stats(ctx)
	if err != nil {
		return err
	}

	pressure := s.acct.Pressure()

	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SHARD\tUPDATES\tROUNDED\tDISCARDED\tAPPLIED\tEXPIRED\tKEYS\tPENDING\tPRESSURE")
	for i, st := range stats {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n", i,
			st.Updates, st.Rounded, st.Discarded, st.Applied, st.Expired, st.Keys, st.Pending,
			pressure[i].CurrentLevel)
	}
	return tw.Flush()
}

func cmdExport(ctx context.Context, s *shell, args []string) error {
	if len(args) != 1 {
		return usage("export")
	}

	snap, err := s.acct.Snapshot(ctx)
	if err != nil {
		return err
	}

	w, err := export.NewWriter(args[0], export.ParseCompressionType(s.cfg.Export.Compression))
	if err != nil {
		return err
	}
	if err := w.Write(snap); err != nil {
		w.Close()
		os.Remove(args[0])
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	fmt.Fprintf(s.out, "wrote %d keys to %s at %s\n", w.RowCount(), args[0],
		snap.TakenAt().Format(time.RFC3339))
	return nil
}

func cmdHelp(_ context.Context, s *shell, _ []string) error {
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	for _, c := range commands {
		fmt.Fprintf(tw, "  %s\t%s\n", c.usage, c.desc)
	}
	return tw.Flush()
}

func cmdExit(_ context.Context, s *shell, _ []string) error {
	s.quit = true
	return nil
}
