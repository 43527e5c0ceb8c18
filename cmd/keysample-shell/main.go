// keysample-shell is an interactive shell around a single key accountant.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/c-bata/go-prompt"

	"github.com/xtxerr/keysample/internal/accounting"
	"github.com/xtxerr/keysample/internal/config"
	"github.com/xtxerr/keysample/internal/errors"
	"github.com/xtxerr/keysample/internal/logging"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "config file path")
	seed := flag.Uint64("seed", 0, "random seed (overrides config)")
	debug := flag.Bool("debug", false, "log shard activity to stderr")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		cfg = config.DefaultConfig()
	}
	if *seed != 0 {
		cfg.Sampler.Seed = *seed
	}

	// Logs go to stderr and stay quiet unless asked for, so they do not
	// interleave with command output.
	level := slog.LevelWarn
	if *debug {
		level = slog.LevelDebug
	}
	logging.InitWriter(os.Stderr, level, false)

	acct := accounting.New(cfg)
	if err := acct.Start(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "start accountant: %v\n", err)
		os.Exit(1)
	}
	defer acct.Stop()

	sh := newShell(acct, cfg, os.Stdout)

	fmt.Printf("keysample shell (unit=%d, window=%s, shards=%d). Type 'help' for commands.\n",
		cfg.Sampler.MetricUnitsPerSample, cfg.Sampler.ExpiryWindow, cfg.Shards.Count)

	p := prompt.New(
		func(line string) { sh.exec(context.Background(), line) },
		sh.complete,
		prompt.OptionPrefix("keysample> "),
		prompt.OptionTitle("keysample-shell"),
		prompt.OptionSetExitCheckerOnInput(func(string, bool) bool { return sh.quit }),
	)
	p.Run()
}
