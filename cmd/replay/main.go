// Replay publisher: plays a recorded solar dataset back in compressed time,
// refreshing the latest-reading file on every row and optionally forwarding
// each row to the ingestion sink.
//
//	replay [flags] [start_index [speedup]]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"golang.org/x/sync/errgroup"

	"SolarFeed/internal/forward"
	"SolarFeed/internal/metrics"
	"SolarFeed/internal/model"
	"SolarFeed/internal/replay"
	"SolarFeed/internal/util"
)

var version = "dev"

func main() {
	cfgPath := flag.String("c", util.DefaultConfigPath, "path to configuration file")
	dataset := flag.String("dataset", "", "CSV dataset with a timestamp column")
	out := flag.String("out", "", "latest-reading JSON file")
	start := flag.Int("start", 0, "index of the first row to publish")
	speedup := flag.Float64("speedup", 0, "dataset seconds per real second")
	fwd := flag.Bool("forward", false, "also forward rows to the ingestion sink")
	deviceID := flag.String("device", "", "device id of forwarded readings")
	flag.Parse()

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	positional, err := positionalArgs(flag.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, logger, err := util.Setup(os.Stderr, *cfgPath, set["c"], "replay", version, func(c *model.Config) {
		if set["dataset"] {
			c.Replay.Dataset = *dataset
		}
		if set["out"] {
			c.Replay.Output = *out
		}
		if set["start"] {
			c.Replay.StartIndex = *start
		}
		if set["speedup"] {
			c.Replay.Speedup = *speedup
		}
		if set["forward"] {
			c.Replay.Forward = *fwd
		}
		if set["device"] {
			c.Replay.DeviceID = *deviceID
		}
		positional(c)
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("replay failed", "error", err)
		os.Exit(1)
	}
	logger.Info("replay stopped")
}

func run(ctx context.Context, cfg model.Config, logger *slog.Logger) error {
	m := metrics.New()

	records, err := replay.LoadFile(cfg.Replay.Dataset)
	if err != nil {
		return err
	}
	sched, err := replay.NewScheduler(records, cfg.Replay.StartIndex, cfg.Replay.Speedup)
	if err != nil {
		return err
	}
	logger.Info("dataset loaded",
		"path", cfg.Replay.Dataset,
		"rows", sched.Len(),
		"start_index", sched.Index(),
		"speedup", cfg.Replay.Speedup,
	)

	opts := replay.Options{Output: cfg.Replay.Output, DeviceID: cfg.Replay.DeviceID, Metrics: m}
	if cfg.Replay.Forward {
		f, err := forward.FromConfig(ctx, cfg.Sink, 0, logger, m)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		opts.Forwarder = f
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return replay.NewPublisher(sched, opts, logger).Run(gctx)
	})
	if cfg.Global.MetricsAddr != "" {
		g.Go(func() error { return m.Serve(gctx, cfg.Global.MetricsAddr, logger) })
	}
	return g.Wait()
}

// positionalArgs accepts the start index and speedup as bare arguments.
func positionalArgs(args []string) (func(*model.Config), error) {
	if len(args) > 2 {
		return nil, fmt.Errorf("usage: replay [flags] [start_index [speedup]]")
	}
	var (
		start   int
		speedup float64
		err     error
	)
	if len(args) > 0 {
		if start, err = strconv.Atoi(args[0]); err != nil {
			return nil, fmt.Errorf("start_index: %w", err)
		}
	}
	if len(args) > 1 {
		if speedup, err = strconv.ParseFloat(args[1], 64); err != nil {
			return nil, fmt.Errorf("speedup: %w", err)
		}
	}
	return func(c *model.Config) {
		if len(args) > 0 {
			c.Replay.StartIndex = start
		}
		if len(args) > 1 {
			c.Replay.Speedup = speedup
		}
	}, nil
}
