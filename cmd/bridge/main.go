// Serial bridge: reads sensor lines from a serial port (or a simulated
// source), decodes them and forwards each reading to the ingestion sink.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"SolarFeed/internal/core"
	"SolarFeed/internal/device"
	"SolarFeed/internal/forward"
	"SolarFeed/internal/metrics"
	"SolarFeed/internal/model"
	"SolarFeed/internal/sim"
	"SolarFeed/internal/util"
)

var version = "dev"

// serialPostTimeout bounds deliveries on the hardware path.
const serialPostTimeout = 3 * time.Second

func main() {
	cfgPath := flag.String("c", util.DefaultConfigPath, "path to configuration file")
	simulate := flag.Bool("simulate", false, "run without serial hardware")
	file := flag.String("file", "", "CSV file to read simulated lines from")
	once := flag.Bool("once", false, "send a single simulated sample and exit")
	dev := flag.String("dev", "", "serial device")
	baud := flag.Int("baud", 0, "serial baud rate")
	url := flag.String("url", "", "ingestion endpoint")
	peer := flag.String("virtual-peer", "", "create a socat pair dev<->peer before connecting")
	timeout := flag.Duration("timeout", 0, "delivery timeout (default 3s for serial, sink.timeout when simulating)")
	flag.Parse()

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	cfg, logger, err := util.Setup(os.Stderr, *cfgPath, set["c"], "bridge", version, func(c *model.Config) {
		if set["simulate"] {
			c.Bridge.Simulate = *simulate
		}
		if set["file"] {
			c.Bridge.File = *file
		}
		if set["once"] {
			c.Bridge.Once = *once
		}
		if set["dev"] {
			c.Serial.Device = *dev
		}
		if set["baud"] {
			c.Serial.Baud = *baud
		}
		if set["url"] {
			c.Sink.URL = *url
		}
		if set["virtual-peer"] {
			c.Serial.VirtualPeer = *peer
		}
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *timeout, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("bridge failed", "error", err)
		os.Exit(1)
	}
	logger.Info("bridge stopped")
}

func run(ctx context.Context, cfg model.Config, timeout time.Duration, logger *slog.Logger) error {
	m := metrics.New()
	if timeout <= 0 && !cfg.Bridge.Simulate {
		timeout = serialPostTimeout
	}
	fwd, err := forward.FromConfig(ctx, cfg.Sink, timeout, logger, m)
	if err != nil {
		return err
	}
	defer func() { _ = fwd.Close() }()

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Global.MetricsAddr != "" {
		g.Go(func() error { return m.Serve(gctx, cfg.Global.MetricsAddr, logger) })
	}

	if cfg.Bridge.Simulate {
		src, err := sim.NewSource(cfg.Bridge.File, logger, m)
		if err != nil {
			return err
		}
		runner := sim.NewRunner(src, fwd, cfg.Bridge.SimDeviceID, cfg.Bridge.Interval, cfg.Bridge.Once, logger)
		g.Go(func() error {
			err := runner.Run(gctx)
			if err == nil {
				// once mode finished: stop the metrics server too
				return context.Canceled
			}
			return err
		})
		return g.Wait()
	}

	if cfg.Serial.VirtualPeer != "" {
		pair, err := device.StartVirtualPair(ctx, cfg.Serial.Device, cfg.Serial.VirtualPeer, logger)
		if err != nil {
			return err
		}
		defer func() { _ = pair.Close() }()
	}

	bridge := core.NewBridge(cfg.Bridge, fwd, logger, m)
	bridge.SetReadTimeout(cfg.Serial.ReadTimeout)
	g.Go(func() error {
		return bridge.Serve(gctx, device.SerialOpener(cfg.Serial), cfg.Serial)
	})
	return g.Wait()
}
