// Line simulator: writes synthetic sensor lines into a serial device, the way
// the panel firmware prints them. Use it with -pair to bench test the bridge
// without hardware.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"SolarFeed/internal/device"
	"SolarFeed/internal/model"
	"SolarFeed/internal/sim"
	"SolarFeed/internal/util"
)

var version = "dev"

func main() {
	cfgPath := flag.String("c", util.DefaultConfigPath, "path to configuration file")
	dev := flag.String("dev", "", "serial device to write lines into (default serial.virtual_peer)")
	baud := flag.Int("baud", 0, "baud rate")
	format := flag.String("format", string(sim.FormatHuman), "line format: human or csv")
	interval := flag.Duration("interval", time.Second, "time between readings")
	pair := flag.String("pair", "", "create a socat pair LEFT:RIGHT first and write into RIGHT")
	flag.Parse()

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	cfg, logger, err := util.Setup(os.Stderr, *cfgPath, set["c"], "linesim", version, func(c *model.Config) {
		if set["baud"] {
			c.Serial.Baud = *baud
		}
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	lineFormat, err := sim.ParseFormat(*format)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	target := cfg.Serial.VirtualPeer
	if set["dev"] {
		target = *dev
	}
	if err := run(ctx, cfg, target, *pair, lineFormat, *interval, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("line simulator failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg model.Config, target, pair string, format sim.Format, interval time.Duration, logger *slog.Logger) error {
	if pair != "" {
		left, right, ok := strings.Cut(pair, ":")
		if !ok {
			return errors.New("-pair must be LEFT:RIGHT")
		}
		vp, err := device.StartVirtualPair(ctx, left, right, logger)
		if err != nil {
			return err
		}
		defer func() { _ = vp.Close() }()
		target = right
	}
	if target == "" {
		return errors.New("no device: set -dev, -pair or serial.virtual_peer")
	}

	port, err := device.OpenSerial(target, cfg.Serial.Baud)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := port.Close(); cerr != nil {
			logger.Warn("close serial", "error", cerr)
		}
	}()

	logger.Info("simulator sending", "device", port.String(), "interval", interval)
	return sim.NewLineEmitter(sim.NewSynthetic(nil), port, format, interval, logger).Run(ctx)
}
