// Package core runs the serial-to-sink bridge: lines read from a sensor
// device are parsed into readings and forwarded to the ingestion sinks.
package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"SolarFeed/internal/device"
	"SolarFeed/internal/forward"
	"SolarFeed/internal/metrics"
	"SolarFeed/internal/model"
	"SolarFeed/internal/parser"
	"SolarFeed/internal/util"
)

// readErrorPause throttles the loop after a failed read.
const readErrorPause = time.Second

// Forwarder delivers readings downstream.
type Forwarder interface {
	Forward(ctx context.Context, r model.Reading) []forward.Delivery
}

// Bridge reads lines from a device, decodes them with the line parser and
// forwards each reading.
type Bridge struct {
	cfg     model.BridgeConfig
	fwd     Forwarder
	parser  *parser.Parser
	logger  *slog.Logger
	metrics *metrics.Metrics

	readTimeout time.Duration

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewBridge builds a Bridge. m may be nil.
func NewBridge(cfg model.BridgeConfig, fwd Forwarder, logger *slog.Logger, m *metrics.Metrics) *Bridge {
	return &Bridge{
		cfg:     cfg,
		fwd:     fwd,
		parser:  parser.New(),
		logger:  logger,
		metrics: m,
		now:     time.Now,
		sleep:   util.Sleep,
	}
}

// SetReadTimeout bounds each line read. A read that times out is treated
// as an idle device and the loop keeps waiting. Zero waits indefinitely.
func (b *Bridge) SetReadTimeout(d time.Duration) { b.readTimeout = d }

// Serve connects with backoff, runs the bridge, and reconnects whenever the
// stream ends, until ctx is done.
func (b *Bridge) Serve(ctx context.Context, open device.Opener, scfg model.SerialConfig) error {
	for {
		dev, err := device.Connect(ctx, open, scfg, b.logger)
		if err != nil {
			return fmt.Errorf("connect %s: %w", scfg.Device, err)
		}
		err = b.Run(ctx, dev)
		_ = dev.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.logger.Warn("stream ended, reconnecting", "device", scfg.Device, "error", err)
		b.parser.Reset()
	}
}

// Run processes lines from dev until ctx is done or the stream ends. Parse
// and delivery failures are logged and never stop the loop; so are read
// errors that leave the stream open.
func (b *Bridge) Run(ctx context.Context, dev device.Device) error {
	for {
		line, err := b.readLine(ctx, dev)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				b.logger.Debug("no data", "timeout", b.readTimeout)
				continue
			}
			if errors.Is(err, device.ErrStreamEnded) || errors.Is(err, io.EOF) || errors.Is(err, device.ErrNotOpen) {
				return fmt.Errorf("read line: %w", err)
			}
			b.logger.Warn("read error", "error", err)
			if err := b.sleep(ctx, readErrorPause); err != nil {
				return err
			}
			continue
		}
		if err := b.handle(ctx, line); err != nil {
			return err
		}
	}
}

func (b *Bridge) readLine(ctx context.Context, dev device.Device) (string, error) {
	if b.readTimeout <= 0 {
		return dev.ReadLine(ctx)
	}
	rctx, cancel := context.WithTimeout(ctx, b.readTimeout)
	defer cancel()
	return dev.ReadLine(rctx)
}

// handle parses one line and forwards the resulting reading, if any. It only
// fails when ctx ends during the post-forward pause.
func (b *Bridge) handle(ctx context.Context, line string) error {
	r, out, err := b.parser.Parse(line)
	if err != nil {
		b.metrics.LineParsed("error")
		b.logger.Warn("parse error", "line", line, "error", err)
		return nil
	}
	b.metrics.LineParsed(out.String())
	if out == parser.None {
		if line != "" {
			b.logger.Debug("ignored line", "line", line, "state", b.parser.State())
		}
		return nil
	}
	if out == parser.Partial && !b.cfg.ForwardPartial {
		return nil
	}

	b.logger.Debug("line", "line", line, "outcome", out)
	b.fwd.Forward(ctx, r.Stamp(b.cfg.DeviceID, b.now()))
	return b.sleep(ctx, b.cfg.Pause)
}
