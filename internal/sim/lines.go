package sim

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"SolarFeed/internal/parser"
	"SolarFeed/internal/util"
)

// Format selects the wire format a LineEmitter writes.
type Format string

const (
	FormatHuman Format = "human"
	FormatCSV   Format = "csv"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatHuman, FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("unknown line format %q (allowed: human, csv)", s)
	}
}

// LineWriter is the write side of a line device.
type LineWriter interface {
	WriteLine(s string) error
}

// LineEmitter writes synthetic readings as sensor firmware would print them.
type LineEmitter struct {
	gen      *Synthetic
	out      LineWriter
	format   Format
	interval time.Duration
	logger   *slog.Logger
	sleep    func(context.Context, time.Duration) error
}

// NewLineEmitter builds an emitter writing one reading per interval to out.
func NewLineEmitter(gen *Synthetic, out LineWriter, format Format, interval time.Duration, logger *slog.Logger) *LineEmitter {
	return &LineEmitter{gen: gen, out: out, format: format, interval: interval, logger: logger, sleep: util.Sleep}
}

// Emit writes a single reading. The human format takes two lines.
func (e *LineEmitter) Emit() error {
	r := e.gen.Reading()
	var lines []string
	switch e.format {
	case FormatCSV:
		lines = []string{parser.FormatCSV(r)}
	default:
		primary, light := parser.FormatHuman(r)
		lines = []string{primary, light}
	}
	for _, l := range lines {
		if err := e.out.WriteLine(l); err != nil {
			return fmt.Errorf("write line: %w", err)
		}
		e.logger.Debug("sent", "line", l)
	}
	return nil
}

// Run emits until ctx is done. Write errors are logged and skipped.
func (e *LineEmitter) Run(ctx context.Context) error {
	e.logger.Info("line simulator started", "format", e.format, "interval", e.interval)
	for {
		if err := e.Emit(); err != nil {
			e.logger.Warn("emit failed", "error", err)
		}
		if err := e.sleep(ctx, e.interval); err != nil {
			return err
		}
	}
}
