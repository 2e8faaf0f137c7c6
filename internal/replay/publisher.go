package replay

import (
	"context"
	"log/slog"
	"time"

	"SolarFeed/internal/forward"
	"SolarFeed/internal/metrics"
	"SolarFeed/internal/model"
	"SolarFeed/internal/util"
)

// Forwarder delivers a projected reading downstream.
type Forwarder interface {
	Forward(ctx context.Context, r model.Reading) []forward.Delivery
}

// Options configure a Publisher. Zero values disable the matching output.
type Options struct {
	Output    string // latest-reading JSON file
	DeviceID  string
	Forwarder Forwarder
	Metrics   *metrics.Metrics
}

// Publisher drives a Scheduler in real time: every emission refreshes the
// latest-reading file and is optionally forwarded as a Reading.
type Publisher struct {
	sched  *Scheduler
	opts   Options
	logger *slog.Logger
	sleep  func(context.Context, time.Duration) error
}

// NewPublisher wires a Publisher around sched.
func NewPublisher(sched *Scheduler, opts Options, logger *slog.Logger) *Publisher {
	return &Publisher{sched: sched, opts: opts, logger: logger, sleep: util.Sleep}
}

// Run emits records until ctx is cancelled and then returns ctx.Err().
func (p *Publisher) Run(ctx context.Context) error {
	p.logger.Info("replay started",
		"records", p.sched.Len(),
		"start", p.sched.Index(),
		"step", p.sched.Step(),
	)
	for {
		em := p.Step(ctx)
		if err := p.sleep(ctx, em.Delay); err != nil {
			return err
		}
	}
}

// Step performs one emission without waiting.
func (p *Publisher) Step(ctx context.Context) Emission {
	em := p.sched.Next()
	p.opts.Metrics.Emitted()

	if em.Err != nil {
		p.logger.Warn("delay fallback", "index", em.Index, "error", em.Err, "delay", em.Delay)
	}
	if p.opts.Output != "" {
		if err := WriteLatest(p.opts.Output, em.Record); err != nil {
			p.logger.Error("latest file", "path", p.opts.Output, "error", err)
		}
	}

	p.logger.Info("published",
		"index", em.Index,
		"ts", em.Record.Timestamp(),
		"power", fieldOrNA(em.Record, "power"),
		"irradiance", fieldOrNA(em.Record, "irradiance"),
		"delay", em.Delay,
	)

	if p.opts.Forwarder != nil {
		if r, ok := em.Record.Reading(p.opts.DeviceID); ok {
			p.opts.Forwarder.Forward(ctx, r)
		} else {
			p.logger.Debug("record has no reading columns", "index", em.Index)
		}
	}
	return em
}

func fieldOrNA(rec model.Record, name string) any {
	for _, f := range rec.Fields {
		if f.Name == name && f.Value != nil {
			return f.Value
		}
	}
	return "n/a"
}
