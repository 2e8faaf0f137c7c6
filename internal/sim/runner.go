package sim

import (
	"context"
	"log/slog"
	"time"

	"SolarFeed/internal/forward"
	"SolarFeed/internal/model"
	"SolarFeed/internal/util"
)

// Producer yields the next simulated reading, if there is one this tick.
type Producer interface {
	Produce() (model.Reading, bool)
}

// Forwarder delivers readings downstream.
type Forwarder interface {
	Forward(ctx context.Context, r model.Reading) []forward.Delivery
}

// Runner ticks a Producer and forwards what it yields.
type Runner struct {
	src      Producer
	fwd      Forwarder
	deviceID string
	interval time.Duration
	once     bool
	logger   *slog.Logger

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewRunner builds a Runner. With once set, Run returns after the first
// forwarded reading.
func NewRunner(src Producer, fwd Forwarder, deviceID string, interval time.Duration, once bool, logger *slog.Logger) *Runner {
	return &Runner{
		src:      src,
		fwd:      fwd,
		deviceID: deviceID,
		interval: interval,
		once:     once,
		logger:   logger,
		now:      time.Now,
		sleep:    util.Sleep,
	}
}

// Run produces one reading per interval until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("simulation started", "device_id", r.deviceID, "interval", r.interval, "once", r.once)
	for {
		if reading, ok := r.src.Produce(); ok {
			reading = reading.Stamp(r.deviceID, r.now())
			r.logger.Info("sim reading",
				"voltage", reading.Voltage,
				"current", reading.Current,
				"power", reading.Power,
				"light_raw", reading.LightRaw,
			)
			r.fwd.Forward(ctx, reading)
			if r.once {
				return nil
			}
		}
		if err := r.sleep(ctx, r.interval); err != nil {
			return err
		}
	}
}
