package device

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"SolarFeed/internal/model"
)

// Opener opens one connection attempt.
type Opener func(ctx context.Context) (Device, error)

// SerialOpener opens cfg.Device at cfg.Baud.
func SerialOpener(cfg model.SerialConfig) Opener {
	return func(context.Context) (Device, error) {
		return OpenSerial(cfg.Device, cfg.Baud)
	}
}

// Connect calls open until it succeeds, waiting with exponential backoff
// between cfg.ReconnectInitial and cfg.ReconnectMax. With cfg.MaxElapsed set it
// gives up after that long; otherwise it retries until ctx is done.
func Connect(ctx context.Context, open Opener, cfg model.SerialConfig, logger *slog.Logger) (Device, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.ReconnectInitial
	b.MaxInterval = cfg.ReconnectMax
	b.MaxElapsedTime = cfg.MaxElapsed
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	b.Reset()

	attempt := 0
	op := func() (Device, error) {
		attempt++
		return open(ctx)
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("connect failed, retrying",
			"device", cfg.Device,
			"attempt", attempt,
			"retry_in", wait.Round(time.Millisecond),
			"error", err,
		)
	}

	dev, err := backoff.RetryNotifyWithData(op, backoff.WithContext(b, ctx), notify)
	if err != nil {
		return nil, err
	}
	logger.Info("connected", "device", cfg.Device, "baud", cfg.Baud, "attempts", attempt)
	return dev, nil
}
