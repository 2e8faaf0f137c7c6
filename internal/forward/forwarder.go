// Package forward delivers normalized readings to one or more ingestion sinks.
// Delivery is best effort: failures are logged and counted, never retried.
package forward

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"SolarFeed/internal/metrics"
	"SolarFeed/internal/model"
)

// Sink is one delivery target.
type Sink interface {
	// Name labels the sink in logs and metrics.
	Name() string
	// Send delivers the encoded reading. status is the transport status code
	// where one exists, 0 otherwise.
	Send(ctx context.Context, r model.Reading, payload []byte) (status int, err error)
}

// Delivery is the outcome of sending one reading to one sink.
type Delivery struct {
	Sink   string
	Status int
	Err    error
}

// OK reports whether the sink accepted the payload. Any HTTP status counts.
func (d Delivery) OK() bool { return d.Err == nil }

// Forwarder fans a reading out to its sinks, in order.
type Forwarder struct {
	sinks   []Sink
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New builds a Forwarder. m may be nil.
func New(logger *slog.Logger, m *metrics.Metrics, sinks ...Sink) *Forwarder {
	return &Forwarder{sinks: sinks, logger: logger, metrics: m}
}

// Sinks returns the number of configured sinks.
func (f *Forwarder) Sinks() int { return len(f.sinks) }

// Forward encodes r as JSON and sends it to every sink. The returned slice
// holds one Delivery per sink.
func (f *Forwarder) Forward(ctx context.Context, r model.Reading) []Delivery {
	payload, err := json.Marshal(r)
	if err != nil {
		f.logger.Error("encode reading", "device_id", r.DeviceID, "error", err)
		out := make([]Delivery, len(f.sinks))
		for i, s := range f.sinks {
			out[i] = Delivery{Sink: s.Name(), Err: fmt.Errorf("encode reading: %w", err)}
			f.metrics.Delivered(s.Name(), false)
		}
		return out
	}

	out := make([]Delivery, 0, len(f.sinks))
	for _, s := range f.sinks {
		status, err := s.Send(ctx, r, payload)
		d := Delivery{Sink: s.Name(), Status: status, Err: err}
		out = append(out, d)
		f.metrics.Delivered(d.Sink, d.OK())

		switch {
		case err != nil:
			f.logger.Warn("delivery failed", "sink", d.Sink, "device_id", r.DeviceID, "error", err)
		case status >= 300:
			f.logger.Warn("sink rejected reading", "sink", d.Sink, "device_id", r.DeviceID, "status", status)
		default:
			f.logger.Info("forwarded",
				"sink", d.Sink,
				"device_id", r.DeviceID,
				"status", status,
				"power", r.Power,
				"light_raw", r.LightRaw,
			)
		}
	}
	return out
}

// Close releases sinks that hold connections.
func (f *Forwarder) Close() error {
	var errs []error
	for _, s := range f.sinks {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", s.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// FromConfig builds the sinks named by cfg: HTTP when a URL is set, MQTT when
// a broker is set. timeout overrides cfg.Timeout when positive.
func FromConfig(ctx context.Context, cfg model.SinkConfig, timeout time.Duration, logger *slog.Logger, m *metrics.Metrics) (*Forwarder, error) {
	if timeout <= 0 {
		timeout = cfg.Timeout
	}
	var sinks []Sink
	if cfg.URL != "" {
		sinks = append(sinks, NewHTTPSink(cfg.URL, timeout))
	}
	if cfg.MQTTBroker != "" {
		ms, err := NewMQTTSink(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, ms)
	}
	if len(sinks) == 0 {
		return nil, errors.New("no sink configured")
	}
	return New(logger, m, sinks...), nil
}
