// Package model defines the shared data structures of SolarFeed: the normalized
// Reading, the replay dataset Record and the runtime configuration.
package model

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// TimestampLayout is ISO-8601 at second precision.
const TimestampLayout = time.RFC3339

// Reading is one normalized sensor sample. It is passed by value so a reading
// handed downstream can never be changed by its producer.
type Reading struct {
	DeviceID  string  `json:"device_id"`
	Timestamp string  `json:"timestamp"`
	Voltage   float64 `json:"voltage"`
	Current   float64 `json:"current"`
	Power     float64 `json:"power"`
	LightRaw  int     `json:"light_raw"`
}

var (
	// ErrNotFinite is returned by Validate when a numeric field is NaN or infinite.
	ErrNotFinite = errors.New("reading field is not finite")
	// ErrOutOfRange is returned by LightRaw when a value does not fit an int.
	ErrOutOfRange = errors.New("reading field out of range")
)

// LightRaw converts a light_raw value to an int, truncating toward zero.
func LightRaw(f float64) (int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("light_raw=%v: %w", f, ErrNotFinite)
	}
	if f >= math.MaxInt || f <= math.MinInt {
		return 0, fmt.Errorf("light_raw=%v: %w", f, ErrOutOfRange)
	}
	return int(f), nil
}

// FormatTimestamp renders t the way readings carry it on the wire.
func FormatTimestamp(t time.Time) string {
	return t.Truncate(time.Second).Format(TimestampLayout)
}

// Validate checks that every float field holds a finite value.
func (r Reading) Validate() error {
	for name, v := range map[string]float64{
		"voltage": r.Voltage,
		"current": r.Current,
		"power":   r.Power,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s=%v: %w", name, v, ErrNotFinite)
		}
	}
	return nil
}

// Stamp returns a copy of r attributed to deviceID at time now. An existing
// timestamp is kept.
func (r Reading) Stamp(deviceID string, now time.Time) Reading {
	r.DeviceID = deviceID
	if r.Timestamp == "" {
		r.Timestamp = FormatTimestamp(now)
	}
	return r
}
