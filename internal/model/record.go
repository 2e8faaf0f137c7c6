package model

import (
	"bytes"
	"encoding/json"
	"time"
)

// Field is one named column of a dataset row. Value holds a float64 when the
// cell was numeric and the raw string otherwise.
type Field struct {
	Name  string
	Value any
}

// Record is one row of a replay dataset. Time drives scheduling; Fields keeps
// every other column in file order.
type Record struct {
	Time   time.Time
	Fields []Field
}

// Timestamp returns the normalized ISO-8601 timestamp of the record.
func (r Record) Timestamp() string {
	if r.Time.IsZero() {
		return ""
	}
	return FormatTimestamp(r.Time)
}

// Float looks up a numeric column by name.
func (r Record) Float(name string) (float64, bool) {
	for _, f := range r.Fields {
		if f.Name != name {
			continue
		}
		v, ok := f.Value.(float64)
		return v, ok
	}
	return 0, false
}

// Reading projects the record onto a Reading. It reports false when the row
// lacks one of the voltage, current or power columns, or when light_raw does
// not fit an int. A missing light_raw column projects to 0.
func (r Record) Reading(deviceID string) (Reading, bool) {
	v, okV := r.Float("voltage")
	c, okC := r.Float("current")
	p, okP := r.Float("power")
	if !okV || !okC || !okP {
		return Reading{}, false
	}
	light, _ := r.Float("light_raw")
	lightRaw, err := LightRaw(light)
	if err != nil {
		return Reading{}, false
	}
	out := Reading{
		DeviceID:  deviceID,
		Timestamp: r.Timestamp(),
		Voltage:   v,
		Current:   c,
		Power:     p,
		LightRaw:  lightRaw,
	}
	if out.Validate() != nil {
		return Reading{}, false
	}
	return out, true
}

// MarshalJSON writes the record as a flat object: timestamp first, then the
// remaining columns in file order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"timestamp":`)
	ts, err := json.Marshal(r.Timestamp())
	if err != nil {
		return nil, err
	}
	buf.Write(ts)
	for _, f := range r.Fields {
		if f.Name == "timestamp" {
			continue
		}
		k, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
