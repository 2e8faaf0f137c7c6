package replay

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"SolarFeed/internal/model"
)

const (
	// MinDelay is the floor applied to every emission delay.
	MinDelay = 10 * time.Millisecond
	// FallbackDelay is used when the delay cannot be computed from timestamps.
	FallbackDelay = 500 * time.Millisecond
	// DefaultStep closes the cycle when the dataset has no positive step.
	DefaultStep = time.Hour
)

// ErrBadTimestamp is reported when a record carries no usable timestamp.
var ErrBadTimestamp = errors.New("record has no timestamp")

// Emission is one scheduled record and the wait before the next one.
type Emission struct {
	Index  int
	Record model.Record
	Delay  time.Duration
	// Err is set when Delay fell back to FallbackDelay.
	Err error
}

// Scheduler walks a dataset in order, forever, and derives real-time delays
// from the recorded timestamps divided by the speedup factor.
type Scheduler struct {
	records []model.Record
	speedup float64
	step    time.Duration
	index   int
}

// NewScheduler validates its inputs and positions the cursor at
// start modulo the dataset length.
func NewScheduler(records []model.Record, start int, speedup float64) (*Scheduler, error) {
	if len(records) == 0 {
		return nil, ErrEmptyDataset
	}
	if !(speedup > 0) {
		return nil, fmt.Errorf("speedup must be positive, got %v", speedup)
	}
	n := len(records)
	return &Scheduler{
		records: records,
		speedup: speedup,
		step:    InferStep(records),
		index:   ((start % n) + n) % n,
	}, nil
}

// Len returns the dataset length.
func (s *Scheduler) Len() int { return len(s.records) }

// Index returns the index the next call to Next will emit.
func (s *Scheduler) Index() int { return s.index }

// Step returns the inferred spacing used to close the cycle.
func (s *Scheduler) Step() time.Duration { return s.step }

// Next emits the current record and advances the cursor, wrapping to 0.
func (s *Scheduler) Next() Emission {
	i := s.index
	em := Emission{Index: i, Record: s.records[i]}
	delay, err := s.Delay(i)
	if err != nil {
		em.Delay = FallbackDelay
		em.Err = err
	} else {
		em.Delay = delay
	}
	s.index = (i + 1) % len(s.records)
	return em
}

// Delay computes the wait after emitting the record at index i. When the
// last record does not precede the first, the gap that closes the cycle is
// the inferred step.
func (s *Scheduler) Delay(i int) (time.Duration, error) {
	next := (i + 1) % len(s.records)
	t0, t1 := s.records[i].Time, s.records[next].Time
	if t0.IsZero() || t1.IsZero() {
		return 0, ErrBadTimestamp
	}
	if next == 0 && !t1.After(t0) {
		t1 = t0.Add(s.step)
	}
	delta := max(t1.Sub(t0), 0)
	return max(time.Duration(float64(delta)/s.speedup), MinDelay), nil
}

// InferStep returns the median of the strictly positive gaps between
// consecutive records, truncated to whole seconds, or DefaultStep when the
// dataset has none.
func InferStep(records []model.Record) time.Duration {
	var deltas []time.Duration
	for i := 1; i < len(records); i++ {
		a, b := records[i-1].Time, records[i].Time
		if a.IsZero() || b.IsZero() {
			continue
		}
		if d := b.Sub(a); d > 0 {
			deltas = append(deltas, d)
		}
	}
	if len(deltas) == 0 {
		return DefaultStep
	}
	slices.Sort(deltas)
	mid := len(deltas) / 2
	median := deltas[mid]
	if len(deltas)%2 == 0 {
		median = (deltas[mid-1] + deltas[mid]) / 2
	}
	return median.Truncate(time.Second)
}
