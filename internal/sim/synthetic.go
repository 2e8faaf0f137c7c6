// Package sim produces readings when no sensor hardware is attached, either
// synthetically or by replaying a fallback file through the line parser.
package sim

import (
	"math"
	"math/rand/v2"
	"time"

	"SolarFeed/internal/model"
)

// Baselines of the synthetic panel.
const (
	BaseVoltage   = 12.0
	VoltageJitter = 1.0
	BaseCurrent   = 5.0
	CurrentJitter = 0.5
	MaxLightRaw   = 1023
)

// Synthetic jitters voltage and current around fixed baselines.
type Synthetic struct {
	rng *rand.Rand
}

// NewSynthetic returns a generator drawing from rng, or from a time-seeded
// source when rng is nil.
func NewSynthetic(rng *rand.Rand) *Synthetic {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>32))
	}
	return &Synthetic{rng: rng}
}

// Produce implements Producer; a synthetic reading is always available.
func (s *Synthetic) Produce() (model.Reading, bool) {
	return s.Reading(), true
}

// Reading draws one sample. Power is derived from the rounded voltage and
// current, then rounded itself.
func (s *Synthetic) Reading() model.Reading {
	v := round2(BaseVoltage + s.uniform(VoltageJitter))
	c := round2(BaseCurrent + s.uniform(CurrentJitter))
	return model.Reading{
		Voltage:  v,
		Current:  c,
		Power:    round2(v * c),
		LightRaw: s.rng.IntN(MaxLightRaw + 1),
	}
}

// uniform returns a value in [-r, r).
func (s *Synthetic) uniform(r float64) float64 {
	return (s.rng.Float64()*2 - 1) * r
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
