// Package parser turns raw sensor lines into normalized readings.
//
// Two wire formats arrive on the same stream:
//
//	12.1,4.9,59.29,512                                  (CSV: voltage,current,power,light_raw)
//	Voltage: 1.81 V | Current: 0.41 A | Power: 0.74 W   (primary human-readable line)
//	Light (Raw ADC): 11                                 (auxiliary line completing the primary)
//
// The human-readable format spreads one reading over two physical lines, so
// Parser is a small state machine that carries the partial reading between them.
package parser

import (
	"fmt"
	"strings"

	"SolarFeed/internal/model"
)

// State is the accumulator state of a Parser.
type State int

const (
	// Idle means no partial reading is pending.
	Idle State = iota
	// AwaitingLight means a primary line was seen and its light line has not arrived yet.
	AwaitingLight
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingLight:
		return "awaiting_light"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Outcome classifies what a single Parse call produced.
type Outcome int

const (
	// None means the line produced no reading.
	None Outcome = iota
	// Partial is a primary-line reading whose light_raw is still the 0 placeholder.
	Partial
	// Complete is a reading with all four sensor fields known.
	Complete
)

func (o Outcome) String() string {
	switch o {
	case None:
		return "none"
	case Partial:
		return "partial"
	case Complete:
		return "complete"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Error reports a malformed line. It is never fatal: the parser state is left
// as it was before the line.
type Error struct {
	Line string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("parse %q: %v", e.Line, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Parser is not safe for concurrent use; each stream owns one.
type Parser struct {
	state   State
	pending model.Reading
}

// New returns an Idle parser.
func New() *Parser { return &Parser{} }

// State reports whether a partial reading is pending.
func (p *Parser) State() State { return p.state }

// Pending returns the partial reading held while AwaitingLight.
func (p *Parser) Pending() (model.Reading, bool) {
	return p.pending, p.state == AwaitingLight
}

// Reset drops any pending partial reading.
func (p *Parser) Reset() {
	p.state = Idle
	p.pending = model.Reading{}
}

// Parse consumes one line. Device id and timestamp are left empty for the
// caller to stamp.
func (p *Parser) Parse(line string) (model.Reading, Outcome, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return model.Reading{}, None, nil
	}

	switch {
	case isPrimary(line):
		r, ok, err := parsePrimary(line)
		if err != nil {
			return model.Reading{}, None, &Error{Line: line, Err: err}
		}
		if !ok {
			return model.Reading{}, None, nil
		}
		// A newer primary line supersedes an unfinished one.
		p.state = AwaitingLight
		p.pending = r
		return r, Partial, nil

	case isLight(line):
		light, ok, err := parseLight(line)
		if err != nil {
			return model.Reading{}, None, &Error{Line: line, Err: err}
		}
		if !ok {
			return model.Reading{}, None, nil
		}
		if p.state != AwaitingLight {
			// orphaned light line
			p.Reset()
			return model.Reading{}, None, nil
		}
		r := p.pending
		r.LightRaw = light
		p.Reset()
		return r, Complete, nil

	case strings.Contains(line, ","):
		r, ok, err := ParseCSV(line)
		if err != nil {
			return model.Reading{}, None, &Error{Line: line, Err: err}
		}
		if !ok {
			return model.Reading{}, None, nil
		}
		p.Reset()
		return r, Complete, nil
	}

	return model.Reading{}, None, nil
}
