package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"SolarFeed/internal/model"
)

var (
	voltageRe = regexp.MustCompile(`Voltage:\s*([\d.]+)\s*V`)
	currentRe = regexp.MustCompile(`Current:\s*([\d.]+)\s*A`)
	powerRe   = regexp.MustCompile(`Power:\s*([\d.]+)\s*W`)
	lightRe   = regexp.MustCompile(`Light \(Raw ADC\):\s*(\d+)`)
)

func isPrimary(line string) bool {
	return strings.Contains(line, "Voltage:") &&
		strings.Contains(line, "Current:") &&
		strings.Contains(line, "Power:")
}

func isLight(line string) bool {
	return strings.Contains(line, "Light (Raw ADC):")
}

// parsePrimary reports ok=false when one of the three tagged values is missing.
func parsePrimary(line string) (model.Reading, bool, error) {
	vm := voltageRe.FindStringSubmatch(line)
	im := currentRe.FindStringSubmatch(line)
	pm := powerRe.FindStringSubmatch(line)
	if vm == nil || im == nil || pm == nil {
		return model.Reading{}, false, nil
	}
	v, err := parseFinite(vm[1])
	if err != nil {
		return model.Reading{}, false, fmt.Errorf("invalid voltage: %w", err)
	}
	i, err := parseFinite(im[1])
	if err != nil {
		return model.Reading{}, false, fmt.Errorf("invalid current: %w", err)
	}
	p, err := parseFinite(pm[1])
	if err != nil {
		return model.Reading{}, false, fmt.Errorf("invalid power: %w", err)
	}
	return model.Reading{Voltage: v, Current: i, Power: p}, true, nil
}

func parseLight(line string) (int, bool, error) {
	m := lightRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false, nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false, fmt.Errorf("invalid light_raw: %w", err)
	}
	return n, true, nil
}

// FormatHuman renders r as the two-line human-readable block a sensor prints.
func FormatHuman(r model.Reading) (primary, light string) {
	primary = fmt.Sprintf("Voltage: %.2f V | Current: %.2f A | Power: %.2f W", r.Voltage, r.Current, r.Power)
	light = fmt.Sprintf("Light (Raw ADC): %d", r.LightRaw)
	return primary, light
}
