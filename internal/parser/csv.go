package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"SolarFeed/internal/model"
)

// csvFields is the number of leading positional fields a CSV line must carry.
const csvFields = 4

// ParseCSV decodes "voltage,current,power,light_raw". Extra trailing fields are
// ignored. It reports ok=false when the line has fewer than four fields.
func ParseCSV(line string) (model.Reading, bool, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) < csvFields {
		return model.Reading{}, false, nil
	}

	v, err := parseFinite(fields[0])
	if err != nil {
		return model.Reading{}, false, fmt.Errorf("invalid voltage: %w", err)
	}
	i, err := parseFinite(fields[1])
	if err != nil {
		return model.Reading{}, false, fmt.Errorf("invalid current: %w", err)
	}
	pw, err := parseFinite(fields[2])
	if err != nil {
		return model.Reading{}, false, fmt.Errorf("invalid power: %w", err)
	}
	light, err := parseFinite(fields[3])
	if err != nil {
		return model.Reading{}, false, fmt.Errorf("invalid light_raw: %w", err)
	}
	lightRaw, err := model.LightRaw(light)
	if err != nil {
		return model.Reading{}, false, fmt.Errorf("invalid light_raw: %w", err)
	}

	return model.Reading{
		Voltage:  v,
		Current:  i,
		Power:    pw,
		LightRaw: lightRaw,
	}, true, nil
}

// FormatCSV renders r in the CSV wire format.
func FormatCSV(r model.Reading) string {
	return fmt.Sprintf("%.2f,%.2f,%.2f,%d", r.Voltage, r.Current, r.Power, r.LightRaw)
}

func parseFinite(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%q: %w", s, model.ErrNotFinite)
	}
	return f, nil
}
