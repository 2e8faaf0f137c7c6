// Package replay turns a recorded solar dataset into a live, time-scaled
// stream of readings.
package replay

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"SolarFeed/internal/model"
)

// TimestampColumn must be present in every dataset header.
const TimestampColumn = "timestamp"

var (
	// ErrEmptyDataset is returned when a dataset holds no data rows.
	ErrEmptyDataset = errors.New("dataset is empty")
	// ErrNoTimestampColumn is returned when the header lacks a timestamp column.
	ErrNoTimestampColumn = errors.New("dataset has no timestamp column")
)

// timestampLayouts are tried in order when parsing the timestamp column.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"2006-01-02",
}

// LoadFile reads the CSV dataset at path.
func LoadFile(path string) ([]model.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	records, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("load dataset %s: %w", path, err)
	}
	return records, nil
}

// Load parses a CSV dataset with a header row. Numeric cells become float64,
// empty cells nil, anything else is kept as a string. Rows come back in file
// order.
func Load(r io.Reader) ([]model.Record, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyDataset
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	header[0] = strings.TrimPrefix(header[0], "\ufeff")

	tsCol := -1
	for i, name := range header {
		if strings.EqualFold(name, TimestampColumn) {
			tsCol = i
			break
		}
	}
	if tsCol < 0 {
		return nil, ErrNoTimestampColumn
	}

	var records []model.Record
	for row := 2; ; row++ {
		cells, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}

		ts, err := ParseTimestamp(cells[tsCol])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		rec := model.Record{Time: ts, Fields: make([]model.Field, 0, len(cells)-1)}
		for i, cell := range cells {
			if i == tsCol {
				continue
			}
			rec.Fields = append(rec.Fields, model.Field{Name: header[i], Value: cellValue(cell)})
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, ErrEmptyDataset
	}
	return records, nil
}

// ParseTimestamp accepts the timestamp layouts commonly found in logger exports.
// Layouts without a zone are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func cellValue(cell string) any {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return cell
	}
	return v
}
