package sim

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"SolarFeed/internal/metrics"
	"SolarFeed/internal/model"
	"SolarFeed/internal/parser"
)

// ErrEmptyFile is returned when the fallback file has no rows.
var ErrEmptyFile = errors.New("simulation file is empty")

// FileSource loops over the rows of a CSV file forever. Each row is joined
// back into one line and fed to the line parser.
type FileSource struct {
	lines   []string
	next    int
	parser  *parser.Parser
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewSource replays path when it exists and falls back to synthetic data when
// path is empty or missing. Any other problem with the file is an error.
func NewSource(path string, logger *slog.Logger, m *metrics.Metrics) (Producer, error) {
	if path != "" {
		_, err := os.Stat(path)
		if err == nil {
			return LoadFileSource(path, logger, m)
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("simulation file: %w", err)
		}
		logger.Warn("simulation file not found, using synthetic data", "file", path)
	}
	return NewSynthetic(nil), nil
}

// LoadFileSource reads every row of path up front.
func LoadFileSource(path string, logger *slog.Logger, m *metrics.Metrics) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open simulation file: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read simulation file %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyFile)
	}

	lines := make([]string, len(rows))
	for i, row := range rows {
		lines[i] = strings.Join(row, ",")
	}
	return NewFileSource(lines, logger, m), nil
}

// NewFileSource replays lines in order, wrapping at the end.
func NewFileSource(lines []string, logger *slog.Logger, m *metrics.Metrics) *FileSource {
	return &FileSource{lines: lines, parser: parser.New(), logger: logger, metrics: m}
}

// Produce implements Producer. It consumes exactly one line per call.
func (s *FileSource) Produce() (model.Reading, bool) {
	line := s.lines[s.next%len(s.lines)]
	s.next = (s.next + 1) % len(s.lines)
	s.logger.Debug("sim line", "line", line)

	r, out, err := s.parser.Parse(line)
	if err != nil {
		s.metrics.LineParsed("error")
		s.logger.Warn("parse error", "line", line, "error", err)
		return model.Reading{}, false
	}
	s.metrics.LineParsed(out.String())
	return r, out != parser.None
}
