package util

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"SolarFeed/internal/model"
)

// DefaultConfigPath is read when present unless another path is given.
const DefaultConfigPath = "configs/config.yml"

// Setup resolves the config file, applies overrides, validates the result and
// installs a process logger as the slog default. A missing file at the default
// path is not an error; a missing file the user asked for is.
func Setup(w io.Writer, path string, explicit bool, appName, version string, override func(*model.Config)) (model.Config, *slog.Logger, error) {
	if !explicit {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}
	cfg, err := model.Load(path)
	if err != nil {
		return model.Config{}, nil, err
	}
	if override != nil {
		override(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return model.Config{}, nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := NewLogger(w, cfg.Global, version, appName)
	if err != nil {
		return model.Config{}, nil, err
	}
	slog.SetDefault(logger)
	if path != "" {
		logger.Info("config loaded", "path", path)
	}
	return cfg, logger, nil
}
