package app

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"sync"
	"time"

	"SolarFeed/internal/model"
	"SolarFeed/internal/replay"
)

// datasetCache keeps the parsed forecast dataset until the file changes.
type datasetCache struct {
	path string

	mu      sync.Mutex
	mtime   time.Time
	records []model.Record
}

// Records returns the dataset, reloading it when the file's modification
// time changed or refresh is set.
func (c *datasetCache) Records(refresh bool) ([]model.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fi, err := os.Stat(c.path)
	if err != nil {
		return nil, fmt.Errorf("forecast dataset: %w", err)
	}
	if !refresh && c.records != nil && fi.ModTime().Equal(c.mtime) {
		return c.records, nil
	}
	recs, err := replay.LoadFile(c.path)
	if err != nil {
		c.records = nil
		return nil, err
	}
	c.records, c.mtime = recs, fi.ModTime()
	return recs, nil
}

// handleForecast serves tomorrow's hourly forecast built from the latest full
// day of the dataset. ?refresh=1 bypasses the cache.
func (a *App) handleForecast(w http.ResponseWriter, r *http.Request) {
	recs, err := a.dataset.Records(r.URL.Query().Get("refresh") == "1")
	if err == nil {
		var f replay.Forecast
		if f, err = replay.BuildForecast(recs); err == nil {
			writeJSON(w, http.StatusOK, struct {
				OK bool `json:"ok"`
				replay.Forecast
			}{true, f})
			return
		}
	}

	switch {
	case errors.Is(err, fs.ErrNotExist):
		writeError(w, http.StatusNotFound, "forecast dataset not found")
	case errors.Is(err, replay.ErrEmptyDataset):
		writeError(w, http.StatusBadRequest, "forecast dataset is empty")
	default:
		a.logger.Error("forecast", "path", a.dataset.path, "error", err)
		writeError(w, http.StatusInternalServerError, "forecast_failed")
	}
}
