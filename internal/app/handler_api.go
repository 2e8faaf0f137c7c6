package app

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"SolarFeed/internal/model"
)

const maxBody = 1 << 20

// exportHeader is the column order of /api/export.
var exportHeader = []string{"timestamp", "device_id", "voltage", "current", "power", "light_raw"}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write JSON", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"ok":      false,
		"error":   http.StatusText(status),
		"message": msg,
	})
}

// handleIngest normalizes and stores one posted reading.
func (a *App) handleIngest(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil || body == nil {
		writeError(w, http.StatusBadRequest, "missing or invalid JSON body")
		return
	}

	reading, err := a.normalize(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.store.Append(reading); err != nil {
		a.logger.Error("store reading", "error", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	a.metrics.Ingested()

	if msg, err := json.Marshal(reading); err == nil {
		a.hub.Broadcast(msg)
	}
	a.logger.Info("ingested", "device_id", reading.DeviceID, "power", reading.Power, "light_raw", reading.LightRaw)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "row": reading})
}

// normalize fills defaults the way the sensor clients expect: missing
// timestamp means now, missing device means the configured default, missing
// numbers mean 0, and lightRaw is accepted for light_raw.
func (a *App) normalize(body map[string]any) (model.Reading, error) {
	r := model.Reading{
		DeviceID:  stringField(body, "device_id"),
		Timestamp: stringField(body, "timestamp"),
	}
	if r.DeviceID == "" {
		r.DeviceID = a.cfg.DefaultID
	}
	if r.Timestamp == "" {
		r.Timestamp = model.FormatTimestamp(a.now())
	}

	var err error
	if r.Voltage, err = numberField(body, "voltage"); err != nil {
		return model.Reading{}, err
	}
	if r.Current, err = numberField(body, "current"); err != nil {
		return model.Reading{}, err
	}
	if r.Power, err = numberField(body, "power"); err != nil {
		return model.Reading{}, err
	}
	key := "light_raw"
	if v, ok := body[key]; !ok || v == nil {
		key = "lightRaw"
	}
	light, err := numberField(body, key)
	if err != nil {
		return model.Reading{}, err
	}
	if r.LightRaw, err = model.LightRaw(light); err != nil {
		return model.Reading{}, fmt.Errorf("%s must fit an integer", key)
	}
	return r, nil
}

func stringField(body map[string]any, key string) string {
	s, _ := body[key].(string)
	return strings.TrimSpace(s)
}

func numberField(body map[string]any, key string) (float64, error) {
	var s string
	switch v := body[key].(type) {
	case nil:
		return 0, nil
	case json.Number:
		s = v.String()
	case string:
		s = strings.TrimSpace(v)
		if s == "" {
			return 0, nil
		}
	default:
		return 0, fmt.Errorf("%s must be a number", key)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%s must be a finite number", key)
	}
	return f, nil
}

func (a *App) handleLatest(w http.ResponseWriter, _ *http.Request) {
	r, ok, err := a.store.Latest()
	if err != nil {
		a.logger.Error("latest", "error", err)
		writeError(w, http.StatusInternalServerError, "read error")
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"ok": false, "message": "no data yet"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "latest": r})
}

// handleHistory returns the last ?limit readings, oldest first.
func (a *App) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := a.cfg.HistoryLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	rows, err := a.store.History(limit)
	if err != nil {
		a.logger.Error("history", "error", err)
		writeError(w, http.StatusInternalServerError, "read_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "data": rows})
}

// handleExport streams every stored reading as a CSV attachment.
func (a *App) handleExport(w http.ResponseWriter, _ *http.Request) {
	n, err := a.store.Count()
	if err != nil {
		a.logger.Error("export", "error", err)
		writeError(w, http.StatusInternalServerError, "export_failed")
		return
	}
	if n == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"ok": false, "message": "No telemetry data yet"})
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="telemetry_%s.csv"`, a.now().UTC().Format("2006-01-02")))

	cw := csv.NewWriter(w)
	_ = cw.Write(exportHeader)
	err = a.store.Each(func(r model.Reading) error {
		return cw.Write([]string{
			r.Timestamp,
			r.DeviceID,
			formatFloat(r.Voltage),
			formatFloat(r.Current),
			formatFloat(r.Power),
			strconv.Itoa(r.LightRaw),
		})
	})
	cw.Flush()
	if err == nil {
		err = cw.Error()
	}
	if err != nil {
		a.logger.Error("export", "error", err)
	}
}

func (a *App) handleHealth(w http.ResponseWriter, _ *http.Request) {
	n, err := a.store.Count()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "readings": n, "clients": a.hub.Clients()})
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
