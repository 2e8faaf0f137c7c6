package replay

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SolarFeed/internal/forward"
	"SolarFeed/internal/model"
)

type recordingForwarder struct {
	got []model.Reading
}

func (f *recordingForwarder) Forward(_ context.Context, r model.Reading) []forward.Delivery {
	f.got = append(f.got, r)
	return []forward.Delivery{{Sink: "test"}}
}

func solarRecords() []model.Record {
	out := make([]model.Record, 3)
	for i := range out {
		out[i] = model.Record{
			Time: t0.Add(time.Duration(i) * time.Minute),
			Fields: []model.Field{
				{Name: "voltage", Value: 12.0},
				{Name: "current", Value: 2.0},
				{Name: "power", Value: 24.0 + float64(i)},
				{Name: "irradiance", Value: 300.0},
			},
		}
	}
	out[2].Fields = out[2].Fields[3:] // no electrical columns
	return out
}

func TestPublisher_Run(t *testing.T) {
	sched, err := NewScheduler(solarRecords(), 0, 60)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "latest_row.json")
	fwd := &recordingForwarder{}
	p := NewPublisher(sched, Options{Output: out, DeviceID: "replay-01", Forwarder: fwd},
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var slept []time.Duration
	p.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		if len(slept) == 4 {
			cancel()
			return ctx.Err()
		}
		return nil
	}

	err = p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second, time.Second}, slept)

	// rows 0, 1 and the second pass of row 0 carry electrical columns
	require.Len(t, fwd.got, 3)
	assert.Equal(t, model.Reading{
		DeviceID:  "replay-01",
		Timestamp: "2023-03-01T06:01:00Z",
		Voltage:   12,
		Current:   2,
		Power:     25,
	}, fwd.got[1])

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	var latest map[string]any
	require.NoError(t, json.Unmarshal(b, &latest))
	assert.Equal(t, "2023-03-01T06:00:00Z", latest["timestamp"])
	assert.Equal(t, 24.0, latest["power"])
}

func TestPublisher_StepWithoutOutputs(t *testing.T) {
	sched, err := NewScheduler(solarRecords(), 2, 60)
	require.NoError(t, err)
	p := NewPublisher(sched, Options{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	em := p.Step(context.Background())
	assert.Equal(t, 2, em.Index)
	assert.Equal(t, 0, sched.Index())
}

func TestWriteLatest_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latest.json")
	recs := solarRecords()

	require.NoError(t, WriteLatest(path, recs[0]))
	require.NoError(t, WriteLatest(path, recs[2]))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"timestamp":"2023-03-01T06:02:00Z","irradiance":300}`, string(b))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteLatest_MissingDir(t *testing.T) {
	err := WriteLatest(filepath.Join(t.TempDir(), "nope", "latest.json"), solarRecords()[0])
	assert.Error(t, err)
}
