package forward

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SolarFeed/internal/metrics"
	"SolarFeed/internal/model"
)

var sample = model.Reading{
	DeviceID:  "esp32-01",
	Timestamp: "2025-06-01T12:00:00Z",
	Voltage:   12.1,
	Current:   4.9,
	Power:     59.29,
	LightRaw:  512,
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

const deliveriesHeader = `
# HELP solarfeed_deliveries_total Reading deliveries by sink and result.
# TYPE solarfeed_deliveries_total counter
`

func TestHTTPSink_PostsJSON(t *testing.T) {
	var (
		mu   sync.Mutex
		got  model.Reading
		ctyp string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, http.MethodPost, r.Method)
		ctyp = r.Header.Get("Content-Type")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	m := metrics.New()
	f := New(discard(), m, NewHTTPSink(srv.URL, time.Second))
	out := f.Forward(context.Background(), sample)

	require.Len(t, out, 1)
	assert.True(t, out[0].OK())
	assert.Equal(t, http.StatusCreated, out[0].Status)
	assert.Equal(t, "http", out[0].Sink)

	mu.Lock()
	assert.Equal(t, sample, got)
	assert.Equal(t, "application/json", ctyp)
	mu.Unlock()

	err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(deliveriesHeader+
		`solarfeed_deliveries_total{result="ok",sink="http"} 1
`), "solarfeed_deliveries_total")
	assert.NoError(t, err)
}

func TestHTTPSink_ErrorStatusStillDelivered(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	out := New(discard(), nil, NewHTTPSink(srv.URL, time.Second)).Forward(context.Background(), sample)

	require.Len(t, out, 1)
	assert.True(t, out[0].OK())
	assert.Equal(t, http.StatusInternalServerError, out[0].Status)
}

func TestHTTPSink_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	m := metrics.New()
	out := New(discard(), m, NewHTTPSink(srv.URL, 50*time.Millisecond)).Forward(context.Background(), sample)

	require.Len(t, out, 1)
	assert.False(t, out[0].OK())
	assert.Zero(t, out[0].Status)

	err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(deliveriesHeader+
		`solarfeed_deliveries_total{result="failed",sink="http"} 1
`), "solarfeed_deliveries_total")
	assert.NoError(t, err)
}

func TestHTTPSink_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	out := New(discard(), nil, NewHTTPSink(url, time.Second)).Forward(context.Background(), sample)
	require.Len(t, out, 1)
	assert.Error(t, out[0].Err)
}

type fakeToken struct {
	done chan struct{}
	err  error
}

func newToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type publishCall struct {
	topic   string
	qos     byte
	retain  bool
	payload []byte
}

type fakePublisher struct {
	calls []publishCall
	err   error
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	p.calls = append(p.calls, publishCall{topic, qos, retained, payload.([]byte)})
	return newToken(p.err)
}

func TestMQTTSink_PublishesPerDeviceTopic(t *testing.T) {
	pub := &fakePublisher{}
	sink := newMQTTSink(pub, "solar/%s/readings", discard())

	out := New(discard(), nil, sink).Forward(context.Background(), sample)

	require.Len(t, out, 1)
	assert.True(t, out[0].OK())
	assert.Equal(t, "mqtt", out[0].Sink)
	require.Len(t, pub.calls, 1)
	assert.Equal(t, "solar/esp32-01/readings", pub.calls[0].topic)
	assert.Equal(t, byte(1), pub.calls[0].qos)
	assert.False(t, pub.calls[0].retain)

	var got model.Reading
	require.NoError(t, json.Unmarshal(pub.calls[0].payload, &got))
	assert.Equal(t, sample, got)
}

func TestMQTTSink_FixedTopic(t *testing.T) {
	sink := newMQTTSink(&fakePublisher{}, "solar/all", discard())
	assert.Equal(t, "solar/all", sink.Topic("esp32-01"))
}

func TestMQTTSink_PublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("not connected")}
	sink := newMQTTSink(pub, "solar/%s/readings", discard())

	_, err := sink.Send(context.Background(), sample, []byte("{}"))
	assert.ErrorContains(t, err, "not connected")
}

func TestForward_FansOutToEverySink(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	pub := &fakePublisher{err: errors.New("broker down")}
	f := New(discard(), nil, NewHTTPSink(srv.URL, time.Second), newMQTTSink(pub, "solar/%s/readings", discard()))
	out := f.Forward(context.Background(), sample)

	require.Len(t, out, 2)
	assert.True(t, out[0].OK())
	assert.False(t, out[1].OK())
	assert.EqualValues(t, 1, hits.Load())
	assert.Equal(t, 2, f.Sinks())
}

type closingSink struct {
	fakeSink
	closed bool
}

type fakeSink struct{}

func (fakeSink) Name() string { return "fake" }
func (fakeSink) Send(context.Context, model.Reading, []byte) (int, error) {
	return 0, nil
}

func (c *closingSink) Close() error {
	c.closed = true
	return nil
}

func TestForwarder_CloseClosesSinks(t *testing.T) {
	c := &closingSink{}
	f := New(discard(), nil, fakeSink{}, c)
	require.NoError(t, f.Close())
	assert.True(t, c.closed)
}

func TestFromConfig(t *testing.T) {
	f, err := FromConfig(context.Background(), model.SinkConfig{URL: "http://localhost:1/api/ingest", Timeout: time.Second}, 0, discard(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, f.Sinks())

	_, err = FromConfig(context.Background(), model.SinkConfig{}, time.Second, discard(), nil)
	assert.Error(t, err)
}
