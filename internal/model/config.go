package model

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config represents the root structure loaded from configs/config.yml.
// Every component receives the section it needs at construction.
type Config struct {
	Global GlobalConfig `yaml:"global"`
	Replay ReplayConfig `yaml:"replay"`
	Bridge BridgeConfig `yaml:"bridge"`
	Serial SerialConfig `yaml:"serial"`
	Sink   SinkConfig   `yaml:"sink"`
	Ingest IngestConfig `yaml:"ingest"`
}

// GlobalConfig holds settings shared by all commands.
type GlobalConfig struct {
	AppEnv      string `yaml:"app_env" env:"SOLAR_APP_ENV"`
	LogLevel    string `yaml:"log_level" env:"SOLAR_LOG_LEVEL"`
	MetricsAddr string `yaml:"metrics_addr" env:"SOLAR_METRICS_ADDR"` // empty disables /metrics
}

// ReplayConfig drives the dataset replay publisher.
type ReplayConfig struct {
	Dataset    string  `yaml:"dataset" env:"SOLAR_REPLAY_DATASET"`
	Output     string  `yaml:"output" env:"SOLAR_REPLAY_OUTPUT"` // latest-reading JSON file
	StartIndex int     `yaml:"start_index" env:"SOLAR_REPLAY_START_INDEX"`
	Speedup    float64 `yaml:"speedup" env:"SOLAR_REPLAY_SPEEDUP"` // dataset seconds per real second
	DeviceID   string  `yaml:"device_id" env:"SOLAR_REPLAY_DEVICE_ID"`
	Forward    bool    `yaml:"forward" env:"SOLAR_REPLAY_FORWARD"` // also deliver projected readings to the sink
}

// BridgeConfig drives the serial-to-sink bridge and its simulation fallback.
type BridgeConfig struct {
	DeviceID       string        `yaml:"device_id" env:"SOLAR_BRIDGE_DEVICE_ID"`
	SimDeviceID    string        `yaml:"sim_device_id" env:"SOLAR_BRIDGE_SIM_DEVICE_ID"`
	Simulate       bool          `yaml:"simulate" env:"SOLAR_BRIDGE_SIMULATE"`
	File           string        `yaml:"file" env:"SOLAR_BRIDGE_FILE"` // fallback dataset for simulation
	Once           bool          `yaml:"once" env:"SOLAR_BRIDGE_ONCE"`
	Interval       time.Duration `yaml:"interval" env:"SOLAR_BRIDGE_INTERVAL"`      // simulation emission period
	Pause          time.Duration `yaml:"pause" env:"SOLAR_BRIDGE_PAUSE"`            // pause after each forwarded serial reading
	ForwardPartial bool          `yaml:"forward_partial" env:"SOLAR_BRIDGE_PARTIAL"` // forward light_raw=0 placeholders
}

// SerialConfig describes the hardware line transport.
type SerialConfig struct {
	Device           string        `yaml:"device" env:"SOLAR_SERIAL_DEVICE"`
	Baud             int           `yaml:"baud" env:"SOLAR_SERIAL_BAUD"`
	ReadTimeout      time.Duration `yaml:"read_timeout" env:"SOLAR_SERIAL_READ_TIMEOUT"`
	ReconnectInitial time.Duration `yaml:"reconnect_initial" env:"SOLAR_SERIAL_RECONNECT_INITIAL"`
	ReconnectMax     time.Duration `yaml:"reconnect_max" env:"SOLAR_SERIAL_RECONNECT_MAX"`
	MaxElapsed       time.Duration `yaml:"max_elapsed" env:"SOLAR_SERIAL_MAX_ELAPSED"` // 0 retries until cancelled
	VirtualPeer      string        `yaml:"virtual_peer" env:"SOLAR_SERIAL_VIRTUAL_PEER"` // when set, a socat pair Device<->VirtualPeer is created
}

// SinkConfig describes where readings are delivered.
type SinkConfig struct {
	URL          string        `yaml:"url" env:"SOLAR_SINK_URL"`
	Timeout      time.Duration `yaml:"timeout" env:"SOLAR_SINK_TIMEOUT"`
	MQTTBroker   string        `yaml:"mqtt_broker" env:"SOLAR_SINK_MQTT_BROKER"` // e.g. tcp://localhost:1883, empty disables
	MQTTTopic    string        `yaml:"mqtt_topic" env:"SOLAR_SINK_MQTT_TOPIC"`
	MQTTClientID string        `yaml:"mqtt_client_id" env:"SOLAR_SINK_MQTT_CLIENT_ID"`
}

// IngestConfig configures the ingestion endpoint server.
type IngestConfig struct {
	Addr         string `yaml:"addr" env:"SOLAR_INGEST_ADDR"`
	DBPath       string `yaml:"db_path" env:"SOLAR_INGEST_DB_PATH"`
	HistoryLimit int    `yaml:"history_limit" env:"SOLAR_INGEST_HISTORY_LIMIT"`
	DefaultID    string `yaml:"default_device_id" env:"SOLAR_INGEST_DEFAULT_DEVICE_ID"`

	ForecastDataset string `yaml:"forecast_dataset" env:"SOLAR_INGEST_FORECAST_DATASET"` // dataset profiled by /api/forecast

	AuthSecret string        `yaml:"auth_secret" env:"SOLAR_INGEST_AUTH_SECRET"` // HMAC key for session tokens; random per process when empty
	SessionTTL time.Duration `yaml:"session_ttl" env:"SOLAR_INGEST_SESSION_TTL"`
	ProtectAPI bool          `yaml:"protect_api" env:"SOLAR_INGEST_PROTECT_API"` // require a session for history, export and forecast
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Global: GlobalConfig{
			AppEnv:   "dev",
			LogLevel: "info",
		},
		Replay: ReplayConfig{
			Dataset:  "sensor_data.csv",
			Output:   "latest_row.json",
			Speedup:  60,
			DeviceID: "replay-01",
		},
		Bridge: BridgeConfig{
			DeviceID:       "esp32-01",
			SimDeviceID:    "sim-01",
			Interval:       time.Second,
			Pause:          500 * time.Millisecond,
			ForwardPartial: true,
		},
		Serial: SerialConfig{
			Device:           "/dev/ttyUSB0",
			Baud:             115200,
			ReadTimeout:      2 * time.Second,
			ReconnectInitial: 500 * time.Millisecond,
			ReconnectMax:     5 * time.Second,
		},
		Sink: SinkConfig{
			URL:          "http://localhost:3000/api/ingest",
			Timeout:      5 * time.Second,
			MQTTTopic:    "solar/%s/readings",
			MQTTClientID: "solarfeed",
		},
		Ingest: IngestConfig{
			Addr:         ":3000",
			DBPath:       "data/readings.db",
			HistoryLimit:    1000,
			DefaultID:       "esp32-01",
			ForecastDataset: "sensor_data.csv",
			SessionTTL:      24 * time.Hour,
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and SOLAR_* environment variables, in that order.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	switch c.Global.AppEnv {
	case "dev", "prod":
	default:
		errs = append(errs, fmt.Errorf("invalid app_env %q (allowed: dev, prod)", c.Global.AppEnv))
	}
	switch strings.ToLower(strings.TrimSpace(c.Global.LogLevel)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log_level %q (allowed: debug, info, warn, error)", c.Global.LogLevel))
	}
	if c.Replay.Speedup <= 0 {
		errs = append(errs, fmt.Errorf("replay.speedup must be positive, got %v", c.Replay.Speedup))
	}
	if c.Bridge.Interval <= 0 {
		errs = append(errs, fmt.Errorf("bridge.interval must be positive, got %v", c.Bridge.Interval))
	}
	if c.Bridge.Pause < 0 {
		errs = append(errs, fmt.Errorf("bridge.pause must not be negative, got %v", c.Bridge.Pause))
	}
	if c.Serial.Baud <= 0 {
		errs = append(errs, fmt.Errorf("serial.baud must be positive, got %d", c.Serial.Baud))
	}
	if c.Serial.ReconnectInitial <= 0 || c.Serial.ReconnectMax < c.Serial.ReconnectInitial {
		errs = append(errs, fmt.Errorf("serial reconnect bounds invalid: initial=%v max=%v",
			c.Serial.ReconnectInitial, c.Serial.ReconnectMax))
	}
	if c.Sink.URL == "" && c.Sink.MQTTBroker == "" {
		errs = append(errs, errors.New("sink: url or mqtt_broker is required"))
	}
	if c.Sink.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("sink.timeout must be positive, got %v", c.Sink.Timeout))
	}
	if c.Ingest.HistoryLimit <= 0 {
		errs = append(errs, fmt.Errorf("ingest.history_limit must be positive, got %d", c.Ingest.HistoryLimit))
	}
	if c.Ingest.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("ingest.session_ttl must be positive, got %v", c.Ingest.SessionTTL))
	}
	return errors.Join(errs...)
}
