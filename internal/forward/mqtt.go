package forward

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"SolarFeed/internal/model"
)

const publishTimeout = 5 * time.Second

// publisher is the part of mqtt.Client the sink needs.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTSink publishes readings to a broker, one topic per device.
type MQTTSink struct {
	client publisher
	topic  string
	logger *slog.Logger
	close  func()
}

// NewMQTTSink connects to cfg.MQTTBroker and waits for the first connection,
// giving up when ctx is done.
func NewMQTTSink(ctx context.Context, cfg model.SinkConfig, logger *slog.Logger) (*MQTTSink, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTTBroker)
	opts.SetClientID(cfg.MQTTClientID)
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()

	const poll = 200 * time.Millisecond
	for !token.WaitTimeout(poll) {
		select {
		case <-ctx.Done():
			client.Disconnect(250)
			return nil, ctx.Err()
		default:
		}
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.MQTTBroker, err)
	}

	s := newMQTTSink(client, cfg.MQTTTopic, logger)
	s.close = func() { client.Disconnect(250) }
	return s, nil
}

func newMQTTSink(client publisher, topic string, logger *slog.Logger) *MQTTSink {
	return &MQTTSink{client: client, topic: topic, logger: logger}
}

// Name implements Sink.
func (s *MQTTSink) Name() string { return "mqtt" }

// Topic returns the topic a reading from deviceID is published to.
func (s *MQTTSink) Topic(deviceID string) string {
	if strings.Contains(s.topic, "%s") {
		return fmt.Sprintf(s.topic, deviceID)
	}
	return s.topic
}

// Send implements Sink. Messages use QoS 1 and are not retained.
func (s *MQTTSink) Send(ctx context.Context, r model.Reading, payload []byte) (int, error) {
	topic := s.Topic(r.DeviceID)
	token := s.client.Publish(topic, 1, false, payload)

	timer := time.NewTimer(publishTimeout)
	defer timer.Stop()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-timer.C:
		return 0, errors.New("publish timeout for topic " + topic)
	}
	if err := token.Error(); err != nil {
		return 0, fmt.Errorf("publish %s: %w", topic, err)
	}
	s.logger.Debug("published reading", "topic", topic)
	return 0, nil
}

// Close disconnects from the broker.
func (s *MQTTSink) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}
