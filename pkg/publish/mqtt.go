// Package publish pushes sensor state to an MQTT broker.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ogulcanaydogan/norway-alerts/pkg/poller"
)

const (
	DefaultTopicPrefix = "norway_alerts"
	publishTimeout     = 5 * time.Second

	availabilityOnline  = "online"
	availabilityOffline = "offline"
)

// MQTTConfig holds the broker connection settings.
type MQTTConfig struct {
	Broker         string
	Port           int
	ClientID       string
	Username       string
	Password       string
	TopicPrefix    string
	QoS            byte
	Retain         bool
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
}

// MQTT publishes sensors as retained state, attribute and availability topics.
type MQTT struct {
	client mqtt.Client
	cfg    MQTTConfig
	logger *slog.Logger
}

// NewMQTT creates a publisher for the configured broker. Connect must be called
// before publishing.
func NewMQTT(cfg MQTTConfig, logger *slog.Logger) *MQTT {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	opts.SetKeepAlive(cfg.KeepAlive)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info("mqtt connected", "broker", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Error("mqtt connection lost", "error", err)
	})

	return NewMQTTWithClient(mqtt.NewClient(opts), cfg, logger)
}

// NewMQTTWithClient wraps an existing paho client.
func NewMQTTWithClient(client mqtt.Client, cfg MQTTConfig, logger *slog.Logger) *MQTT {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = DefaultTopicPrefix
	}
	return &MQTT{client: client, cfg: cfg, logger: logger}
}

// Connect dials the broker and waits for the connection.
func (m *MQTT) Connect() error {
	token := m.client.Connect()
	if !token.WaitTimeout(m.cfg.ConnectTimeout) {
		return fmt.Errorf("mqtt connect: timeout after %v", m.cfg.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

// Close disconnects from the broker.
func (m *MQTT) Close() {
	m.client.Disconnect(250)
}

func (m *MQTT) Name() string { return "mqtt" }

// Publish writes the state, attributes and availability of every sensor.
func (m *MQTT) Publish(ctx context.Context, sensors []poller.Sensor) error {
	if !m.client.IsConnected() {
		return fmt.Errorf("mqtt publish: not connected to broker")
	}
	for _, s := range sensors {
		if err := ctx.Err(); err != nil {
			return err
		}
		msgs, err := Messages(m.cfg.TopicPrefix, s)
		if err != nil {
			return err
		}
		for _, msg := range msgs {
			if err := m.publish(msg.Topic, msg.Payload); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *MQTT) publish(topic string, payload []byte) error {
	token := m.client.Publish(topic, m.cfg.QoS, m.cfg.Retain, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqtt publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", topic, err)
	}
	m.logger.Debug("mqtt published", "topic", topic, "bytes", len(payload))
	return nil
}

// Message is one MQTT publication.
type Message struct {
	Topic   string
	Payload []byte
}

// Messages returns the publications of a sensor. Unavailable sensors only
// publish their availability so the retained state stays at the last good value.
func Messages(prefix string, s poller.Sensor) ([]Message, error) {
	if !s.Available {
		return []Message{{Topic: Topic(prefix, s.ID, "availability"), Payload: []byte(availabilityOffline)}}, nil
	}
	attrs, err := json.Marshal(s.Attributes)
	if err != nil {
		return nil, fmt.Errorf("encode attributes of %s: %w", s.ID, err)
	}
	return []Message{
		{Topic: Topic(prefix, s.ID, "state"), Payload: []byte(strconv.Itoa(s.State))},
		{Topic: Topic(prefix, s.ID, "attributes"), Payload: attrs},
		{Topic: Topic(prefix, s.ID, "availability"), Payload: []byte(availabilityOnline)},
	}, nil
}

var topicReplacer = strings.NewReplacer("/", "_", "+", "_", "#", "_", " ", "_")

// Topic builds "{prefix}/{sensor}/{leaf}", replacing characters that are not
// allowed in a topic level.
func Topic(prefix, sensorID, leaf string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + topicReplacer.Replace(sensorID) + "/" + leaf
}
