package sink

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/siqueiraa/deschemaer/pkg/config"
)

const (
	mqttConnectTimeout = 10 * time.Second
	mqttQuiesceMillis  = 250
)

// MQTT publishes documents to one MQTT topic. MQTT has no message key, so
// the key is dropped.
type MQTT struct {
	client mqtt.Client
	topic  string
	qos    byte
	logger *zap.Logger
}

func NewMQTT(cfg config.MQTTConfig, logger *zap.Logger) (*MQTT, error) {
	if cfg.Broker == "" || cfg.Topic == "" {
		return nil, fmt.Errorf("mqtt sink needs a broker and a topic")
	}
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("mqtt qos %d out of range", cfg.QoS)
	}
	logger = logger.Named("mqtt")

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(mqttConnectTimeout).
		SetOrderMatters(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("connection lost", zap.Error(err))
		})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("broker connection error: %w", token.Error())
	}
	return &MQTT{client: client, topic: cfg.Topic, qos: cfg.QoS, logger: logger}, nil
}

func (m *MQTT) Name() string { return "mqtt" }

func (m *MQTT) Publish(ctx context.Context, _ []byte, doc []byte) error {
	token := m.client.Publish(m.topic, m.qos, false, doc)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish error: %w", err)
	}
	return nil
}

func (m *MQTT) Close() error {
	m.client.Disconnect(mqttQuiesceMillis)
	m.logger.Info("disconnected from MQTT broker")
	return nil
}
