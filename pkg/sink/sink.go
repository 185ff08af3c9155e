package sink

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/siqueiraa/deschemaer/pkg/config"
	"github.com/siqueiraa/deschemaer/pkg/kafka"
)

// Sink receives one JSON document per transformed message. The key is the
// original message key, passed through untouched.
type Sink interface {
	Name() string
	Publish(ctx context.Context, key, doc []byte) error
	Close() error
}

// Publisher is the part of kafka.Producer the Kafka-backed sinks need.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte, headers ...kafka.Header) error
}

// New builds the sink selected by cfg.Sink.Type. pub is only used by the
// kafka sink and may be nil otherwise.
func New(cfg config.AppConfig, pub Publisher, logger *zap.Logger) (Sink, error) {
	switch cfg.Sink.Type {
	case config.SinkKafka:
		if pub == nil {
			return nil, fmt.Errorf("kafka sink needs a producer")
		}
		return NewKafka(pub, cfg.Kafka.OutputTopic), nil
	case config.SinkNATS:
		return NewNATS(cfg.Sink.NATS, logger)
	case config.SinkMQTT:
		return NewMQTT(cfg.Sink.MQTT, logger)
	case config.SinkStdout:
		return NewStdout(nil), nil
	default:
		return nil, fmt.Errorf("unknown sink type %q", cfg.Sink.Type)
	}
}
