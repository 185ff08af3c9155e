package sink

import (
	"context"
	"strconv"

	"github.com/siqueiraa/deschemaer/pkg/kafka"
)

// Kafka publishes documents to a single output topic.
type Kafka struct {
	pub   Publisher
	topic string
}

func NewKafka(pub Publisher, topic string) *Kafka {
	return &Kafka{pub: pub, topic: topic}
}

func (k *Kafka) Name() string { return "kafka" }

func (k *Kafka) Publish(ctx context.Context, key, doc []byte) error {
	return k.pub.Publish(ctx, k.topic, key, doc)
}

// Close is a no-op: the producer is shared and closed by its owner.
func (k *Kafka) Close() error { return nil }

// Dead-letter headers.
const (
	HeaderError     = "deschemaer-error"
	HeaderReason    = "deschemaer-reason"
	HeaderTopic     = "deschemaer-source-topic"
	HeaderPartition = "deschemaer-source-partition"
	HeaderOffset    = "deschemaer-source-offset"
)

// DeadLetter forwards messages that could not be transformed, with their
// original bytes, to a separate topic.
type DeadLetter struct {
	pub   Publisher
	topic string
}

func NewDeadLetter(pub Publisher, topic string) *DeadLetter {
	return &DeadLetter{pub: pub, topic: topic}
}

// Send publishes msg unchanged. The failure and the source position travel
// as headers.
func (d *DeadLetter) Send(ctx context.Context, msg *kafka.Message, reason string, cause error) error {
	headers := []kafka.Header{
		{Key: HeaderError, Value: []byte(cause.Error())},
		{Key: HeaderReason, Value: []byte(reason)},
		{Key: HeaderTopic, Value: []byte(msg.Topic)},
		{Key: HeaderPartition, Value: strconv.AppendInt(nil, int64(msg.Partition), 10)},
		{Key: HeaderOffset, Value: strconv.AppendInt(nil, msg.Offset, 10)},
	}
	return d.pub.Publish(ctx, d.topic, msg.Key, msg.Value, headers...)
}
