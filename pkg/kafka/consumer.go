package kafka

import (
	"errors"
	"fmt"
	"strings"
	"time"

	ck "github.com/confluentinc/confluent-kafka-go/kafka"
	"go.uber.org/zap"

	"github.com/siqueiraa/deschemaer/pkg/config"
	"github.com/siqueiraa/deschemaer/pkg/state"
)

const (
	// Maximum value for signed 32-bit integer
	maxInt32 = 0x7FFFFFFF
)

// Message is one record read from the input topic, key and value untouched.
type Message struct {
	Key       []byte
	Value     []byte
	Topic     string
	Time      time.Time
	Offset    int64
	Partition int
}

type Consumer struct {
	c           *ck.Consumer
	topic       string
	pollTimeout time.Duration
	offsets     state.OffsetStore
	logger      *zap.Logger
}

// NewConsumer subscribes to cfg.InputTopic. Partitions are assigned from the
// offsets held in the store so processing resumes after the last message the
// pipeline finished, regardless of what the broker has committed.
func NewConsumer(cfg config.KafkaConfig, offsets state.OffsetStore, logger *zap.Logger) (*Consumer, error) {
	cm := &ck.ConfigMap{
		"bootstrap.servers":               strings.Join(cfg.Brokers, ","),
		"group.id":                        cfg.GroupID,
		"enable.auto.commit":              false,
		"auto.offset.reset":               "earliest",
		"go.application.rebalance.enable": true,
	}
	c, err := ck.NewConsumer(cm)
	if err != nil {
		return nil, fmt.Errorf("failed to create confluent consumer: %w", err)
	}

	cons := &Consumer{
		c:           c,
		topic:       cfg.InputTopic,
		pollTimeout: cfg.PollTimeout,
		offsets:     offsets,
		logger:      logger.Named("consumer"),
	}

	err = c.SubscribeTopics([]string{cfg.InputTopic}, func(con *ck.Consumer, ev ck.Event) error {
		switch e := ev.(type) {
		case ck.AssignedPartitions:
			return con.Assign(cons.resumePositions(e.Partitions))
		case ck.RevokedPartitions:
			return con.Unassign()
		default:
			return nil
		}
	})
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("subscribe failed: %w", err)
	}

	return cons, nil
}

// resumePositions sets each partition to the offset after the last stored
// one, or to the beginning when nothing is stored.
func (c *Consumer) resumePositions(parts []ck.TopicPartition) []ck.TopicPartition {
	for i := range parts {
		partition := int(parts[i].Partition)
		off, err := c.offsets.GetOffset(c.topic, partition)
		if err != nil {
			c.logger.Info("offset not found, starting from beginning",
				zap.String("topic", c.topic), zap.Int("partition", partition))
			parts[i].Offset = ck.OffsetBeginning
			continue
		}
		c.logger.Info("resuming partition",
			zap.String("topic", c.topic), zap.Int("partition", partition), zap.Int64("offset", off))
		parts[i].Offset = ck.Offset(off + 1)
	}
	return parts
}

// Read waits up to the poll timeout for the next message. It returns nil, nil
// when the timeout elapses with nothing to read.
func (c *Consumer) Read() (*Message, error) {
	msg, err := c.c.ReadMessage(c.pollTimeout)
	if err != nil {
		var ke ck.Error
		if errors.As(err, &ke) && ke.Code() == ck.ErrTimedOut {
			return nil, nil
		}
		return nil, err
	}

	out := &Message{
		Key:       msg.Key,
		Value:     msg.Value,
		Offset:    int64(msg.TopicPartition.Offset),
		Partition: int(msg.TopicPartition.Partition),
		Time:      msg.Timestamp,
	}
	if msg.TopicPartition.Topic != nil {
		out.Topic = *msg.TopicPartition.Topic
	}
	return out, nil
}

// CommitBatch commits a group of messages in one RPC to reduce overhead.
func (c *Consumer) CommitBatch(msgs []*Message) error {
	if len(msgs) == 0 {
		return nil
	}
	tps, err := commitPositions(c.topic, msgs)
	if err != nil {
		return err
	}
	if _, err := c.c.CommitOffsets(tps); err != nil {
		return fmt.Errorf("commit batch failed: %w", err)
	}
	return nil
}

// commitPositions returns the highest offset+1 per partition.
func commitPositions(topic string, msgs []*Message) ([]ck.TopicPartition, error) {
	byPart := make(map[int]int64)
	for _, m := range msgs {
		next := m.Offset + 1
		if curr, ok := byPart[m.Partition]; !ok || next > curr {
			byPart[m.Partition] = next
		}
	}
	tps := make([]ck.TopicPartition, 0, len(byPart))
	for p, off := range byPart {
		if p > maxInt32 { // Ensure partition fits in int32
			return nil, fmt.Errorf("partition %d exceeds int32 limit", p)
		}
		tps = append(tps, ck.TopicPartition{
			Topic:     &topic,
			Partition: int32(p), //nolint:gosec // Bounded by int32 max check above
			Offset:    ck.Offset(off),
		})
	}
	return tps, nil
}

func (c *Consumer) Close() error { return c.c.Close() }
