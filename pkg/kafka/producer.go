package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/siqueiraa/deschemaer/pkg/config"
)

const (
	batchTimeoutMillis = 100 // Batch timeout in milliseconds
	writeTimeoutSecs   = 10  // Per-attempt write timeout in seconds
	maxPublishRetries  = 5
	initialBackoff     = 200 * time.Millisecond
	maxBackoff         = 5 * time.Second
)

// Header is an extra key/value pair attached to a produced message.
type Header = kafka.Header

// Producer wraps a kafka.Writer and retries failed writes with exponential
// backoff.
type Producer struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewProducer creates a new Kafka producer for cfg.Brokers. The topic is
// chosen per message.
func NewProducer(cfg config.KafkaConfig, logger *zap.Logger) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: batchTimeoutMillis * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}
	return &Producer{writer: w, logger: logger.Named("producer")}
}

// Publish writes one message. The key is passed through unchanged so
// downstream partitioning matches the input.
func (p *Producer) Publish(ctx context.Context, topic string, key, value []byte, headers ...Header) error {
	msg := kafka.Message{
		Topic:   topic,
		Key:     key,
		Value:   value,
		Headers: headers,
		Time:    time.Now(),
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialBackoff
	b.MaxInterval = maxBackoff

	attempt := 0
	operation := func() error {
		attempt++
		wctx, cancel := context.WithTimeout(ctx, writeTimeoutSecs*time.Second)
		defer cancel()
		err := p.writer.WriteMessages(wctx, msg)
		if err != nil {
			p.logger.Warn("publish failed", zap.String("topic", topic), zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	}

	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, maxPublishRetries), ctx)); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Close shuts down the writer cleanly.
func (p *Producer) Close() error {
	return p.writer.Close()
}
