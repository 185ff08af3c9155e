package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/siqueiraa/deschemaer/pkg/avro"
	"github.com/siqueiraa/deschemaer/pkg/cdc"
	"github.com/siqueiraa/deschemaer/pkg/config"
	"github.com/siqueiraa/deschemaer/pkg/kafka"
	"github.com/siqueiraa/deschemaer/pkg/metrics"
	"github.com/siqueiraa/deschemaer/pkg/sink"
	"github.com/siqueiraa/deschemaer/pkg/state"
)

const (
	workerQueueSize      = 256 // Buffered messages per worker
	readRetryInitial     = 50 * time.Millisecond
	readRetryMax         = 5 * time.Second
	reasonSchemaConflict = "schema_conflict"
	reasonOther          = "other"
)

// Source is the part of kafka.Consumer the engine reads from.
type Source interface {
	Read() (*kafka.Message, error)
	CommitBatch(msgs []*kafka.Message) error
}

// DeadLetterer receives messages that could not be transformed.
type DeadLetterer interface {
	Send(ctx context.Context, msg *kafka.Message, reason string, cause error) error
}

// Settings are the processing knobs of one engine.
type Settings struct {
	Workers        int
	OnError        string
	CommitBatch    int
	CommitInterval time.Duration
	KeyEncoding    cdc.Encoding
	ValueEncoding  cdc.Encoding
}

// SettingsFrom extracts engine settings from the application config.
func SettingsFrom(cfg config.AppConfig) (Settings, error) {
	keyEnc, err := cdc.ParseEncoding(cfg.Input.KeyEncoding)
	if err != nil {
		return Settings{}, fmt.Errorf("input.keyEncoding: %w", err)
	}
	valueEnc, err := cdc.ParseEncoding(cfg.Input.ValueEncoding)
	if err != nil {
		return Settings{}, fmt.Errorf("input.valueEncoding: %w", err)
	}
	return Settings{
		Workers:        cfg.Processing.Workers,
		OnError:        cfg.Processing.OnError,
		CommitBatch:    cfg.Processing.CommitBatch,
		CommitInterval: cfg.Processing.CommitInterval,
		KeyEncoding:    keyEnc,
		ValueEncoding:  valueEnc,
	}, nil
}

// Engine consumes CDC messages, turns each into one JSON document and
// publishes it. Messages of one partition always go to the same worker, so
// output order per partition matches input order.
type Engine struct {
	src         Source
	transformer *cdc.Transformer
	sink        sink.Sink
	deadLetter  DeadLetterer
	offsets     state.OffsetStore
	settings    Settings
	logger      *zap.Logger

	mu       sync.Mutex
	pending  []*kafka.Message
	commitMu sync.Mutex
}

// New wires an engine. deadLetter may be nil unless OnError is deadletter.
func New(
	src Source,
	tr *cdc.Transformer,
	out sink.Sink,
	deadLetter DeadLetterer,
	offsets state.OffsetStore,
	settings Settings,
	logger *zap.Logger,
) (*Engine, error) {
	if settings.Workers < 1 {
		settings.Workers = 1
	}
	if settings.CommitBatch < 1 {
		settings.CommitBatch = 1
	}
	if settings.OnError == config.OnErrorDeadLetter && deadLetter == nil {
		return nil, errors.New("engine: deadletter policy needs a dead-letter sink")
	}
	return &Engine{
		src:         src,
		transformer: tr,
		sink:        out,
		deadLetter:  deadLetter,
		offsets:     offsets,
		settings:    settings,
		logger:      logger.Named("engine"),
	}, nil
}

// Run processes messages until ctx is canceled or a worker fails. Offsets of
// every message handled before the stop are committed on the way out.
func (e *Engine) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	queues := make([]chan *kafka.Message, e.settings.Workers)
	for i := range queues {
		queues[i] = make(chan *kafka.Message, workerQueueSize)
		q := queues[i]
		g.Go(func() error { return e.work(gctx, q) })
	}

	g.Go(func() error {
		defer func() {
			for _, q := range queues {
				close(q)
			}
		}()
		return e.read(gctx, queues)
	})

	if e.settings.CommitInterval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(e.settings.CommitInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					if err := e.commit(); err != nil {
						e.logger.Error("periodic commit failed", zap.Error(err))
					}
				}
			}
		})
	}

	err := g.Wait()
	if cerr := e.commit(); cerr != nil {
		e.logger.Error("final commit failed", zap.Error(cerr))
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (e *Engine) read(ctx context.Context, queues []chan *kafka.Message) error {
	retry := newReadBackOff()
	for {
		if ctx.Err() != nil {
			return nil
		}
		msg, err := e.src.Read()
		if err != nil {
			wait := retry.NextBackOff()
			e.logger.Warn("read error", zap.Error(err), zap.Duration("retryIn", wait))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		retry.Reset()
		if msg == nil {
			continue
		}
		q := queues[route(msg.Topic, msg.Partition, len(queues))]
		select {
		case q <- msg:
		case <-ctx.Done():
			return nil
		}
	}
}

// newReadBackOff paces reads after a failed poll. It never gives up; the
// read loop ends only when its context does.
func newReadBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = readRetryInitial
	b.MaxInterval = readRetryMax
	b.MaxElapsedTime = 0
	return b
}

// route picks the worker for a topic partition.
func route(topic string, partition, workers int) int {
	h := xxhash.New()
	_, _ = h.WriteString(topic)
	_, _ = h.Write([]byte{':'})
	_, _ = h.Write(strconv.AppendInt(nil, int64(partition), 10))
	return int(h.Sum64() % uint64(workers)) //nolint:gosec // workers is small and positive
}

func (e *Engine) work(ctx context.Context, q <-chan *kafka.Message) error {
	for msg := range q {
		// Anything still queued after a stop is left uncommitted and read
		// again on restart.
		if ctx.Err() != nil {
			return nil
		}
		if err := e.Handle(ctx, msg); err != nil {
			return err
		}
		if err := e.markDone(msg); err != nil {
			e.logger.Error("commit failed", zap.Error(err))
		}
	}
	return nil
}

// Handle transforms and publishes one message. A transform failure is
// resolved by the OnError policy; a publish failure is always returned.
func (e *Engine) Handle(ctx context.Context, msg *kafka.Message) error {
	start := time.Now()
	doc, err := e.transformer.TransformBytes(
		cdc.NewPayload(msg.Key, e.settings.KeyEncoding),
		cdc.NewPayload(msg.Value, e.settings.ValueEncoding),
	)
	metrics.TransformDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return e.handleTransformError(ctx, msg, err)
	}

	if err := e.sink.Publish(ctx, msg.Key, doc); err != nil {
		metrics.PublishErrors.WithLabelValues(e.sink.Name()).Inc()
		metrics.Records.WithLabelValues(metrics.OutcomeFailed).Inc()
		return fmt.Errorf("publish %s/%d@%d: %w", msg.Topic, msg.Partition, msg.Offset, err)
	}
	metrics.Records.WithLabelValues(metrics.OutcomePublished).Inc()
	return nil
}

func (e *Engine) handleTransformError(ctx context.Context, msg *kafka.Message, cause error) error {
	reason := reasonOf(cause)
	metrics.DecodeErrors.WithLabelValues(reason).Inc()
	fields := []zap.Field{
		zap.String("topic", msg.Topic),
		zap.Int("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
		zap.String("reason", reason),
		zap.Error(cause),
	}

	switch e.settings.OnError {
	case config.OnErrorDeadLetter:
		if err := e.deadLetter.Send(ctx, msg, reason, cause); err != nil {
			metrics.PublishErrors.WithLabelValues("deadletter").Inc()
			metrics.Records.WithLabelValues(metrics.OutcomeFailed).Inc()
			return fmt.Errorf("dead-letter %s/%d@%d: %w", msg.Topic, msg.Partition, msg.Offset, err)
		}
		e.logger.Warn("message sent to dead-letter topic", fields...)
		metrics.Records.WithLabelValues(metrics.OutcomeDeadLetter).Inc()
		return nil
	case config.OnErrorHalt:
		e.logger.Error("halting on undecodable message", fields...)
		metrics.Records.WithLabelValues(metrics.OutcomeFailed).Inc()
		return fmt.Errorf("transform %s/%d@%d: %w", msg.Topic, msg.Partition, msg.Offset, cause)
	default:
		e.logger.Warn("skipping undecodable message", fields...)
		metrics.Records.WithLabelValues(metrics.OutcomeSkipped).Inc()
		return nil
	}
}

// reasonOf labels a transform error for metrics and dead-letter headers.
func reasonOf(err error) string {
	var de *avro.DecodeError
	if errors.As(err, &de) {
		return de.Reason()
	}
	var conflict *cdc.SchemaConflictError
	if errors.As(err, &conflict) {
		return reasonSchemaConflict
	}
	return reasonOther
}

func (e *Engine) markDone(msg *kafka.Message) error {
	e.mu.Lock()
	e.pending = append(e.pending, msg)
	full := len(e.pending) >= e.settings.CommitBatch
	e.mu.Unlock()
	if full {
		return e.commit()
	}
	return nil
}

// commit records the highest handled offset per partition in the state store
// and then commits it to the broker.
func (e *Engine) commit() error {
	e.commitMu.Lock()
	defer e.commitMu.Unlock()

	e.mu.Lock()
	batch := e.pending
	e.pending = nil
	e.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}

	for tp, off := range highestOffsets(batch) {
		if err := e.offsets.SaveOffset(tp.topic, tp.partition, off); err != nil {
			return fmt.Errorf("save offset %s/%d: %w", tp.topic, tp.partition, err)
		}
	}
	if err := e.src.CommitBatch(batch); err != nil {
		return err
	}
	e.logger.Debug("committed offsets", zap.Int("messages", len(batch)))
	return nil
}

type topicPartition struct {
	topic     string
	partition int
}

func highestOffsets(msgs []*kafka.Message) map[topicPartition]int64 {
	out := make(map[topicPartition]int64)
	for _, m := range msgs {
		tp := topicPartition{m.Topic, m.Partition}
		if curr, ok := out[tp]; !ok || m.Offset > curr {
			out[tp] = m.Offset
		}
	}
	return out
}
