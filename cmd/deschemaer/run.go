package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/riferrei/srclient"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/siqueiraa/deschemaer/pkg/avro"
	"github.com/siqueiraa/deschemaer/pkg/cdc"
	"github.com/siqueiraa/deschemaer/pkg/config"
	"github.com/siqueiraa/deschemaer/pkg/engine"
	"github.com/siqueiraa/deschemaer/pkg/kafka"
	"github.com/siqueiraa/deschemaer/pkg/logging"
	"github.com/siqueiraa/deschemaer/pkg/metrics"
	"github.com/siqueiraa/deschemaer/pkg/sink"
	"github.com/siqueiraa/deschemaer/pkg/state"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Consume, transform and publish until interrupted",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		logger, err := logging.New(cfg.Log.Level)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runPipeline(ctx, cfg, logger)
	},
}

func defaultCatalog() avro.Catalog { return avro.DefaultCatalog() }

func runPipeline(ctx context.Context, cfg config.AppConfig, logger *zap.Logger) error {
	logger.Info("starting deschemaer",
		zap.String("inputTopic", cfg.Kafka.InputTopic),
		zap.String("sink", cfg.Sink.Type),
		zap.Int("workers", cfg.Processing.Workers))

	store, err := state.Open(ctx, cfg.Kafka.GroupID, cfg.State, logger)
	if err != nil {
		return fmt.Errorf("open state: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("close state", zap.Error(err))
		}
	}()

	tr, err := newTransformer(cfg, logger)
	if err != nil {
		return err
	}

	var producer *kafka.Producer
	if cfg.Sink.Type == config.SinkKafka || cfg.Processing.OnError == config.OnErrorDeadLetter {
		producer = kafka.NewProducer(cfg.Kafka, logger)
		defer producer.Close()
	}

	var pub sink.Publisher
	if producer != nil {
		pub = producer
	}
	out, err := sink.New(cfg, pub, logger)
	if err != nil {
		return fmt.Errorf("create sink: %w", err)
	}
	defer out.Close()

	var deadLetter engine.DeadLetterer
	if cfg.Processing.OnError == config.OnErrorDeadLetter {
		deadLetter = sink.NewDeadLetter(producer, cfg.Kafka.DeadLetterTopic)
	}

	consumer, err := kafka.NewConsumer(cfg.Kafka, store, logger)
	if err != nil {
		return err
	}
	defer consumer.Close()

	settings, err := engine.SettingsFrom(cfg)
	if err != nil {
		return err
	}
	eng, err := engine.New(consumer, tr, out, deadLetter, store, settings, logger)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	if cfg.Metrics.Enabled {
		if _, err := metrics.Serve(ctx, &wg, metrics.ServerOptions{
			Addr: cfg.Metrics.Addr,
			Path: cfg.Metrics.Path,
		}, logger); err != nil {
			return err
		}
	}
	if cfg.State.Checkpoint.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runCheckpoints(ctx, store, cfg.State.Checkpoint.Interval, logger)
		}()
	}

	runErr := eng.Run(ctx)
	wg.Wait()

	if cfg.State.Checkpoint.Enabled {
		cctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := store.Checkpoint(cctx); err != nil {
			logger.Error("final checkpoint failed", zap.Error(err))
		}
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("engine stopped: %w", runErr)
	}
	logger.Info("deschemaer stopped")
	return nil
}

// newTransformer applies the input wire format. With a schema registry the
// fixed schemas are registered first and framed ids are checked against them.
func newTransformer(cfg config.AppConfig, logger *zap.Logger) (*cdc.Transformer, error) {
	cat := defaultCatalog()
	var opts []cdc.Option
	if cfg.Input.AllowTrailingBytes {
		opts = append(opts, cdc.WithTrailingBytes())
	}
	if cfg.Input.WireFormat != config.WireFormatConfluent {
		return cdc.NewTransformer(cat, opts...)
	}
	if cfg.Kafka.SchemaRegistry == "" {
		return cdc.NewTransformer(cat, append(opts, cdc.WithFraming())...)
	}

	client := srclient.CreateSchemaRegistryClient(cfg.Kafka.SchemaRegistry)
	ids, err := avro.NewRegistry(client).RegisterCatalog(cat, cfg.Kafka.InputTopic+"-key", cfg.Kafka.InputTopic+"-value")
	if err != nil {
		return nil, err
	}
	logger.Info("schemas registered", zap.Int("keyID", ids.Key), zap.Int("valueID", ids.Value))
	return cdc.NewTransformer(cat, append(opts, cdc.WithSchemaIDs(ids))...)
}

func runCheckpoints(ctx context.Context, store *state.Store, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := store.Checkpoint(ctx); err != nil {
				logger.Error("checkpoint failed", zap.Error(err))
			}
		}
	}
}
