package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/riferrei/srclient"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/siqueiraa/deschemaer/pkg/avro"
	"github.com/siqueiraa/deschemaer/pkg/cdc"
	"github.com/siqueiraa/deschemaer/pkg/config"
	"github.com/siqueiraa/deschemaer/pkg/faker"
	"github.com/siqueiraa/deschemaer/pkg/kafka"
	"github.com/siqueiraa/deschemaer/pkg/logging"
)

var (
	cfgFile string
	count   int
)

var rootCmd = &cobra.Command{
	Use:           "fakegen",
	Short:         "Publish synthetic review CDC messages",
	Long:          `fakegen encodes random reviews with the fixed key and value schemas and publishes them to the input topic, one every emitter interval.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(_ *cobra.Command, _ []string) error {
		if count < 0 {
			return errors.New("--count must not be negative")
		}
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
		return generate(ctx, cfg, count, logger.Named("fakegen"))
	},
}

func init() {
	rootCmd.Flags().StringVar(&cfgFile, "config", "config.yaml", "config file")
	rootCmd.Flags().IntVar(&count, "count", 0, "messages to send (0 = until interrupted)")
}

func generate(ctx context.Context, cfg config.AppConfig, count int, logger *zap.Logger) error {
	keyEnc, err := cdc.ParseEncoding(cfg.Input.KeyEncoding)
	if err != nil {
		return err
	}
	valueEnc, err := cdc.ParseEncoding(cfg.Input.ValueEncoding)
	if err != nil {
		return err
	}

	ids, err := schemaIDs(cfg, logger)
	if err != nil {
		return err
	}

	producer := kafka.NewProducer(cfg.Kafka, logger)
	defer producer.Close()

	gen := faker.NewGenerator(time.Now().UnixNano(), keyEnc, valueEnc, ids)
	ticker := time.NewTicker(cfg.Emitter.Interval)
	defer ticker.Stop()

	logger.Info("starting review generation", zap.String("topic", cfg.Kafka.InputTopic))
	for sent := 0; count == 0 || sent < count; sent++ {
		if err := gen.Publish(ctx, producer, cfg.Kafka.InputTopic, logger); err != nil {
			logger.Error("publish failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

// schemaIDs returns nil for the raw wire format. Confluent framing without a
// registry uses zero ids.
func schemaIDs(cfg config.AppConfig, logger *zap.Logger) (*avro.SchemaIDs, error) {
	if cfg.Input.WireFormat != config.WireFormatConfluent {
		return nil, nil
	}
	if cfg.Kafka.SchemaRegistry == "" {
		return &avro.SchemaIDs{}, nil
	}
	logger.Info("registering schemas", zap.String("registry", cfg.Kafka.SchemaRegistry))
	client := srclient.CreateSchemaRegistryClient(cfg.Kafka.SchemaRegistry)
	ids, err := avro.NewRegistry(client).RegisterCatalog(avro.DefaultCatalog(),
		cfg.Kafka.InputTopic+"-key", cfg.Kafka.InputTopic+"-value")
	if err != nil {
		return nil, err
	}
	return &ids, nil
}
