package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Accepted enum values
const (
	EncodingRaw    = "raw"
	EncodingBase64 = "base64"

	WireFormatRaw       = "raw"
	WireFormatConfluent = "confluent"

	OnErrorSkip       = "skip"
	OnErrorDeadLetter = "deadletter"
	OnErrorHalt       = "halt"

	SinkKafka  = "kafka"
	SinkNATS   = "nats"
	SinkMQTT   = "mqtt"
	SinkStdout = "stdout"
)

// Named type to allow reuse and clearer code
type KafkaConfig struct {
	Brokers         []string      `yaml:"brokers"`
	GroupID         string        `yaml:"groupID"`
	InputTopic      string        `yaml:"inputTopic"`
	OutputTopic     string        `yaml:"outputTopic"`
	DeadLetterTopic string        `yaml:"deadLetterTopic"`
	SchemaRegistry  string        `yaml:"schemaRegistry"`
	PollTimeout     time.Duration `yaml:"pollTimeout"`
}

// InputConfig says how each half of an incoming message is wrapped.
type InputConfig struct {
	KeyEncoding   string `yaml:"keyEncoding"`
	ValueEncoding string `yaml:"valueEncoding"`
	WireFormat    string `yaml:"wireFormat"`

	// Ignore bytes left after the last field instead of failing the record.
	AllowTrailingBytes bool `yaml:"allowTrailingBytes"`
}

type ProcessingConfig struct {
	Workers        int           `yaml:"workers"`
	OnError        string        `yaml:"onError"`
	CommitBatch    int           `yaml:"commitBatch"`
	CommitInterval time.Duration `yaml:"commitInterval"`
}

type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"clientID"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
}

type SinkConfig struct {
	Type string     `yaml:"type"`
	NATS NATSConfig `yaml:"nats"`
	MQTT MQTTConfig `yaml:"mqtt"`
}

type S3Config struct {
	Enabled   bool   `yaml:"enabled"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Endpoint  string `yaml:"endpoint"`
	Prefix    string `yaml:"prefix"`
}

type CheckpointConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	S3       S3Config      `yaml:"s3"`
}

type StateConfig struct {
	Path       string           `yaml:"path"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

type AppConfig struct {
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Kafka      KafkaConfig      `yaml:"kafka"`
	Input      InputConfig      `yaml:"input"`
	Processing ProcessingConfig `yaml:"processing"`
	Sink       SinkConfig       `yaml:"sink"`
	State      StateConfig      `yaml:"state"`
	Metrics    MetricsConfig    `yaml:"metrics"`

	// Emitter paces the fake data generator.
	Emitter struct {
		Interval time.Duration `yaml:"interval"`
	} `yaml:"emitter"`
}

// Default returns the configuration used for any key the file leaves out.
// The input defaults match the usual CDC layout: base64 partition key, raw
// Avro body.
func Default() AppConfig {
	var cfg AppConfig
	cfg.Log.Level = "info"
	cfg.Kafka.GroupID = "deschemaer"
	cfg.Kafka.PollTimeout = 5 * time.Second
	cfg.Input = InputConfig{
		KeyEncoding:   EncodingBase64,
		ValueEncoding: EncodingRaw,
		WireFormat:    WireFormatRaw,
	}
	cfg.Processing = ProcessingConfig{
		Workers:        1,
		OnError:        OnErrorSkip,
		CommitBatch:    100,
		CommitInterval: 5 * time.Second,
	}
	cfg.Sink.Type = SinkKafka
	cfg.State.Path = "data/state"
	cfg.State.Checkpoint.Interval = 5 * time.Minute
	cfg.Metrics.Addr = ":9100"
	cfg.Metrics.Path = "/metrics"
	cfg.Emitter.Interval = 1 * time.Second
	return cfg
}

// Load reads and parses a YAML config file on top of Default and validates
// the result.
func Load(path string) (AppConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every problem found, joined into one error.
func (c *AppConfig) Validate() error {
	var errs []error

	if len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers is required"))
	}
	if c.Kafka.InputTopic == "" {
		errs = append(errs, errors.New("kafka.inputTopic is required"))
	}
	if c.Kafka.GroupID == "" {
		errs = append(errs, errors.New("kafka.groupID is required"))
	}

	errs = append(errs,
		oneOf("input.keyEncoding", c.Input.KeyEncoding, EncodingRaw, EncodingBase64),
		oneOf("input.valueEncoding", c.Input.ValueEncoding, EncodingRaw, EncodingBase64),
		oneOf("input.wireFormat", c.Input.WireFormat, WireFormatRaw, WireFormatConfluent),
		oneOf("processing.onError", c.Processing.OnError, OnErrorSkip, OnErrorDeadLetter, OnErrorHalt),
		oneOf("sink.type", c.Sink.Type, SinkKafka, SinkNATS, SinkMQTT, SinkStdout),
	)

	if c.Processing.Workers < 1 {
		errs = append(errs, errors.New("processing.workers must be at least 1"))
	}
	if c.Processing.CommitBatch < 1 {
		errs = append(errs, errors.New("processing.commitBatch must be at least 1"))
	}
	if c.Processing.OnError == OnErrorDeadLetter && c.Kafka.DeadLetterTopic == "" {
		errs = append(errs, errors.New("kafka.deadLetterTopic is required when processing.onError is deadletter"))
	}

	switch c.Sink.Type {
	case SinkKafka:
		if c.Kafka.OutputTopic == "" {
			errs = append(errs, errors.New("kafka.outputTopic is required for the kafka sink"))
		}
	case SinkNATS:
		if c.Sink.NATS.Subject == "" {
			errs = append(errs, errors.New("sink.nats.subject is required"))
		}
	case SinkMQTT:
		if c.Sink.MQTT.Broker == "" || c.Sink.MQTT.Topic == "" {
			errs = append(errs, errors.New("sink.mqtt.broker and sink.mqtt.topic are required"))
		}
		if c.Sink.MQTT.QoS > 2 {
			errs = append(errs, errors.New("sink.mqtt.qos must be 0, 1 or 2"))
		}
	}

	if c.State.Checkpoint.Enabled && c.State.Checkpoint.Interval <= 0 {
		errs = append(errs, errors.New("state.checkpoint.interval must be positive"))
	}
	if c.State.Checkpoint.S3.Enabled && c.State.Checkpoint.S3.Bucket == "" {
		errs = append(errs, errors.New("state.checkpoint.s3.bucket is required when S3 is enabled"))
	}

	return errors.Join(errs...)
}

func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s: unknown value %q (want one of %v)", key, value, allowed)
}
