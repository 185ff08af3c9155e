package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/siqueiraa/deschemaer/pkg/config"
)

// HeaderKey carries the original message key on sinks without a native key.
const HeaderKey = "Deschemaer-Key"

// NATS publishes documents to one core NATS subject.
type NATS struct {
	nc      *nats.Conn
	subject string
	logger  *zap.Logger
}

func NewNATS(cfg config.NATSConfig, logger *zap.Logger) (*NATS, error) {
	if cfg.Subject == "" {
		return nil, fmt.Errorf("nats sink needs a subject")
	}
	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	logger = logger.Named("nats")

	nc, err := nats.Connect(url,
		nats.Name("deschemaer"),
		nats.Timeout(5*time.Second),
		nats.PingInterval(10*time.Second),
		nats.MaxPingsOutstanding(3),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("disconnected", zap.Error(err))
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS server: %w", err)
	}
	return &NATS{nc: nc, subject: cfg.Subject, logger: logger}, nil
}

func (n *NATS) Name() string { return "nats" }

func (n *NATS) Publish(_ context.Context, key, doc []byte) error {
	msg := nats.NewMsg(n.subject)
	msg.Data = doc
	if len(key) > 0 {
		msg.Header.Set(HeaderKey, string(key))
	}
	if err := n.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// Close flushes pending messages before closing the connection.
func (n *NATS) Close() error {
	if n.nc == nil {
		return nil
	}
	err := n.nc.Drain()
	if err != nil {
		n.nc.Close()
	}
	return err
}
