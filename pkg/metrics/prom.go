package metrics

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Record outcomes.
const (
	OutcomePublished  = "published"
	OutcomeSkipped    = "skipped"
	OutcomeDeadLetter = "deadletter"
	OutcomeFailed     = "failed"
)

var (
	Records = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deschemaer_records_total",
			Help: "Total number of consumed records by outcome",
		},
		[]string{"outcome"},
	)

	DecodeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deschemaer_decode_errors_total",
			Help: "Total number of records that failed to decode, by reason",
		},
		[]string{"reason"},
	)

	PublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deschemaer_publish_errors_total",
			Help: "Total number of publish errors by sink",
		},
		[]string{"sink"},
	)

	TransformDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deschemaer_transform_duration_seconds",
			Help:    "Time spent decoding, merging and serialising one record",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
		},
	)
)

// ServerOptions configures the metrics endpoint. Zero fields take defaults.
type ServerOptions struct {
	Addr              string
	Path              string
	ShutdownTimeout   time.Duration
	ReadHeaderTimeout time.Duration
}

func (o ServerOptions) withDefaults() ServerOptions {
	o.Addr = cmp.Or(o.Addr, ":9100")
	o.Path = cmp.Or(o.Path, "/metrics")
	o.ShutdownTimeout = cmp.Or(o.ShutdownTimeout, 5*time.Second)
	o.ReadHeaderTimeout = cmp.Or(o.ReadHeaderTimeout, 3*time.Second)
	return o
}

// Serve binds opts.Addr and exposes the default registry on opts.Path until
// ctx is done. A bind failure is returned to the caller; on success the bound
// address is returned and wg tracks the serving goroutine.
func Serve(ctx context.Context, wg *sync.WaitGroup, opts ServerOptions, logger *zap.Logger) (net.Addr, error) {
	opts = opts.withDefaults()
	logger = logger.Named("metrics")

	ln, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listen %s: %w", opts.Addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle(opts.Path, promhttp.Handler())
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: opts.ReadHeaderTimeout,
	}
	logger.Info("serving metrics", zap.Stringer("addr", ln.Addr()), zap.String("path", opts.Path))

	served := make(chan error, 1)
	go func() { served <- server.Serve(ln) }()

	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case err := <-served:
			logger.Error("metrics server stopped", zap.Error(err))
			return
		case <-ctx.Done():
		}

		sctx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(sctx); err != nil {
			logger.Warn("metrics shutdown", zap.Error(err))
		}
		if err := <-served; !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
	return ln.Addr(), nil
}
