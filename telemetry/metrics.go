// Package telemetry wires the pagination driver's batch-timing stream into
// Prometheus, and optionally exposes it over HTTP: a registry-owning
// collector type built once, plus an optional metrics-server convenience.
package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/n4jet/neo4j-export/paginate"
)

const (
	// MetricNamespace is the Prometheus namespace for every metric this
	// package registers.
	MetricNamespace = "n4jet"

	// MetricSubsystem groups the pagination-related metrics.
	MetricSubsystem = "export"

	// DefaultMetricsPort is the default promhttp listen port.
	DefaultMetricsPort = 9464

	// DefaultMetricsPath is the default exposition path.
	DefaultMetricsPath = "/metrics"

	serverReadHeaderTimeout = 10 * time.Second
	serverStartupTimeout    = 50 * time.Millisecond
)

// DefaultHistogramBuckets cover batch durations from 10ms (a fast SKIP/LIMIT
// batch on a small graph) to 80s (a slow batch against a loaded cluster).
var DefaultHistogramBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80,
}

// Recorder implements paginate.Recorder, mirroring every recorded batch
// duration into a Prometheus histogram labeled by entity_name and
// strategy, per SPEC_FULL.md's ambient-observability expansion.
type Recorder struct {
	BatchDuration *prometheus.HistogramVec
	BatchesTotal  *prometheus.CounterVec
	Registry      *prometheus.Registry
}

var _ paginate.Recorder = (*Recorder)(nil)

// NewRecorder creates a Recorder registered to a fresh prometheus.Registry,
// including the standard process/go collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(collectors.NewGoCollector())

	batchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: MetricNamespace,
			Subsystem: MetricSubsystem,
			Name:      "pagination_batch_duration_seconds",
			Help:      "Duration of one pagination batch round trip.",
			Buckets:   DefaultHistogramBuckets,
		},
		[]string{"entity_name", "strategy"},
	)
	batchesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricNamespace,
			Subsystem: MetricSubsystem,
			Name:      "pagination_batches_total",
			Help:      "Count of pagination batches processed.",
		},
		[]string{"entity_name", "strategy"},
	)
	reg.MustRegister(batchDuration, batchesTotal)

	return &Recorder{BatchDuration: batchDuration, BatchesTotal: batchesTotal, Registry: reg}
}

// RecordBatch implements paginate.Recorder.
func (r *Recorder) RecordBatch(entityName string, strategy paginate.Strategy, d time.Duration) {
	r.BatchDuration.WithLabelValues(entityName, string(strategy)).Observe(d.Seconds())
	r.BatchesTotal.WithLabelValues(entityName, string(strategy)).Inc()
}

// ServerConfig configures the optional metrics HTTP server.
type ServerConfig struct {
	Port     int
	Path     string
	Registry *prometheus.Registry
}

// StartServer starts a lightweight HTTP server exposing cfg.Registry (or a
// fresh registry if nil) at cfg.Path. The caller is responsible for calling
// Shutdown on the returned server.
func StartServer(cfg ServerConfig) (*http.Server, error) {
	port := cfg.Port
	if port == 0 {
		port = DefaultMetricsPort
	}
	path := cfg.Path
	if path == "" {
		path = DefaultMetricsPath
	}
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{EnableOpenMetrics: true}))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: serverReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return nil, fmt.Errorf("telemetry: starting metrics server: %w", err)
	case <-time.After(serverStartupTimeout):
	}
	return server, nil
}

// Shutdown is a convenience wrapper so callers do not need to import
// net/http solely to call server.Shutdown.
func Shutdown(ctx context.Context, server *http.Server) error {
	return server.Shutdown(ctx)
}
