// Package metrics exposes Prometheus metrics for simulation runs.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wfsim"

// Run statuses used as the status label.
const (
	StatusSuccess   = "success"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

// Metrics holds the simulation collectors on their own registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// runs counts finished runs.
	// Labels: model, status (success, error, cancelled)
	runs *prometheus.CounterVec

	// replicates counts simulated replicates.
	// Labels: model
	replicates *prometheus.CounterVec

	// duration measures wall time of successful runs.
	// Labels: model
	duration *prometheus.HistogramVec

	// probability is the estimate of the most recent successful run.
	// Labels: model
	probability *prometheus.GaugeVec
}

// New creates a Metrics with its collectors registered. withRuntime adds the
// Go runtime and process collectors, which long-lived servers want and
// batch textfile exports do not.
func New(withRuntime bool) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total simulation runs by model and outcome",
		}, []string{"model", "status"}),
		replicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replicates_total",
			Help:      "Total replicates simulated",
		}, []string{"model"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of successful simulation runs",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"model"}),
		probability: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "persistence_probability",
			Help:      "Persistence probability estimated by the most recent run",
		}, []string{"model"}),
	}
	m.registry.MustRegister(m.runs, m.replicates, m.duration, m.probability)
	if withRuntime {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// ObserveRun records a successful run.
func (m *Metrics) ObserveRun(model string, replicates int, elapsed time.Duration, probability float64) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(model, StatusSuccess).Inc()
	m.replicates.WithLabelValues(model).Add(float64(replicates))
	m.duration.WithLabelValues(model).Observe(elapsed.Seconds())
	m.probability.WithLabelValues(model).Set(probability)
}

// ObserveFailure records a run that did not produce a result.
func (m *Metrics) ObserveFailure(model string, err error) {
	if m == nil {
		return
	}
	status := StatusError
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		status = StatusCancelled
	}
	m.runs.WithLabelValues(model, status).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the registry to path in the text format read by the
// node exporter's textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
