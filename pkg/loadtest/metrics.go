package loadtest

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/informalsystems/cert-load-test/internal/logging"
)

const metricsShutdownTimeout = 10 * time.Second

// Outcome label values.
const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// Metrics holds the Prometheus metrics of a single load test run. Each run
// gets its own registry.
type Metrics struct {
	registry *prometheus.Registry

	requests      *prometheus.CounterVec   // Requests submitted, by round, function and outcome.
	latency       *prometheus.HistogramVec // Request latency including failures, by round and function.
	activeWorkers prometheus.Gauge         // Workers currently submitting requests.
	currentRound  prometheus.Gauge         // Index of the round underway (-1 if none).
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	m := &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "certloadtest_requests_total",
			Help: "The total number of requests submitted to the system under test",
		}, []string{"round", "function", "outcome"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "certloadtest_request_duration_seconds",
			Help:    "Time taken for the system under test to report the outcome of a request",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
		}, []string{"round", "function"}),
		activeWorkers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "certloadtest_active_workers",
			Help: "The number of workers currently submitting requests",
		}),
		currentRound: factory.NewGauge(prometheus.GaugeOpts{
			Name: "certloadtest_round",
			Help: "The index of the round currently underway (-1 if none)",
		}),
	}
	m.currentRound.Set(-1)
	return m
}

func (m *Metrics) observe(round, function string, elapsed time.Duration, err error) {
	outcome := outcomeSuccess
	if err != nil {
		outcome = outcomeFailure
	}
	m.requests.WithLabelValues(round, function, outcome).Inc()
	m.latency.WithLabelValues(round, function).Observe(elapsed.Seconds())
}

// Registry gives access to the run's metrics, e.g. for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes the metrics on "/metrics" at the given address in the
// background. The returned function shuts the server down.
func (m *Metrics) Serve(addr string, logger logging.Logger) (func(), error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	svr := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := svr.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "err", err)
		}
	}()
	logger.Info("Serving Prometheus metrics", "addr", "http://"+l.Addr().String()+"/metrics")
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := svr.Shutdown(ctx); err != nil {
			logger.Error("Failed to shut down metrics server", "err", err)
		}
	}, nil
}

func roundLabel(idx int, r *Round) string {
	return strconv.Itoa(idx) + ":" + r.Name()
}
