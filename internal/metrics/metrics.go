package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the acquisition counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	requests        *prometheus.CounterVec
	retries         *prometheus.CounterVec
	items           *prometheus.CounterVec
	sessionDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_http_requests_total",
			Help: "Logical HTTP requests by source and outcome (ok or failure kind)",
		}, []string{"source", "outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_http_retries_total",
			Help: "HTTP attempts repeated after a retryable failure",
		}, []string{"source"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_session_items_total",
			Help: "Items seen by collect sessions by result (fetched, validated, failed)",
		}, []string{"source", "result"}),
		sessionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ingest_session_duration_seconds",
			Help:    "Wall time of one collect session",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~34min
		}, []string{"source"}),
	}

	for _, c := range []prometheus.Collector{m.requests, m.retries, m.items, m.sessionDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveRequest counts one logical request
func (m *Metrics) ObserveRequest(source, outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(source, outcome).Inc()
}

// ObserveRetry counts one repeated attempt
func (m *Metrics) ObserveRetry(source string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(source).Inc()
}

// ObserveSession records the totals of a finished session
func (m *Metrics) ObserveSession(source string, fetched, validated, failed int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.items.WithLabelValues(source, "fetched").Add(float64(fetched))
	m.items.WithLabelValues(source, "validated").Add(float64(validated))
	m.items.WithLabelValues(source, "failed").Add(float64(failed))
	m.sessionDuration.WithLabelValues(source).Observe(elapsed.Seconds())
}

// Serve exposes /metrics for gatherer on addr until ctx is done
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
