// Package metrics exposes Prometheus counters for the movement lifecycle.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the application collectors.
type Recorder struct {
	registry *prometheus.Registry

	Movements      *prometheus.CounterVec
	BalanceEntries *prometheus.CounterVec
	Launches       prometheus.Counter
	OutboxRelayed  *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates a Recorder registered on its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		Movements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webbudget",
			Name:      "movement_events_total",
			Help:      "Movement lifecycle events by event name.",
		}, []string{"event"}),
		BalanceEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webbudget",
			Name:      "wallet_balance_entries_total",
			Help:      "Wallet ledger rows appended by type.",
		}, []string{"type"}),
		Launches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "webbudget",
			Name:      "fixed_movement_launches_total",
			Help:      "Movements generated from fixed movements.",
		}),
		OutboxRelayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webbudget",
			Name:      "outbox_relayed_total",
			Help:      "Outbox events processed by the relay, by result.",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webbudget",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "webbudget",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latencies in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "status"}),
	}
	r.registry.MustRegister(
		r.Movements, r.BalanceEntries, r.Launches, r.OutboxRelayed,
		r.httpRequests, r.httpDuration,
		collectors.NewGoCollector(),
	)
	return r
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Instrument measures request count and latency.
func (r *Recorder) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, req)

		status := strconv.Itoa(sw.code)
		r.httpDuration.WithLabelValues(req.Method, status).Observe(time.Since(start).Seconds())
		r.httpRequests.WithLabelValues(req.Method, status).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
