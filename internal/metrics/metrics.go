// Package metrics provides Prometheus instrumentation for the portfolio engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SellsTotal counts sell operations, partitioned by full vs partial.
	SellsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "folio_sells_total",
		Help: "Total number of sell operations executed",
	}, []string{"kind"})

	// DividendsRecorded counts dividend receipts recorded, by taxability.
	DividendsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "folio_dividends_recorded_total",
		Help: "Total number of dividend receipts recorded",
	}, []string{"taxable"})

	// QuoteFetches counts external price fetches by source and outcome.
	QuoteFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "folio_quote_fetches_total",
		Help: "External price fetch attempts",
	}, []string{"source", "outcome"})

	// QuoteFetchDuration tracks per-asset fetch latency by source.
	QuoteFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "folio_quote_fetch_duration_seconds",
		Help:    "External price fetch latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})

	// TrackedAssets gauges the number of holdings in the store.
	TrackedAssets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "folio_tracked_assets",
		Help: "Number of holdings currently tracked",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "folio_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "folio_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "folio_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label; the API surface is small enough
		// that cardinality stays bounded.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
