package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	auditQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "audit_queue_depth",
		Help: "Audit entries waiting in the writer queue.",
	})

	auditEntriesWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audit_entries_written_total",
		Help: "Audit entries persisted by the background writer.",
	})

	auditEntriesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_entries_dropped_total",
			Help: "Audit entries discarded instead of persisted.",
		},
		[]string{"reason"},
	)
)

// Init registers service metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight,
		httpRequestsTotal,
		httpRequestDuration,
		auditQueueDepth,
		auditEntriesWritten,
		auditEntriesDropped,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument wraps a handler with RPS, latency and in-flight measurements.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path // no router, raw path as-is
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// SetAuditQueueDepth reports the current audit writer backlog.
func SetAuditQueueDepth(depth int) {
	auditQueueDepth.Set(float64(depth))
}

// AuditEntryWritten counts one persisted audit entry.
func AuditEntryWritten() {
	auditEntriesWritten.Inc()
}

// AuditEntryDropped counts one discarded audit entry by reason.
func AuditEntryDropped(reason string) {
	auditEntriesDropped.WithLabelValues(reason).Inc()
}

// statusWriter records the response code for labelling.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
