package obs

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP metrics
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

	operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pitaka_operations_total",
			Help: "Bank operations by name and outcome.",
		},
		[]string{"op", "result"},
	)

	eventsPublishFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pitaka_event_publish_failures_total",
			Help: "Committed events that a sink failed to accept.",
		},
		[]string{"sink"},
	)

	ready = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pitaka_ready",
		Help: "1 when the API reports ready.",
	})

	initOnce sync.Once
	readyVal atomic.Bool
)

// Init registers the metrics in the default registry.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration,
			operationsTotal, eventsPublishFailures, ready)
	})
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordOperation counts a finished bank operation.
func RecordOperation(op, result string) {
	operationsTotal.WithLabelValues(op, result).Inc()
}

// RecordPublishFailure counts an event a sink rejected.
func RecordPublishFailure(sink string) {
	eventsPublishFailures.WithLabelValues(sink).Inc()
}

// SetReady flips the readiness flag reported by /readyz.
func SetReady(v bool) {
	readyVal.Store(v)
	if v {
		ready.Set(1)
	} else {
		ready.Set(0)
	}
}

func IsReady() bool { return readyVal.Load() }

// staticSegments are second-level path segments that name an action, not a resource id.
var staticSegments = map[string]bool{
	"register": true, "login": true,
	"deposit": true, "withdraw": true, "transfer": true,
	"internal": true, "external": true, "interbank": true,
	"buy": true, "sell": true, "ws": true,
}

// CanonicalPath collapses resource ids to ":id" so metrics labels stay bounded.
// /v1/loans/01J.../payments becomes /v1/loans/:id/payments.
func CanonicalPath(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" || p == "/" {
		return "/"
	}
	parts := strings.Split(strings.Trim(p, "/"), "/")
	if len(parts) >= 3 && parts[0] == "v1" && !staticSegments[parts[2]] {
		parts[2] = ":id"
	}
	return "/" + strings.Join(parts, "/")
}

// Instrument measures rate, latency and in-flight requests.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
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

// Flush keeps SSE streaming working through the wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("%T does not support hijacking", w.ResponseWriter)
	}
	return h.Hijack()
}
