package middleware

import (
	"net/http"
	"strconv"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// Requests counts handled HTTP requests by method, path and status.
var Requests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "statsbackend",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests handled.",
	},
	[]string{"method", "path", "status"},
)

// Latency observes request durations by method and path.
var Latency = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "statsbackend",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "path"},
)

// Metrics records Prometheus metrics for every request.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		Requests.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(ww.Status())).Inc()
		Latency.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}
