// Package server — metrics.go registers all Prometheus metrics for the HTTP
// server and exposes helpers used by handlers and middleware.
package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric label values shared across registrations.
const (
	// labelHandler is the "handler" label value used to partition metrics by
	// the logical endpoint name rather than the raw URL path.
	labelHandler = "handler"
)

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// aiRequestsTotal counts completed /ai requests, partitioned by
	// outcome: "ok", "timeout", or "error".
	aiRequestsTotal *prometheus.CounterVec

	// aiDurationSeconds records the wall-clock duration of each /ai request
	// from receipt to the final answer.
	aiDurationSeconds *prometheus.HistogramVec

	// aiActiveRequests is the number of /ai turns currently in flight.
	aiActiveRequests prometheus.Gauge

	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, handler name, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics. promauto.With(reg) is used so that each call
// registers into the provided registry rather than the global default —
// this keeps unit tests hermetic.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		aiRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cosmo",
			Subsystem: "ai",
			Name:      "requests_total",
			Help:      "Total number of /ai requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		aiDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cosmo",
			Subsystem: "ai",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of /ai requests from receipt to final answer.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}, []string{"outcome"}),

		aiActiveRequests: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "cosmo",
			Subsystem: "ai",
			Name:      "active_requests",
			Help:      "Number of /ai conversation turns currently in flight.",
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cosmo",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cosmo",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}

// instrument wraps a handler with per-request counters and latency recording
// under the given logical handler name.
func (s *Server) instrument(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		start := time.Now()
		next.ServeHTTP(rw, r)

		s.metrics.httpRequestsTotal.WithLabelValues(r.Method, name, strconv.Itoa(rw.status)).Inc()
		s.metrics.httpDurationSeconds.WithLabelValues(r.Method, name).Observe(time.Since(start).Seconds())
	})
}
