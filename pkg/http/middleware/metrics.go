package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	applogger "PolySwarm/pkg/logger"
)

var (
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyswarm_http_requests_total",
			Help: "HTTP requests by path, method and status",
		},
		[]string{"path", "method", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "polyswarm_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "polyswarm_http_in_flight_requests",
			Help: "Requests currently being served",
		},
	)

	regOnce sync.Once
)

// Metrics records request counts, latency and in-flight gauge, and logs 5xx
// and slow requests. Path is the raw URL path; the API surface is small and
// parameterless enough that cardinality stays bounded.
func Metrics(l *applogger.Logger, slowThreshold time.Duration) func(http.Handler) http.Handler {
	regOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, httpInFlight)
	})

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			httpInFlight.Inc()
			start := time.Now()

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			elapsed := time.Since(start)
			httpInFlight.Dec()
			httpRequests.WithLabelValues(r.URL.Path, r.Method, strconv.Itoa(sw.status)).Inc()
			httpDuration.WithLabelValues(r.URL.Path, r.Method).Observe(elapsed.Seconds())

			if l == nil {
				return
			}
			fields := []applogger.Field{
				applogger.String("path", r.URL.Path),
				applogger.String("method", r.Method),
				applogger.Int("status", sw.status),
				applogger.Duration("elapsed", elapsed),
			}
			if sw.status >= 500 {
				l.Error("http request failed", fields...)
			} else if slowThreshold > 0 && elapsed >= slowThreshold {
				l.Warn("http request slow", fields...)
			}
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
