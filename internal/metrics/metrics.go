package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Places provider outcomes
const (
	OutcomeOK       = "ok"
	OutcomeFallback = "fallback"
	OutcomeError    = "error"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lunchly_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lunchly_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)

	PlacesRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lunchly_places_requests_total",
			Help: "Places provider calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	MessagesPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lunchly_realtime_messages_published_total",
			Help: "Chat messages published to the realtime broker",
		},
	)
)

// Register adds every collector to reg
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{RequestCounter, RequestDuration, PlacesRequests, MessagesPublished} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObservePlaces counts one places provider call
func ObservePlaces(operation, outcome string) {
	PlacesRequests.WithLabelValues(operation, outcome).Inc()
}

// Middleware records request count and latency labelled by chi route pattern
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		RequestCounter.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
