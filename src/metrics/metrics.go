package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expenses_http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "expenses_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	ExpensesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "expenses_created_total",
			Help: "Total number of expenses created",
		},
	)

	ExpensesReplayed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "expenses_create_replayed_total",
			Help: "Total number of create requests answered from an earlier idempotency key",
		},
	)

	ExpensesDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "expenses_deleted_total",
			Help: "Total number of expenses deleted",
		},
	)

	ValidationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expenses_validation_failures_total",
			Help: "Total number of rejected create payloads by field",
		},
		[]string{"field"}, // title, amount, date
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expenses_cache_lookups_total",
			Help: "Read cache lookups by query and result",
		},
		[]string{"query", "result"}, // list|total, hit|miss
	)

	EventPublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expenses_event_publish_failures_total",
			Help: "Total number of events that could not be published",
		},
		[]string{"event"},
	)
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency by chi route pattern, so ids do not
// blow up label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
