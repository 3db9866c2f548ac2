// Package metrics holds the Prometheus collectors for the receipt pipeline,
// the donation lifecycle and the HTTP layer.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nyashahama/community-donor-backend/internal/dispatch"
)

const namespace = "donor"

// Metrics satisfies dispatch.Metrics and lifecycle.Metrics.
type Metrics struct {
	gatherer prometheus.Gatherer

	DispatchOutcomes    *prometheus.CounterVec
	DispatchTransitions *prometheus.CounterVec
	DispatchDuration    *prometheus.HistogramVec
	LifecycleActions    *prometheus.CounterVec

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New registers every collector on reg. Pass prometheus.NewRegistry() in
// tests so runs do not collide on the default registry.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		gatherer: reg,

		DispatchOutcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_outcomes_total",
				Help:      "Finished receipt deliveries by outcome and the stage they ended in.",
			},
			[]string{"outcome", "stage"},
		),
		DispatchTransitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_transitions_total",
				Help:      "Stages entered by delivery runs.",
			},
			[]string{"stage"},
		),
		DispatchDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dispatch_duration_seconds",
				Help:      "Wall time of a delivery run from claim to terminal outcome.",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms … ~100s
			},
			[]string{"outcome"},
		),
		LifecycleActions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "donations_lifecycle_total",
				Help:      "Donation lifecycle actions applied.",
			},
			[]string{"action"},
		),

		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route pattern and status code.",
			},
			[]string{"method", "route", "code"},
		),
		HTTPDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by route pattern.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// ─── PIPELINE ─────────────────────────────────────────────────────────────────

func (m *Metrics) Transition(stage dispatch.Stage) {
	m.DispatchTransitions.WithLabelValues(string(stage)).Inc()
}

func (m *Metrics) Finished(outcome dispatch.Outcome, stage dispatch.Stage, elapsed time.Duration) {
	m.DispatchOutcomes.WithLabelValues(string(outcome), string(stage)).Inc()
	m.DispatchDuration.WithLabelValues(string(outcome)).Observe(elapsed.Seconds())
}

func (m *Metrics) Lifecycle(action string) {
	m.LifecycleActions.WithLabelValues(action).Inc()
}

// ─── HTTP ─────────────────────────────────────────────────────────────────────

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency labelled by the chi route
// pattern, so path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
