// Package observability collects Prometheus metrics for the application.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics aggregates the Prometheus registry and application metrics.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	loanEvents      *prometheus.CounterVec
	finesRecorded   *prometheus.CounterVec
	finesSettled    *prometheus.CounterVec
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "openshelf_http_requests_total",
		Help: "Number of HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "openshelf_http_request_duration_seconds",
		Help:    "Duration of HTTP requests per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	loanEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "openshelf_loan_events_total",
		Help: "Loan lifecycle events by type (created, returned, lost).",
	}, []string{"event"})
	finesRecorded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "openshelf_fines_recorded_total",
		Help: "Fines recorded by kind.",
	}, []string{"kind"})
	finesSettled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "openshelf_fines_settled_total",
		Help: "Fines settled by outcome.",
	}, []string{"outcome"})
	registry.MustRegister(requests, duration, loanEvents, finesRecorded, finesSettled)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		loanEvents:      loanEvents,
		finesRecorded:   finesRecorded,
		finesSettled:    finesSettled,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// CountLoanEvent records one loan lifecycle event.
func (m *Metrics) CountLoanEvent(event string) {
	if m == nil {
		return
	}
	m.loanEvents.WithLabelValues(event).Inc()
}

// CountFineRecorded records one fine creation by kind.
func (m *Metrics) CountFineRecorded(kind string) {
	if m == nil {
		return
	}
	m.finesRecorded.WithLabelValues(kind).Inc()
}

// CountFineSettled records one fine settlement by outcome.
func (m *Metrics) CountFineSettled(outcome string) {
	if m == nil {
		return
	}
	m.finesSettled.WithLabelValues(outcome).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records metrics for each HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
