package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the events API.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	registrationTotal  *prometheus.CounterVec
	occurrencesTotal   *prometheus.CounterVec
	degradedChecks     prometheus.Counter
	notificationsTotal *prometheus.CounterVec
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	registrationTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "event_registrations_total",
		Help: "Registration attempts by outcome",
	}, []string{"outcome"})

	occurrencesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "materialized_occurrences_total",
		Help: "Occurrences produced by recurrence materialization, by result",
	}, []string{"result"})

	degradedChecks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "conflict_checks_degraded_total",
		Help: "Conflict checks that failed open because the store query errored",
	})

	notificationsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_total",
		Help: "Notification dispatch attempts by result",
	}, []string{"result"})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, registrationTotal, occurrencesTotal, degradedChecks, notificationsTotal, cacheHits, cacheMisses, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:           registry,
		handler:            handler,
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		registrationTotal:  registrationTotal,
		occurrencesTotal:   occurrencesTotal,
		degradedChecks:     degradedChecks,
		notificationsTotal: notificationsTotal,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordRegistration counts one registration attempt by outcome code.
func (m *MetricsService) RecordRegistration(outcome string) {
	if m == nil {
		return
	}
	m.registrationTotal.WithLabelValues(outcome).Inc()
}

// RecordMaterialization counts inserted and skipped occurrences of one
// materialization request.
func (m *MetricsService) RecordMaterialization(inserted, skipped int) {
	if m == nil {
		return
	}
	m.occurrencesTotal.WithLabelValues("inserted").Add(float64(inserted))
	m.occurrencesTotal.WithLabelValues("skipped").Add(float64(skipped))
}

// RecordDegradedConflictCheck counts a fail-open conflict check.
func (m *MetricsService) RecordDegradedConflictCheck() {
	if m == nil {
		return
	}
	m.degradedChecks.Inc()
}

// RecordNotification counts one notification dispatch attempt.
func (m *MetricsService) RecordNotification(result string) {
	if m == nil {
		return
	}
	m.notificationsTotal.WithLabelValues(result).Inc()
}

// RecordCacheLookup counts a listing cache hit or miss.
func (m *MetricsService) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}
