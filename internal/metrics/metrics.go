// Package metrics exposes Prometheus collectors for reservation transitions,
// service failures, notification delivery and HTTP latency.
//
// A nil *Metrics is valid and records nothing, so callers can disable
// metrics without branching.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/room-reservations/internal/application"
)

// Metrics owns a private registry and the service collectors.
type Metrics struct {
	registry *prometheus.Registry

	transitions          *prometheus.CounterVec
	failures             *prometheus.CounterVec
	notificationFailures *prometheus.CounterVec
	notificationDropped  prometheus.Counter
	httpDuration         *prometheus.HistogramVec
}

// New registers the collectors under namespace, plus the Go runtime and
// process collectors.
func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_transitions_total",
			Help:      "Reservation lifecycle events emitted after commit.",
		}, []string{"event"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_failures_total",
			Help:      "Failed service operations by error kind.",
		}, []string{"operation", "kind"}),
		notificationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_failures_total",
			Help:      "Notification deliveries that failed, by sink.",
		}, []string{"sink"}),
		notificationDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_dropped_total",
			Help:      "Notifications dropped because the dispatcher queue was full.",
		}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route template.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		m.transitions,
		m.failures,
		m.notificationFailures,
		m.notificationDropped,
		m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	for _, kind := range application.EventKinds {
		m.transitions.WithLabelValues(string(kind))
	}
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordTransition implements application.Recorder.
func (m *Metrics) RecordTransition(kind application.EventKind) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(kind)).Inc()
}

// RecordFailure implements application.Recorder.
func (m *Metrics) RecordFailure(operation, kind string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(operation, kind).Inc()
}

// RecordNotificationFailure counts a failed delivery on sink.
func (m *Metrics) RecordNotificationFailure(sink string) {
	if m == nil {
		return
	}
	m.notificationFailures.WithLabelValues(sink).Inc()
}

// RecordNotificationDropped counts an event dropped by a full queue.
func (m *Metrics) RecordNotificationDropped() {
	if m == nil {
		return
	}
	m.notificationDropped.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware observes request latency labelled by the matched mux route
// template, so path variables do not explode label cardinality.
func (m *Metrics) Middleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)

			route := "unmatched"
			if current := mux.CurrentRoute(r); current != nil {
				if template, err := current.GetPathTemplate(); err == nil {
					route = template
				}
			}
			m.httpDuration.
				WithLabelValues(r.Method, route, strconv.Itoa(recorder.status)).
				Observe(time.Since(start).Seconds())
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// Flush keeps server-sent event streams working through the middleware.
func (s *statusRecorder) Flush() {
	if flusher, ok := s.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

var _ application.Recorder = (*Metrics)(nil)
