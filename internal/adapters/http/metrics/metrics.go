// Package metrics exposes Prometheus counters for check-ins, rollovers and HTTP traffic.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors registered on one registry.
type Metrics struct {
	registry          *prometheus.Registry
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	checkIns          *prometheus.CounterVec
	checkInRejections *prometheus.CounterVec
	rollovers         prometheus.Counter
	promotions        prometheus.Counter
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gather_http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gather_http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		checkIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gather_checkins_total",
			Help: "Accepted check-ins by registration type and person kind.",
		}, []string{"type", "kind"}),
		checkInRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gather_checkin_rejections_total",
			Help: "Rejected check-ins by reason.",
		}, []string{"reason"}),
		rollovers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gather_schedule_rollovers_total",
			Help: "Schedule rollovers persisted by this process.",
		}),
		promotions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gather_promotions_total",
			Help: "First-timers promoted to members.",
		}),
	}

	m.registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpDuration,
		m.checkIns,
		m.checkInRejections,
		m.rollovers,
		m.promotions,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// Middleware counts requests by their chi route pattern, so /api/people/{id}/attendance
// is one series regardless of id.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil {
			next.ServeHTTP(w, r)
			return
		}
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// CheckIn counts an accepted check-in.
func (m *Metrics) CheckIn(regType, kind string) {
	if m == nil {
		return
	}
	m.checkIns.WithLabelValues(regType, kind).Inc()
}

// CheckInRejected counts a refused check-in.
func (m *Metrics) CheckInRejected(reason string) {
	if m == nil {
		return
	}
	m.checkInRejections.WithLabelValues(reason).Inc()
}

// Rollover counts a schedule rollover this process won.
func (m *Metrics) Rollover() {
	if m == nil {
		return
	}
	m.rollovers.Inc()
}

// Promotion counts a first-timer promotion.
func (m *Metrics) Promotion() {
	if m == nil {
		return
	}
	m.promotions.Inc()
}
