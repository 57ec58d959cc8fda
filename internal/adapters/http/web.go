package web

import (
	"crypto/rand"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/handlers"

	"gather/internal/adapters/email"
	"gather/internal/adapters/errreport"
	"gather/internal/adapters/http/metrics"
	"gather/internal/adapters/http/middleware"
	"gather/internal/adapters/http/perf"
	attendanceStore "gather/internal/adapters/storage/attendance"
	scheduleStore "gather/internal/adapters/storage/eventschedule"
	personStore "gather/internal/adapters/storage/person"
	"gather/internal/config"
)

// Stores holds all storage dependencies.
type Stores struct {
	ScheduleStore   scheduleStore.Store
	AttendanceStore attendanceStore.Store
	PersonStore     personStore.Store
}

// Global stores instance (set by NewRouter)
var stores *Stores

// Global perf collector and metrics (set by NewRouter)
var (
	perfCollector *perf.Collector
	appMetrics    *metrics.Metrics
)

// promotionThreshold is the configured unique-day threshold (set by NewRouter).
var promotionThreshold int

// Global email sender instance (set by SetEmailSender)
var emailSender email.Sender

// SetEmailSender sets the sender used for welcome emails on promotion.
func SetEmailSender(sender email.Sender) {
	emailSender = sender
}

// loadCSRFKey returns the configured key or, outside production, a per-start random key.
// Config loading has already refused a production start without one.
func loadCSRFKey(cfg config.Config) []byte {
	if cfg.CSRFKey != nil {
		return cfg.CSRFKey
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic("failed to generate CSRF key: " + err.Error())
	}
	slog.Warn("config_event", "event", "random_csrf_key", "hint", "set GATHER_CSRF_KEY to keep form tokens valid across restarts")
	return key
}

// recoveryLogger routes panics caught by handlers.RecoveryHandler to slog and Rollbar.
type recoveryLogger struct{}

func (recoveryLogger) Println(v ...interface{}) {
	slog.Error("panic_recovered", "detail", v)
	for _, item := range v {
		if err, ok := item.(error); ok {
			errreport.Error(nil, err, map[string]interface{}{"source": "panic"})
		}
	}
}

// NewRouter wires the HTTP API.
// PRE: s has every store set; collector and m may be nil
// POST: Returns a handler with security, rate limiting, metrics and timing applied
func NewRouter(s *Stores, cfg config.Config, collector *perf.Collector, m *metrics.Metrics) http.Handler {
	stores = s
	perfCollector = collector
	appMetrics = m
	promotionThreshold = cfg.PromotionThreshold

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst)
	admin := middleware.AdminAuth(cfg.AdminPasswordHash)

	r := chi.NewRouter()
	if cfg.TrustProxy {
		r.Use(handlers.ProxyHeaders)
	}
	r.Use(
		handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{})),
		middleware.SecurityHeaders,
		middleware.RateLimit(limiter),
		m.Middleware,
		middleware.Timing(collector, cfg.SlowRequest),
		middleware.CSRF(loadCSRFKey(cfg), cfg.TrustedOrigins, cfg.IsProduction()),
	)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", handleHealthz)
	r.Method(http.MethodGet, "/metrics", m.Handler())
	r.With(admin).Get("/debug/perf", handleDebugPerf)

	r.Route("/api", func(r chi.Router) {
		r.Get("/schedule", handleGetSchedule)
		r.Post("/checkin", handleCheckIn)
		r.Post("/first-timers", handleRegisterFirstTimer)

		r.Group(func(r chi.Router) {
			r.Use(admin)
			r.Put("/schedule", handlePutSchedule)
			r.Get("/promotions", handleGetPromotions)
			r.Post("/first-timers/{id}/promote", handlePromoteFirstTimer)
			r.Get("/attendance", handleGetEventAttendance)
			r.Get("/attendance/records", handleListAttendanceRecords)
			r.Get("/attendance/records/{id}", handleGetAttendanceRecord)
			r.Get("/people", handleListPeople)
			r.Post("/people/{id}/archive", handleArchivePerson)
			r.Post("/people/{id}/restore", handleRestorePerson)
			r.Get("/people/{id}/attendance", handleGetPersonAttendance)
		})
	})
	return r
}
