// Package http exposes the operator API: tenant administration, session
// control, QR retrieval, routing inspection, and manual ticket close.
package http

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"relaydesk/internal/platform/health"
	"relaydesk/internal/platform/middleware"
)

// RouterConfig carries the dependencies of the operator API router.
type RouterConfig struct {
	Handler     *Handler
	Validator   middleware.OperatorValidator
	Health      *health.Handler
	Logger      *slog.Logger
	Timeout     time.Duration
	LatencyHist *prometheus.HistogramVec
}

// NewLatencyHistogram registers the request latency histogram.
func NewLatencyHistogram() *prometheus.HistogramVec {
	return promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "relaydesk_http_request_duration_seconds",
		Help:    "HTTP request latency by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
}

// NewRouter assembles the operator API.
func NewRouter(cfg RouterConfig) chi.Router {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Timeout(cfg.Timeout))
	if cfg.LatencyHist != nil {
		r.Use(middleware.Latency(cfg.LatencyHist))
	}

	if cfg.Health != nil {
		cfg.Health.Register(r)
	}
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.ContentTypeJSON)
		api.Use(middleware.RequireAuth(cfg.Validator, cfg.Logger))

		api.Route("/tenants", func(tenants chi.Router) {
			tenants.Get("/", cfg.Handler.ListTenants)
			tenants.Post("/", cfg.Handler.CreateTenant)

			tenants.Route("/{tenantID}", func(t chi.Router) {
				t.Get("/", cfg.Handler.GetTenant)
				t.Delete("/", cfg.Handler.RemoveTenant)
				t.Patch("/settings", cfg.Handler.UpdateSettings)

				t.Route("/session", func(sess chi.Router) {
					sess.Get("/", cfg.Handler.SessionStatus)
					sess.Post("/connect", cfg.Handler.Connect)
					sess.Post("/disconnect", cfg.Handler.Disconnect)
					sess.Get("/qr", cfg.Handler.CurrentQR)
				})

				t.Get("/routes", cfg.Handler.ListRoutes)
				t.Post("/tickets/{conversationID}/close", cfg.Handler.CloseTicket)
			})
		})
	})

	return r
}
