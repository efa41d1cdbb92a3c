package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/edupulse/notify/internal/api/handler"
	apimw "github.com/edupulse/notify/internal/api/middleware"
	"github.com/edupulse/notify/internal/cache"
	"github.com/edupulse/notify/internal/health"
	"github.com/edupulse/notify/internal/queue"
	"github.com/edupulse/notify/internal/ratelimit"
	"github.com/edupulse/notify/internal/reminder"
	"github.com/edupulse/notify/internal/repository"
)

// Deps gathers everything the HTTP surface needs. Handlers depend on the
// narrow pieces directly; the router is the only place that sees them all.
type Deps struct {
	Repo      repository.NotificationRepository
	Queue     *queue.PriorityQueue
	Engine    *reminder.Engine
	Limiter   *ratelimit.RecipientLimiter
	Monitor   *health.Monitor
	OptOuts   cache.Store
	Registry  prometheus.Gatherer
	OnReceipt func(receiptType string)
}

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(deps Deps, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)          // recover panics, return 500
	r.Use(chimw.RealIP)             // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(1<<20)) // 1 MB max request body
	r.Use(apimw.CorrelationID)      // X-Correlation-ID inject / echo
	r.Use(apimw.RequestLogger(logger))

	// --- handler instances ---
	nh := handler.NewNotificationHandler(deps.Repo, deps.Queue, logger)
	wh := handler.NewWebhookHandler(deps.Repo, deps.OptOuts, deps.OnReceipt, logger)
	rh := handler.NewReminderHandler(deps.Engine, logger)
	lh := handler.NewRateLimitHandler(deps.Limiter, logger)
	mh := handler.NewMetricsHandler(deps.Queue)
	hh := handler.NewHealthHandler(deps.Monitor)

	// --- routes ---
	r.Get("/health", hh.Health)

	// Raw Prometheus scrape endpoint (for Prometheus server / Grafana)
	r.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		// Notifications
		r.Post("/notifications", nh.Create)
		r.Get("/notifications", nh.List)
		r.Get("/notifications/{id}", nh.GetByID)

		// Provider callbacks
		r.Post("/webhooks/receipts", wh.Receipt)
		r.Post("/webhooks/inbound", wh.Inbound)

		// Reminder engine operations
		r.Post("/reminders/run", rh.Run)
		r.Get("/reminders/stats", rh.Stats)
		r.Post("/reminders/send", rh.Send)

		// Per-recipient rate limit windows
		r.Get("/rate-limits/{tenant}/{recipient}", lh.Status)
		r.Delete("/rate-limits/{tenant}/{recipient}", lh.Clear)

		// JSON metrics snapshot
		r.Get("/metrics", mh.GetMetrics)
	})

	return r
}
