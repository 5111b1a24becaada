package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/replyflow/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/replyflow/internal/http/middleware"
	"github.com/wolfman30/replyflow/internal/messaging"
	"github.com/wolfman30/replyflow/pkg/logging"
)

// Variant names which provider the webhook routes are mounted for.
const (
	VariantCloud = "cloud"
	VariantWati  = "wati"
)

// Config holds router configuration
type Config struct {
	Logger  *logging.Logger
	Variant string

	Webhook *messaging.WebhookHandler
	Health  *handlers.HealthHandler

	// Admin endpoints are mounted only when AdminAuthSecret is set.
	AdminCatalog     *handlers.AdminCatalogHandler
	AdminTranscripts *handlers.AdminTranscriptsHandler
	AdminAuthSecret  string

	MetricsHandler http.Handler

	// WebhookRateLimit caps webhook requests per client IP per minute; 0 disables it.
	WebhookRateLimit int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	health := cfg.Health
	if health == nil {
		health = handlers.NewHealthHandler(nil, cfg.Logger)
	}

	r.Group(func(public chi.Router) {
		public.Get("/health", health.Live)
		public.Get("/ready", health.Ready)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	if cfg.Webhook != nil {
		r.Group(func(webhook chi.Router) {
			webhook.Use(httpmiddleware.RateLimit(cfg.WebhookRateLimit, time.Minute))
			switch cfg.Variant {
			case VariantWati:
				webhook.Get("/webhook/wati", cfg.Webhook.Ping)
				webhook.Post("/webhook/wati", cfg.Webhook.Receive)
			default:
				webhook.Get("/webhook", cfg.Webhook.Verify)
				webhook.Post("/webhook", cfg.Webhook.Receive)
			}
		})
	}

	if cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Route("/tenants/{tenantID}", func(tenant chi.Router) {
				if cfg.AdminCatalog != nil {
					tenant.Get("/catalog", cfg.AdminCatalog.GetCatalog)
					tenant.Put("/catalog", cfg.AdminCatalog.ReplaceCatalog)
				}
				if cfg.AdminTranscripts != nil {
					tenant.Get("/conversations/{address}/turns", cfg.AdminTranscripts.GetTranscript)
				}
			})
		})
	}

	return r
}
