package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/FLANsa/clinic-ai-bot/internal/http/handlers"
	httpmiddleware "github.com/FLANsa/clinic-ai-bot/internal/http/middleware"
	"github.com/FLANsa/clinic-ai-bot/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Messages           *handlers.MessagesHandler
	TestChat           *handlers.TestChatHandler
	Handoffs           *handlers.HandoffsHandler
	Health             *handlers.HealthHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	AdminAuthSecret    string

	// Per-sender limit on /v1/messages. Zero disables it.
	RateLimitPerMinute int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	health := cfg.Health
	if health == nil {
		health = handlers.NewHealthHandler(nil)
	}

	// Public endpoints (channel adapters, probes)
	r.Group(func(public chi.Router) {
		public.Get("/health", health.Live)
		public.Get("/ready", health.Ready)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.Messages != nil {
			public.Route("/v1", func(v1 chi.Router) {
				if cfg.RateLimitPerMinute > 0 {
					v1.Use(httpmiddleware.SenderRateLimit(cfg.RateLimitPerMinute, time.Minute))
				}
				v1.Post("/messages", cfg.Messages.Receive)
			})
		}
	})

	// Staff endpoints, protected by the admin JWT
	r.Group(func(admin chi.Router) {
		admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
		if cfg.TestChat != nil {
			admin.Post("/test/chat", cfg.TestChat.Chat)
		}
		if cfg.Handoffs != nil {
			admin.Route("/admin/handoffs", func(h chi.Router) {
				h.Get("/", cfg.Handoffs.ListOpen)
				h.Post("/{id}/close", cfg.Handoffs.Close)
			})
		}
	})

	return r
}
