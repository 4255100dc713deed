package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/medspa-concierge/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/medspa-concierge/internal/http/middleware"
	"github.com/wolfman30/medspa-concierge/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger            *logging.Logger
	Messages          *handlers.MessagesHandler
	AdminPolicy       *handlers.AdminPolicyHandler
	AdminAppointments *handlers.AdminAppointmentsHandler
	AdminAuthSecret   string
	MetricsHandler    http.Handler

	// Per-client limit on POST /v1/messages; zero disables it.
	MessagesRateLimitRPS   float64
	MessagesRateLimitBurst int
	CORSAllowedOrigins     []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	if cfg.Messages == nil {
		panic("router: messages handler cannot be nil")
	}
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))

	r.Group(func(public chi.Router) {
		public.Get("/health", handlers.Health)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		public.With(httpmiddleware.RateLimit(cfg.MessagesRateLimitRPS, cfg.MessagesRateLimitBurst)).
			Post("/v1/messages", cfg.Messages.Post)
	})

	// Operator routes are mounted only when a signing secret is configured.
	if cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			if cfg.AdminPolicy != nil {
				admin.Get("/policy", cfg.AdminPolicy.Get)
				admin.Put("/policy", cfg.AdminPolicy.Put)
			}
			if cfg.AdminAppointments != nil {
				admin.Get("/appointments", cfg.AdminAppointments.ListUpcoming)
			}
		})
	}

	return r
}
