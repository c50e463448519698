package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/clinicware/clinic-ai-agent/internal/conversation"
	httpmiddleware "github.com/clinicware/clinic-ai-agent/internal/http/middleware"
	"github.com/clinicware/clinic-ai-agent/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger              *logging.Logger
	ConversationHandler *conversation.Handler
	MetricsHandler      http.Handler
	JWTSecret           string
	CORSAllowedOrigins  []string
	RateLimit           func(http.Handler) http.Handler
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}
	if cfg.RateLimit != nil {
		r.Use(cfg.RateLimit)
	}

	// Public endpoints.
	r.Group(func(public chi.Router) {
		public.Get("/health", cfg.ConversationHandler.Health)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Conversation API. With an empty JWT secret the auth middleware is a
	// passthrough and identity comes from request bodies.
	r.Route("/api/ai", func(api chi.Router) {
		api.Use(httpmiddleware.CallerAuth(cfg.JWTSecret))
		api.Post("/chat", cfg.ConversationHandler.Chat)
		api.Post("/sessions", cfg.ConversationHandler.CreateSession)
		api.Get("/sessions/{sessionID}", cfg.ConversationHandler.GetSession)
		api.Delete("/sessions/{sessionID}", cfg.ConversationHandler.DeleteSession)
	})

	return r
}
