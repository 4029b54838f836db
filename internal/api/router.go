package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/dhruvsahu007/slackai/internal/api/middleware"
	"github.com/dhruvsahu007/slackai/internal/handlers"
	"github.com/dhruvsahu007/slackai/internal/insight"
	"github.com/dhruvsahu007/slackai/internal/relay"
	"github.com/dhruvsahu007/slackai/internal/store"
)

// NewRouter creates and configures the HTTP router. redisStore and annotator
// may be nil; the rate limiter and insight generation are then disabled.
func NewRouter(logger zerolog.Logger, s store.MessageStore, redisStore *store.RedisStore, annotator *insight.Annotator, relaySrv *relay.Server, rlCfg middleware.RateLimiterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(8 * 1024)) // 8KB max body
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting (requires redis)
	if redisStore != nil {
		limiter := middleware.NewRateLimiter(redisStore.Client(), logger, rlCfg)
		r.Use(limiter.Middleware)
	}

	// CORS - allow all origins (clients call from anywhere)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := handlers.NewHandler(s, redisStore, annotator)
	auth := middleware.NewAuthMiddleware(s)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes (no auth required)
	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Get("/stats", h.Stats)
	r.Post("/users", h.CreateUser)
	r.Post("/channels", h.CreateChannel)
	r.Get("/channels/{id}/messages", h.ChannelHistory)
	r.Get("/messages/{id}/thread", h.Thread)
	r.Get("/find", h.Search)

	// Relay websocket endpoint
	if relaySrv != nil {
		r.Get("/ws", relaySrv.HandleWS)
	}

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)

		r.Post("/messages", h.CreateMessage)
		r.Get("/dm/{id}", h.DirectHistory)
	})

	return r
}
