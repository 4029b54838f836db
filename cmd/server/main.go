package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dhruvsahu007/slackai/internal/api"
	"github.com/dhruvsahu007/slackai/internal/api/middleware"
	"github.com/dhruvsahu007/slackai/internal/config"
	"github.com/dhruvsahu007/slackai/internal/insight"
	"github.com/dhruvsahu007/slackai/internal/relay"
	"github.com/dhruvsahu007/slackai/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx := context.Background()

	// Initialize the message store: postgres when configured, sqlite otherwise
	var (
		msgStore store.MessageStore
		err      error
	)
	if cfg.DatabaseURL != "" {
		msgStore, err = store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		logger.Info().Msg("connected to PostgreSQL")
	} else {
		path := cfg.SQLitePath
		if path == "" {
			path = "slackai.db"
		}
		msgStore, err = store.NewSQLiteStore(ctx, path)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		logger.Info().Str("path", path).Msg("opened SQLite database")
	}
	defer msgStore.Close()

	// Initialize Redis (rate limiting)
	var redisStore *store.RedisStore
	if cfg.RedisURL != "" {
		redisStore, err = store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		logger.Info().Msg("connected to Redis")
	}

	// Insight annotation (optional)
	var annotator *insight.Annotator
	if cfg.InsightAPIKey != "" {
		generator := insight.NewOpenAIGenerator(cfg.InsightAPIKey, cfg.InsightBaseURL, cfg.InsightModel)
		annotator = insight.NewAnnotator(generator, msgStore, logger)
		logger.Info().Str("model", cfg.InsightModel).Msg("insight annotation enabled")
	}

	// Relay
	registry := relay.NewRegistry()
	relayRouter := relay.NewRouter(registry, logger)
	relaySrv := relay.NewServer(registry, relayRouter, logger)

	// Create router
	router := api.NewRouter(logger, msgStore, redisStore, annotator, relaySrv, middleware.RateLimiterConfig{
		Whitelist: cfg.RateLimitWhitelist,
	})

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting slackai server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	relaySrv.Shutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
