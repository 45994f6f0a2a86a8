package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"lor-api/internal/api"
	charapp "lor-api/internal/app/character"
	locapp "lor-api/internal/app/location"
	"lor-api/internal/platform/cache"
	"lor-api/internal/platform/config"
	"lor-api/internal/platform/migrate"
	"lor-api/internal/platform/mq"
	"lor-api/internal/platform/observability"
	"lor-api/internal/storage"
)

func main() {
	ctx := context.Background()
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := observability.NewLogger(cfg.Env, "lor-api")

	store, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("storage connection failed")
	}
	defer store.Close()

	if cfg.MigrateOnStart {
		runner := migrate.NewRunner(store.Ledger, os.DirFS(cfg.MigrationDir), logger)
		if _, err := runner.Up(ctx); err != nil {
			logger.Fatal().Err(err).Msg("migrations failed")
		}
	}

	var redisClient *redis.Client
	redisClient, err = cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	switch {
	case errors.Is(err, cache.ErrDisabled):
		logger.Info().Msg("REDIS_ADDR not set; character cache disabled")
	case err != nil:
		logger.Warn().Err(err).Msg("redis unavailable; continuing without cache")
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	publisher := mq.NewNoopPublisher()
	if cfg.NATSURL != "" {
		natsPub, err := mq.NewPublisher(cfg.NATSURL, cfg.NATSPrefix, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable; using noop publisher")
		} else {
			publisher = natsPub
		}
	}
	defer publisher.Close()

	charSvc := charapp.NewService(store.Characters, redisClient, cfg.CharacterTTL, publisher)
	locSvc := locapp.NewService(store.Locations, store.Characters, publisher)

	handler := api.NewHandler(logger, charSvc, locSvc, store, cfg.CorsOrigin, cfg.MaxRequestBody)
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	<-sigCh
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown failed")
	}
	logger.Info().Msg("server stopped")
}
