package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"steward-backend/bootstrap"
	"steward-backend/internal/config"
	"steward-backend/internal/interfaces/router"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load")
	}
	bootstrap.ConfigureLogging(cfg)

	app, services, err := router.CreateApp(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("app create")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Verify connections before serving.
	if services.DB != nil {
		sqlDB, err := services.DB.DB()
		if err != nil {
			log.Fatal().Err(err).Msg("postgres: get DB")
		}
		if err := sqlDB.Ping(); err != nil {
			log.Fatal().Err(err).Msg("postgres connection failed")
		}
		log.Info().Msg("Postgres connected")
	} else {
		log.Warn().Msg("no DATABASE_URL configured; steward routes are disabled")
	}
	if err := services.Rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	log.Info().Msg("Redis connected")

	if services.Keeper != nil {
		go services.Keeper.Run(ctx)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}()

	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).
		Str("health", "http://localhost:"+cfg.Port+"/health/json").
		Msg("Server running")
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("listen")
	}
	if services.DB != nil {
		if sqlDB, err := services.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	_ = services.Rdb.Close()
}
