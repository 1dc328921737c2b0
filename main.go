package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"ticketing/internal/app"
	"ticketing/internal/config"
	"ticketing/internal/observability"
)

func main() {
	cfg := config.Load()

	logger := observability.NewLogger()
	watermillLogger := observability.NewWatermillLogger()

	tp, err := observability.ConfigureTraceProvider()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure tracing")
	}

	db, err := sqlx.Open("postgres", cfg.PostgresURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open postgres connection")
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisURL,
	})
	defer redisClient.Close()

	application, err := app.NewApp(cfg, db, redisClient, watermillLogger, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build application")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := application.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("application stopped with error")
	}

	if tp != nil {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to shut down trace provider")
		}
	}

	logger.Info().Msg("application stopped")
}
