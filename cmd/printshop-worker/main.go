package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/phenrril/printshop/internal/adapters/notify"
	"github.com/phenrril/printshop/internal/app"
	"github.com/phenrril/printshop/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("invalid configuration")
	}
	zerolog.TimeFieldFormat = time.RFC3339
	if !cfg.IsProduction() {
		zlog.Logger = zlog.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	}
	if !cfg.RedisEnabled() {
		zlog.Fatal().Msg("REDIS_URL is required for the notification worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := notify.NewWorker(cfg.RedisURL, cfg.NotifyQueue, cfg.WorkerConcurrency, app.NewNotifier(cfg))
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to create worker")
	}
	if err := w.Run(ctx); err != nil {
		zlog.Fatal().Err(err).Msg("worker stopped")
	}
	zlog.Info().Msg("worker stopped")
}
