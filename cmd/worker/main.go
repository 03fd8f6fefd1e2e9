package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/studio-checkout/internal/app"
	"github.com/noah-isme/studio-checkout/internal/config"
	"github.com/noah-isme/studio-checkout/internal/notify"
	"github.com/noah-isme/studio-checkout/internal/obs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "worker").Logger()
	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisOpt, err := app.RedisConnOpt(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:     4,
		Queues:          map[string]int{cfg.AsynqQueue: 1},
		Logger:          notify.AsynqLogger{Logger: logger},
		ShutdownTimeout: cfg.ShutdownTimeout,
		BaseContext:     func() context.Context { return ctx },
	})

	mux := asynq.NewServeMux()
	app.NewTaskHandler(cfg, logger).Register(mux)

	logger.Info().Str("queue", cfg.AsynqQueue).Msg("worker starting")
	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start worker")
	}
	<-ctx.Done()
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}
