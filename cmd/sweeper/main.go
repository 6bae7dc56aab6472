package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ErlanBelekov/user-management/config"
	"github.com/ErlanBelekov/user-management/internal/domain"
	"github.com/ErlanBelekov/user-management/internal/health"
	"github.com/ErlanBelekov/user-management/internal/infrastructure/postgres"
	ctxlog "github.com/ErlanBelekov/user-management/internal/log"
	"github.com/ErlanBelekov/user-management/internal/metrics"
	"github.com/ErlanBelekov/user-management/internal/sweeper"
	"github.com/ErlanBelekov/user-management/internal/usecase"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	logger.Info("db connected")

	metrics.RegisterSweeper()
	checker := health.NewChecker(logger, prometheus.DefaultRegisterer,
		health.Dependency{Name: "postgres", Pinger: pool},
	)

	tokens := usecase.NewTokenUsecase(postgres.NewAuthTokenRepository(pool), domain.ExpiryPolicy{
		MaxAge:        cfg.AuthTokenMaxAge,
		MaxInactivity: cfg.AuthTokenMaxInactivity,
	}, nil)

	sw, err := sweeper.New(tokens, cfg.SweepSchedule, logger)
	if err != nil {
		stop()
		log.Fatalf("sweeper: %v", err)
	}
	go sw.Start(ctx)

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)
	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}

	logger.Info("sweeper shut down")
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
