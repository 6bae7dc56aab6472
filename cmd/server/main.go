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
	"github.com/ErlanBelekov/user-management/internal/email"
	"github.com/ErlanBelekov/user-management/internal/health"
	"github.com/ErlanBelekov/user-management/internal/infrastructure/postgres"
	"github.com/ErlanBelekov/user-management/internal/infrastructure/redis"
	ctxlog "github.com/ErlanBelekov/user-management/internal/log"
	"github.com/ErlanBelekov/user-management/internal/metrics"
	"github.com/ErlanBelekov/user-management/internal/onetime"
	"github.com/ErlanBelekov/user-management/internal/password"
	"github.com/ErlanBelekov/user-management/internal/throttle"
	httptransport "github.com/ErlanBelekov/user-management/internal/transport/http"
	"github.com/ErlanBelekov/user-management/internal/transport/http/handler"
	"github.com/ErlanBelekov/user-management/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		stop()
		log.Fatalf("migrate: %v", err)
	}

	rdb, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		stop()
		log.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	metrics.Register()
	checker := health.NewChecker(logger, prometheus.DefaultRegisterer,
		health.Dependency{Name: "postgres", Pinger: pool},
		health.Dependency{Name: "redis", Pinger: redis.NewPinger(rdb)},
	)

	caps := domain.Capabilities{
		EmailVerificationRequired: cfg.EmailVerificationRequired,
		HasAvatar:                 cfg.HasAvatar,
	}
	secret := []byte(cfg.SecretKey)

	// Email
	mailer := email.NewAsyncSender(email.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, logger), logger, cfg.EmailBuffer)
	mailer.OnDelivery(func(err error) {
		outcome := "sent"
		if err != nil {
			outcome = "failed"
		}
		metrics.EmailsTotal.WithLabelValues(outcome).Inc()
	})
	mailer.Start(cfg.EmailWorkers)
	notifier := email.NewNotifier(mailer, cfg.PasswordResetSubject, cfg.ValidationEmailSubject)

	// Users and tokens
	userRepo := postgres.NewUserRepository(pool)
	tokenRepo := postgres.NewAuthTokenRepository(pool)
	hasher := password.NewArgon2Hasher(password.DefaultParams())

	tokenUsecase := usecase.NewTokenUsecase(tokenRepo, domain.ExpiryPolicy{
		MaxAge:        cfg.AuthTokenMaxAge,
		MaxInactivity: cfg.AuthTokenMaxInactivity,
	}, nil)
	authUsecase := usecase.NewAuthUsecase(userRepo, tokenUsecase, hasher, logger)
	accountUsecase := usecase.NewAccountUsecase(
		userRepo,
		hasher,
		onetime.NewEmailVerifier(secret, userRepo, cfg.VerifyAccountExpiry),
		onetime.NewResetVerifier(secret, userRepo, cfg.PasswordResetTimeout),
		notifier,
		usecase.AccountConfig{
			Capabilities: caps,
			Site:         email.Site{Domain: cfg.SiteDomain, Protocol: cfg.SiteProtocol},
		},
		logger,
	)

	// Throttling
	throttler := throttle.NewThrottler(redis.NewCounterStore(rdb, "user_management:"), throttle.Rates(cfg.ThrottleRates), logger)
	throttler.OnStoreError(func(p throttle.Policy) {
		metrics.ThrottleStoreErrorsTotal.WithLabelValues(p.Name).Inc()
	})

	router := httptransport.NewRouter(logger, authUsecase, throttler, httptransport.Handlers{
		Auth:    handler.NewAuthHandler(authUsecase, logger),
		Account: handler.NewAccountHandler(accountUsecase, caps, logger),
		Users:   handler.NewUserHandler(accountUsecase, caps, logger),
		Avatars: handler.NewAvatarHandler(accountUsecase, logger),
	})

	srv := http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)

	go func() {
		logger.Info("server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}

	// after the HTTP server so in-flight requests can still queue mail
	mailer.Close()
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
