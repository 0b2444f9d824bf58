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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/ledgerbook/identity/config"
	"github.com/ledgerbook/identity/internal/audit"
	"github.com/ledgerbook/identity/internal/email"
	"github.com/ledgerbook/identity/internal/health"
	"github.com/ledgerbook/identity/internal/infrastructure/postgres"
	ctxlog "github.com/ledgerbook/identity/internal/log"
	"github.com/ledgerbook/identity/internal/metrics"
	httptransport "github.com/ledgerbook/identity/internal/transport/http"
	"github.com/ledgerbook/identity/internal/transport/http/handler"
	"github.com/ledgerbook/identity/internal/usecase"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	_ = godotenv.Load()

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

	tokenRepo := postgres.NewTokenRepository(pool)
	userRepo := postgres.NewUserRepository(pool)
	businessRepo := postgres.NewBusinessRepository(pool)
	transactionRepo := postgres.NewTransactionRepository(pool)

	sender := email.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, logger)

	authUsecase := usecase.NewAuthUsecase(tokenRepo, userRepo, sender, usecase.AuthConfig{
		TokenTTL:        cfg.TokenTTL,
		RateLimitWindow: cfg.RateLimitWindow,
		RateLimitMax:    cfg.RateLimitMax,
		JWTSecret:       []byte(cfg.JWTSecret),
		AppBaseURL:      cfg.AppBaseURL,
	}, logger)
	businessUsecase := usecase.NewBusinessUsecase(businessRepo)
	importUsecase := usecase.NewImportUsecase(transactionRepo)

	authHandler := handler.NewAuthHandler(authUsecase, cfg.AppBaseURL, cfg.Env == "production", logger)
	businessHandler := handler.NewBusinessHandler(businessUsecase, userRepo, logger)
	importHandler := handler.NewImportHandler(importUsecase, logger)

	metrics.Register()
	checker := health.NewChecker(pool, logger, prometheus.DefaultRegisterer)

	sampler := audit.NewSampler(tokenRepo, logger)
	if err := sampler.Start(ctx); err != nil {
		stop()
		log.Fatalf("audit sampler: %v", err)
	}

	srv := http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httptransport.NewRouter(logger, authHandler, businessHandler, importHandler, []byte(cfg.JWTSecret)),
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

	sampler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
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
