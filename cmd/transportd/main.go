package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hredostate/yebo-transport/internal/app"
	"github.com/hredostate/yebo-transport/internal/config"
	"github.com/hredostate/yebo-transport/internal/httpapi"
	"github.com/hredostate/yebo-transport/internal/notify"
	"github.com/hredostate/yebo-transport/internal/repository"
	"github.com/hredostate/yebo-transport/internal/repository/base"
	"github.com/hredostate/yebo-transport/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required but not set")
	}

	logger := app.NewLogger(cfg.Environment)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		logger.Fatal("Failed to create database pool", zap.Error(err))
	}
	defer pool.Close()

	migrator, err := app.NewMigrator(pool, cfg.MigrationsPath)
	if err != nil {
		logger.Fatal("Failed to create migrator", zap.Error(err))
	}
	if err := migrator.Run(ctx); err != nil {
		logger.Fatal("Failed to apply migrations", zap.Error(err))
	}
	migrator.Close()

	routeRepo := repository.NewRouteRepository(pool)
	busRepo := repository.NewBusRepository(pool)
	requestRepo := repository.NewRequestRepository(pool)
	subRepo := repository.NewSubscriptionRepository(pool)
	tx := repository.NewTxRunner(pool)

	var notifier notify.Notifier
	if cfg.TelegramEnabled() {
		tg, err := notify.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramOpsChatID, logger)
		if err != nil {
			logger.Fatal("Failed to create telegram notifier", zap.Error(err))
		}
		go tg.Run(ctx)
		notifier = tg
	} else {
		notifier = notify.NewLogNotifier(logger)
	}

	capacitySvc := service.NewCapacityService(routeRepo, busRepo, subRepo, logger)
	allocator := service.NewSeatAllocator(busRepo, subRepo)
	subscriptionSvc := service.NewSubscriptionService(subRepo, notifier, logger)
	requestSvc := service.NewRequestService(requestRepo, routeRepo, busRepo, capacitySvc, notifier, logger)
	approvalSvc := service.NewApprovalService(
		requestRepo, subscriptionSvc, routeRepo, busRepo,
		allocator, tx, notifier, logger,
		base.IsRetryableTxError,
	)

	handler := httpapi.NewHandler(
		capacitySvc, requestSvc, subscriptionSvc, approvalSvc,
		allocator, busRepo, logger,
	)
	router := httpapi.NewRouter(handler, cfg.JWTSecret, cfg.Environment, logger)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		logger.Info("Starting transport service",
			zap.String("environment", cfg.Environment),
			zap.String("addr", cfg.HTTPAddr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown", zap.Error(err))
	}
}
