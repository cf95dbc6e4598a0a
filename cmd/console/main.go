package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/pulsemon/internal/console/handler"
	"github.com/xela07ax/pulsemon/internal/console/server"
	"github.com/xela07ax/pulsemon/internal/console/service"
	"github.com/xela07ax/pulsemon/internal/incident"
	"github.com/xela07ax/pulsemon/internal/infra"
	"github.com/xela07ax/pulsemon/internal/infra/auth"
	"github.com/xela07ax/pulsemon/internal/repository/postgres"
	"github.com/xela07ax/pulsemon/internal/repository/rediscache"
	"go.uber.org/zap"
)

func main() {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	// 2. Ключи RS256: публичный для проверки, приватный для подписи
	publicKey, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
	if err != nil {
		logger.Fatal("failed to parse public key", zap.Error(err))
	}
	privateKey, err := auth.ParseRSAPrivateKey(cfg.Auth.PrivateKey)
	if err != nil {
		logger.Fatal("failed to parse private key", zap.Error(err))
	}
	validator := auth.NewBaseValidator(publicKey)

	// 3. Инфраструктура и ресурсы
	ctx, cancelInit := context.WithTimeout(context.Background(), 5*time.Second)
	pool, err := postgres.NewPool(ctx, cfg.Database)
	cancelInit()
	if err != nil {
		logger.Fatal("database unreachable", zap.Error(err))
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	endpointRepo := postgres.NewEndpointRepo(pool)
	probeRepo := postgres.NewProbeRepo(pool)
	incidentRepo := postgres.NewIncidentRepo(pool)
	scoreRepo := postgres.NewScoreRepo(pool)
	userRepo := postgres.NewUserRepo(pool)
	healthCache := rediscache.NewHealthCache(rdb)

	// 4. Инициализация слоев (Dependency Injection)
	lifecycle := incident.NewManager(incidentRepo, probeRepo, logger)
	authService := service.NewAuthService(userRepo, validator, privateKey, cfg.Auth.TokenTTL)
	monitorService := service.NewMonitorService(endpointRepo, incidentRepo, lifecycle, scoreRepo, healthCache, rdb, logger)

	authHandler := handler.NewAuthHandler(authService)
	endpointHandler := handler.NewEndpointHandler(monitorService)
	incidentHandler := handler.NewIncidentHandler(monitorService)

	consoleServer := server.NewConsoleServer(cfg, logger, authService, authHandler, endpointHandler, incidentHandler)

	// 5. Запуск сервера
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      consoleServer,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("console API started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	// 6. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("console API stopping...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server shutdown failed", zap.Error(err))
	}
	logger.Info("console API exited properly")
}
