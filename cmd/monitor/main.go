package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/pulsemon/internal/baseline"
	"github.com/xela07ax/pulsemon/internal/detector"
	"github.com/xela07ax/pulsemon/internal/incident"
	"github.com/xela07ax/pulsemon/internal/infra"
	"github.com/xela07ax/pulsemon/internal/monitor"
	"github.com/xela07ax/pulsemon/internal/notify"
	"github.com/xela07ax/pulsemon/internal/repository/postgres"
	"github.com/xela07ax/pulsemon/internal/repository/rediscache"
	"github.com/xela07ax/pulsemon/internal/scoring"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
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

	// Контекст для управления жизненным циклом фоновых горутин
	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Инфраструктура и ресурсы
	pool, err := postgres.NewPool(appCtx, cfg.Database)
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
	baselineRepo := postgres.NewBaselineRepo(pool)
	incidentRepo := postgres.NewIncidentRepo(pool)
	scoreRepo := postgres.NewScoreRepo(pool)

	// 3. Метрики
	reg := prometheus.NewRegistry()
	metrics := monitor.NewMetrics(reg)

	go func() {
		http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		logger.Info("metrics exporter started", zap.String("addr", cfg.Metrics.Addr))
		log.Fatal(http.ListenAndServe(cfg.Metrics.Addr, nil))
	}()

	// 4. Уведомления: вебхук за Retry + Circuit Breaker
	var transport notify.Notifier = notify.NopNotifier{}
	if cfg.Notifier.WebhookURL != "" {
		webhook := notify.NewWebhookNotifier(cfg.Notifier.WebhookURL)
		transport = notify.NewReliableNotifier(webhook, cfg.Notifier, metrics.NotifierBreakerState)
	} else {
		logger.Warn("notifier.webhook_url is not set, external notifications disabled")
	}
	dispatcher := notify.NewDispatcher(transport, rdb, metrics.NotifyFailures, logger)

	// 5. Ядро мониторинга
	prober := monitor.NewProber(cfg.Monitor.Region)
	healthCache := rediscache.NewHealthCache(rdb)
	healthSvc := monitor.NewHealthService(probeRepo, baselineRepo, incidentRepo, healthCache, cfg.Monitor.HealthTTL, logger)
	degradation := detector.NewDetector(baselineRepo, probeRepo, incidentRepo, logger)
	lifecycle := incident.NewManager(incidentRepo, probeRepo, logger)

	thresholds := detector.Thresholds{
		LatencyMultiplier:   cfg.Monitor.Thresholds.LatencyMultiplier,
		ErrorRateThreshold:  cfg.Monitor.Thresholds.ErrorRateThreshold,
		ConsecutiveFailures: cfg.Monitor.Thresholds.ConsecutiveFailures,
	}
	limiter := rate.NewLimiter(rate.Limit(cfg.Monitor.RateLimit), cfg.Monitor.RateBurst)

	scheduler := monitor.NewScheduler(
		endpointRepo,
		prober,
		probeRepo,
		healthSvc,
		degradation,
		lifecycle,
		dispatcher,
		thresholds,
		cfg.Monitor.Concurrency,
		limiter,
		metrics,
		logger,
	)

	// 6. Фоновые циклы: опрос, базовые линии, рейтинг надежности
	calculator := baseline.NewCalculator(probeRepo, baselineRepo, endpointRepo, cfg.Monitor.BaselineWindowHours, logger)
	scorer := scoring.NewScorer(probeRepo, baselineRepo, incidentRepo, scoreRepo, endpointRepo, logger)

	go scheduler.Run(appCtx, cfg.Monitor.ProbeInterval)
	go runPeriodic(appCtx, cfg.Monitor.BaselineInterval, calculator.RefreshAll)
	go runPeriodic(appCtx, cfg.Monitor.ScoreInterval, scorer.RefreshAll)

	logger.Info("monitoring worker started",
		zap.String("region", cfg.Monitor.Region),
		zap.Duration("probe_interval", cfg.Monitor.ProbeInterval),
		zap.Int("concurrency", cfg.Monitor.Concurrency))

	// 7. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("monitoring worker stopping...")
	cancel()
	// Даем активным проверкам время завершиться
	time.Sleep(2 * time.Second)
	logger.Info("monitoring worker exited properly")
}

// runPeriodic крутит fn по таймеру до отмены контекста.
// Первый запуск — сразу, чтобы не ждать целый интервал после старта.
func runPeriodic(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	fn(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
