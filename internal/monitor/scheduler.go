package monitor

/*
Файл scheduler.go — планировщик раунда опроса.
Внешний таймер дергает RunRound; раунд веером запускает проверки всех
активных эндпоинтов с ограниченной параллельностью. Сбой персистенции или
обработки одного эндпоинта изолируется: логируется, попадает в счетчики
и не мешает остальным.
*/

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xela07ax/pulsemon/internal/detector"
	"github.com/xela07ax/pulsemon/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type EndpointSource interface {
	ListActive(ctx context.Context) ([]*domain.Endpoint, error)
}

type ResultStore interface {
	Insert(ctx context.Context, p *domain.ProbeResult) error
}

type ProbeRunner interface {
	Probe(ctx context.Context, e *domain.Endpoint) domain.ProbeResult
}

type HealthRefresher interface {
	Refresh(ctx context.Context, endpointID string) error
}

type DegradationChecker interface {
	Check(ctx context.Context, endpointID, endpointName string, th detector.Thresholds) (*domain.Incident, error)
}

type RecoveryChecker interface {
	CheckForRecovery(ctx context.Context, endpointID string) (*domain.Incident, bool, error)
}

// EventSink получает события инцидентов; доставка не возвращает ошибок
// в раунд — сбой уведомления не повод останавливать мониторинг.
type EventSink interface {
	IncidentCreated(ctx context.Context, inc *domain.Incident, endpointName string)
	IncidentResolved(ctx context.Context, inc *domain.Incident, endpointName string)
}

// RoundStats — агрегированные счетчики одного раунда для observability.
type RoundStats struct {
	Probed int64 `json:"probed"`
	Errors int64 `json:"errors"`
}

type Scheduler struct {
	endpoints EndpointSource
	prober    ProbeRunner
	results   ResultStore
	health    HealthRefresher
	detector  DegradationChecker
	recovery  RecoveryChecker
	events    EventSink

	thresholds  detector.Thresholds
	concurrency int
	limiter     *rate.Limiter
	metrics     *Metrics
	logger      *zap.Logger
}

func NewScheduler(
	endpoints EndpointSource,
	prober ProbeRunner,
	results ResultStore,
	health HealthRefresher,
	degradation DegradationChecker,
	recovery RecoveryChecker,
	events EventSink,
	thresholds detector.Thresholds,
	concurrency int,
	limiter *rate.Limiter,
	metrics *Metrics,
	logger *zap.Logger,
) *Scheduler {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Scheduler{
		endpoints:   endpoints,
		prober:      prober,
		results:     results,
		health:      health,
		detector:    degradation,
		recovery:    recovery,
		events:      events,
		thresholds:  thresholds,
		concurrency: concurrency,
		limiter:     limiter,
		metrics:     metrics,
		logger:      logger.Named("scheduler"),
	}
}

// RunRound опрашивает все активные эндпоинты с ограниченной параллельностью.
// У каждой проверки свой независимый дедлайн: таймаут одного эндпоинта
// не влияет на другие.
func (s *Scheduler) RunRound(ctx context.Context) RoundStats {
	endpoints, err := s.endpoints.ListActive(ctx)
	if err != nil {
		s.logger.Error("failed to list active endpoints", zap.Error(err))
		s.metrics.RoundErrors.Inc()
		return RoundStats{Errors: 1}
	}

	var probed, failures atomic.Int64
	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup

	for _, e := range endpoints {
		wg.Add(1)
		sem <- struct{}{} // Семафор: не больше concurrency проверок одновременно
		go func(e *domain.Endpoint) {
			defer wg.Done()
			defer func() { <-sem }()

			if s.limiter != nil {
				if err := s.limiter.Wait(ctx); err != nil {
					failures.Add(1)
					return
				}
			}

			probed.Add(1)
			if err := s.processEndpoint(ctx, e); err != nil {
				failures.Add(1)
				s.metrics.RoundErrors.Inc()
				s.logger.Error("endpoint processing failed",
					zap.String("endpoint_id", e.ID),
					zap.String("endpoint", e.Name),
					zap.Error(err))
			}
		}(e)
	}
	wg.Wait()

	s.metrics.RoundsTotal.Inc()
	stats := RoundStats{Probed: probed.Load(), Errors: failures.Load()}
	s.logger.Debug("round finished",
		zap.Int64("probed", stats.Probed),
		zap.Int64("errors", stats.Errors))
	return stats
}

// processEndpoint — конвейер одного эндпоинта:
// проверка -> персистенция -> обновление кэша здоровья -> детектор -> авто-восстановление.
// Шаги после персистенции не прерывают друг друга: каждый сбой логируется,
// а наружу уходит первый из них для счетчика раунда.
func (s *Scheduler) processEndpoint(ctx context.Context, e *domain.Endpoint) error {
	result := s.prober.Probe(ctx, e)

	s.metrics.ProbesTotal.WithLabelValues(string(result.Outcome)).Inc()
	if result.LatencyMS != nil {
		s.metrics.ProbeDuration.Observe(*result.LatencyMS / 1000.0)
	}

	if err := s.results.Insert(ctx, &result); err != nil {
		// Без сохраненного результата дальнейшие шаги читали бы устаревшее окно
		return fmt.Errorf("persist probe result: %w", err)
	}

	var firstErr error
	fail := func(stage string, err error) {
		s.logger.Error("endpoint stage failed",
			zap.String("stage", stage),
			zap.String("endpoint_id", e.ID),
			zap.Error(err))
		if firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", stage, err)
		}
	}

	if err := s.health.Refresh(ctx, e.ID); err != nil {
		fail("health refresh", err)
	}

	if inc, err := s.detector.Check(ctx, e.ID, e.Name, s.thresholds); err != nil {
		fail("degradation check", err)
	} else if inc != nil {
		s.metrics.IncidentsOpened.Inc()
		s.events.IncidentCreated(ctx, inc, e.Name)
	}

	if inc, recovered, err := s.recovery.CheckForRecovery(ctx, e.ID); err != nil {
		fail("recovery check", err)
	} else if recovered {
		s.metrics.IncidentsRecovered.Inc()
		s.events.IncidentResolved(ctx, inc, e.Name)
	}

	return firstErr
}

// Run — цикл воркера: раунд на каждый тик до отмены контекста.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Первый раунд сразу, не дожидаясь тика
	s.RunRound(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.RunRound(ctx)
		}
	}
}
