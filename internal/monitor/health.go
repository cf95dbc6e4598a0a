package monitor

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/xela07ax/pulsemon/internal/domain"
	"go.uber.org/zap"
)

// healthWindow — глубина окна, по которому строится сводка здоровья.
const healthWindow = 24 * time.Hour

type ProbeStatsSource interface {
	WindowStats(ctx context.Context, endpointID string, since time.Time) (domain.WindowStats, error)
}

type BaselineSource interface {
	Get(ctx context.Context, endpointID string) (*domain.Baseline, error)
}

type IncidentHistorySource interface {
	LastIncidentAt(ctx context.Context, endpointID string) (*time.Time, error)
}

type SummaryCache interface {
	Put(ctx context.Context, endpointID string, summary *domain.HealthSummary, ttl time.Duration) error
}

// HealthService пересобирает HealthSummary после каждой проверки и кладет
// его в кэш с ограниченным TTL. Это read-model для дашборда, не источник правды.
type HealthService struct {
	probes    ProbeStatsSource
	baselines BaselineSource
	incidents IncidentHistorySource
	cache     SummaryCache
	ttl       time.Duration
	logger    *zap.Logger
}

func NewHealthService(probes ProbeStatsSource, baselines BaselineSource, incidents IncidentHistorySource, cache SummaryCache, ttl time.Duration, logger *zap.Logger) *HealthService {
	return &HealthService{
		probes:    probes,
		baselines: baselines,
		incidents: incidents,
		cache:     cache,
		ttl:       ttl,
		logger:    logger.Named("health"),
	}
}

// Refresh пересчитывает сводку эндпоинта и обновляет кэш.
func (h *HealthService) Refresh(ctx context.Context, endpointID string) error {
	now := time.Now()

	stats, err := h.probes.WindowStats(ctx, endpointID, now.Add(-healthWindow))
	if err != nil {
		return fmt.Errorf("health: failed to load window stats: %w", err)
	}
	baseline, err := h.baselines.Get(ctx, endpointID)
	if err != nil {
		return fmt.Errorf("health: failed to load baseline: %w", err)
	}
	lastIncident, err := h.incidents.LastIncidentAt(ctx, endpointID)
	if err != nil {
		return fmt.Errorf("health: failed to load incident history: %w", err)
	}

	summary := Summarize(endpointID, stats, baseline, lastIncident, now)
	if err := h.cache.Put(ctx, endpointID, summary, h.ttl); err != nil {
		return fmt.Errorf("health: failed to cache summary: %w", err)
	}
	return nil
}

// Summarize — чистая сборка сводки здоровья из агрегатов окна.
// Статусы: down при successRate < 0.5; degraded при successRate < 0.95
// или превышении p95 базовой линии; unknown без данных в окне.
func Summarize(endpointID string, stats domain.WindowStats, baseline *domain.Baseline, lastIncident *time.Time, now time.Time) *domain.HealthSummary {
	summary := &domain.HealthSummary{
		EndpointID:     endpointID,
		Status:         domain.HealthUnknown,
		LastProbeAt:    stats.LastProbeAt,
		LastIncidentAt: lastIncident,
		CheckedAt:      now,
	}
	if baseline != nil {
		summary.BaselineLatencyMS = baseline.AvgLatencyMS
	}
	if stats.Total == 0 {
		return summary // Нет данных — unknown, error_rate остается 0
	}

	rate := stats.SuccessRate()
	summary.ReliabilityScore = int(math.Round(rate * 100))
	summary.ErrorRate = 1 - rate
	summary.UptimePercent = rate * 100
	summary.CurrentLatencyMS = stats.AvgLatencyMS

	switch {
	case rate < 0.5:
		summary.Status = domain.HealthDown
	case rate < 0.95:
		summary.Status = domain.HealthDegraded
	case baseline != nil && stats.AvgLatencyMS > baseline.P95LatencyMS:
		summary.Status = domain.HealthDegraded
	default:
		summary.Status = domain.HealthHealthy
	}
	return summary
}
