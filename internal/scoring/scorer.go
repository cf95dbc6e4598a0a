package scoring

/*
Файл scorer.go — композитный рейтинг надежности 0-100.
Четыре компонента (uptime, latency, error-rate, история инцидентов)
сворачиваются с фиксированными весами; каждый расчет пишет новый
неизменяемый снапшот, по истории которых считается тренд.
*/

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/pulsemon/internal/domain"
	"go.uber.org/zap"
)

// defaultBaselineLatencyMS используется в компоненте latency,
// когда базовой линии у эндпоинта еще нет.
const defaultBaselineLatencyMS = 500.0

// Веса компонентов в итоговой оценке.
const (
	weightUptime          = 0.4
	weightLatency         = 0.3
	weightErrorRate       = 0.2
	weightIncidentHistory = 0.1
)

type ProbeStatsSource interface {
	WindowStats(ctx context.Context, endpointID string, since time.Time) (domain.WindowStats, error)
}

type BaselineSource interface {
	Get(ctx context.Context, endpointID string) (*domain.Baseline, error)
}

type IncidentCounter interface {
	CountStartedSince(ctx context.Context, endpointID string, since time.Time) (int, error)
}

type SnapshotStore interface {
	InsertSnapshot(ctx context.Context, s *domain.ReliabilityScore) error
	LatestBefore(ctx context.Context, endpointID string, t time.Time) (*domain.ReliabilityScore, error)
}

type EndpointSource interface {
	ListActive(ctx context.Context) ([]*domain.Endpoint, error)
}

type Scorer struct {
	probes    ProbeStatsSource
	baselines BaselineSource
	incidents IncidentCounter
	store     SnapshotStore
	endpoints EndpointSource
	logger    *zap.Logger
}

func NewScorer(probes ProbeStatsSource, baselines BaselineSource, incidents IncidentCounter, store SnapshotStore, endpoints EndpointSource, logger *zap.Logger) *Scorer {
	return &Scorer{
		probes:    probes,
		baselines: baselines,
		incidents: incidents,
		store:     store,
		endpoints: endpoints,
		logger:    logger.Named("scorer"),
	}
}

// Calculate считает рейтинг эндпоинта и сохраняет новый снапшот.
func (s *Scorer) Calculate(ctx context.Context, endpointID string) (*domain.ReliabilityScore, error) {
	now := time.Now()

	stats, err := s.probes.WindowStats(ctx, endpointID, now.Add(-24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("scoring: failed to load probe stats: %w", err)
	}
	baseline, err := s.baselines.Get(ctx, endpointID)
	if err != nil {
		return nil, fmt.Errorf("scoring: failed to load baseline: %w", err)
	}
	last7, err := s.incidents.CountStartedSince(ctx, endpointID, now.AddDate(0, 0, -7))
	if err != nil {
		return nil, fmt.Errorf("scoring: failed to count incidents: %w", err)
	}
	last30, err := s.incidents.CountStartedSince(ctx, endpointID, now.AddDate(0, 0, -30))
	if err != nil {
		return nil, fmt.Errorf("scoring: failed to count incidents: %w", err)
	}

	baselineLatency := defaultBaselineLatencyMS
	if baseline != nil {
		baselineLatency = baseline.AvgLatencyMS
	}

	score := Compose(stats, baselineLatency, last7, last30)
	score.ID = uuid.NewString()
	score.EndpointID = endpointID
	score.CalculatedAt = now

	// Тренд: сравниваем с последним снапшотом суточной давности и старше
	prev, err := s.store.LatestBefore(ctx, endpointID, now.Add(-24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("scoring: failed to load previous snapshot: %w", err)
	}
	score.Trend = TrendOf(score.Overall, prev)

	if err := s.store.InsertSnapshot(ctx, score); err != nil {
		return nil, fmt.Errorf("scoring: failed to persist snapshot: %w", err)
	}
	return score, nil
}

// RefreshAll пересчитывает рейтинг всех активных эндпоинтов.
func (s *Scorer) RefreshAll(ctx context.Context) {
	endpoints, err := s.endpoints.ListActive(ctx)
	if err != nil {
		s.logger.Error("failed to list endpoints for scoring", zap.Error(err))
		return
	}

	for _, e := range endpoints {
		if _, err := s.Calculate(ctx, e.ID); err != nil {
			s.logger.Error("score calculation failed",
				zap.String("endpoint_id", e.ID), zap.Error(err))
		}
	}
}

// Compose — чистая свертка компонентов в итоговую оценку.
func Compose(stats domain.WindowStats, baselineLatencyMS float64, incidents7d, incidents30d int) *domain.ReliabilityScore {
	uptime := UptimeScore(stats)
	latency := LatencyScore(stats.AvgLatencyMS, baselineLatencyMS)
	errRate := ErrorRateScore(stats)
	history := IncidentHistoryScore(incidents7d, incidents30d)

	overall := math.Round(weightUptime*uptime +
		weightLatency*latency +
		weightErrorRate*errRate +
		weightIncidentHistory*history)

	return &domain.ReliabilityScore{
		Overall:              overall,
		UptimeScore:          uptime,
		LatencyScore:         latency,
		ErrorRateScore:       errRate,
		IncidentHistoryScore: history,
	}
}

// UptimeScore — доля успешных проверок в процентах.
// Ноль проверок трактуется как 100 (наблюдаемое поведение, см. DESIGN.md).
func UptimeScore(stats domain.WindowStats) float64 {
	if stats.Total == 0 {
		return 100
	}
	return clamp(stats.SuccessRate() * 100)
}

// LatencyScore — ступенчатая оценка отношения текущей задержки к базовой.
func LatencyScore(avgLatencyMS, baselineLatencyMS float64) float64 {
	if avgLatencyMS == 0 || baselineLatencyMS == 0 {
		return 0
	}
	ratio := avgLatencyMS / baselineLatencyMS
	switch {
	case ratio <= 1.0:
		return 100
	case ratio <= 1.2:
		return 90
	case ratio <= 1.5:
		return 75
	case ratio <= 2.0:
		return 50
	case ratio <= 3.0:
		return 25
	}
	return 0
}

// ErrorRateScore — ступенчатая оценка доли ошибок; без данных ошибок нет.
func ErrorRateScore(stats domain.WindowStats) float64 {
	var errorRate float64
	if stats.Total > 0 {
		errorRate = 1 - stats.SuccessRate()
	}
	switch {
	case errorRate == 0:
		return 100
	case errorRate <= 0.01:
		return 90
	case errorRate <= 0.05:
		return 75
	case errorRate <= 0.1:
		return 50
	case errorRate <= 0.25:
		return 25
	}
	return 0
}

// IncidentHistoryScore — недавние инциденты весят вчетверо больше старых:
// weight = 2*last7 + 0.5*(last30 - last7).
func IncidentHistoryScore(incidents7d, incidents30d int) float64 {
	weight := 2*float64(incidents7d) + 0.5*float64(incidents30d-incidents7d)
	switch {
	case weight == 0:
		return 100
	case weight <= 1:
		return 80
	case weight <= 3:
		return 60
	case weight <= 5:
		return 40
	}
	return 20
}

// TrendOf сравнивает текущую оценку с опорным снапшотом: полоса ±5.
func TrendOf(current float64, prev *domain.ReliabilityScore) domain.ScoreTrend {
	if prev == nil {
		return domain.TrendStable
	}
	diff := current - prev.Overall
	switch {
	case diff >= 5:
		return domain.TrendImproving
	case diff <= -5:
		return domain.TrendDeclining
	}
	return domain.TrendStable
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
