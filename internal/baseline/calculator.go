package baseline

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/xela07ax/pulsemon/internal/domain"
	"go.uber.org/zap"
)

// SampleSource поставляет задержки успешных проверок окна по возрастанию.
type SampleSource interface {
	LatencySamples(ctx context.Context, endpointID string, since time.Time) ([]float64, error)
}

// Store — хранилище базовых линий (одна строка на эндпоинт, replace-семантика).
type Store interface {
	Upsert(ctx context.Context, b *domain.Baseline) error
}

// EndpointSource нужен циклу пересчета, чтобы обойти все активные эндпоинты.
type EndpointSource interface {
	ListActive(ctx context.Context) ([]*domain.Endpoint, error)
}

type Calculator struct {
	samples     SampleSource
	store       Store
	endpoints   EndpointSource
	windowHours int
	logger      *zap.Logger
}

func NewCalculator(samples SampleSource, store Store, endpoints EndpointSource, windowHours int, logger *zap.Logger) *Calculator {
	return &Calculator{
		samples:     samples,
		store:       store,
		endpoints:   endpoints,
		windowHours: windowHours,
		logger:      logger.Named("baseline"),
	}
}

// Calculate пересчитывает базовую линию эндпоинта по скользящему окну.
// Меньше MinBaselineSamples успешных замеров — возвращаем nil без ошибки,
// прежняя базовая линия (если была) остается нетронутой.
func (c *Calculator) Calculate(ctx context.Context, endpointID string) (*domain.Baseline, error) {
	since := time.Now().Add(-time.Duration(c.windowHours) * time.Hour)
	samples, err := c.samples.LatencySamples(ctx, endpointID, since)
	if err != nil {
		return nil, fmt.Errorf("baseline: failed to load samples: %w", err)
	}

	b := Compute(endpointID, samples, time.Now())
	if b == nil {
		// Прогрев: данных еще мало, это штатное состояние
		c.logger.Debug("insufficient samples for baseline",
			zap.String("endpoint_id", endpointID),
			zap.Int("samples", len(samples)))
		return nil, nil
	}

	if err := c.store.Upsert(ctx, b); err != nil {
		return nil, fmt.Errorf("baseline: failed to persist: %w", err)
	}
	return b, nil
}

// RefreshAll обходит все активные эндпоинты. Ошибка по одному эндпоинту
// логируется и не прерывает пересчет остальных.
func (c *Calculator) RefreshAll(ctx context.Context) {
	endpoints, err := c.endpoints.ListActive(ctx)
	if err != nil {
		c.logger.Error("failed to list endpoints for baseline refresh", zap.Error(err))
		return
	}

	for _, e := range endpoints {
		if _, err := c.Calculate(ctx, e.ID); err != nil {
			c.logger.Error("baseline recalculation failed",
				zap.String("endpoint_id", e.ID), zap.Error(err))
		}
	}
}

// Compute — чистый расчет статистики по отсортированным по возрастанию замерам.
// Возвращает nil, если замеров меньше минимума.
func Compute(endpointID string, sorted []float64, now time.Time) *domain.Baseline {
	n := len(sorted)
	if n < domain.MinBaselineSamples {
		return nil
	}

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(n)

	// Популяционное отклонение: делим на n, не на n-1
	var variance float64
	for _, v := range sorted {
		d := v - mean
		variance += d * d
	}
	variance /= float64(n)

	return &domain.Baseline{
		EndpointID:   endpointID,
		AvgLatencyMS: mean,
		P50LatencyMS: Percentile(sorted, 50),
		P95LatencyMS: Percentile(sorted, 95),
		P99LatencyMS: Percentile(sorted, 99),
		StdDevMS:     math.Sqrt(variance),
		SampleCount:  n,
		CalculatedAt: now,
	}
}

// Percentile — nearest-rank перцентиль по возрастающему ряду:
// index = ceil(p/100*n) - 1, кламп в [0, n-1].
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(n))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}
