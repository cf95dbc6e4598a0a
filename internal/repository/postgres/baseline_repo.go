package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xela07ax/pulsemon/internal/domain"
)

type BaselineRepo struct {
	pool *pgxpool.Pool
}

func NewBaselineRepo(pool *pgxpool.Pool) *BaselineRepo {
	return &BaselineRepo{pool: pool}
}

// Get возвращает текущую базовую линию эндпоинта, nil если её еще нет.
func (r *BaselineRepo) Get(ctx context.Context, endpointID string) (*domain.Baseline, error) {
	query := `
		SELECT endpoint_id, avg_latency_ms, p50_latency_ms, p95_latency_ms, p99_latency_ms,
		       std_dev_ms, sample_count, calculated_at
		FROM baselines WHERE endpoint_id = $1`

	var b domain.Baseline
	err := r.pool.QueryRow(ctx, query, endpointID).Scan(
		&b.EndpointID, &b.AvgLatencyMS, &b.P50LatencyMS, &b.P95LatencyMS, &b.P99LatencyMS,
		&b.StdDevMS, &b.SampleCount, &b.CalculatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Базовая линия еще не посчитана — это не ошибка
		}
		return nil, fmt.Errorf("postgres: failed to get baseline: %w", err)
	}
	return &b, nil
}

// Upsert заменяет базовую линию эндпоинта. История не хранится —
// одна строка на эндпоинт (unique key = endpoint_id).
func (r *BaselineRepo) Upsert(ctx context.Context, b *domain.Baseline) error {
	query := `
		INSERT INTO baselines (endpoint_id, avg_latency_ms, p50_latency_ms, p95_latency_ms,
		                       p99_latency_ms, std_dev_ms, sample_count, calculated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (endpoint_id) DO UPDATE SET
			avg_latency_ms = EXCLUDED.avg_latency_ms,
			p50_latency_ms = EXCLUDED.p50_latency_ms,
			p95_latency_ms = EXCLUDED.p95_latency_ms,
			p99_latency_ms = EXCLUDED.p99_latency_ms,
			std_dev_ms = EXCLUDED.std_dev_ms,
			sample_count = EXCLUDED.sample_count,
			calculated_at = EXCLUDED.calculated_at`

	_, err := r.pool.Exec(ctx, query,
		b.EndpointID, b.AvgLatencyMS, b.P50LatencyMS, b.P95LatencyMS,
		b.P99LatencyMS, b.StdDevMS, b.SampleCount, b.CalculatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to upsert baseline: %w", err)
	}
	return nil
}
