package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xela07ax/pulsemon/internal/domain"
)

type ProbeRepo struct {
	pool *pgxpool.Pool
}

func NewProbeRepo(pool *pgxpool.Pool) *ProbeRepo {
	return &ProbeRepo{pool: pool}
}

func (r *ProbeRepo) Insert(ctx context.Context, p *domain.ProbeResult) error {
	query := `
		INSERT INTO probe_results (id, endpoint_id, timestamp, outcome, latency_ms, status_code, error_message, region)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		p.ID, p.EndpointID, p.Timestamp, p.Outcome,
		p.LatencyMS, p.StatusCode, p.ErrorMessage, p.Region,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to insert probe result: %w", err)
	}
	return nil
}

func scanProbes(rows pgx.Rows) ([]*domain.ProbeResult, error) {
	defer rows.Close()

	results := make([]*domain.ProbeResult, 0)
	for rows.Next() {
		var p domain.ProbeResult
		err := rows.Scan(
			&p.ID, &p.EndpointID, &p.Timestamp, &p.Outcome,
			&p.LatencyMS, &p.StatusCode, &p.ErrorMessage, &p.Region,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan probe result: %w", err)
		}
		results = append(results, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return results, nil
}

// QueryWindow возвращает все проверки эндпоинта начиная с момента since,
// упорядоченные по времени (старые первыми).
func (r *ProbeRepo) QueryWindow(ctx context.Context, endpointID string, since time.Time) ([]*domain.ProbeResult, error) {
	query := `
		SELECT id, endpoint_id, timestamp, outcome, latency_ms, status_code, error_message, region
		FROM probe_results
		WHERE endpoint_id = $1 AND timestamp >= $2
		ORDER BY timestamp ASC`

	rows, err := r.pool.Query(ctx, query, endpointID, since)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query probe window: %w", err)
	}
	return scanProbes(rows)
}

// QueryRecentN возвращает n последних проверок, новые первыми,
// без ограничения по временному окну.
func (r *ProbeRepo) QueryRecentN(ctx context.Context, endpointID string, n int) ([]*domain.ProbeResult, error) {
	query := `
		SELECT id, endpoint_id, timestamp, outcome, latency_ms, status_code, error_message, region
		FROM probe_results
		WHERE endpoint_id = $1
		ORDER BY timestamp DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, endpointID, n)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query recent probes: %w", err)
	}
	return scanProbes(rows)
}

// WindowStats считает агрегат по окну одним запросом, не вытаскивая сырые строки.
// Средняя задержка — только по успешным проверкам (у остальных её нет).
func (r *ProbeRepo) WindowStats(ctx context.Context, endpointID string, since time.Time) (domain.WindowStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE outcome = 'success'),
			COUNT(*) FILTER (WHERE outcome = 'timeout'),
			COALESCE(AVG(latency_ms) FILTER (WHERE outcome = 'success'), 0),
			MAX(timestamp)
		FROM probe_results
		WHERE endpoint_id = $1 AND timestamp >= $2`

	var stats domain.WindowStats
	err := r.pool.QueryRow(ctx, query, endpointID, since).Scan(
		&stats.Total, &stats.Successes, &stats.Timeouts, &stats.AvgLatencyMS, &stats.LastProbeAt,
	)
	if err != nil {
		return domain.WindowStats{}, fmt.Errorf("postgres: failed to compute window stats: %w", err)
	}
	return stats, nil
}

// LatencySamples возвращает задержки успешных проверок окна по возрастанию —
// вход для расчета базовой линии (перцентили по nearest-rank).
func (r *ProbeRepo) LatencySamples(ctx context.Context, endpointID string, since time.Time) ([]float64, error) {
	query := `
		SELECT latency_ms
		FROM probe_results
		WHERE endpoint_id = $1 AND timestamp >= $2 AND outcome = 'success' AND latency_ms IS NOT NULL
		ORDER BY latency_ms ASC`

	rows, err := r.pool.Query(ctx, query, endpointID, since)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query latency samples: %w", err)
	}
	defer rows.Close()

	samples := make([]float64, 0)
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan latency sample: %w", err)
		}
		samples = append(samples, v)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return samples, nil
}
