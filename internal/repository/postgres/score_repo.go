package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xela07ax/pulsemon/internal/domain"
)

type ScoreRepo struct {
	pool *pgxpool.Pool
}

func NewScoreRepo(pool *pgxpool.Pool) *ScoreRepo {
	return &ScoreRepo{pool: pool}
}

// InsertSnapshot добавляет новый неизменяемый снапшот рейтинга.
// В отличие от baselines история хранится целиком — она нужна для трендов.
func (r *ScoreRepo) InsertSnapshot(ctx context.Context, s *domain.ReliabilityScore) error {
	query := `
		INSERT INTO score_snapshots (id, endpoint_id, overall, uptime_score, latency_score,
		                             error_rate_score, incident_history_score, trend, calculated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.pool.Exec(ctx, query,
		s.ID, s.EndpointID, s.Overall, s.UptimeScore, s.LatencyScore,
		s.ErrorRateScore, s.IncidentHistoryScore, s.Trend, s.CalculatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to insert score snapshot: %w", err)
	}
	return nil
}

const scoreColumns = `id, endpoint_id, overall, uptime_score, latency_score,
	error_rate_score, incident_history_score, trend, calculated_at`

func scanScore(row pgx.Row) (*domain.ReliabilityScore, error) {
	var s domain.ReliabilityScore
	err := row.Scan(
		&s.ID, &s.EndpointID, &s.Overall, &s.UptimeScore, &s.LatencyScore,
		&s.ErrorRateScore, &s.IncidentHistoryScore, &s.Trend, &s.CalculatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// LatestBefore возвращает самый свежий снапшот не позже момента t —
// опорная точка для расчета тренда. nil, если истории еще нет.
func (r *ScoreRepo) LatestBefore(ctx context.Context, endpointID string, t time.Time) (*domain.ReliabilityScore, error) {
	query := `SELECT ` + scoreColumns + `
		FROM score_snapshots
		WHERE endpoint_id = $1 AND calculated_at <= $2
		ORDER BY calculated_at DESC
		LIMIT 1`

	s, err := scanScore(r.pool.QueryRow(ctx, query, endpointID, t))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: failed to get score snapshot: %w", err)
	}
	return s, nil
}

// LatestFor возвращает текущий (последний) снапшот для Console API.
func (r *ScoreRepo) LatestFor(ctx context.Context, endpointID string) (*domain.ReliabilityScore, error) {
	query := `SELECT ` + scoreColumns + `
		FROM score_snapshots
		WHERE endpoint_id = $1
		ORDER BY calculated_at DESC
		LIMIT 1`

	s, err := scanScore(r.pool.QueryRow(ctx, query, endpointID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: failed to get latest score: %w", err)
	}
	return s, nil
}
