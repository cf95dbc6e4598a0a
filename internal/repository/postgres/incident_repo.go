package postgres

/*
Файл incident_repo.go отвечает за хранение инцидентов и их хронологии.
Ключевой инвариант "не более одного открытого инцидента на эндпоинт"
обеспечивается на уровне хранилища: атомарный INSERT ... WHERE NOT EXISTS
в одной транзакции плюс частичный уникальный индекс
(endpoint_id) WHERE status <> 'resolved' как страховка от гонок.
*/

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xela07ax/pulsemon/internal/domain"
)

type IncidentRepo struct {
	pool *pgxpool.Pool
}

func NewIncidentRepo(pool *pgxpool.Pool) *IncidentRepo {
	return &IncidentRepo{pool: pool}
}

const incidentColumns = `id, endpoint_id, type, severity, status, title, description,
	started_at, resolved_at, created_at, updated_at`

func scanIncident(row pgx.Row) (*domain.Incident, error) {
	var inc domain.Incident
	err := row.Scan(
		&inc.ID, &inc.EndpointID, &inc.Type, &inc.Severity, &inc.Status,
		&inc.Title, &inc.Description, &inc.StartedAt, &inc.ResolvedAt,
		&inc.CreatedAt, &inc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inc, nil
}

func (r *IncidentRepo) Get(ctx context.Context, id string) (*domain.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id = $1`

	inc, err := scanIncident(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: failed to get incident: %w", err)
	}
	return inc, nil
}

// GetOpen возвращает открытый (status != resolved) инцидент эндпоинта, nil если его нет.
func (r *IncidentRepo) GetOpen(ctx context.Context, endpointID string) (*domain.Incident, error) {
	query := `SELECT ` + incidentColumns + `
		FROM incidents
		WHERE endpoint_id = $1 AND status <> 'resolved'
		LIMIT 1`

	inc, err := scanIncident(r.pool.QueryRow(ctx, query, endpointID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: failed to get open incident: %w", err)
	}
	return inc, nil
}

// InsertIfNoneOpen атомарно создает инцидент вместе с первой записью хронологии,
// только если у эндпоинта нет другого открытого инцидента.
// Проверка и вставка выполняются одним запросом внутри транзакции,
// а не двумя отдельными вызовами — иначе пересекающиеся раунды опроса
// могли бы создать дубликат. Возвращает true, если вставка произошла.
func (r *IncidentRepo) InsertIfNoneOpen(ctx context.Context, inc *domain.Incident, entry *domain.TimelineEntry) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("postgres: failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	insertIncident := `
		INSERT INTO incidents (id, endpoint_id, type, severity, status, title, description, started_at)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8
		WHERE NOT EXISTS (
			SELECT 1 FROM incidents WHERE endpoint_id = $2 AND status <> 'resolved'
		)`

	ct, err := tx.Exec(ctx, insertIncident,
		inc.ID, inc.EndpointID, inc.Type, inc.Severity, inc.Status,
		inc.Title, inc.Description, inc.StartedAt,
	)
	if err != nil {
		// Страховочный частичный уникальный индекс: параллельная транзакция успела первой
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return false, nil
		}
		return false, fmt.Errorf("postgres: failed to insert incident: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return false, nil // Открытый инцидент уже существует
	}

	insertEntry := `
		INSERT INTO incident_timeline (id, incident_id, status, message, timestamp)
		VALUES ($1, $2, $3, $4, $5)`

	if _, err := tx.Exec(ctx, insertEntry, entry.ID, entry.IncidentID, entry.Status, entry.Message, entry.Timestamp); err != nil {
		return false, fmt.Errorf("postgres: failed to insert initial timeline entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("postgres: failed to commit incident: %w", err)
	}
	return true, nil
}

// UpdateStatus меняет статус инцидента. resolvedAt передается только при
// переходе в resolved; на остальных переходах (включая переоткрытие)
// существующее значение resolved_at не трогаем.
func (r *IncidentRepo) UpdateStatus(ctx context.Context, id string, status domain.IncidentStatus, resolvedAt *time.Time) error {
	query := `
		UPDATE incidents
		SET status = $1,
		    resolved_at = CASE WHEN $2::timestamptz IS NULL THEN resolved_at ELSE $2 END,
		    updated_at = NOW()
		WHERE id = $3`

	ct, err := r.pool.Exec(ctx, query, status, resolvedAt, id)
	if err != nil {
		return fmt.Errorf("postgres: failed to update incident status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("postgres: incident %s not found", id)
	}
	return nil
}

// UpdateSeverity меняет серьезность, но только пока инцидент не разрешен.
// Возвращает false, если инцидент не найден или уже resolved.
func (r *IncidentRepo) UpdateSeverity(ctx context.Context, id string, severity domain.IncidentSeverity) (bool, error) {
	query := `
		UPDATE incidents
		SET severity = $1, updated_at = NOW()
		WHERE id = $2 AND status <> 'resolved'`

	ct, err := r.pool.Exec(ctx, query, severity, id)
	if err != nil {
		return false, fmt.Errorf("postgres: failed to update incident severity: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

func (r *IncidentRepo) AppendTimeline(ctx context.Context, entry *domain.TimelineEntry) error {
	query := `
		INSERT INTO incident_timeline (id, incident_id, status, message, timestamp)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.pool.Exec(ctx, query, entry.ID, entry.IncidentID, entry.Status, entry.Message, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("postgres: failed to append timeline entry: %w", err)
	}
	return nil
}

// Timeline возвращает хронологию инцидента в порядке наступления событий.
func (r *IncidentRepo) Timeline(ctx context.Context, incidentID string) ([]*domain.TimelineEntry, error) {
	query := `
		SELECT id, incident_id, status, message, timestamp
		FROM incident_timeline
		WHERE incident_id = $1
		ORDER BY timestamp ASC`

	rows, err := r.pool.Query(ctx, query, incidentID)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query timeline: %w", err)
	}
	defer rows.Close()

	results := make([]*domain.TimelineEntry, 0)
	for rows.Next() {
		var e domain.TimelineEntry
		if err := rows.Scan(&e.ID, &e.IncidentID, &e.Status, &e.Message, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan timeline entry: %w", err)
		}
		results = append(results, &e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return results, nil
}

// MergeSecondary перевешивает хронологию вторичного инцидента на первичный
// и удаляет вторичный. Обе операции в одной транзакции: частичное слияние
// оставило бы осиротевшие записи. Возвращает число перенесенных записей.
func (r *IncidentRepo) MergeSecondary(ctx context.Context, primaryID, secondaryID string) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres: failed to begin merge tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx,
		`UPDATE incident_timeline SET incident_id = $1 WHERE incident_id = $2`,
		primaryID, secondaryID,
	)
	if err != nil {
		return 0, fmt.Errorf("postgres: failed to reparent timeline: %w", err)
	}
	moved := ct.RowsAffected()

	dct, err := tx.Exec(ctx, `DELETE FROM incidents WHERE id = $1`, secondaryID)
	if err != nil {
		return 0, fmt.Errorf("postgres: failed to delete secondary incident: %w", err)
	}
	if dct.RowsAffected() == 0 {
		return 0, fmt.Errorf("postgres: secondary incident %s not found", secondaryID)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres: failed to commit merge: %w", err)
	}
	return moved, nil
}

func (r *IncidentRepo) ListByEndpoint(ctx context.Context, endpointID string) ([]*domain.Incident, error) {
	query := `SELECT ` + incidentColumns + `
		FROM incidents
		WHERE endpoint_id = $1
		ORDER BY started_at DESC
		LIMIT 100`

	rows, err := r.pool.Query(ctx, query, endpointID)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query incidents: %w", err)
	}
	return collectIncidents(rows)
}

// ListByStatus фильтрует инциденты для Console API. Пустой статус — все подряд.
func (r *IncidentRepo) ListByStatus(ctx context.Context, status domain.IncidentStatus) ([]*domain.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents`

	var args []interface{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY started_at DESC LIMIT 100`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query incidents: %w", err)
	}
	return collectIncidents(rows)
}

func collectIncidents(rows pgx.Rows) ([]*domain.Incident, error) {
	defer rows.Close()

	results := make([]*domain.Incident, 0)
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan incident: %w", err)
		}
		results = append(results, inc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return results, nil
}

// CountStartedSince — сколько инцидентов началось у эндпоинта после since.
// Питает компонент incident-history в рейтинге надежности.
func (r *IncidentRepo) CountStartedSince(ctx context.Context, endpointID string, since time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM incidents WHERE endpoint_id = $1 AND started_at >= $2`,
		endpointID, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: failed to count incidents: %w", err)
	}
	return count, nil
}

// LastIncidentAt возвращает время начала последнего инцидента, nil если их не было.
func (r *IncidentRepo) LastIncidentAt(ctx context.Context, endpointID string) (*time.Time, error) {
	var last *time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT MAX(started_at) FROM incidents WHERE endpoint_id = $1`,
		endpointID,
	).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to get last incident time: %w", err)
	}
	return last, nil
}
