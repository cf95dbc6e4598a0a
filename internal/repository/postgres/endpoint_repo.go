package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xela07ax/pulsemon/internal/domain"
)

type EndpointRepo struct {
	pool *pgxpool.Pool
}

func NewEndpointRepo(pool *pgxpool.Pool) *EndpointRepo {
	return &EndpointRepo{pool: pool}
}

const endpointColumns = `id, name, url, method, headers, body, interval_seconds, timeout_seconds,
	expected_status_codes, is_active, created_at, updated_at`

func scanEndpoint(row pgx.Row) (*domain.Endpoint, error) {
	var e domain.Endpoint
	err := row.Scan(
		&e.ID, &e.Name, &e.URL, &e.Method, &e.Headers, &e.Body,
		&e.IntervalSeconds, &e.TimeoutSeconds, &e.ExpectedStatusCodes,
		&e.IsActive, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListActive возвращает все эндпоинты, подлежащие опросу планировщиком.
func (r *EndpointRepo) ListActive(ctx context.Context) ([]*domain.Endpoint, error) {
	query := `SELECT ` + endpointColumns + ` FROM endpoints WHERE is_active = true ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query active endpoints: %w", err)
	}
	defer rows.Close()

	// Инициализируем пустой слайс, чтобы в JSON был [] вместо null
	results := make([]*domain.Endpoint, 0)
	for rows.Next() {
		e, err := scanEndpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan endpoint: %w", err)
		}
		results = append(results, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return results, nil
}

// List возвращает все эндпоинты для Console API (включая выключенные).
func (r *EndpointRepo) List(ctx context.Context) ([]*domain.Endpoint, error) {
	query := `SELECT ` + endpointColumns + ` FROM endpoints ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query endpoints: %w", err)
	}
	defer rows.Close()

	results := make([]*domain.Endpoint, 0)
	for rows.Next() {
		e, err := scanEndpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan endpoint: %w", err)
		}
		results = append(results, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return results, nil
}

func (r *EndpointRepo) Get(ctx context.Context, id string) (*domain.Endpoint, error) {
	query := `SELECT ` + endpointColumns + ` FROM endpoints WHERE id = $1`

	e, err := scanEndpoint(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Возвращаем nil для 404 в хендлере
		}
		return nil, fmt.Errorf("postgres: failed to get endpoint: %w", err)
	}
	return e, nil
}

func (r *EndpointRepo) Create(ctx context.Context, e *domain.Endpoint) error {
	query := `
		INSERT INTO endpoints (id, name, url, method, headers, body, interval_seconds,
		                       timeout_seconds, expected_status_codes, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.pool.Exec(ctx, query,
		e.ID, e.Name, e.URL, e.Method, e.Headers, e.Body,
		e.IntervalSeconds, e.TimeoutSeconds, e.ExpectedStatusCodes, e.IsActive,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to create endpoint: %w", err)
	}
	return nil
}

func (r *EndpointRepo) Update(ctx context.Context, e *domain.Endpoint) error {
	query := `
		UPDATE endpoints
		SET name = $1, url = $2, method = $3, headers = $4, body = $5,
		    interval_seconds = $6, timeout_seconds = $7, expected_status_codes = $8,
		    is_active = $9, updated_at = NOW()
		WHERE id = $10`

	ct, err := r.pool.Exec(ctx, query,
		e.Name, e.URL, e.Method, e.Headers, e.Body,
		e.IntervalSeconds, e.TimeoutSeconds, e.ExpectedStatusCodes, e.IsActive, e.ID,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to update endpoint: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("postgres: endpoint not found")
	}
	return nil
}

func (r *EndpointRepo) Delete(ctx context.Context, id string) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM endpoints WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: failed to delete endpoint: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("postgres: endpoint not found")
	}
	return nil
}
