package domain

import "time"

// MinBaselineSamples — минимум успешных замеров для построения базовой линии.
// Меньше — нормальное состояние прогрева, а не ошибка.
const MinBaselineSamples = 10

// Baseline — статистический профиль задержек эндпоинта по скользящему окну
// успешных проверок. Хранится одна строка на эндпоинт (upsert, без истории).
type Baseline struct {
	EndpointID   string    `json:"endpoint_id"`
	AvgLatencyMS float64   `json:"avg_latency_ms"`
	P50LatencyMS float64   `json:"p50_latency_ms"`
	P95LatencyMS float64   `json:"p95_latency_ms"`
	P99LatencyMS float64   `json:"p99_latency_ms"`
	StdDevMS     float64   `json:"std_dev_ms"` // Популяционное отклонение (деление на n)
	SampleCount  int       `json:"sample_count"`
	CalculatedAt time.Time `json:"calculated_at"`
}
