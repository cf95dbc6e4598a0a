package domain

import "time"

type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthDown     HealthStatus = "down"
	HealthUnknown  HealthStatus = "unknown" // Нет данных в окне
)

// HealthSummary — производное представление для дашборда. Пересчитывается
// на каждом цикле опроса и живет в Redis с коротким TTL, это не источник правды.
type HealthSummary struct {
	EndpointID        string       `json:"endpoint_id"`
	Status            HealthStatus `json:"status"`
	ReliabilityScore  int          `json:"reliability_score"` // round(successRate*100)
	CurrentLatencyMS  float64      `json:"current_latency_ms"`
	BaselineLatencyMS float64      `json:"baseline_latency_ms"`
	ErrorRate         float64      `json:"error_rate"` // 1 - successRate, 0 без данных
	UptimePercent     float64      `json:"uptime_percent"`

	LastProbeAt    *time.Time `json:"last_probe_at,omitempty"`
	LastIncidentAt *time.Time `json:"last_incident_at,omitempty"`
	CheckedAt      time.Time  `json:"checked_at"`
}
