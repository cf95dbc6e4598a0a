package domain

import "time"

type ScoreTrend string

const (
	TrendImproving ScoreTrend = "improving" // +5 и выше к снапшоту суточной давности
	TrendStable    ScoreTrend = "stable"
	TrendDeclining ScoreTrend = "declining" // -5 и ниже
)

// ReliabilityScore — взвешенная композитная оценка 0-100.
// В отличие от Baseline история снапшотов сохраняется целиком:
// тренд считается сравнением с предыдущим снапшотом.
type ReliabilityScore struct {
	ID         string `json:"id"` // UUID
	EndpointID string `json:"endpoint_id"`

	Overall float64 `json:"overall"`

	// Компоненты (каждый в [0,100])
	UptimeScore          float64 `json:"uptime_score"`
	LatencyScore         float64 `json:"latency_score"`
	ErrorRateScore       float64 `json:"error_rate_score"`
	IncidentHistoryScore float64 `json:"incident_history_score"`

	Trend        ScoreTrend `json:"trend"`
	CalculatedAt time.Time  `json:"calculated_at"`
}
