package domain

import "time"

// WindowStats — агрегат по окну проверок (обычно 24 часа).
// Считается одним SQL-запросом, чтобы не тянуть сырые строки из БД.
type WindowStats struct {
	Total        int64      `json:"total"`
	Successes    int64      `json:"successes"`
	Timeouts     int64      `json:"timeouts"`
	AvgLatencyMS float64    `json:"avg_latency_ms"` // Средняя по успешным, 0 если их нет
	LastProbeAt  *time.Time `json:"last_probe_at,omitempty"`
}

// SuccessRate возвращает долю успешных проверок, 0 без данных.
func (s WindowStats) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Successes) / float64(s.Total)
}
