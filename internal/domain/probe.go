package domain

import "time"

type ProbeOutcome string

const (
	OutcomeSuccess ProbeOutcome = "success" // Ответ получен, статус из ожидаемого набора
	OutcomeError   ProbeOutcome = "error"   // Сетевая ошибка или неожиданный статус
	OutcomeTimeout ProbeOutcome = "timeout" // Дедлайн истек до получения заголовков
)

// ProbeResult — одно независимое наблюдение. Запись неизменяема после создания,
// внешний janitor подчищает историю за пределами окна хранения.
type ProbeResult struct {
	ID         string       `json:"id"` // UUID
	EndpointID string       `json:"endpoint_id"`
	Timestamp  time.Time    `json:"timestamp"`
	Outcome    ProbeOutcome `json:"outcome"`

	// LatencyMS заполняется только при успехе (время до получения заголовков).
	LatencyMS *float64 `json:"latency_ms,omitempty"`
	// StatusCode присутствует для success/error, отсутствует при timeout.
	StatusCode *int `json:"status_code,omitempty"`
	// ErrorMessage отсутствует при успехе.
	ErrorMessage *string `json:"error_message,omitempty"`

	Region string `json:"region"` // Откуда выполнялась проверка
}

// IsSuccess — короткий хелпер для статистики по окнам.
func (p *ProbeResult) IsSuccess() bool {
	return p.Outcome == OutcomeSuccess
}
