package domain

import "time"

// DefaultExpectedStatusCodes — если владелец эндпоинта не задал список явно,
// успешным считаем стандартный набор "2xx без тела/с телом".
var DefaultExpectedStatusCodes = []int{200, 201, 204}

// Endpoint — проверяемая цель мониторинга.
// Записью владеет Console API (создание/редактирование), ядро мониторинга
// читает её и никогда не мутирует.
type Endpoint struct {
	ID      string            `json:"id"`   // UUID
	Name    string            `json:"name"` // Человекочитаемое имя ("Billing API")
	URL     string            `json:"url"`
	Method  string            `json:"method"`            // GET, POST, ...
	Headers map[string]string `json:"headers,omitempty"` // Кастомные заголовки (перекрывают дефолтные)
	Body    string            `json:"body,omitempty"`    // Тело запроса (игнорируется для GET/HEAD)

	IntervalSeconds     int   `json:"interval_seconds"`      // Период опроса
	TimeoutSeconds      int   `json:"timeout_seconds"`       // Жесткий дедлайн одной проверки (>0)
	ExpectedStatusCodes []int `json:"expected_status_codes"` // Пустой список => дефолтный набор
	IsActive            bool  `json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Timeout возвращает дедлайн проверки как Duration.
func (e *Endpoint) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

// IsExpectedStatus проверяет, входит ли код ответа в набор успешных.
func (e *Endpoint) IsExpectedStatus(code int) bool {
	codes := e.ExpectedStatusCodes
	if len(codes) == 0 {
		codes = DefaultExpectedStatusCodes
	}
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}
