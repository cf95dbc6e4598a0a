package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/pulsemon/internal/domain"
)

// ProberUserAgent — фиксированный идентифицирующий заголовок всех проверок.
// Кастомные заголовки эндпоинта могут его перекрыть.
const ProberUserAgent = "pulsemon-prober/1.0"

// timeoutMessage — фиксированное сообщение для исхода timeout.
const timeoutMessage = "request timed out"

// Prober выполняет одну ограниченную по времени HTTP-проверку.
// Контракт: всегда возвращает классифицированный результат, никогда
// не паникует и не возвращает ошибку — сетевые сбои это данные.
// Персистенция результата — забота вызывающего.
type Prober struct {
	client *http.Client
	region string
}

func NewProber(region string) *Prober {
	return &Prober{
		client: &http.Client{
			// Дедлайн задается контекстом на каждую проверку;
			// keep-alive выключен, чтобы замер не зависел от прогретых соединений
			Transport: &http.Transport{DisableKeepAlives: true},
		},
		region: region,
	}
}

// Probe выполняет проверку эндпоинта с жестким дедлайном из его настроек.
// Таймер и соединение освобождаются на любом пути выхода.
func (p *Prober) Probe(ctx context.Context, e *domain.Endpoint) domain.ProbeResult {
	result := domain.ProbeResult{
		ID:         uuid.NewString(),
		EndpointID: e.ID,
		Timestamp:  time.Now(),
		Region:     p.region,
	}

	ctx, cancel := context.WithTimeout(ctx, e.Timeout())
	defer cancel()

	method := strings.ToUpper(e.Method)
	if method == "" {
		method = http.MethodGet
	}

	// Тело прикладываем только к методам с полезной нагрузкой
	var body io.Reader
	if e.Body != "" && method != http.MethodGet && method != http.MethodHead {
		body = strings.NewReader(e.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, e.URL, body)
	if err != nil {
		return classifyError(result, err)
	}

	req.Header.Set("User-Agent", ProberUserAgent)
	for k, v := range e.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		if isTimeout(err) {
			msg := timeoutMessage
			result.Outcome = domain.OutcomeTimeout
			result.ErrorMessage = &msg
			return result
		}
		return classifyError(result, err)
	}
	defer resp.Body.Close()
	// Тело нам не нужно, но соединение должно закрыться корректно
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	code := resp.StatusCode
	result.StatusCode = &code

	if e.IsExpectedStatus(code) {
		// Задержка — от старта запроса до получения заголовков ответа
		latency := float64(elapsed.Microseconds()) / 1000.0
		result.Outcome = domain.OutcomeSuccess
		result.LatencyMS = &latency
		return result
	}

	msg := fmt.Sprintf("unexpected status code: %d", code)
	result.Outcome = domain.OutcomeError
	result.ErrorMessage = &msg
	return result
}

// classifyError — любой не-таймаут (DNS, connection refused и т.д.)
// фиксируется исходом error с исходным сообщением.
func classifyError(result domain.ProbeResult, err error) domain.ProbeResult {
	msg := err.Error()
	result.Outcome = domain.OutcomeError
	result.ErrorMessage = &msg
	return result
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
