package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/xela07ax/pulsemon/internal/domain"
)

// WebhookNotifier доставляет события POST-запросом с JSON-телом
// на настроенный URL. Успехом считается любой 2xx ответ.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url: url,
		client: &http.Client{
			Transport: &http.Transport{DisableKeepAlives: true},
		},
	}
}

func (w *WebhookNotifier) Send(ctx context.Context, inc *domain.Incident, endpointName string, kind Kind) error {
	payload, err := json.Marshal(Event{
		Kind:         kind,
		EndpointName: endpointName,
		Incident:     inc,
		OccurredAt:   time.Now(),
	})
	if err != nil {
		return fmt.Errorf("notify: failed to marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("notify: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	// Вычитываем тело, чтобы соединение корректно закрылось
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
