package notify

import (
	"context"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"github.com/xela07ax/pulsemon/internal/domain"
	"github.com/xela07ax/pulsemon/internal/infra"
)

// ReliableNotifier оборачивает транспорт уведомлений в Retry + Circuit Breaker.
// Недоступный вебхук не должен замедлять раунды опроса: после серии отказов
// предохранитель открывается и попытки доставки временно отсекаются.
type ReliableNotifier struct {
	next    Notifier
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
}

func NewReliableNotifier(next Notifier, cfg infra.NotifierConfig, breakerState prometheus.Gauge) *ReliableNotifier {
	// Настройка предохранителя
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "notifier-webhook",
		MaxRequests: cfg.CBMaxRequests,
		Interval:    cfg.CBInterval,
		Timeout:     cfg.CBTimeout, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Более 5 ошибок подряд — открываемся (перестаем дергать вебхук)
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if breakerState == nil {
				return
			}
			if to == gobreaker.StateOpen {
				breakerState.Set(1)
			} else {
				breakerState.Set(0)
			}
		},
	})

	return &ReliableNotifier{
		next:    next,
		cb:      cb,
		timeout: cfg.Timeout,
	}
}

func (n *ReliableNotifier) Send(ctx context.Context, inc *domain.Incident, endpointName string, kind Kind) error {
	_, err := n.cb.Execute(func() (interface{}, error) {
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(3),
		)

		retryErr := r.Do(func() error {
			tCtx, cancel := context.WithTimeout(ctx, n.timeout)
			defer cancel()

			return n.next.Send(tCtx, inc, endpointName, kind)
		})

		return nil, retryErr
	})
	return err
}
