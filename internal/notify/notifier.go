package notify

import (
	"context"
	"time"

	"github.com/xela07ax/pulsemon/internal/domain"
)

// Kind — тип уведомления.
type Kind string

const (
	KindAlert    Kind = "alert"    // Новый инцидент
	KindRecovery Kind = "recovery" // Инцидент разрешен
)

// Notifier — единственная способность, которую ядро требует от транспорта
// уведомлений. Подпись ключей, каналы доставки и ретраи на стороне
// получателя — внешняя забота.
type Notifier interface {
	Send(ctx context.Context, inc *domain.Incident, endpointName string, kind Kind) error
}

// NopNotifier используется, когда вебхук не настроен: события
// по-прежнему транслируются в Redis, но наружу ничего не уходит.
type NopNotifier struct{}

func (NopNotifier) Send(context.Context, *domain.Incident, string, Kind) error { return nil }

// Event — полезная нагрузка уведомления и Pub/Sub трансляции.
type Event struct {
	Kind         Kind             `json:"kind"`
	EndpointName string           `json:"endpoint_name"`
	Incident     *domain.Incident `json:"incident"`
	OccurredAt   time.Time        `json:"occurred_at"`
}
