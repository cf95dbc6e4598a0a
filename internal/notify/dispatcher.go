package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/pulsemon/internal/domain"
	"github.com/xela07ax/pulsemon/internal/infra"
	"go.uber.org/zap"
)

// Dispatcher разводит событие инцидента по двум путям:
// внешнее уведомление (вебхук) и Redis Pub/Sub для живых подписчиков консоли.
// Ошибки доставки логируются и считаются, но не возвращаются — сбой
// уведомления не должен прерывать раунд опроса.
type Dispatcher struct {
	notifier Notifier
	rdb      *redis.Client
	failures prometheus.Counter
	logger   *zap.Logger
}

func NewDispatcher(notifier Notifier, rdb *redis.Client, failures prometheus.Counter, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		notifier: notifier,
		rdb:      rdb,
		failures: failures,
		logger:   logger.Named("dispatcher"),
	}
}

// IncidentCreated — новый инцидент: alert наружу + трансляция в канал.
func (d *Dispatcher) IncidentCreated(ctx context.Context, inc *domain.Incident, endpointName string) {
	d.dispatch(ctx, inc, endpointName, KindAlert)
}

// IncidentResolved — авто-восстановление: recovery наружу + трансляция.
func (d *Dispatcher) IncidentResolved(ctx context.Context, inc *domain.Incident, endpointName string) {
	d.dispatch(ctx, inc, endpointName, KindRecovery)
}

func (d *Dispatcher) dispatch(ctx context.Context, inc *domain.Incident, endpointName string, kind Kind) {
	// 1. Real-time Signaling для Console API
	payload, err := json.Marshal(Event{
		Kind:         kind,
		EndpointName: endpointName,
		Incident:     inc,
		OccurredAt:   time.Now(),
	})
	if err == nil {
		if err := d.rdb.Publish(ctx, infra.RedisChanIncidentEvents, payload).Err(); err != nil {
			// Подписчиков может не быть вовсе — это только сигнал, не доставка
			d.logger.Warn("incident event broadcast failed",
				zap.String("incident_id", inc.ID), zap.Error(err))
		}
	}

	// 2. Внешнее уведомление
	if err := d.notifier.Send(ctx, inc, endpointName, kind); err != nil {
		d.failures.Inc()
		d.logger.Error("notification delivery failed",
			zap.String("incident_id", inc.ID),
			zap.String("kind", string(kind)),
			zap.Error(err))
		return
	}

	d.logger.Info("notification delivered",
		zap.String("incident_id", inc.ID),
		zap.String("kind", string(kind)))
}
