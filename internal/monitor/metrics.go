package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Traffic: проверки по исходам
	ProbesTotal *prometheus.CounterVec

	// Latency: длительность проверки (включая неуспешные)
	ProbeDuration prometheus.Histogram

	// Errors: отказы персистенции/обработки внутри раунда
	RoundErrors prometheus.Counter

	// Раунды планировщика
	RoundsTotal prometheus.Counter

	// Инциденты, созданные детектором / закрытые авто-восстановлением
	IncidentsOpened    prometheus.Counter
	IncidentsRecovered prometheus.Counter

	// Отказы доставки уведомлений
	NotifyFailures prometheus.Counter

	// Состояние Circuit Breaker вебхука (0 - закрыт, 1 - выбило)
	NotifierBreakerState prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern — если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		ProbesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "pulsemon_probes_total",
			Help: "Total number of executed probes by outcome.",
		}, []string{"outcome"}),

		ProbeDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "pulsemon_probe_duration_seconds",
			Help:    "Histogram of probe durations.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),

		RoundErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "pulsemon_round_errors_total",
			Help: "Total number of per-endpoint processing failures.",
		}),

		RoundsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "pulsemon_rounds_total",
			Help: "Total number of completed scheduling rounds.",
		}),

		IncidentsOpened: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "pulsemon_incidents_opened_total",
			Help: "Total number of incidents created by the detector.",
		}),

		IncidentsRecovered: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "pulsemon_incidents_recovered_total",
			Help: "Total number of incidents auto-resolved by recovery checks.",
		}),

		NotifyFailures: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "pulsemon_notify_failures_total",
			Help: "Total number of failed notification deliveries.",
		}),

		NotifierBreakerState: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "pulsemon_notifier_breaker_state",
			Help: "Current state of the notifier circuit breaker (0=closed, 1=open).",
		}),
	}
}
