package detector

/*
Файл detector.go реализует детектор деградации: сравнение короткого
скользящего окна проверок (15 минут) с базовой линией эндпоинта.
Детектор только создает инциденты; их дальнейшим жизненным циклом
управляет пакет incident.
*/

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/pulsemon/internal/domain"
	"go.uber.org/zap"
)

// degradationWindow — глубина окна, по которому оценивается текущее состояние.
const degradationWindow = 15 * time.Minute

// Thresholds — пороги срабатывания. Значение неизменяемо и передается
// на каждый вызов Check, а не живет в процессе глобально:
// это позволяет в будущем давать разным владельцам свои пороги.
type Thresholds struct {
	LatencyMultiplier   float64 // Во сколько раз средняя задержка должна превысить baseline
	ErrorRateThreshold  float64 // Доля ошибок в окне
	ConsecutiveFailures int     // Провалов подряд, начиная с самой свежей проверки
}

// DefaultThresholds — пороги по умолчанию.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LatencyMultiplier:   2.0,
		ErrorRateThreshold:  0.10,
		ConsecutiveFailures: 3,
	}
}

type BaselineSource interface {
	Get(ctx context.Context, endpointID string) (*domain.Baseline, error)
}

type ProbeSource interface {
	QueryWindow(ctx context.Context, endpointID string, since time.Time) ([]*domain.ProbeResult, error)
}

// IncidentStore — хранилище инцидентов. InsertIfNoneOpen атомарно проверяет
// отсутствие открытого инцидента и вставляет новый: два раздельных вызова
// дали бы гонку между пересекающимися раундами опроса.
type IncidentStore interface {
	GetOpen(ctx context.Context, endpointID string) (*domain.Incident, error)
	InsertIfNoneOpen(ctx context.Context, inc *domain.Incident, entry *domain.TimelineEntry) (bool, error)
}

type Detector struct {
	baselines BaselineSource
	probes    ProbeSource
	incidents IncidentStore
	logger    *zap.Logger
}

func NewDetector(baselines BaselineSource, probes ProbeSource, incidents IncidentStore, logger *zap.Logger) *Detector {
	return &Detector{
		baselines: baselines,
		probes:    probes,
		incidents: incidents,
		logger:    logger.Named("detector"),
	}
}

// Check оценивает окно эндпоинта против базовой линии и порогов.
// Возвращает созданный инцидент или nil, если деградации нет
// (или инцидент уже открыт).
func (d *Detector) Check(ctx context.Context, endpointID, endpointName string, th Thresholds) (*domain.Incident, error) {
	baseline, err := d.baselines.Get(ctx, endpointID)
	if err != nil {
		return nil, fmt.Errorf("detector: failed to load baseline: %w", err)
	}
	if baseline == nil {
		return nil, nil // Без опорной линии деградацию не измерить
	}

	probes, err := d.probes.QueryWindow(ctx, endpointID, time.Now().Add(-degradationWindow))
	if err != nil {
		return nil, fmt.Errorf("detector: failed to load probe window: %w", err)
	}
	if len(probes) == 0 {
		return nil, nil
	}

	m := measure(probes, baseline)
	if !m.tripped(th) {
		return nil, nil
	}

	// Дешевая проверка до сборки инцидента. От гонки пересекающихся раундов
	// защищает не она, а атомарный InsertIfNoneOpen в хранилище.
	open, err := d.incidents.GetOpen(ctx, endpointID)
	if err != nil {
		return nil, fmt.Errorf("detector: failed to check open incident: %w", err)
	}
	if open != nil {
		return nil, nil
	}

	inc := buildIncident(endpointID, endpointName, m, baseline)
	entry := &domain.TimelineEntry{
		ID:         uuid.NewString(),
		IncidentID: inc.ID,
		Status:     domain.IncidentActive,
		Message:    "Incident detected automatically",
		Timestamp:  inc.StartedAt,
	}

	inserted, err := d.incidents.InsertIfNoneOpen(ctx, inc, entry)
	if err != nil {
		return nil, fmt.Errorf("detector: failed to create incident: %w", err)
	}
	if !inserted {
		return nil, nil // Параллельный раунд успел первым
	}

	d.logger.Warn("degradation detected",
		zap.String("endpoint_id", endpointID),
		zap.String("type", string(inc.Type)),
		zap.String("severity", string(inc.Severity)),
		zap.Float64("error_rate", m.errorRate),
		zap.Float64("latency_ratio", m.latencyRatio),
		zap.Int("consecutive_failures", m.consecutiveFailures),
	)
	return inc, nil
}

// windowMetrics — измерения по окну проверок.
type windowMetrics struct {
	total               int
	errorRate           float64 // Доля проверок с outcome != success
	avgLatencyMS        float64 // Средняя по успешным, 0 если их нет
	latencyRatio        float64 // avg / baseline.avg, 1 если baseline.avg == 0
	consecutiveFailures int     // Провалов подряд от самой свежей проверки назад
	timeouts            int
}

// measure считает метрики окна. Проверки приходят по возрастанию времени.
func measure(probes []*domain.ProbeResult, baseline *domain.Baseline) windowMetrics {
	m := windowMetrics{total: len(probes)}

	var failures int
	var latSum float64
	var latCount int
	for _, p := range probes {
		if p.IsSuccess() {
			if p.LatencyMS != nil {
				latSum += *p.LatencyMS
				latCount++
			}
			continue
		}
		failures++
		if p.Outcome == domain.OutcomeTimeout {
			m.timeouts++
		}
	}

	m.errorRate = float64(failures) / float64(m.total)
	if latCount > 0 {
		m.avgLatencyMS = latSum / float64(latCount)
	}
	if baseline.AvgLatencyMS == 0 {
		m.latencyRatio = 1
	} else {
		m.latencyRatio = m.avgLatencyMS / baseline.AvgLatencyMS
	}

	// Считаем провалы от самой свежей проверки назад до первого успеха
	for i := len(probes) - 1; i >= 0; i-- {
		if probes[i].IsSuccess() {
			break
		}
		m.consecutiveFailures++
	}

	return m
}

// tripped — условие срабатывания: достаточно любого из трех порогов.
func (m windowMetrics) tripped(th Thresholds) bool {
	return m.latencyRatio >= th.LatencyMultiplier ||
		m.errorRate >= th.ErrorRateThreshold ||
		m.consecutiveFailures >= th.ConsecutiveFailures
}

// classifyType — таблица решений по типу инцидента, проверяется по порядку.
func classifyType(m windowMetrics) domain.IncidentType {
	switch {
	case m.errorRate >= 0.9:
		return domain.IncidentCompleteOutage
	case m.timeouts > 0 && m.errorRate > 0.3:
		return domain.IncidentTimeout
	case m.errorRate > 0.1:
		return domain.IncidentHighErrorRate
	}
	return domain.IncidentLatencySpike
}

// classifySeverity — таблица решений по серьезности.
func classifySeverity(m windowMetrics) domain.IncidentSeverity {
	switch {
	case m.errorRate >= 0.9 || m.consecutiveFailures >= 5:
		return domain.SeverityCritical
	case m.errorRate >= 0.5 || m.latencyRatio >= 3:
		return domain.SeverityMajor
	}
	return domain.SeverityMinor
}

// buildIncident собирает инцидент с детерминированными заголовком и описанием:
// проценты — один знак после запятой, задержки — целые миллисекунды,
// кратность — один знак после запятой.
func buildIncident(endpointID, endpointName string, m windowMetrics, baseline *domain.Baseline) *domain.Incident {
	incType := classifyType(m)
	severity := classifySeverity(m)

	var title, description string
	switch incType {
	case domain.IncidentCompleteOutage:
		title = fmt.Sprintf("Complete outage on %s", endpointName)
		description = fmt.Sprintf("Error rate at %.1f%% over the last 15 minutes", m.errorRate*100)
	case domain.IncidentTimeout:
		title = fmt.Sprintf("Timeouts detected on %s", endpointName)
		description = fmt.Sprintf("Error rate at %.1f%% with timeouts over the last 15 minutes", m.errorRate*100)
	case domain.IncidentHighErrorRate:
		title = fmt.Sprintf("High error rate on %s", endpointName)
		description = fmt.Sprintf("Error rate at %.1f%% over the last 15 minutes", m.errorRate*100)
	case domain.IncidentLatencySpike:
		title = fmt.Sprintf("Latency spike on %s", endpointName)
		description = fmt.Sprintf("Latency increased from %.0fms to %.0fms (%.1fx baseline)",
			baseline.AvgLatencyMS, m.avgLatencyMS, m.latencyRatio)
	}

	now := time.Now()
	return &domain.Incident{
		ID:          uuid.NewString(),
		EndpointID:  endpointID,
		Type:        incType,
		Severity:    severity,
		Status:      domain.IncidentActive,
		Title:       title,
		Description: description,
		StartedAt:   now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
