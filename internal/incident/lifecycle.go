package incident

/*
Файл lifecycle.go — машина состояний инцидента.
Обычные переходы идут через таблицу validTransitions; авто-восстановление
(CheckForRecovery) закрывает инцидент в обход таблицы — это осознанный
override, а не дыра в валидации.
*/

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/pulsemon/internal/domain"
	"go.uber.org/zap"
)

// recoveryProbeCount — сколько последних проверок подряд должны быть
// успешными для автоматического закрытия инцидента.
const recoveryProbeCount = 5

// validTransitions — разрешенные ребра машины состояний.
var validTransitions = map[domain.IncidentStatus][]domain.IncidentStatus{
	domain.IncidentActive:        {domain.IncidentInvestigating, domain.IncidentIdentified, domain.IncidentResolved},
	domain.IncidentInvestigating: {domain.IncidentIdentified, domain.IncidentMonitoring, domain.IncidentResolved},
	domain.IncidentIdentified:    {domain.IncidentMonitoring, domain.IncidentResolved},
	domain.IncidentMonitoring:    {domain.IncidentResolved, domain.IncidentActive},
	domain.IncidentResolved:      {domain.IncidentActive},
}

// IsValidTransition проверяет ребро по таблице переходов.
func IsValidTransition(from, to domain.IncidentStatus) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Store — требования менеджера к хранилищу инцидентов.
type Store interface {
	Get(ctx context.Context, id string) (*domain.Incident, error)
	GetOpen(ctx context.Context, endpointID string) (*domain.Incident, error)
	UpdateStatus(ctx context.Context, id string, status domain.IncidentStatus, resolvedAt *time.Time) error
	UpdateSeverity(ctx context.Context, id string, severity domain.IncidentSeverity) (bool, error)
	AppendTimeline(ctx context.Context, entry *domain.TimelineEntry) error
	MergeSecondary(ctx context.Context, primaryID, secondaryID string) (int64, error)
}

// ProbeSource поставляет последние проверки для авто-восстановления.
type ProbeSource interface {
	QueryRecentN(ctx context.Context, endpointID string, n int) ([]*domain.ProbeResult, error)
}

type Manager struct {
	store  Store
	probes ProbeSource
	logger *zap.Logger
}

func NewManager(store Store, probes ProbeSource, logger *zap.Logger) *Manager {
	return &Manager{
		store:  store,
		probes: probes,
		logger: logger.Named("incident"),
	}
}

// UpdateStatus выполняет переход по таблице. Недопустимое ребро —
// *InvalidTransitionError без какой-либо мутации.
// resolved_at выставляется только при переходе В resolved; на всех прочих
// переходах (включая переоткрытие resolved -> active) прежнее значение
// сознательно не трогаем.
func (m *Manager) UpdateStatus(ctx context.Context, id string, newStatus domain.IncidentStatus, message string) error {
	inc, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if inc == nil {
		return ErrNotFoundOrResolved
	}
	if !IsValidTransition(inc.Status, newStatus) {
		return &InvalidTransitionError{From: inc.Status, To: newStatus}
	}

	now := time.Now()
	var resolvedAt *time.Time
	if newStatus == domain.IncidentResolved {
		resolvedAt = &now
	}

	if err := m.store.UpdateStatus(ctx, id, newStatus, resolvedAt); err != nil {
		return err
	}

	entry := &domain.TimelineEntry{
		ID:         uuid.NewString(),
		IncidentID: id,
		Status:     newStatus,
		Message:    message,
		Timestamp:  now,
	}
	if err := m.store.AppendTimeline(ctx, entry); err != nil {
		return err
	}

	m.logger.Info("incident status updated",
		zap.String("incident_id", id),
		zap.String("from", string(inc.Status)),
		zap.String("to", string(newStatus)))
	return nil
}

// UpdateSeverity меняет серьезность открытого инцидента.
// Запись в хронике помечается статусом identified.
func (m *Manager) UpdateSeverity(ctx context.Context, id string, severity domain.IncidentSeverity, reason string) error {
	ok, err := m.store.UpdateSeverity(ctx, id, severity)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFoundOrResolved
	}

	entry := &domain.TimelineEntry{
		ID:         uuid.NewString(),
		IncidentID: id,
		Status:     domain.IncidentIdentified,
		Message:    reason,
		Timestamp:  time.Now(),
	}
	return m.store.AppendTimeline(ctx, entry)
}

// CheckForRecovery закрывает открытый инцидент эндпоинта, если последние
// recoveryProbeCount проверок (без ограничения по окну) все успешны.
// Возвращает разрешенный инцидент и true, если восстановление произошло.
func (m *Manager) CheckForRecovery(ctx context.Context, endpointID string) (*domain.Incident, bool, error) {
	open, err := m.store.GetOpen(ctx, endpointID)
	if err != nil {
		return nil, false, err
	}
	if open == nil {
		return nil, false, nil
	}

	probes, err := m.probes.QueryRecentN(ctx, endpointID, recoveryProbeCount)
	if err != nil {
		return nil, false, err
	}
	if len(probes) < recoveryProbeCount {
		return nil, false, nil
	}
	for _, p := range probes {
		if !p.IsSuccess() {
			return nil, false, nil
		}
	}

	// Закрываем безусловно, в обход таблицы переходов
	now := time.Now()
	if err := m.store.UpdateStatus(ctx, open.ID, domain.IncidentResolved, &now); err != nil {
		return nil, false, err
	}

	entry := &domain.TimelineEntry{
		ID:         uuid.NewString(),
		IncidentID: open.ID,
		Status:     domain.IncidentResolved,
		Message:    fmt.Sprintf("Automatically resolved after %d consecutive successful probes", recoveryProbeCount),
		Timestamp:  now,
	}
	if err := m.store.AppendTimeline(ctx, entry); err != nil {
		return nil, false, err
	}

	open.Status = domain.IncidentResolved
	open.ResolvedAt = &now
	open.UpdatedAt = now

	m.logger.Info("incident auto-recovered",
		zap.String("incident_id", open.ID),
		zap.String("endpoint_id", endpointID))
	return open, true, nil
}

// MergeIncidents перевешивает хронологию каждого вторичного инцидента на
// первичный и удаляет вторичные. Каждая пара reparent+delete атомарна
// относительно себя; порядок между вторичными не гарантируется.
func (m *Manager) MergeIncidents(ctx context.Context, primaryID string, secondaryIDs []string) error {
	primary, err := m.store.Get(ctx, primaryID)
	if err != nil {
		return err
	}
	if primary == nil {
		return ErrNotFoundOrResolved
	}

	merged := 0
	for _, sid := range secondaryIDs {
		if sid == primaryID {
			continue
		}
		if _, err := m.store.MergeSecondary(ctx, primaryID, sid); err != nil {
			return fmt.Errorf("merge of incident %s failed: %w", sid, err)
		}
		merged++
	}

	entry := &domain.TimelineEntry{
		ID:         uuid.NewString(),
		IncidentID: primaryID,
		Status:     primary.Status,
		Message:    fmt.Sprintf("Merged %d incidents into this incident", merged),
		Timestamp:  time.Now(),
	}
	return m.store.AppendTimeline(ctx, entry)
}
