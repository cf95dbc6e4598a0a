package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/pulsemon/internal/detector"
	"github.com/xela07ax/pulsemon/internal/domain"
	"github.com/xela07ax/pulsemon/internal/incident"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Сквозной сценарий: реальные детектор и машина состояний поверх
// хранилищ в памяти, прогоняемые планировщиком раунд за раундом.

type memProbeStore struct {
	mu     sync.Mutex
	probes []*domain.ProbeResult
}

func (s *memProbeStore) Insert(_ context.Context, p *domain.ProbeResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probes = append(s.probes, p)
	return nil
}

func (s *memProbeStore) QueryWindow(_ context.Context, endpointID string, since time.Time) ([]*domain.ProbeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.ProbeResult, 0)
	for _, p := range s.probes {
		if p.EndpointID == endpointID && !p.Timestamp.Before(since) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memProbeStore) QueryRecentN(_ context.Context, endpointID string, n int) ([]*domain.ProbeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.ProbeResult, 0, n)
	for i := len(s.probes) - 1; i >= 0 && len(out) < n; i-- {
		if s.probes[i].EndpointID == endpointID {
			out = append(out, s.probes[i])
		}
	}
	return out, nil
}

type memIncidentStore struct {
	mu        sync.Mutex
	incidents map[string]*domain.Incident
	timeline  []*domain.TimelineEntry
}

func newMemIncidentStore() *memIncidentStore {
	return &memIncidentStore{incidents: map[string]*domain.Incident{}}
}

func (s *memIncidentStore) Get(_ context.Context, id string) (*domain.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inc, ok := s.incidents[id]
	if !ok {
		return nil, nil
	}
	cp := *inc
	return &cp, nil
}

func (s *memIncidentStore) GetOpen(_ context.Context, endpointID string) (*domain.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openLocked(endpointID), nil
}

func (s *memIncidentStore) openLocked(endpointID string) *domain.Incident {
	for _, inc := range s.incidents {
		if inc.EndpointID == endpointID && inc.IsOpen() {
			cp := *inc
			return &cp
		}
	}
	return nil
}

func (s *memIncidentStore) InsertIfNoneOpen(_ context.Context, inc *domain.Incident, entry *domain.TimelineEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openLocked(inc.EndpointID) != nil {
		return false, nil
	}
	cp := *inc
	s.incidents[inc.ID] = &cp
	s.timeline = append(s.timeline, entry)
	return true, nil
}

func (s *memIncidentStore) UpdateStatus(_ context.Context, id string, status domain.IncidentStatus, resolvedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inc := s.incidents[id]
	inc.Status = status
	if resolvedAt != nil {
		inc.ResolvedAt = resolvedAt
	}
	return nil
}

func (s *memIncidentStore) UpdateSeverity(_ context.Context, id string, severity domain.IncidentSeverity) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inc, ok := s.incidents[id]
	if !ok || !inc.IsOpen() {
		return false, nil
	}
	inc.Severity = severity
	return true, nil
}

func (s *memIncidentStore) AppendTimeline(_ context.Context, entry *domain.TimelineEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeline = append(s.timeline, entry)
	return nil
}

func (s *memIncidentStore) MergeSecondary(_ context.Context, primaryID, secondaryID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var moved int64
	for _, e := range s.timeline {
		if e.IncidentID == secondaryID {
			e.IncidentID = primaryID
			moved++
		}
	}
	delete(s.incidents, secondaryID)
	return moved, nil
}

type fixedBaselines struct {
	baseline *domain.Baseline
}

func (f *fixedBaselines) Get(context.Context, string) (*domain.Baseline, error) {
	return f.baseline, nil
}

// scriptedProber отдает заранее заданную последовательность исходов.
type scriptedProber struct {
	mu       sync.Mutex
	outcomes []domain.ProbeOutcome
	pos      int
}

func (s *scriptedProber) Probe(_ context.Context, e *domain.Endpoint) domain.ProbeResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	outcome := s.outcomes[s.pos]
	s.pos++

	result := domain.ProbeResult{
		ID:         "p-" + string(rune('a'+s.pos)),
		EndpointID: e.ID,
		Outcome:    outcome,
		Timestamp:  time.Now(),
	}
	if outcome == domain.OutcomeSuccess {
		latency := 100.0
		result.LatencyMS = &latency
	}
	return result
}

func TestPipelineOutageThenRecovery(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	probeStore := &memProbeStore{}
	incidentStore := newMemIncidentStore()
	baselines := &fixedBaselines{baseline: &domain.Baseline{
		EndpointID: "ep-1", AvgLatencyMS: 100, P95LatencyMS: 150, SampleCount: 100,
	}}

	outcomes := make([]domain.ProbeOutcome, 0, 20)
	for i := 0; i < 15; i++ {
		outcomes = append(outcomes, domain.OutcomeTimeout)
	}
	for i := 0; i < 5; i++ {
		outcomes = append(outcomes, domain.OutcomeSuccess)
	}

	events := &stubEvents{}
	s := NewScheduler(
		&stubEndpoints{list: []*domain.Endpoint{{ID: "ep-1", Name: "api", TimeoutSeconds: 5, IsActive: true}}},
		&scriptedProber{outcomes: outcomes},
		probeStore,
		&stubHealth{},
		detector.NewDetector(baselines, probeStore, incidentStore, logger),
		incident.NewManager(incidentStore, probeStore, logger),
		events,
		detector.DefaultThresholds(),
		1,
		rate.NewLimiter(rate.Inf, 0),
		NewMetrics(nil),
		logger,
	)

	// Фаза 1: полный отказ. Инцидент создается один, дальше подавляется открытым.
	for i := 0; i < 15; i++ {
		stats := s.RunRound(ctx)
		require.Equal(t, int64(1), stats.Probed)
		require.Equal(t, int64(0), stats.Errors)
	}

	require.Len(t, events.created, 1, "повторные раунды не должны плодить инциденты")
	created := events.created[0]
	assert.Equal(t, domain.IncidentCompleteOutage, created.Type)
	assert.Equal(t, domain.SeverityCritical, created.Severity)
	assert.Equal(t, "Complete outage on api", created.Title)
	assert.Empty(t, events.resolved)

	// Фаза 2: восстановление. Пятая успешная проверка подряд закрывает инцидент.
	for i := 0; i < 4; i++ {
		s.RunRound(ctx)
		assert.Empty(t, events.resolved, "восстановление требует пяти успехов подряд")
	}
	s.RunRound(ctx)

	require.Len(t, events.resolved, 1)
	resolved := events.resolved[0]
	assert.Equal(t, created.ID, resolved.ID)
	assert.Equal(t, domain.IncidentResolved, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)

	// За весь сценарий — один инцидент и ровно две записи хроники:
	// автоматическое обнаружение и автоматическое разрешение
	require.Len(t, incidentStore.incidents, 1)
	require.Len(t, incidentStore.timeline, 2)
	assert.Equal(t, "Incident detected automatically", incidentStore.timeline[0].Message)
	assert.Equal(t, "Automatically resolved after 5 consecutive successful probes", incidentStore.timeline[1].Message)
	assert.Equal(t, domain.IncidentActive, incidentStore.timeline[0].Status)
	assert.Equal(t, domain.IncidentResolved, incidentStore.timeline[1].Status)
}
