package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/pulsemon/internal/detector"
	"github.com/xela07ax/pulsemon/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type stubEndpoints struct {
	list []*domain.Endpoint
	err  error
}

func (s *stubEndpoints) ListActive(context.Context) ([]*domain.Endpoint, error) {
	return s.list, s.err
}

// stubProber отслеживает пиковую параллельность вызовов Probe.
type stubProber struct {
	mu      sync.Mutex
	current int
	peak    int
	delay   time.Duration
	outcome domain.ProbeOutcome
}

func (s *stubProber) Probe(_ context.Context, e *domain.Endpoint) domain.ProbeResult {
	s.mu.Lock()
	s.current++
	if s.current > s.peak {
		s.peak = s.current
	}
	s.mu.Unlock()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	s.current--
	s.mu.Unlock()

	return domain.ProbeResult{ID: "p-" + e.ID, EndpointID: e.ID, Outcome: s.outcome, Timestamp: time.Now()}
}

type stubResults struct {
	mu       sync.Mutex
	inserted []*domain.ProbeResult
	failFor  string // EndpointID, для которого персистенция падает
}

func (s *stubResults) Insert(_ context.Context, p *domain.ProbeResult) error {
	if p.EndpointID == s.failFor {
		return errors.New("insert failed")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserted = append(s.inserted, p)
	return nil
}

type stubHealth struct {
	mu        sync.Mutex
	refreshed []string
}

func (s *stubHealth) Refresh(_ context.Context, endpointID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshed = append(s.refreshed, endpointID)
	return nil
}

type stubDetector struct {
	mu       sync.Mutex
	checked  []string
	incident *domain.Incident // отдается один раз
}

func (s *stubDetector) Check(_ context.Context, endpointID, _ string, _ detector.Thresholds) (*domain.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checked = append(s.checked, endpointID)
	inc := s.incident
	s.incident = nil
	return inc, nil
}

type stubRecovery struct {
	incident *domain.Incident
}

func (s *stubRecovery) CheckForRecovery(context.Context, string) (*domain.Incident, bool, error) {
	if s.incident == nil {
		return nil, false, nil
	}
	inc := s.incident
	s.incident = nil
	return inc, true, nil
}

type stubEvents struct {
	mu       sync.Mutex
	created  []*domain.Incident
	resolved []*domain.Incident
}

func (s *stubEvents) IncidentCreated(_ context.Context, inc *domain.Incident, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, inc)
}

func (s *stubEvents) IncidentResolved(_ context.Context, inc *domain.Incident, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolved = append(s.resolved, inc)
}

func endpointsN(n int) []*domain.Endpoint {
	out := make([]*domain.Endpoint, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &domain.Endpoint{ID: string(rune('a' + i)), Name: "api", TimeoutSeconds: 5, IsActive: true})
	}
	return out
}

type schedulerDeps struct {
	endpoints *stubEndpoints
	prober    *stubProber
	results   *stubResults
	health    *stubHealth
	detector  *stubDetector
	recovery  *stubRecovery
	events    *stubEvents
}

func newTestScheduler(deps schedulerDeps, concurrency int) *Scheduler {
	if deps.prober == nil {
		deps.prober = &stubProber{outcome: domain.OutcomeSuccess}
	}
	if deps.results == nil {
		deps.results = &stubResults{}
	}
	if deps.health == nil {
		deps.health = &stubHealth{}
	}
	if deps.detector == nil {
		deps.detector = &stubDetector{}
	}
	if deps.recovery == nil {
		deps.recovery = &stubRecovery{}
	}
	if deps.events == nil {
		deps.events = &stubEvents{}
	}
	return NewScheduler(
		deps.endpoints, deps.prober, deps.results, deps.health,
		deps.detector, deps.recovery, deps.events,
		detector.DefaultThresholds(), concurrency,
		rate.NewLimiter(rate.Inf, 0),
		NewMetrics(nil), zap.NewNop(),
	)
}

func TestRunRoundProbesAllEndpoints(t *testing.T) {
	results := &stubResults{}
	health := &stubHealth{}
	deps := schedulerDeps{
		endpoints: &stubEndpoints{list: endpointsN(7)},
		results:   results,
		health:    health,
	}
	s := newTestScheduler(deps, 3)

	stats := s.RunRound(context.Background())
	assert.Equal(t, int64(7), stats.Probed)
	assert.Equal(t, int64(0), stats.Errors)
	assert.Len(t, results.inserted, 7)
	assert.Len(t, health.refreshed, 7)
}

func TestRunRoundBoundedConcurrency(t *testing.T) {
	prober := &stubProber{outcome: domain.OutcomeSuccess, delay: 20 * time.Millisecond}
	deps := schedulerDeps{
		endpoints: &stubEndpoints{list: endpointsN(12)},
		prober:    prober,
	}
	s := newTestScheduler(deps, 3)

	s.RunRound(context.Background())
	assert.LessOrEqual(t, prober.peak, 3, "одновременных проверок не должно быть больше лимита")
	assert.Greater(t, prober.peak, 1, "проверки должны идти параллельно")
}

func TestRunRoundIsolatesEndpointFailure(t *testing.T) {
	eps := endpointsN(5)
	results := &stubResults{failFor: eps[2].ID}
	det := &stubDetector{}
	deps := schedulerDeps{
		endpoints: &stubEndpoints{list: eps},
		results:   results,
		detector:  det,
	}
	s := newTestScheduler(deps, 2)

	stats := s.RunRound(context.Background())
	assert.Equal(t, int64(5), stats.Probed)
	assert.Equal(t, int64(1), stats.Errors)
	assert.Len(t, results.inserted, 4)
	// Сбойный эндпоинт не дошел до детектора, остальные — дошли
	assert.Len(t, det.checked, 4)
	assert.NotContains(t, det.checked, eps[2].ID)
}

func TestRunRoundListFailure(t *testing.T) {
	deps := schedulerDeps{endpoints: &stubEndpoints{err: errors.New("db down")}}
	s := newTestScheduler(deps, 2)

	stats := s.RunRound(context.Background())
	assert.Equal(t, int64(0), stats.Probed)
	assert.Equal(t, int64(1), stats.Errors)
}

func TestRunRoundDispatchesIncidentEvents(t *testing.T) {
	created := &domain.Incident{ID: "inc-new", Status: domain.IncidentActive}
	resolved := &domain.Incident{ID: "inc-old", Status: domain.IncidentResolved}
	events := &stubEvents{}
	deps := schedulerDeps{
		endpoints: &stubEndpoints{list: endpointsN(1)},
		detector:  &stubDetector{incident: created},
		recovery:  &stubRecovery{incident: resolved},
		events:    events,
	}
	s := newTestScheduler(deps, 1)

	s.RunRound(context.Background())
	require.Len(t, events.created, 1)
	assert.Equal(t, "inc-new", events.created[0].ID)
	require.Len(t, events.resolved, 1)
	assert.Equal(t, "inc-old", events.resolved[0].ID)
}
