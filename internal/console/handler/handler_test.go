package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/pulsemon/internal/console/service"
	"github.com/xela07ax/pulsemon/internal/domain"
	"github.com/xela07ax/pulsemon/internal/incident"
	"go.uber.org/zap"
)

type fakeEndpointRepo struct {
	endpoints map[string]*domain.Endpoint
}

func (f *fakeEndpointRepo) List(context.Context) ([]*domain.Endpoint, error) {
	out := make([]*domain.Endpoint, 0, len(f.endpoints))
	for _, e := range f.endpoints {
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeEndpointRepo) Get(_ context.Context, id string) (*domain.Endpoint, error) {
	return f.endpoints[id], nil
}

func (f *fakeEndpointRepo) Create(_ context.Context, e *domain.Endpoint) error {
	f.endpoints[e.ID] = e
	return nil
}

func (f *fakeEndpointRepo) Update(_ context.Context, e *domain.Endpoint) error {
	f.endpoints[e.ID] = e
	return nil
}

func (f *fakeEndpointRepo) Delete(_ context.Context, id string) error {
	delete(f.endpoints, id)
	return nil
}

type fakeIncidentStore struct {
	incidents map[string]*domain.Incident
	timeline  []*domain.TimelineEntry
}

func (f *fakeIncidentStore) Get(_ context.Context, id string) (*domain.Incident, error) {
	return f.incidents[id], nil
}

func (f *fakeIncidentStore) GetOpen(_ context.Context, endpointID string) (*domain.Incident, error) {
	for _, inc := range f.incidents {
		if inc.EndpointID == endpointID && inc.IsOpen() {
			return inc, nil
		}
	}
	return nil, nil
}

func (f *fakeIncidentStore) UpdateStatus(_ context.Context, id string, status domain.IncidentStatus, resolvedAt *time.Time) error {
	inc := f.incidents[id]
	inc.Status = status
	if resolvedAt != nil {
		inc.ResolvedAt = resolvedAt
	}
	return nil
}

func (f *fakeIncidentStore) UpdateSeverity(_ context.Context, id string, severity domain.IncidentSeverity) (bool, error) {
	inc, ok := f.incidents[id]
	if !ok || !inc.IsOpen() {
		return false, nil
	}
	inc.Severity = severity
	return true, nil
}

func (f *fakeIncidentStore) AppendTimeline(_ context.Context, entry *domain.TimelineEntry) error {
	f.timeline = append(f.timeline, entry)
	return nil
}

func (f *fakeIncidentStore) MergeSecondary(_ context.Context, primaryID, secondaryID string) (int64, error) {
	delete(f.incidents, secondaryID)
	return 0, nil
}

func (f *fakeIncidentStore) Timeline(_ context.Context, incidentID string) ([]*domain.TimelineEntry, error) {
	out := make([]*domain.TimelineEntry, 0)
	for _, e := range f.timeline {
		if e.IncidentID == incidentID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeIncidentStore) ListByEndpoint(_ context.Context, endpointID string) ([]*domain.Incident, error) {
	out := make([]*domain.Incident, 0)
	for _, inc := range f.incidents {
		if inc.EndpointID == endpointID {
			out = append(out, inc)
		}
	}
	return out, nil
}

func (f *fakeIncidentStore) ListByStatus(_ context.Context, status domain.IncidentStatus) ([]*domain.Incident, error) {
	out := make([]*domain.Incident, 0)
	for _, inc := range f.incidents {
		if status == "" || inc.Status == status {
			out = append(out, inc)
		}
	}
	return out, nil
}

type fakeScores struct{}

func (fakeScores) LatestFor(context.Context, string) (*domain.ReliabilityScore, error) {
	return nil, nil
}

type fakeHealth struct{}

func (fakeHealth) Get(context.Context, string) (*domain.HealthSummary, error) {
	return nil, nil
}

type fakeProbes struct{}

func (fakeProbes) QueryRecentN(context.Context, string, int) ([]*domain.ProbeResult, error) {
	return nil, nil
}

func newTestRouter(t *testing.T, incidents *fakeIncidentStore) chi.Router {
	t.Helper()
	logger := zap.NewNop()
	// Redis недоступен: публикация событий падает в Warn и не влияет на ответ
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 10 * time.Millisecond})

	lifecycle := incident.NewManager(incidents, fakeProbes{}, logger)
	repo := &fakeEndpointRepo{endpoints: map[string]*domain.Endpoint{}}
	svc := service.NewMonitorService(repo, incidents, lifecycle, fakeScores{}, fakeHealth{}, rdb, logger)

	endpointH := NewEndpointHandler(svc)
	incidentH := NewIncidentHandler(svc)

	r := chi.NewRouter()
	r.Route("/v1/endpoints", func(r chi.Router) {
		r.Get("/", endpointH.List)
		r.Post("/", endpointH.Create)
		r.Get("/{id}", endpointH.Get)
		r.Get("/{id}/health", endpointH.GetHealth)
	})
	r.Route("/v1/incidents", func(r chi.Router) {
		r.Get("/", incidentH.List)
		r.Get("/{id}", incidentH.Get)
		r.Post("/{id}/status", incidentH.UpdateStatus)
		r.Post("/{id}/severity", incidentH.UpdateSeverity)
	})
	return r
}

func activeIncident(id string) *domain.Incident {
	return &domain.Incident{
		ID:         id,
		EndpointID: "ep-1",
		Type:       domain.IncidentHighErrorRate,
		Severity:   domain.SeverityMajor,
		Status:     domain.IncidentActive,
	}
}

func TestUpdateStatusInvalidTransitionReturns409(t *testing.T) {
	store := &fakeIncidentStore{incidents: map[string]*domain.Incident{"inc-1": activeIncident("inc-1")}}
	router := newTestRouter(t, store)

	req := httptest.NewRequest(http.MethodPost, "/v1/incidents/inc-1/status",
		strings.NewReader(`{"status":"monitoring","message":"skip"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid incident transition: active -> monitoring")
}

func TestUpdateStatusUnknownIncidentReturns404(t *testing.T) {
	store := &fakeIncidentStore{incidents: map[string]*domain.Incident{}}
	router := newTestRouter(t, store)

	req := httptest.NewRequest(http.MethodPost, "/v1/incidents/ghost/status",
		strings.NewReader(`{"status":"investigating"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateStatusValidTransition(t *testing.T) {
	store := &fakeIncidentStore{incidents: map[string]*domain.Incident{"inc-1": activeIncident("inc-1")}}
	router := newTestRouter(t, store)

	req := httptest.NewRequest(http.MethodPost, "/v1/incidents/inc-1/status",
		strings.NewReader(`{"status":"investigating","message":"on it"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, domain.IncidentInvestigating, store.incidents["inc-1"].Status)
}

func TestUpdateSeverityRejectsUnknownValue(t *testing.T) {
	store := &fakeIncidentStore{incidents: map[string]*domain.Incident{"inc-1": activeIncident("inc-1")}}
	router := newTestRouter(t, store)

	req := httptest.NewRequest(http.MethodPost, "/v1/incidents/inc-1/severity",
		strings.NewReader(`{"severity":"catastrophic"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetUnknownEndpointReturns404(t *testing.T) {
	router := newTestRouter(t, &fakeIncidentStore{incidents: map[string]*domain.Incident{}})

	req := httptest.NewRequest(http.MethodGet, "/v1/endpoints/ghost", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateEndpointGeneratesID(t *testing.T) {
	router := newTestRouter(t, &fakeIncidentStore{incidents: map[string]*domain.Incident{}})

	req := httptest.NewRequest(http.MethodPost, "/v1/endpoints/",
		strings.NewReader(`{"name":"Billing API","url":"https://billing.example.com/health"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"id":`)
	assert.Contains(t, body, `"method":"GET"`)
	assert.Contains(t, body, `"interval_seconds":30`)
}

func TestGetHealthCacheMissReturnsUnknown(t *testing.T) {
	router := newTestRouter(t, &fakeIncidentStore{incidents: map[string]*domain.Incident{}})

	req := httptest.NewRequest(http.MethodGet, "/v1/endpoints/ep-1/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"unknown"`)
}
