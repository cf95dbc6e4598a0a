package monitor

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/pulsemon/internal/domain"
)

func testEndpoint(url string) *domain.Endpoint {
	return &domain.Endpoint{
		ID:             "ep-1",
		Name:           "api",
		URL:            url,
		Method:         "GET",
		TimeoutSeconds: 5,
		IsActive:       true,
	}
}

func TestProbeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewProber("eu-west")
	result := p.Probe(context.Background(), testEndpoint(srv.URL))

	assert.Equal(t, domain.OutcomeSuccess, result.Outcome)
	assert.Equal(t, "ep-1", result.EndpointID)
	assert.Equal(t, "eu-west", result.Region)
	assert.NotEmpty(t, result.ID)
	require.NotNil(t, result.StatusCode)
	assert.Equal(t, http.StatusOK, *result.StatusCode)
	require.NotNil(t, result.LatencyMS)
	assert.Greater(t, *result.LatencyMS, 0.0)
	assert.Nil(t, result.ErrorMessage)
}

func TestProbeUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewProber("eu-west")
	result := p.Probe(context.Background(), testEndpoint(srv.URL))

	assert.Equal(t, domain.OutcomeError, result.Outcome)
	require.NotNil(t, result.StatusCode)
	assert.Equal(t, http.StatusInternalServerError, *result.StatusCode)
	assert.Nil(t, result.LatencyMS, "задержка фиксируется только на ожидаемом статусе")
	require.NotNil(t, result.ErrorMessage)
	assert.Equal(t, "unexpected status code: 500", *result.ErrorMessage)
}

func TestProbeCustomExpectedStatuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	e := testEndpoint(srv.URL)
	e.ExpectedStatusCodes = []int{http.StatusTeapot}

	p := NewProber("eu-west")
	result := p.Probe(context.Background(), e)
	assert.Equal(t, domain.OutcomeSuccess, result.Outcome)
}

func TestProbeTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	e := testEndpoint(srv.URL)
	e.TimeoutSeconds = 1

	p := NewProber("eu-west")
	result := p.Probe(context.Background(), e)

	assert.Equal(t, domain.OutcomeTimeout, result.Outcome)
	require.NotNil(t, result.ErrorMessage)
	assert.Equal(t, "request timed out", *result.ErrorMessage)
	assert.Nil(t, result.StatusCode)
	assert.Nil(t, result.LatencyMS)
}

func TestProbeConnectionRefused(t *testing.T) {
	// Закрытый сервер: порт уже ничего не слушает
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	p := NewProber("eu-west")
	result := p.Probe(context.Background(), testEndpoint(url))

	assert.Equal(t, domain.OutcomeError, result.Outcome)
	require.NotNil(t, result.ErrorMessage)
	assert.NotEmpty(t, *result.ErrorMessage)
}

func TestProbeHeaderOverride(t *testing.T) {
	var gotUA, gotCustom string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotCustom = r.Header.Get("X-Check-Token")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e := testEndpoint(srv.URL)
	e.Headers = map[string]string{
		"User-Agent":    "custom-agent",
		"X-Check-Token": "secret",
	}

	p := NewProber("eu-west")
	p.Probe(context.Background(), e)

	assert.Equal(t, "custom-agent", gotUA, "заголовки эндпоинта перекрывают дефолтные")
	assert.Equal(t, "secret", gotCustom)
}

func TestProbeDefaultUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewProber("eu-west")
	p.Probe(context.Background(), testEndpoint(srv.URL))
	assert.Equal(t, ProberUserAgent, gotUA)
}

func TestProbeBodyOnlyForMethodsWithPayload(t *testing.T) {
	var gotMethod, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotMethod, gotBody = r.Method, string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewProber("eu-west")

	e := testEndpoint(srv.URL)
	e.Method = "post"
	e.Body = `{"ping":true}`
	p.Probe(context.Background(), e)
	assert.Equal(t, http.MethodPost, gotMethod, "метод нормализуется к верхнему регистру")
	assert.Equal(t, `{"ping":true}`, gotBody)

	e.Method = "GET"
	p.Probe(context.Background(), e)
	assert.Equal(t, http.MethodGet, gotMethod)
	assert.Empty(t, gotBody, "GET уходит без тела даже при заполненном Body")
}
