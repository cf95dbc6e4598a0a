package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/pulsemon/internal/domain"
	"github.com/xela07ax/pulsemon/internal/incident"
	"github.com/xela07ax/pulsemon/internal/infra"
	"go.uber.org/zap"
)

// EndpointRepository описывает требования сервиса к хранилищу эндпоинтов
type EndpointRepository interface {
	List(ctx context.Context) ([]*domain.Endpoint, error)
	Get(ctx context.Context, id string) (*domain.Endpoint, error)
	Create(ctx context.Context, e *domain.Endpoint) error
	Update(ctx context.Context, e *domain.Endpoint) error
	Delete(ctx context.Context, id string) error
}

// IncidentReader — read-model по инцидентам для Console API.
// Мутации статусов идут не сюда, а через incident.Manager.
type IncidentReader interface {
	Get(ctx context.Context, id string) (*domain.Incident, error)
	Timeline(ctx context.Context, incidentID string) ([]*domain.TimelineEntry, error)
	ListByEndpoint(ctx context.Context, endpointID string) ([]*domain.Incident, error)
	ListByStatus(ctx context.Context, status domain.IncidentStatus) ([]*domain.Incident, error)
}

type ScoreReader interface {
	LatestFor(ctx context.Context, endpointID string) (*domain.ReliabilityScore, error)
}

type HealthReader interface {
	Get(ctx context.Context, endpointID string) (*domain.HealthSummary, error)
}

// MonitorService — фасад Console API над хранилищами и машиной состояний.
type MonitorService struct {
	endpoints EndpointRepository
	incidents IncidentReader
	lifecycle *incident.Manager
	scores    ScoreReader
	health    HealthReader
	rdb       *redis.Client
	logger    *zap.Logger
}

func NewMonitorService(
	endpoints EndpointRepository,
	incidents IncidentReader,
	lifecycle *incident.Manager,
	scores ScoreReader,
	health HealthReader,
	rdb *redis.Client,
	logger *zap.Logger,
) *MonitorService {
	return &MonitorService{
		endpoints: endpoints,
		incidents: incidents,
		lifecycle: lifecycle,
		scores:    scores,
		health:    health,
		rdb:       rdb,
		logger:    logger.Named("monitor-service"),
	}
}

// --- Эндпоинты ---

func (s *MonitorService) ListEndpoints(ctx context.Context) ([]*domain.Endpoint, error) {
	list, err := s.endpoints.List(ctx)
	if err != nil {
		s.logger.Error("failed to list endpoints", zap.Error(err))
		return nil, fmt.Errorf("service: could not fetch endpoints: %w", err)
	}
	// Гарантируем, что фронтенд получит пустой массив [], а не null
	if list == nil {
		return []*domain.Endpoint{}, nil
	}
	return list, nil
}

func (s *MonitorService) GetEndpoint(ctx context.Context, id string) (*domain.Endpoint, error) {
	return s.endpoints.Get(ctx, id)
}

// CreateEndpoint нормализует и сохраняет новый эндпоинт.
// ID генерируем здесь: хендлер не должен доверять ID из тела запроса.
func (s *MonitorService) CreateEndpoint(ctx context.Context, e *domain.Endpoint) error {
	if e.Name == "" || e.URL == "" {
		return errors.New("name and url are required")
	}
	e.ID = uuid.NewString()
	e.Method = strings.ToUpper(e.Method)
	if e.Method == "" {
		e.Method = "GET"
	}
	if e.IntervalSeconds <= 0 {
		e.IntervalSeconds = 30
	}
	if e.TimeoutSeconds <= 0 {
		e.TimeoutSeconds = 5
	}

	if err := s.endpoints.Create(ctx, e); err != nil {
		s.logger.Error("failed to create endpoint", zap.String("url", e.URL), zap.Error(err))
		return err
	}
	s.logger.Info("endpoint registered",
		zap.String("endpoint_id", e.ID),
		zap.String("url", e.URL))
	return nil
}

func (s *MonitorService) UpdateEndpoint(ctx context.Context, e *domain.Endpoint) error {
	if e.Name == "" || e.URL == "" {
		return errors.New("name and url are required")
	}
	e.Method = strings.ToUpper(e.Method)
	return s.endpoints.Update(ctx, e)
}

func (s *MonitorService) DeleteEndpoint(ctx context.Context, id string) error {
	return s.endpoints.Delete(ctx, id)
}

// --- Здоровье и рейтинг ---

// GetHealth отдает кэшированную сводку. Промах кэша — не ошибка:
// возвращаем unknown до следующего раунда опроса.
func (s *MonitorService) GetHealth(ctx context.Context, endpointID string) (*domain.HealthSummary, error) {
	summary, err := s.health.Get(ctx, endpointID)
	if err != nil {
		s.logger.Error("failed to read health cache", zap.String("endpoint_id", endpointID), zap.Error(err))
		return nil, err
	}
	if summary == nil {
		return &domain.HealthSummary{
			EndpointID: endpointID,
			Status:     domain.HealthUnknown,
			CheckedAt:  time.Now(),
		}, nil
	}
	return summary, nil
}

func (s *MonitorService) GetScore(ctx context.Context, endpointID string) (*domain.ReliabilityScore, error) {
	return s.scores.LatestFor(ctx, endpointID)
}

// --- Инциденты ---

func (s *MonitorService) ListIncidents(ctx context.Context, status string) ([]*domain.Incident, error) {
	list, err := s.incidents.ListByStatus(ctx, domain.IncidentStatus(strings.ToLower(status)))
	if err != nil {
		s.logger.Error("failed to list incidents", zap.Error(err))
		return nil, fmt.Errorf("service: could not fetch incidents: %w", err)
	}
	if list == nil {
		return []*domain.Incident{}, nil
	}
	return list, nil
}

func (s *MonitorService) ListEndpointIncidents(ctx context.Context, endpointID string) ([]*domain.Incident, error) {
	list, err := s.incidents.ListByEndpoint(ctx, endpointID)
	if err != nil {
		return nil, fmt.Errorf("service: could not fetch incidents: %w", err)
	}
	if list == nil {
		return []*domain.Incident{}, nil
	}
	return list, nil
}

func (s *MonitorService) GetIncident(ctx context.Context, id string) (*domain.Incident, []*domain.TimelineEntry, error) {
	inc, err := s.incidents.Get(ctx, id)
	if err != nil || inc == nil {
		return nil, nil, err
	}
	timeline, err := s.incidents.Timeline(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return inc, timeline, nil
}

// UpdateIncidentStatus выполняет переход машины состояний и транслирует
// событие операторам через Redis. Сбой публикации не откатывает переход.
func (s *MonitorService) UpdateIncidentStatus(ctx context.Context, id string, status domain.IncidentStatus, message string) error {
	if err := s.lifecycle.UpdateStatus(ctx, id, status, message); err != nil {
		return err
	}

	payload := fmt.Sprintf("%s:%s", id, status)
	if err := s.rdb.Publish(ctx, infra.RedisChanIncidentEvents, payload).Err(); err != nil {
		s.logger.Warn("incident event signal failed",
			zap.String("incident_id", id),
			zap.Error(err))
	}
	return nil
}

func (s *MonitorService) UpdateIncidentSeverity(ctx context.Context, id string, severity domain.IncidentSeverity, reason string) error {
	return s.lifecycle.UpdateSeverity(ctx, id, severity, reason)
}

func (s *MonitorService) MergeIncidents(ctx context.Context, primaryID string, secondaryIDs []string) error {
	return s.lifecycle.MergeIncidents(ctx, primaryID, secondaryIDs)
}
