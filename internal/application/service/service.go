package service

import (
	"context"
	"fmt"

	"integrations/internal/appers"
	"integrations/internal/application/entity"
	"integrations/internal/application/repo"
	"integrations/internal/application/retry"
	"integrations/internal/handlers"
	"integrations/internal/transport/producer"
	"integrations/pkg/config"
	"integrations/pkg/metrics"
	"integrations/pkg/validator"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

type Service interface {
	Enqueue(ctx context.Context, req entity.EnqueueRequest) (uuid.UUID, error)
	ClaimBatch(ctx context.Context, batchSize int) []entity.IntegrationEvent
	ProcessBatch(ctx context.Context, events []entity.IntegrationEvent) entity.BatchResult
	RunCycle(ctx context.Context, batchSize int) entity.BatchResult
	RelayEventRun(ctx context.Context)

	GetEvent(ctx context.Context, id uuid.UUID) (*entity.IntegrationEvent, error)
	ListEvents(ctx context.Context, f entity.EventFilter) (entity.EventPage, error)
	PurgeCompleted(ctx context.Context, days int) (int64, error)

	HealthCheck(ctx context.Context) (dbHealthy bool, kafkaHealthy bool, err error)
}

type ServiceImpl struct {
	repo          repo.Repo
	transactions  repo.Transactions
	registry      *handlers.Registry
	kafkaProducer producer.Producer
	scheduler     *retry.Scheduler
	logger        *zap.SugaredLogger
	cfg           *config.RelayConfig
	metrics       *metrics.Metrics
}

func NewService(
	repo repo.Repo,
	transactions repo.Transactions,
	registry *handlers.Registry,
	kafkaProducer producer.Producer,
	scheduler *retry.Scheduler,
	logger *zap.SugaredLogger,
	cfg *config.RelayConfig,
	m *metrics.Metrics,
) *ServiceImpl {
	if kafkaProducer == nil {
		kafkaProducer = producer.NoopProducer{}
	}
	return &ServiceImpl{
		repo:          repo,
		transactions:  transactions,
		registry:      registry,
		kafkaProducer: kafkaProducer,
		scheduler:     scheduler,
		logger:        logger,
		cfg:           cfg,
		metrics:       m,
	}
}

// HealthCheck проверяет доступность БД и Kafka
func (s *ServiceImpl) HealthCheck(ctx context.Context) (dbHealthy bool, kafkaHealthy bool, err error) {
	dbErr := s.repo.HealthCheck(ctx)
	dbHealthy = dbErr == nil

	kafkaErr := s.kafkaProducer.HealthCheck(ctx)
	kafkaHealthy = kafkaErr == nil

	// Возвращаем ошибку только если обе проверки провалились
	if !dbHealthy && !kafkaHealthy {
		return dbHealthy, kafkaHealthy, fmt.Errorf("database: %v, kafka: %v", dbErr, kafkaErr)
	}

	return dbHealthy, kafkaHealthy, nil
}

// Enqueue повторный ключ идемпотентности возвращает id уже сохранённого события
func (s *ServiceImpl) Enqueue(ctx context.Context, req entity.EnqueueRequest) (uuid.UUID, error) {
	if err := validator.Validate.Struct(req); err != nil {
		s.metrics.Queue.EnqueuedTotal.WithLabelValues(string(req.EventType), "invalid").Inc()
		return uuid.Nil, fmt.Errorf("%w: %v", appers.ErrInvalidEnqueue, err)
	}
	if req.Payload == nil {
		req.Payload = entity.Payload{}
	}
	payload, err := entity.MarshalJSONB(req.Payload)
	if err != nil {
		s.metrics.Queue.EnqueuedTotal.WithLabelValues(string(req.EventType), "invalid").Inc()
		return uuid.Nil, fmt.Errorf("%w: payload: %v", appers.ErrInvalidEnqueue, err)
	}

	id, inserted, err := s.repo.InsertEvent(ctx, req, payload)
	if err != nil {
		s.metrics.Queue.EnqueuedTotal.WithLabelValues(string(req.EventType), "error").Inc()
		s.logger.Errorw("enqueue failed", "tenant_id", req.TenantID, "event_type", req.EventType, "err", err)
		return uuid.Nil, err
	}
	if !inserted {
		id, err = s.repo.GetEventIDByIdempotencyKey(ctx, req.TenantID, req.IdempotencyKey)
		if err != nil {
			s.metrics.Queue.EnqueuedTotal.WithLabelValues(string(req.EventType), "error").Inc()
			return uuid.Nil, err
		}
		s.metrics.Queue.EnqueuedTotal.WithLabelValues(string(req.EventType), "duplicate").Inc()
		s.logger.Debugf("[ID %s] duplicate enqueue, key %q", id, req.IdempotencyKey)
		return id, nil
	}

	s.metrics.Queue.EnqueuedTotal.WithLabelValues(string(req.EventType), "inserted").Inc()
	s.logger.Infof("[ID %s] enqueued %s for tenant %s", id, req.EventType, req.TenantID)
	return id, nil
}

func (s *ServiceImpl) GetEvent(ctx context.Context, id uuid.UUID) (*entity.IntegrationEvent, error) {
	return s.repo.GetEvent(ctx, id)
}

// ListEvents новые сверху, per_page не больше MaxPerPage
func (s *ServiceImpl) ListEvents(ctx context.Context, f entity.EventFilter) (entity.EventPage, error) {
	if f.EventType != "" && !f.EventType.IsValid() {
		return entity.EventPage{}, appers.ErrInvalidFilter
	}
	if f.Status != "" && !f.Status.IsValid() {
		return entity.EventPage{}, appers.ErrInvalidFilter
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = DefaultPerPage
	}
	if f.PerPage > MaxPerPage {
		f.PerPage = MaxPerPage
	}

	events, total, err := s.repo.ListEvents(ctx, f)
	if err != nil {
		return entity.EventPage{}, err
	}
	if events == nil {
		events = []entity.IntegrationEvent{}
	}
	return entity.EventPage{
		Data: events,
		Meta: entity.PageMeta{
			Total:      total,
			Page:       f.Page,
			PerPage:    f.PerPage,
			TotalPages: (total + f.PerPage - 1) / f.PerPage,
		},
	}, nil
}

// PurgeCompleted failed-строки не трогаем, они нужны для разбора
func (s *ServiceImpl) PurgeCompleted(ctx context.Context, days int) (int64, error) {
	s.logger.Debugf("[days: %d] PurgeCompleted started", days)

	return s.repo.PurgeCompleted(ctx, days)
}
