package use_cases

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"integrations/internal/appers"
	"integrations/internal/application/entity"
	"integrations/internal/application/service"
	"integrations/pkg/config"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

type UseCaser interface {
	Enqueue(ctx context.Context, req entity.EnqueueRequest) (uuid.UUID, error)
	GetEvent(ctx context.Context, id string) (*entity.IntegrationEvent, error)
	ListEvents(ctx context.Context, f entity.EventFilter) (entity.EventPage, error)
	ProcessCycle(ctx context.Context, batchSize int) entity.BatchResult
	PurgeCompletedEvents(ctx context.Context)
	RunRelay(ctx context.Context)
	ConsumerMessage(ctx context.Context, msg []byte, msgTime time.Time) error

	HealthCheck(ctx context.Context) (dbHealthy bool, kafkaHealthy bool, err error)
}

type UseCase struct {
	service service.Service
	logger  *zap.SugaredLogger
	conf    *config.Config
}

func NewUseCase(service service.Service, logger *zap.SugaredLogger, conf *config.Config) *UseCase {
	return &UseCase{
		service: service,
		logger:  logger,
		conf:    conf,
	}
}

func (u *UseCase) HealthCheck(ctx context.Context) (dbHealthy bool, kafkaHealthy bool, err error) {
	return u.service.HealthCheck(ctx)
}

func (u *UseCase) Enqueue(ctx context.Context, req entity.EnqueueRequest) (uuid.UUID, error) {
	u.logger.Debugf("[tenant: %s] Enqueue %s started", req.TenantID, req.EventType)
	return u.service.Enqueue(ctx, req)
}

func (u *UseCase) GetEvent(ctx context.Context, id string) (*entity.IntegrationEvent, error) {
	u.logger.Debugf("[ID %s] GetEvent started", id)
	eventID, err := uuid.FromString(id)
	if err != nil {
		return nil, appers.ErrInvalidID
	}
	return u.service.GetEvent(ctx, eventID)
}

func (u *UseCase) ListEvents(ctx context.Context, f entity.EventFilter) (entity.EventPage, error) {
	u.logger.Debugf("ListEvents started, filter: %+v", f)
	return u.service.ListEvents(ctx, f)
}

func (u *UseCase) ProcessCycle(ctx context.Context, batchSize int) entity.BatchResult {
	u.logger.Debugf("[batch: %d] ProcessCycle started", batchSize)
	return u.service.RunCycle(ctx, batchSize)
}

func (u *UseCase) PurgeCompletedEvents(ctx context.Context) {
	days := u.conf.Cron.DaysToKeep
	u.logger.Infof("PurgeCompletedEvents called with daysToKeep=%d", days)
	if _, err := u.service.PurgeCompleted(ctx, days); err != nil {
		u.logger.Errorf("purge completed events failed: %v", err)
	}
}

func (u *UseCase) RunRelay(ctx context.Context) {
	u.logger.Debug("relay started")
	u.service.RelayEventRun(ctx)
}

// ConsumerMessage бизнес-событие из kafka в очередь, тело - EnqueueRequest в JSON
func (u *UseCase) ConsumerMessage(ctx context.Context, msg []byte, msgTime time.Time) error {
	u.logger.Debugf("consumer message: %s, time: %v", msg, msgTime)

	var req entity.EnqueueRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		return fmt.Errorf("%w: decode message: %v", appers.ErrInvalidEnqueue, err)
	}
	id, err := u.service.Enqueue(ctx, req)
	if err != nil {
		return err
	}
	u.logger.Debugf("[ID %s] enqueued from kafka", id)
	return nil
}
