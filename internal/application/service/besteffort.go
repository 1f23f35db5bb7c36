package service

import (
	"context"
	"fmt"
	"time"

	"integrations/internal/application/common"
	"integrations/internal/application/entity"
)

const (
	notificationBodyMax = 300
	defaultActionURL    = "/settings/integrations"
)

// BestEffort побочный вызов: результат не нужен, ошибка и паника только в лог
func (s *ServiceImpl) BestEffort(ctx context.Context, name string, fn func(ctx context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.Queue.BestEffortFailures.WithLabelValues(name).Inc()
			s.logger.Warnw("best-effort call panicked", "call", name, "panic", r)
		}
	}()
	if err := fn(ctx); err != nil {
		s.metrics.Queue.BestEffortFailures.WithLabelValues(name).Inc()
		s.logger.Warnw("best-effort call failed", "call", name, "err", err)
	}
}

func (s *ServiceImpl) notifyAdmins(ctx context.Context, e entity.IntegrationEvent, msg string) error {
	admins, err := s.repo.ListTenantAdmins(ctx, e.TenantID)
	if err != nil {
		return fmt.Errorf("list admins: %w", err)
	}
	if len(admins) == 0 {
		return nil
	}

	actionURL := defaultActionURL
	var jobID *string
	if v := e.Payload.String("job_id"); v != "" {
		actionURL = "/jobs/" + v
		jobID = &v
	}

	items := make([]entity.Notification, 0, len(admins))
	for _, userID := range admins {
		items = append(items, entity.Notification{
			TenantID:  e.TenantID,
			UserID:    userID,
			Type:      entity.NotificationIntegrationFailed,
			Priority:  entity.PriorityUrgent,
			Title:     "Integration failure: " + string(e.EventType),
			Body:      common.Truncate(msg, notificationBodyMax, ""),
			Metadata:  map[string]any{"event_id": e.ID.String(), "event_type": string(e.EventType)},
			ActionURL: actionURL,
			JobID:     jobID,
		})
	}
	return s.repo.InsertNotifications(ctx, items)
}

func (s *ServiceImpl) publishOutcome(ctx context.Context, e entity.IntegrationEvent, status entity.EventStatus, msg string) {
	s.BestEffort(ctx, "publish_outcome", func(ctx context.Context) error {
		return s.kafkaProducer.PublishOutcome(ctx, entity.OutcomeMessage{
			EventID:   e.ID,
			TenantID:  e.TenantID,
			EventType: e.EventType,
			Status:    status,
			Attempts:  e.Attempts,
			Error:     msg,
			At:        time.Now().UTC(),
		})
	})
}
