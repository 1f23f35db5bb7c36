package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"integrations/internal/appers"
	"integrations/internal/application/entity"
	"integrations/internal/handlers"

	"golang.org/x/sync/errgroup"
)

// ClaimBatch ошибка хранилища не пробрасывается: пустой батч, цикл продолжается
func (s *ServiceImpl) ClaimBatch(ctx context.Context, batchSize int) []entity.IntegrationEvent {
	n := s.cfg.ClampBatch(batchSize)

	events, err := s.transactions.ClaimEvents(ctx, n, s.cfg.StaleLockAfter, s.scheduler.MaxAttempts())
	if err != nil {
		s.metrics.Queue.ClaimErrorsTotal.Inc()
		s.logger.Errorw("claim batch failed", "batch", n, "err", err)
		return nil
	}

	s.metrics.Queue.ClaimedTotal.Add(float64(len(events)))
	s.metrics.Queue.BatchSize.Observe(float64(len(events)))
	return events
}

// RunCycle один проход claim -> dispatch
func (s *ServiceImpl) RunCycle(ctx context.Context, batchSize int) entity.BatchResult {
	events := s.ClaimBatch(ctx, batchSize)
	if len(events) == 0 {
		return entity.BatchResult{Outcomes: []entity.EventOutcome{}}
	}

	res := s.ProcessBatch(ctx, events)
	s.logger.Infow("cycle done", "total", res.Total, "completed", res.Completed, "retried", res.Retried, "failed", res.Failed)
	return res
}

func (s *ServiceImpl) ProcessBatch(ctx context.Context, events []entity.IntegrationEvent) entity.BatchResult {
	outcomes := make([]entity.EventOutcome, len(events))

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i := range events {
		g.Go(func() error {
			outcomes[i] = s.ProcessOne(ctx, events[i])
			return nil
		})
	}
	_ = g.Wait()

	res := entity.BatchResult{Outcomes: make([]entity.EventOutcome, 0, len(outcomes))}
	for _, o := range outcomes {
		res.Add(o)
	}
	return res
}

// ProcessOne одно захваченное событие: обработчик и запись результата (экспортируем для тестирования)
func (s *ServiceImpl) ProcessOne(ctx context.Context, e entity.IntegrationEvent) entity.EventOutcome {
	s.logger.Debugf("[ID %s] dispatch started, type %s, attempt %d", e.ID, e.EventType, e.Attempts)

	// запись результата переживает отмену контекста воркера
	writeCtx := context.WithoutCancel(ctx)

	h, ok := s.registry.Resolve(e.EventType)
	if !ok {
		msg := fmt.Sprintf("no handler registered for event type %q", e.EventType)
		s.logger.Errorf("[ID %s] %s", e.ID, msg)
		return s.fail(writeCtx, e, msg)
	}

	settings, err := s.repo.GetTenantSettings(ctx, e.TenantID)
	if err != nil {
		return s.handleError(writeCtx, e, fmt.Errorf("load tenant settings: %w", err))
	}

	start := time.Now()
	result, err := s.invoke(ctx, h, handlers.Request{
		TenantID: e.TenantID,
		EventID:  e.ID,
		Payload:  e.Payload,
		Settings: settings,
	})
	label := "ok"
	if err != nil {
		label = "error"
	}
	s.metrics.Queue.HandlerDurationSeconds.WithLabelValues(string(e.EventType), label).Observe(time.Since(start).Seconds())

	if err != nil {
		return s.handleError(writeCtx, e, err)
	}
	return s.complete(writeCtx, e, result)
}

func (s *ServiceImpl) invoke(ctx context.Context, h handlers.Handler, req handlers.Request) (res entity.Result, err error) {
	hctx, cancel := context.WithTimeout(ctx, s.cfg.HandlerTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Handle(hctx, req)
}

func (s *ServiceImpl) complete(ctx context.Context, e entity.IntegrationEvent, result entity.Result) entity.EventOutcome {
	if result == nil {
		result = entity.Result{}
	}
	raw, err := entity.MarshalJSONB(result)
	if err != nil {
		return s.handleError(ctx, e, fmt.Errorf("encode result: %w", err))
	}

	if err := s.repo.MarkCompleted(ctx, e.ID, e.Attempts, raw); err != nil {
		return s.writeFailed(e, err)
	}

	s.logger.Infof("[ID %s] completed on attempt %d", e.ID, e.Attempts)
	s.publishOutcome(ctx, e, entity.StatusCompleted, "")
	return s.outcome(e, entity.OutcomeCompleted, nil, "")
}

// handleError тот же путь повторов для временных и постоянных ошибок
func (s *ServiceImpl) handleError(ctx context.Context, e entity.IntegrationEvent, cause error) entity.EventOutcome {
	msg := SanitizeErrorMessage(cause.Error())
	if !s.scheduler.ShouldRetry(e.Attempts) {
		s.logger.Errorf("[ID %s] failed after %d attempts: %s", e.ID, e.Attempts, msg)
		return s.fail(ctx, e, msg)
	}

	next := s.scheduler.NextRetryAt(e.Attempts)
	if err := s.repo.MarkRetry(ctx, e.ID, e.Attempts, msg, next); err != nil {
		return s.writeFailed(e, err)
	}
	s.logger.Warnf("[ID %s] attempt %d failed, retry at %s: %s", e.ID, e.Attempts, next.Format(time.RFC3339), msg)
	return s.outcome(e, entity.OutcomeRetryScheduled, &next, msg)
}

func (s *ServiceImpl) fail(ctx context.Context, e entity.IntegrationEvent, msg string) entity.EventOutcome {
	msg = SanitizeErrorMessage(msg)
	if err := s.repo.MarkFailed(ctx, e.ID, e.Attempts, msg); err != nil {
		return s.writeFailed(e, err)
	}

	s.BestEffort(ctx, "notify_admins", func(ctx context.Context) error {
		return s.notifyAdmins(ctx, e, msg)
	})
	s.publishOutcome(ctx, e, entity.StatusFailed, msg)
	return s.outcome(e, entity.OutcomeFailed, nil, msg)
}

// writeFailed строка осталась processing и будет перехвачена после staleLockAfter
func (s *ServiceImpl) writeFailed(e entity.IntegrationEvent, err error) entity.EventOutcome {
	if errors.Is(err, appers.ErrLockLost) {
		s.logger.Warnf("[ID %s] lock lost on attempt %d, result discarded", e.ID, e.Attempts)
	} else {
		s.logger.Errorf("[ID %s] store outcome failed: %v", e.ID, err)
	}
	return s.outcome(e, entity.OutcomeLockLost, nil, err.Error())
}

func (s *ServiceImpl) outcome(e entity.IntegrationEvent, o entity.Outcome, next *time.Time, msg string) entity.EventOutcome {
	s.metrics.Queue.OutcomesTotal.WithLabelValues(string(e.EventType), string(o)).Inc()
	return entity.EventOutcome{
		EventID:     e.ID,
		EventType:   e.EventType,
		Outcome:     o,
		Attempts:    e.Attempts,
		NextRetryAt: next,
		Error:       msg,
	}
}
