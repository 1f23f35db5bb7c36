package cron

import (
	"context"

	use_cases "integrations/internal/application/use-cases"

	"go.uber.org/zap"
)

// PurgeEventsJob - удаление completed событий старше cron.daysToKeep
type PurgeEventsJob struct {
	usecase use_cases.UseCaser
	logger  *zap.SugaredLogger
}

func NewPurgeEventsJob(usecase use_cases.UseCaser, logger *zap.SugaredLogger) *PurgeEventsJob {
	return &PurgeEventsJob{
		usecase: usecase,
		logger:  logger,
	}
}

func (j *PurgeEventsJob) Run(ctx context.Context) {
	j.logger.Info("Запуск задачи очистки завершённых событий")

	defer func() {
		if r := recover(); r != nil {
			j.logger.Errorf("Паника при выполнении задачи очистки событий: %v", r)
		}
	}()

	j.usecase.PurgeCompletedEvents(ctx)
	j.logger.Info("Задача очистки завершённых событий завершена")
}

// ProcessEventsJob - один цикл claim+dispatch
type ProcessEventsJob struct {
	usecase   use_cases.UseCaser
	logger    *zap.SugaredLogger
	batchSize int
}

func NewProcessEventsJob(usecase use_cases.UseCaser, logger *zap.SugaredLogger, batchSize int) *ProcessEventsJob {
	return &ProcessEventsJob{
		usecase:   usecase,
		logger:    logger,
		batchSize: batchSize,
	}
}

func (j *ProcessEventsJob) Run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			j.logger.Errorf("Паника при обработке событий: %v", r)
		}
	}()

	res := j.usecase.ProcessCycle(ctx, j.batchSize)
	if res.Total > 0 {
		j.logger.Infow("cron process cycle", "total", res.Total, "completed", res.Completed, "retried", res.Retried, "failed", res.Failed)
	}
}
