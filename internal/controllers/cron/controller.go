package cron

import (
	"context"
	"fmt"

	use_cases "integrations/internal/application/use-cases"
	"integrations/pkg/config"

	"go.uber.org/zap"
)

type Controller struct {
	scheduler *Scheduler
	logger    *zap.SugaredLogger
}

func NewController(ctx context.Context, logger *zap.SugaredLogger) *Controller {
	return &Controller{
		scheduler: NewScheduler(ctx),
		logger:    logger,
	}
}

// RegisterPurgeEventsJob поддерживает два режима:
// 1. По расписанию (cron format): например, "0 0 3 * * *" - каждый день в 03:00
// 2. По интервалу: например, "@every 24h"
// daysToKeep = 0 - очистка выключена
func (c *Controller) RegisterPurgeEventsJob(usecase use_cases.UseCaser, conf config.Cron) error {
	if conf.DaysToKeep <= 0 {
		c.logger.Warn("daysToKeep не задан, очистка событий выключена")
		return nil
	}

	var spec string

	// Приоритет: если указан Schedule, используем его, иначе Interval
	if conf.Schedule != "" {
		spec = conf.Schedule
		c.logger.Infof("Регистрация задачи очистки событий по расписанию: %s", spec)
	} else if conf.Interval != "" {
		spec = conf.Interval
		c.logger.Infof("Регистрация задачи очистки событий по интервалу: %s", spec)
	} else {
		spec = "@every 24h"
		c.logger.Warnf("Расписание не указано, используется интервал по умолчанию: %s", spec)
	}

	entryID, err := c.scheduler.Add(spec, NewPurgeEventsJob(usecase, c.logger))
	if err != nil {
		return fmt.Errorf("не удалось зарегистрировать задачу очистки событий: %w", err)
	}

	c.logger.Infof("Задача очистки событий зарегистрирована с ID: %d, расписание: %s", entryID, spec)
	return nil
}

// RegisterProcessEventsJob пустое расписание - задача не регистрируется
func (c *Controller) RegisterProcessEventsJob(usecase use_cases.UseCaser, conf config.Cron, batchSize int) error {
	if conf.ProcessSchedule == "" {
		return nil
	}

	entryID, err := c.scheduler.Add(conf.ProcessSchedule, NewProcessEventsJob(usecase, c.logger, batchSize))
	if err != nil {
		return fmt.Errorf("не удалось зарегистрировать задачу обработки событий: %w", err)
	}

	c.logger.Infof("Задача обработки событий зарегистрирована с ID: %d, расписание: %s", entryID, conf.ProcessSchedule)
	return nil
}

// Start запускает планировщик задач
func (c *Controller) Start() {
	c.logger.Info("Запуск планировщика cron задач")
	c.scheduler.Start()
}

// Stop останавливает планировщик задач
func (c *Controller) Stop() {
	c.logger.Info("Остановка планировщика cron задач")
	c.scheduler.Stop()
	c.logger.Info("Планировщик cron задач остановлен")
}
