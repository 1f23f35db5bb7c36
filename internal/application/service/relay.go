package service

import (
	"context"
	"sync"

	"integrations/internal/application/common"
)

// RelayEventRun relay.workers независимых циклов опроса, выходит после отмены ctx
func (s *ServiceImpl) RelayEventRun(ctx context.Context) {
	s.logger.Infow("relay started",
		"workers", s.cfg.Workers,
		"batch", s.cfg.BatchSize,
		"concurrency", s.cfg.Concurrency,
		"poll", s.cfg.PollPeriod.String(),
		"stale", s.cfg.StaleLockAfter.String())

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			s.worker(ctx, id)
		}(i)
	}
	wg.Wait()

	s.logger.Infow("relay stopped")
}

func (s *ServiceImpl) worker(ctx context.Context, id int) {
	gauge := s.metrics.Go.InternalGoroutines.WithLabelValues("relay_worker")
	gauge.Inc()
	defer gauge.Dec()

	s.logger.Infow("worker started", "id", id)
	for {
		if ctx.Err() != nil {
			s.logger.Infow("worker stopping", "id", id)
			return
		}
		s.safeCycle(ctx, id)
		if err := common.SleepCtx(ctx, s.cfg.PollPeriod); err != nil {
			s.logger.Infow("worker stopping", "id", id)
			return
		}
	}
}

func (s *ServiceImpl) safeCycle(ctx context.Context, id int) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorw("relay cycle panic", "worker", id, "panic", r)
		}
	}()
	s.RunCycle(ctx, s.cfg.BatchSize)
}
