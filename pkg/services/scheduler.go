package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler refreshes the home cache on a cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	cache    *HomeCache
	logger   *zap.Logger
	schedule string
	timeout  time.Duration
}

func NewScheduler(cache *HomeCache, schedule string, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:     cron.New(),
		cache:    cache,
		logger:   logger.Named("scheduler"),
		schedule: schedule,
		timeout:  time.Minute,
	}
}

// Start registers the refresh job and starts the cron loop. An empty schedule
// disables refreshing.
func (s *Scheduler) Start() error {
	if s.schedule == "" {
		return nil
	}
	if _, err := s.cron.AddFunc(s.schedule, s.refresh); err != nil {
		return fmt.Errorf("schedule %q: %w", s.schedule, err)
	}
	s.logger.Info("starting scheduler", zap.String("cron", s.schedule))
	s.cron.Start()
	return nil
}

// Stop waits for a running job, giving up when ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.cache.Refresh(ctx); err != nil {
		s.logger.Error("scheduled home refresh failed", zap.Error(err))
	}
}
