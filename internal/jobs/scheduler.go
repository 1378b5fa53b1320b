package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tallyhq/tally-backend/internal/logging"
)

// NightlySpec runs at 00:00 UTC.
const NightlySpec = "0 0 0 * * *"

type Scheduler struct {
	cron *cron.Cron
	log  logging.Logger
}

func NewScheduler(log logging.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		log:  log.With("component", "scheduler"),
	}
}

// Add registers fn under a six-field cron spec. Each run gets ctx.
func (s *Scheduler) Add(ctx context.Context, spec, name string, fn func(context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		start := time.Now()
		s.log.Info(ctx, "job started", "job", name)
		if err := fn(ctx); err != nil {
			s.log.Error(ctx, "job failed", "job", name, "error", err, "took", time.Since(start))
			return
		}
		s.log.Info(ctx, "job completed", "job", name, "took", time.Since(start))
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info(context.Background(), "cron scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop stops scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
