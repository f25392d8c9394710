package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ScheduleOff disables a job.
const ScheduleOff = "off"

// Scheduler runs jobs on cron schedules in UTC with a leading seconds field.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		logger: logger,
	}
}

// Register adds job under name. A schedule of "off" or "" leaves the job unscheduled.
func (s *Scheduler) Register(name, schedule string, job cron.Job) error {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" || strings.EqualFold(schedule, ScheduleOff) {
		s.logger.Info("job disabled", "job", name)
		return nil
	}
	if _, err := s.cron.AddJob(schedule, job); err != nil {
		return fmt.Errorf("register %s job with schedule %q: %w", name, schedule, err)
	}
	s.logger.Info("job registered", "job", name, "schedule", schedule)
	return nil
}

func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
