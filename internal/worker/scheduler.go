package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ignite/kitsync/internal/domain"
	"github.com/ignite/kitsync/internal/pkg/distlock"
	"github.com/ignite/kitsync/internal/pkg/logger"
)

// JobRunner runs a named job.
type JobRunner interface {
	Run(ctx context.Context, name domain.JobName) (*Report, error)
}

// Scheduler triggers jobs on cron expressions. Overlapping ticks of the same
// job are dropped by the runner's lock.
type Scheduler struct {
	runner JobRunner
	cron   *cron.Cron
}

var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// CheckSchedule parses the time zone and every non-empty spec without
// scheduling anything.
func CheckSchedule(timezone string, specs map[string]string) error {
	if _, err := time.LoadLocation(timezone); err != nil {
		return fmt.Errorf("loading schedule timezone %q: %w", timezone, err)
	}
	for job, spec := range specs {
		if spec == "" {
			continue
		}
		if _, err := cronParser.Parse(spec); err != nil {
			return fmt.Errorf("scheduling %s with %q: %w", job, spec, err)
		}
	}
	return nil
}

// NewScheduler creates a scheduler evaluating specs in the named time zone.
// Both 5-field and 6-field (with seconds) specs are accepted.
func NewScheduler(runner JobRunner, timezone string) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("loading schedule timezone %q: %w", timezone, err)
	}
	return &Scheduler{
		runner: runner,
		cron:   cron.New(cron.WithParser(cronParser), cron.WithLocation(loc)),
	}, nil
}

// Add registers a job. An empty spec leaves the job unscheduled.
func (s *Scheduler) Add(ctx context.Context, name domain.JobName, spec string) error {
	if spec == "" {
		return nil
	}
	_, err := s.cron.AddFunc(spec, func() { s.trigger(ctx, name) })
	if err != nil {
		return fmt.Errorf("scheduling %s with %q: %w", name, spec, err)
	}
	logger.Info("job scheduled", "job", name, "cron", spec)
	return nil
}

// Len returns the number of scheduled jobs.
func (s *Scheduler) Len() int { return len(s.cron.Entries()) }

func (s *Scheduler) trigger(ctx context.Context, name domain.JobName) {
	if ctx.Err() != nil {
		return
	}
	_, err := s.runner.Run(ctx, name)
	switch {
	case errors.Is(err, distlock.ErrLocked):
		logger.Info("scheduled run skipped, previous run still active", "job", name)
	case err != nil:
		logger.Error("scheduled run failed", "job", name, "error", err)
	}
}

// Run blocks until ctx is cancelled, then waits for running jobs to finish.
func (s *Scheduler) Run(ctx context.Context) {
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
}
