// Package scheduler wraps gocron to run the one one-shot background task
// the League Manager needs outside the request/command path: the optional
// registration deadline that auto-closes registration when a league is
// configured with one, instead of waiting indefinitely for an
// administrative close_registration call.
package scheduler

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

const deadlineJobTag = "registration-deadline"

// Scheduler is a thin wrapper around a gocron.Scheduler. The zero value is
// not usable — create instances with New.
type Scheduler struct {
	cron   gocron.Scheduler
	logger *zap.Logger
}

// New creates and configures a new Scheduler. Call Start to begin processing.
func New(logger *zap.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{cron: s, logger: logger.Named("scheduler")}, nil
}

// Start begins running scheduled jobs. It should be called once at service
// startup after any deadline job has been registered via
// ScheduleRegistrationDeadline.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started")
}

// Stop gracefully shuts down the underlying gocron scheduler.
func (s *Scheduler) Stop() error {
	if err := s.cron.Shutdown(); err != nil {
		return fmt.Errorf("scheduler shutdown error: %w", err)
	}
	s.logger.Info("scheduler stopped")
	return nil
}

// ScheduleRegistrationDeadline registers a one-shot job that calls fn at
// deadline, closing registration automatically if the configured
// min_players/min_referees gate has not already done so. A no-op if
// deadline is already in the past — the caller is expected to run fn
// immediately in that case instead.
func (s *Scheduler) ScheduleRegistrationDeadline(deadline time.Time, fn func()) error {
	_, err := s.cron.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(deadline)),
		gocron.NewTask(fn),
		gocron.WithTags(deadlineJobTag),
	)
	if err != nil {
		return fmt.Errorf("scheduler: failed to register registration deadline job: %w", err)
	}
	s.logger.Info("registration deadline scheduled", zap.Time("deadline", deadline))
	return nil
}

// CancelRegistrationDeadline removes the deadline job, called when
// registration closes early (administrative close_registration or the
// min_players/min_referees gate firing first).
func (s *Scheduler) CancelRegistrationDeadline() {
	s.cron.RemoveByTags(deadlineJobTag)
}
