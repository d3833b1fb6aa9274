package usecase

import (
	"context"
	"time"

	"RssDigest/internal/ports"
)

// Scheduler wires the cron driver with the pipeline use case for daemon
// mode.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
}

// NewScheduler returns a helper to start/stop recurring runs.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline) *Scheduler {
	return &Scheduler{driver: driver, pipeline: pipeline}
}

// Start registers the pipeline with the provided scheduler. Run errors are
// logged by the pipeline itself; a failed run never stops the schedule.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		report, err := s.pipeline.Run(ctx, trigger)
		if err != nil {
			s.pipeline.warn("scheduled run failed", "error", err)
		}
		s.pipeline.debug("scheduled run finished",
			"inserted", report.Inserted, "duplicates", report.Duplicates,
			"digest", report.DigestStatus)
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
