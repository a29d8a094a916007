package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mochilabs/mochi-analytics/internal/domain"
	"github.com/mochilabs/mochi-analytics/internal/store"
	"github.com/mochilabs/mochi-analytics/internal/task"
)

// JobSubmitter is the slice of the submission façade the scheduler uses to
// enqueue digest jobs. Going through the façade gives digest jobs the same
// persistence and lifecycle as externally submitted ones.
type JobSubmitter interface {
	Submit(ctx context.Context, taskType string, payload json.RawMessage) (*domain.Job, error)
}

// TickResult summarizes one evaluation pass.
type TickResult struct {
	OrganizationsEvaluated int      `json:"organizations_evaluated"`
	JobsEnqueued           int      `json:"jobs_enqueued"`
	Errors                 []string `json:"errors,omitempty"`
}

// DigestScheduler evaluates every enabled organization on each tick and
// enqueues a daily-digest job for the ones that are due. It never writes
// last_digest_sent_date itself; that is the digest handler's job on success,
// which is what makes a failed digest retry on the next tick of the same day.
type DigestScheduler struct {
	schedules store.ScheduleStore
	jobs      JobSubmitter
	logger    *slog.Logger

	// now is injectable for tests; defaults to time.Now.
	now func() time.Time

	cron *cron.Cron
}

// NewDigestScheduler creates a scheduler over the given schedule store and
// submission façade.
func NewDigestScheduler(
	schedules store.ScheduleStore,
	jobs JobSubmitter,
	logger *slog.Logger,
) *DigestScheduler {
	return &DigestScheduler{
		schedules: schedules,
		jobs:      jobs,
		logger:    logger,
		now:       time.Now,
	}
}

// RunTick performs one evaluation pass: load enabled schedules, compute
// due-ness, enqueue a digest job per due organization. Per-organization
// failures are collected, not fatal, so one bad timezone cannot starve the
// rest of the fleet.
func (s *DigestScheduler) RunTick(ctx context.Context) (TickResult, error) {
	schedules, err := s.schedules.GetEnabledSchedules(ctx)
	if err != nil {
		return TickResult{}, fmt.Errorf("failed to load organization schedules: %w", err)
	}

	now := s.now()
	result := TickResult{OrganizationsEvaluated: len(schedules)}

	for _, sched := range schedules {
		due, localDate, err := IsDue(now, sched)
		if err != nil {
			s.logger.Error("failed to evaluate schedule",
				"org_id", sched.OrgID,
				"error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", sched.OrgID, err))
			continue
		}

		if !due {
			continue
		}

		payload, err := json.Marshal(task.DigestPayload{
			OrgID: sched.OrgID,
			Date:  localDate,
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", sched.OrgID, err))
			continue
		}

		job, err := s.jobs.Submit(ctx, task.TaskTypeDailyDigest, payload)
		if err != nil {
			s.logger.Error("failed to enqueue digest job",
				"org_id", sched.OrgID,
				"error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", sched.OrgID, err))
			continue
		}

		result.JobsEnqueued++
		s.logger.Info("digest job enqueued",
			"org_id", sched.OrgID,
			"local_date", localDate,
			"job_id", job.ID)
	}

	s.logger.Info("scheduler tick complete",
		"organizations_evaluated", result.OrganizationsEvaluated,
		"jobs_enqueued", result.JobsEnqueued,
		"errors", len(result.Errors))

	return result, nil
}

// Start begins running ticks on the given cron spec (e.g. "@hourly"). The
// tick interval is deliberately coarser than the minute-level schedule
// times; due-ness is best effort within the tick window.
func (s *DigestScheduler) Start(spec string) error {
	c := cron.New()

	_, err := c.AddFunc(spec, func() {
		if _, err := s.RunTick(context.Background()); err != nil {
			s.logger.Error("scheduler tick failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}

	c.Start()
	s.cron = c
	s.logger.Info("digest scheduler started", "spec", spec)
	return nil
}

// Stop halts the recurring ticks, waiting for a running tick to finish.
func (s *DigestScheduler) Stop() {
	if s.cron == nil {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("digest scheduler stopped")
}
