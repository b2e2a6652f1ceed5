// Package scheduler re-runs a task on a fixed interval.
package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// DefaultInterval is the delay between the end of one pass and the start of
// the next.
const DefaultInterval = 60 * time.Second

// Task is one unit of periodic work.
type Task func(ctx context.Context) error

// Scheduler runs a task immediately and then again after every interval.
//
// Runs never overlap: the task executes in the loop goroutine and the timer
// is armed only after it returns, so a slow run delays the next one. For the
// governance task that includes waiting for the pass's cancel and rerun
// requests, so a stuck request can push the next pass back by up to
// governance.action-timeout.
type Scheduler struct {
	name     string
	interval time.Duration
	task     Task
	logger   *slog.Logger
}

// New creates a scheduler for task.
func New(name string, interval time.Duration, task Task, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{name: name, interval: interval, task: task, logger: logger}
}

// Interval returns the delay between runs.
func (s *Scheduler) Interval() time.Duration { return s.interval }

// RunOnce executes the task a single time.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()
	err := s.task(ctx)
	if err != nil {
		s.logger.Error("task failed", "task", s.name, "duration", time.Since(start), "error", err)
		return err
	}
	s.logger.Debug("task finished", "task", s.name, "duration", time.Since(start))
	return nil
}

// Run loops until ctx is cancelled and returns ctx's error. Task failures
// are logged and the loop re-arms.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "task", s.name, "interval", s.interval)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped", "task", s.name)
			return ctx.Err()
		case <-timer.C:
		}

		_ = s.RunOnce(ctx)
		timer.Reset(s.interval)
	}
}
