/*
runner.go - Cron-driven job loop

PURPOSE:
  Fires a job whenever its Schedule comes due on the injected Clock.

DESIGN:
  - Run blocks until ctx is cancelled
  - Each tick computes the next fire time from the clock, then waits on
    Clock.After for exactly that long
  - A failing or panicking pass is logged and counted; the loop continues
    and the next tick fires on schedule
  - RunNow runs the job immediately (admin endpoints, CLI); a pass that is
    already in progress in this process is not started twice

USAGE:
  r := worker.NewRunner("generation", schedule, gen.Run, worker.RealClock{}, logger)
  go r.Run(ctx)
  // ... later
  cancel()
*/
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrAlreadyRunning is returned by RunNow when a pass is in progress.
var ErrAlreadyRunning = errors.New("job already running")

// JobFunc is one worker pass.
type JobFunc func(ctx context.Context) error

// Runner handles scheduled execution of one job.
type Runner struct {
	Name     string
	Schedule Schedule

	job    JobFunc
	clock  Clock
	logger *slog.Logger

	running atomic.Bool

	mu      sync.Mutex
	lastRun time.Time
	lastErr error
}

// NewRunner creates a runner. A nil logger uses slog.Default().
func NewRunner(name string, schedule Schedule, job JobFunc, clock Clock, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		Name:     name,
		Schedule: schedule,
		job:      job,
		clock:    clock,
		logger:   logger.With("job", name),
	}
}

// Run fires the job on schedule until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("worker started", "schedule", r.Schedule.String())

	for {
		now := r.clock.Now()
		next := r.Schedule.Next(now)

		select {
		case <-ctx.Done():
			r.logger.Info("worker stopped")
			return nil
		case <-r.clock.After(next.Sub(now)):
			if err := r.RunNow(ctx); err != nil && !errors.Is(err, ErrAlreadyRunning) {
				r.logger.Error("worker pass failed", "error", err, "next", r.Schedule.Next(r.clock.Now()))
			}
		}
	}
}

// RunNow runs one pass immediately. Panics are recovered and returned as errors.
func (r *Runner) RunNow(ctx context.Context) (err error) {
	if !r.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer r.running.Store(false)

	start := r.clock.Now()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%s pass panicked: %v", r.Name, p)
		}

		result := "success"
		if err != nil {
			result = "failure"
		}
		jobRuns.WithLabelValues(r.Name, result).Inc()
		jobDuration.WithLabelValues(r.Name).Observe(r.clock.Now().Sub(start).Seconds())

		r.mu.Lock()
		r.lastRun = start
		r.lastErr = err
		r.mu.Unlock()
	}()

	return r.job(ctx)
}

// NextRunTime returns when the next scheduled pass will fire.
func (r *Runner) NextRunTime() time.Time {
	return r.Schedule.Next(r.clock.Now())
}

// Running reports whether a pass is in progress.
func (r *Runner) Running() bool { return r.running.Load() }

// LastRun returns the start time and result of the most recent pass.
func (r *Runner) LastRun() (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastRun, r.lastErr
}
