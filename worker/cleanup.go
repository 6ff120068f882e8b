package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/recurrence-engine/recurrence"
)

// CleanupWorker retires instances that ended before now - retention.
type CleanupWorker struct {
	Retention time.Duration
	Policy    recurrence.RetirePolicy

	instances recurrence.InstanceStore
	clock     Clock
	logger    *slog.Logger

	mu   sync.Mutex
	last recurrence.RetireReport
}

// NewCleanupWorker creates a worker with the default retention and the
// cascade policy.
func NewCleanupWorker(instances recurrence.InstanceStore, clock Clock, logger *slog.Logger) *CleanupWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupWorker{
		Retention: DefaultRetention,
		Policy:    recurrence.RetireCascade,
		instances: instances,
		clock:     clock,
		logger:    logger.With("worker", "cleanup"),
	}
}

// Run adapts RunOnce to JobFunc.
func (w *CleanupWorker) Run(ctx context.Context) error {
	_, err := w.RunOnce(ctx)
	return err
}

// RunOnce runs one cleanup sweep.
func (w *CleanupWorker) RunOnce(ctx context.Context) (recurrence.RetireReport, error) {
	cutoff := w.clock.Now().Add(-w.Retention)

	report, err := w.instances.RetireInstances(ctx, cutoff, w.Policy)
	if err != nil {
		return report, fmt.Errorf("failed to retire instances before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	for _, s := range report.Skipped {
		w.logger.Warn("kept expired instance",
			"instance_id", s.ID,
			"rule_id", s.RuleID,
			"dependents", s.Dependents,
			"error", recurrence.ErrDependentsExist,
		)
	}

	instancesRetired.Add(float64(len(report.Deleted)))
	dependentsRetired.Add(float64(report.DependentsDeleted))
	instancesSkipped.Add(float64(len(report.Skipped)))

	w.logger.Info("cleanup pass finished",
		"cutoff", cutoff,
		"policy", w.Policy,
		"deleted", len(report.Deleted),
		"dependents_deleted", report.DependentsDeleted,
		"skipped", len(report.Skipped),
	)
	w.mu.Lock()
	w.last = report
	w.mu.Unlock()
	return report, nil
}

// LastReport returns the report of the most recent completed sweep.
func (w *CleanupWorker) LastReport() recurrence.RetireReport {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}
