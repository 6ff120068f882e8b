package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/recurrence-engine/recurrence"
)

// Default materialization window.
const (
	DefaultHorizon   = 180 * 24 * time.Hour
	DefaultRetention = 90 * 24 * time.Hour
)

// =============================================================================
// GENERATION WORKER
// =============================================================================

// GenerationWorker materializes every active rule inside
// [now - retention, now + horizon).
type GenerationWorker struct {
	Horizon   time.Duration
	Retention time.Duration

	rules        recurrence.RuleStore
	materializer *recurrence.Materializer
	clock        Clock
	logger       *slog.Logger

	mu   sync.Mutex
	last GenerationReport
}

// RuleFailure records one rule skipped during a pass.
type RuleFailure struct {
	RuleID recurrence.RuleID
	Err    error
}

// GenerationReport summarizes one generation pass.
type GenerationReport struct {
	Window           recurrence.Window
	RulesProcessed   int
	InstancesCreated int
	InstancesExisted int
	Failures         []RuleFailure
}

// NewGenerationWorker creates a worker with the default horizon and retention.
func NewGenerationWorker(rules recurrence.RuleStore, instances recurrence.InstanceStore, clock Clock, logger *slog.Logger) *GenerationWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerationWorker{
		Horizon:      DefaultHorizon,
		Retention:    DefaultRetention,
		rules:        rules,
		materializer: recurrence.NewMaterializer(instances).WithClock(clock.Now),
		clock:        clock,
		logger:       logger.With("worker", "generation"),
	}
}

// Run adapts RunOnce to JobFunc.
func (w *GenerationWorker) Run(ctx context.Context) error {
	_, err := w.RunOnce(ctx)
	return err
}

// RunOnce runs one generation pass. Only a failure to list rules or a
// cancelled context fails the pass; per-rule failures are reported and skipped.
func (w *GenerationWorker) RunOnce(ctx context.Context) (GenerationReport, error) {
	window := w.window()
	report := GenerationReport{Window: window}

	rules, err := w.rules.ListActiveRules(ctx, window.Start)
	if err != nil {
		return report, fmt.Errorf("failed to list active rules: %w", err)
	}

	w.logger.Info("generation pass started", "rules", len(rules), "from", window.Start, "to", window.End)

	for _, rule := range rules {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		mr, err := w.processRule(ctx, rule, window)
		report.InstancesCreated += mr.Created
		report.InstancesExisted += mr.Existing
		instancesCreated.Add(float64(mr.Created))

		if err != nil {
			report.Failures = append(report.Failures, RuleFailure{RuleID: rule.ID, Err: err})
			rulesFailed.WithLabelValues(failureReason(err)).Inc()
			w.logger.Warn("skipping rule", "rule_id", rule.ID, "error", err)
			continue
		}

		report.RulesProcessed++
		rulesProcessed.Inc()
		if mr.Truncated {
			w.logger.Warn("rule expansion hit the occurrence cap", "rule_id", rule.ID, "created", mr.Created)
		}
	}

	w.logger.Info("generation pass finished",
		"processed", report.RulesProcessed,
		"failed", len(report.Failures),
		"created", report.InstancesCreated,
		"existing", report.InstancesExisted,
	)
	w.mu.Lock()
	w.last = report
	w.mu.Unlock()
	return report, nil
}

// LastReport returns the report of the most recent completed pass.
func (w *GenerationWorker) LastReport() GenerationReport {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// MaterializeRule runs a single rule through the current window, exactly as a
// pass would.
func (w *GenerationWorker) MaterializeRule(ctx context.Context, rule recurrence.Rule) (recurrence.MaterializeReport, error) {
	return w.processRule(ctx, rule, w.window())
}

func (w *GenerationWorker) window() recurrence.Window {
	now := w.clock.Now()
	return recurrence.Window{Start: now.Add(-w.Retention), End: now.Add(w.Horizon)}
}

func (w *GenerationWorker) processRule(ctx context.Context, rule recurrence.Rule, window recurrence.Window) (report recurrence.MaterializeReport, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic materializing rule %s: %v", rule.ID, p)
		}
	}()

	if res := recurrence.ValidateRule(rule); !res.IsValid {
		return recurrence.MaterializeReport{RuleID: rule.ID}, &recurrence.RuleValidationError{RuleID: rule.ID, Errors: res.Errors}
	}

	report, err = w.materializer.MaterializeWindow(ctx, rule, window)
	if err != nil {
		return report, err
	}

	if !report.Latest.IsZero() {
		if err := w.rules.MarkMaterialized(ctx, rule.ID, report.Latest); err != nil {
			return report, fmt.Errorf("failed to record latest instance for rule %s: %w", rule.ID, err)
		}
	}
	return report, nil
}

func failureReason(err error) string {
	switch {
	case recurrence.IsClientError(err):
		return "invalid_rule"
	case recurrence.IsNotFound(err):
		return "not_found"
	default:
		return "write"
	}
}
