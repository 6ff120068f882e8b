/*
materialize.go - InstanceMaterializer

PURPOSE:
  Turns expanded occurrences into durable Instance rows, one per occurrence,
  keyed on (RuleID, OccurrenceStart).

IDEMPOTENCE:
  Every write is "insert if absent, otherwise leave untouched". Running the
  materializer twice over identical or overlapping windows yields exactly the
  instance set of a single run, which is what makes cron re-invocation and
  concurrent replicas safe. This is distinct from the exception overlay,
  whose writes are "insert or update".

SIDE EFFECTS:
  Only instance rows. Exceptions are never read or written here.
*/
package recurrence

import (
	"context"
	"fmt"
	"time"
)

// MaterializeReport summarizes one materialization pass.
type MaterializeReport struct {
	RuleID    RuleID
	Created   int
	Existing  int
	Truncated bool
	// Latest is the start of the latest occurrence seen in this pass.
	Latest time.Time
}

// Materializer writes instances for expanded occurrences.
type Materializer struct {
	store InstanceStore
	now   func() time.Time
}

// NewMaterializer creates a materializer backed by store.
func NewMaterializer(store InstanceStore) *Materializer {
	return &Materializer{store: store, now: time.Now}
}

// WithClock overrides the timestamp source used for CreatedAt.
func (m *Materializer) WithClock(now func() time.Time) *Materializer {
	m.now = now
	return m
}

// Materialize inserts one instance per occurrence produced by src.
// Write failures other than the uniqueness no-op abort the pass and are
// returned along with the partial report.
func (m *Materializer) Materialize(ctx context.Context, rule Rule, src OccurrenceSource) (MaterializeReport, error) {
	report := MaterializeReport{RuleID: rule.ID}

	for {
		occ, ok := src.Next()
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		start := occ.Start.UTC()
		inst := Instance{
			ID:              NewInstanceID(),
			RuleID:          rule.ID,
			BaseEventID:     rule.BaseEventID,
			OrganizationID:  rule.OrganizationID,
			OccurrenceStart: start,
			OccurrenceEnd:   start.Add(rule.Duration),
			SequenceNumber:  occ.Index,
			CreatedAt:       m.now().UTC().Truncate(time.Second),
		}

		created, err := m.store.InsertInstanceIfAbsent(ctx, inst)
		if err != nil {
			return report, fmt.Errorf("materialize rule %s at %s: %w", rule.ID, start.Format(time.RFC3339), err)
		}
		if created {
			report.Created++
		} else {
			report.Existing++
		}
		if start.After(report.Latest) {
			report.Latest = start
		}
	}

	if seq, ok := src.(*Sequence); ok {
		report.Truncated = seq.Truncated()
	}
	return report, nil
}

// MaterializeWindow expands rule inside w and materializes the result.
func (m *Materializer) MaterializeWindow(ctx context.Context, rule Rule, w Window) (MaterializeReport, error) {
	if !w.Bounded() && !rule.IsBounded() {
		return MaterializeReport{RuleID: rule.ID}, ErrUnboundedExpansion
	}
	e, err := NewExpander(rule)
	if err != nil {
		return MaterializeReport{RuleID: rule.ID}, err
	}
	return m.Materialize(ctx, rule, e.Sequence(w))
}
