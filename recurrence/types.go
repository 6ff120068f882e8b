/*
Package recurrence provides the core recurrence engine.

PURPOSE:
  Turns an abstract repetition definition (frequency, interval, termination
  policy, day/month constraints) into concrete, durable instance records.
  The same engine serves recurring events, action items, and volunteer
  assignments; the per-instance exception overlay lives in package overlay.

KEY CONCEPTS IN THIS FILE (types.go):
  - Frequency: DAILY | WEEKLY | MONTHLY | YEARLY
  - RecurrenceInput: a not-yet-persisted definition from the authoring layer
  - Rule: a persisted recurrence template owned by a base event
  - Instance: one materialized occurrence of a Rule
  - Window: a half-open [Start, End) time range

DATA FLOW:
  Rule -> Expander (expand.go) -> Materializer (materialize.go) -> Instances

  Rules are templates. Changing a rule never rewrites instances already
  materialized; the generation worker picks up the new shape on its next pass.

SEE ALSO:
  - validate.go: RuleValidator
  - expand.go: RecurrenceExpander
  - materialize.go: InstanceMaterializer
  - store.go: persistence interfaces
*/
package recurrence

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type RuleID string
type InstanceID string
type EventID string
type OrganizationID string

// NewRuleID returns a time-ordered rule identifier.
func NewRuleID() RuleID { return RuleID(uuid.Must(uuid.NewV7()).String()) }

// NewInstanceID returns a time-ordered instance identifier.
func NewInstanceID() InstanceID { return InstanceID(uuid.Must(uuid.NewV7()).String()) }

// NewEventID returns a time-ordered event identifier.
func NewEventID() EventID { return EventID(uuid.Must(uuid.NewV7()).String()) }

// =============================================================================
// FREQUENCY
// =============================================================================

type Frequency string

const (
	FreqDaily   Frequency = "DAILY"
	FreqWeekly  Frequency = "WEEKLY"
	FreqMonthly Frequency = "MONTHLY"
	FreqYearly  Frequency = "YEARLY"
)

// Valid reports whether f is one of the four supported frequencies.
func (f Frequency) Valid() bool {
	switch f {
	case FreqDaily, FreqWeekly, FreqMonthly, FreqYearly:
		return true
	}
	return false
}

// =============================================================================
// RECURRENCE INPUT - Authoring layer definition
// =============================================================================

// RecurrenceInput is the recurrence definition submitted by the authoring layer,
// before it is accepted and persisted as a Rule. Optional fields are pointers so
// that "absent" and "zero" can be told apart during validation.
type RecurrenceInput struct {
	Frequency  Frequency
	Interval   *int
	Count      *int
	EndDate    *time.Time
	Never      bool
	ByDay      []string
	ByMonth    []int
	ByMonthDay []int
}

// =============================================================================
// RULE - Persisted recurrence template
// =============================================================================

// Rule is a persisted recurrence template.
//
// INVARIANTS (enforced by ValidateRecurrenceInput before creation):
//   - exactly one of Count, RecurrenceEndDate, Never is set
//   - Interval >= 1
//   - Count >= 1 when present
type Rule struct {
	ID             RuleID
	BaseEventID    EventID
	OrganizationID OrganizationID

	Frequency Frequency
	Interval  int
	Count     *int
	Never     bool

	// RecurrenceStartDate is the anchor: the start of the template event.
	RecurrenceStartDate time.Time
	RecurrenceEndDate   *time.Time

	ByDay      []string
	ByMonth    []int
	ByMonthDay []int

	// Duration is the template event's end minus start. Every instance spans it.
	Duration time.Duration

	// LatestInstanceDate is the start of the latest occurrence materialized so far.
	LatestInstanceDate *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewRule builds a Rule from an accepted RecurrenceInput anchored at the
// template event's [start, end). It does not validate; call
// ValidateRecurrenceInput first.
func NewRule(eventID EventID, orgID OrganizationID, in RecurrenceInput, start, end time.Time) Rule {
	interval := 1
	if in.Interval != nil {
		interval = *in.Interval
	}

	r := Rule{
		ID:                  NewRuleID(),
		BaseEventID:         eventID,
		OrganizationID:      orgID,
		Frequency:           in.Frequency,
		Interval:            interval,
		Never:               in.Never,
		RecurrenceStartDate: start.UTC(),
		ByDay:               append([]string(nil), in.ByDay...),
		ByMonth:             append([]int(nil), in.ByMonth...),
		ByMonthDay:          append([]int(nil), in.ByMonthDay...),
		Duration:            end.Sub(start),
	}
	if in.Count != nil {
		c := *in.Count
		r.Count = &c
	}
	if in.EndDate != nil {
		e := in.EndDate.UTC()
		r.RecurrenceEndDate = &e
	}
	return r
}

// IsBounded reports whether the rule terminates on its own (count or end date).
func (r Rule) IsBounded() bool {
	return r.Count != nil || r.RecurrenceEndDate != nil
}

// =============================================================================
// INSTANCE - One materialized occurrence
// =============================================================================

// Instance is the durable record of one occurrence of a Rule.
// (RuleID, OccurrenceStart) is unique: it is the materialization idempotence key.
type Instance struct {
	ID             InstanceID
	RuleID         RuleID
	BaseEventID    EventID
	OrganizationID OrganizationID

	OccurrenceStart time.Time
	OccurrenceEnd   time.Time

	// SequenceNumber is the 1-based position of the occurrence counted from the anchor.
	SequenceNumber int

	CreatedAt time.Time
}

// =============================================================================
// WINDOW - Half-open time range
// =============================================================================

// Window is the half-open range [Start, End). A zero Start means "from the
// anchor"; a zero End means "no explicit bound" and is only usable for rules
// that terminate on their own.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if !w.Start.IsZero() && t.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && !t.Before(w.End) {
		return false
	}
	return true
}

// Bounded reports whether the window has an explicit end.
func (w Window) Bounded() bool { return !w.End.IsZero() }
