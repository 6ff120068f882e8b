/*
store.go - Persistence interfaces for rules and instances

PURPOSE:
  Defines the boundary between the recurrence engine and the database.
  The engine needs only insert / upsert / select / delete with a uniqueness
  constraint; different implementations can use SQLite or memory.

KEY INTERFACES:
  RuleStore:     Rule templates and their materialization progress
  InstanceStore: Materialized instances (insert-if-absent, list, retire)

IDEMPOTENCY:
  InsertInstanceIfAbsent is keyed on (RuleID, OccurrenceStart). When the key
  already exists the call is a no-op that reports created=false. Two workers
  racing on the same occurrence resolve to exactly one row; there is no
  in-process or distributed lock.

RETIREMENT:
  RetireInstances deletes instances whose OccurrenceEnd is before a cutoff.
  Exception rows referencing an instance are handled by RetirePolicy:
    RetireCascade: dependents are deleted in the same transaction
    RetireRefuse:  the instance is kept and reported as skipped

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - recurrence/store/memory.go: in-memory for tests

SEE ALSO:
  - materialize.go: uses InstanceStore
  - worker/cleanup.go: uses RetireInstances
*/
package recurrence

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// RULE STORE
// =============================================================================

// RuleStore persists recurrence templates.
type RuleStore interface {
	// SaveRule inserts or replaces a rule. Replacing a rule never touches its
	// already-materialized instances.
	SaveRule(ctx context.Context, r Rule) error

	// GetRule returns the rule or nil if it does not exist.
	GetRule(ctx context.Context, id RuleID) (*Rule, error)

	// ListActiveRules returns rules that may still produce occurrences at or
	// after since: never-ending rules, count rules, and rules whose end date is
	// after since.
	ListActiveRules(ctx context.Context, since time.Time) ([]Rule, error)

	// MarkMaterialized advances the rule's LatestInstanceDate. It never moves
	// it backwards.
	MarkMaterialized(ctx context.Context, id RuleID, latest time.Time) error
}

// =============================================================================
// INSTANCE STORE
// =============================================================================

// InstanceStore persists materialized instances.
type InstanceStore interface {
	// InsertInstanceIfAbsent inserts inst unless an instance with the same
	// (RuleID, OccurrenceStart) exists. Returns whether a row was created.
	InsertInstanceIfAbsent(ctx context.Context, inst Instance) (bool, error)

	// GetInstance returns the instance or nil if it does not exist.
	GetInstance(ctx context.Context, id InstanceID) (*Instance, error)

	// ListInstances returns a rule's instances with OccurrenceStart in
	// [from, to), ordered by OccurrenceStart.
	ListInstances(ctx context.Context, ruleID RuleID, from, to time.Time) ([]Instance, error)

	// RetireInstances deletes instances whose OccurrenceEnd is before cutoff.
	RetireInstances(ctx context.Context, cutoff time.Time, policy RetirePolicy) (RetireReport, error)
}

// =============================================================================
// RETIREMENT POLICY
// =============================================================================

// RetirePolicy decides what happens to an expired instance that still has
// exception rows attached.
type RetirePolicy string

const (
	RetireCascade RetirePolicy = "cascade"
	RetireRefuse  RetirePolicy = "refuse"
)

// ParseRetirePolicy accepts "cascade" or "refuse".
func ParseRetirePolicy(s string) (RetirePolicy, error) {
	switch RetirePolicy(s) {
	case RetireCascade, RetireRefuse:
		return RetirePolicy(s), nil
	}
	return "", fmt.Errorf("unknown cleanup policy %q: must be cascade or refuse", s)
}

// SkippedInstance is an expired instance kept because of its dependents.
type SkippedInstance struct {
	ID         InstanceID
	RuleID     RuleID
	Dependents int
}

// RetireReport summarizes one retirement sweep.
type RetireReport struct {
	Deleted           []InstanceID
	DependentsDeleted int
	Skipped           []SkippedInstance
}
