/*
errors.go - Centralized error types for the recurrence engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The overlay package, the stores, the workers and the API wrap or
  match these errors.

ERROR CATEGORIES:
  1. Lookup errors - referenced rule, instance or entity does not exist
  2. Rule errors - a persisted rule failed validation or cannot be expanded
  3. Store errors - uniqueness and dependent-record violations

VALIDATION IS NOT AN ERROR:
  ValidateRecurrenceInput and ValidateRule return a ValidationResult.
  RuleValidationError exists only for the workers, which need to log and
  skip a stale rule.

SEE ALSO:
  - validate.go: ValidationResult
  - overlay/service.go: NotFoundError producers
*/
package recurrence

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced rule, instance, or base entity
	// does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidRule is returned when a rule fails validation at use time.
	ErrInvalidRule = errors.New("invalid recurrence rule")

	// ErrUnboundedExpansion is returned when a never-ending rule is expanded
	// without an explicit window end.
	ErrUnboundedExpansion = errors.New("unbounded expansion: rule never ends and window has no end")

	// ErrInvalidDayCode is returned when a byDay entry cannot be parsed.
	ErrInvalidDayCode = errors.New("invalid day code")

	// ErrDependentsExist is returned when an instance cannot be retired because
	// exception rows still reference it.
	ErrDependentsExist = errors.New("instance has dependent exceptions")

	// ErrInvalidWindow is returned when a window ends before it starts.
	ErrInvalidWindow = errors.New("invalid window: end before start")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError names the missing resource.
type NotFoundError struct {
	Kind string // "event", "rule", "instance", "action_item", "volunteer", "volunteer_group"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NotFound builds a NotFoundError.
func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// RuleValidationError wraps the validation messages of a persisted rule.
type RuleValidationError struct {
	RuleID RuleID
	Errors []string
}

func (e *RuleValidationError) Error() string {
	return fmt.Sprintf("rule %s is invalid: %s", e.RuleID, strings.Join(e.Errors, "; "))
}

func (e *RuleValidationError) Unwrap() error {
	return ErrInvalidRule
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRule) ||
		errors.Is(err, ErrInvalidDayCode) ||
		errors.Is(err, ErrInvalidWindow) ||
		errors.Is(err, ErrUnboundedExpansion)
}
