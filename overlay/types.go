/*
Package overlay provides the per-instance exception overlay.

PURPOSE:
  A recurring event's action items, volunteers and volunteer groups are
  defined once on the base event. An exception changes the effective state
  of one entity for exactly one materialized instance, without touching the
  base entity or any other instance.

SPARSE OVERRIDE AS A SIDE ROW:
  "Does this instance differ from the template?" is answered by the presence
  of an exception row, not by nullable columns on the instance. Merging is a
  pure function: (Base, *Exception) -> Effective view.

VARIANTS:
  EventException:          name / description / location / time overrides
  ActionItemException:     completed / postCompletionNotes overrides
  VolunteerException:      presence alone = volunteer excluded from instance
  VolunteerGroupException: presence alone = group excluded from instance

WRITE PATH:
  Always "upsert on conflict of the composite key". First write inserts with
  CreatedBy = UpdatedBy = actor; later writes update the override fields,
  UpdatedBy and UpdatedAt and leave CreatedBy alone.

SEE ALSO:
  - merge.go: effective views
  - service.go: not-found checks and upserts
  - store/sqlite/sqlite.go: ON CONFLICT implementation
*/
package overlay

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/recurrence-engine/recurrence"
)

// =============================================================================
// BASE ENTITIES
// =============================================================================

type ActionItemID string
type VolunteerID string
type VolunteerGroupID string

// Event is a template event. Recurring events own a recurrence.Rule.
type Event struct {
	ID             recurrence.EventID
	OrganizationID recurrence.OrganizationID
	Name           string
	Description    string
	Location       string
	StartAt        time.Time
	EndAt          time.Time
	IsRecurring    bool
	CreatedBy      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ActionItem is a task attached to a (possibly recurring) event.
type ActionItem struct {
	ID                  ActionItemID
	OrganizationID      recurrence.OrganizationID
	EventID             recurrence.EventID
	AssigneeID          string
	Category            string
	PreCompletionNotes  string
	PostCompletionNotes string
	Completed           bool
	AllottedHours       decimal.Decimal
	CreatedBy           string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Volunteer is a user volunteering for an event.
type Volunteer struct {
	ID               VolunteerID
	EventID          recurrence.EventID
	UserID           string
	HasAccepted      bool
	HoursVolunteered decimal.Decimal
	CreatedBy        string
	CreatedAt        time.Time
}

// VolunteerGroup is a named group of volunteers for an event.
type VolunteerGroup struct {
	ID                 VolunteerGroupID
	EventID            recurrence.EventID
	Name               string
	Description        string
	LeaderID           string
	VolunteersRequired int
	CreatedBy          string
	CreatedAt          time.Time
}

// =============================================================================
// EXCEPTION RECORDS
// =============================================================================

// ExceptionMeta carries the audit fields shared by every exception variant.
type ExceptionMeta struct {
	CreatedBy string
	UpdatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EventException overrides event details for one instance. Nil fields inherit.
type EventException struct {
	EventID     recurrence.EventID
	InstanceID  recurrence.InstanceID
	Name        *string
	Description *string
	Location    *string
	StartAt     *time.Time
	EndAt       *time.Time
	ExceptionMeta
}

// ActionItemException overrides completion state for one instance. Nil fields inherit.
type ActionItemException struct {
	ActionItemID        ActionItemID
	InstanceID          recurrence.InstanceID
	Completed           *bool
	PostCompletionNotes *string
	ExceptionMeta
}

// VolunteerException excludes a volunteer from one instance.
type VolunteerException struct {
	VolunteerID VolunteerID
	InstanceID  recurrence.InstanceID
	ExceptionMeta
}

// VolunteerGroupException excludes a volunteer group from one instance.
type VolunteerGroupException struct {
	VolunteerGroupID VolunteerGroupID
	InstanceID       recurrence.InstanceID
	ExceptionMeta
}
