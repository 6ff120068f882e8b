package overlay

import (
	"context"

	"github.com/warp/recurrence-engine/recurrence"
)

// =============================================================================
// STORE INTERFACES
// =============================================================================

// EntityStore reads base entities. Lookups return nil when the row is missing.
type EntityStore interface {
	GetEvent(ctx context.Context, id recurrence.EventID) (*Event, error)

	GetActionItem(ctx context.Context, id ActionItemID) (*ActionItem, error)
	ListActionItemsByEvent(ctx context.Context, eventID recurrence.EventID) ([]ActionItem, error)

	GetVolunteer(ctx context.Context, id VolunteerID) (*Volunteer, error)
	ListVolunteersByEvent(ctx context.Context, eventID recurrence.EventID) ([]Volunteer, error)

	GetVolunteerGroup(ctx context.Context, id VolunteerGroupID) (*VolunteerGroup, error)
	ListVolunteerGroupsByEvent(ctx context.Context, eventID recurrence.EventID) ([]VolunteerGroup, error)
}

// ExceptionStore persists exception rows.
//
// Every Upsert is an atomic insert-or-update on the variant's composite key.
// On insert the row is written as given. On conflict only the override
// fields (nil fields keep their stored value), UpdatedBy and UpdatedAt change;
// CreatedBy and CreatedAt are preserved. The stored row is returned.
type ExceptionStore interface {
	UpsertEventException(ctx context.Context, exc EventException) (EventException, error)
	GetEventException(ctx context.Context, eventID recurrence.EventID, instanceID recurrence.InstanceID) (*EventException, error)
	ListEventExceptions(ctx context.Context, eventID recurrence.EventID) ([]EventException, error)

	UpsertActionItemException(ctx context.Context, exc ActionItemException) (ActionItemException, error)
	ListActionItemExceptions(ctx context.Context, instanceID recurrence.InstanceID) ([]ActionItemException, error)

	UpsertVolunteerException(ctx context.Context, exc VolunteerException) (VolunteerException, error)
	ListVolunteerExceptions(ctx context.Context, instanceID recurrence.InstanceID) ([]VolunteerException, error)

	UpsertVolunteerGroupException(ctx context.Context, exc VolunteerGroupException) (VolunteerGroupException, error)
	ListVolunteerGroupExceptions(ctx context.Context, instanceID recurrence.InstanceID) ([]VolunteerGroupException, error)
}

// Store is everything the overlay service reads and writes.
type Store interface {
	EntityStore
	ExceptionStore
}
