package overlay

import (
	"time"

	"github.com/warp/recurrence-engine/recurrence"
)

// =============================================================================
// EFFECTIVE VIEWS - Base + optional exception
// =============================================================================

// EventInstanceView is the effective state of one event instance.
type EventInstanceView struct {
	InstanceID     recurrence.InstanceID
	RuleID         recurrence.RuleID
	EventID        recurrence.EventID
	OrganizationID recurrence.OrganizationID
	SequenceNumber int
	Name           string
	Description    string
	Location       string
	StartAt        time.Time
	EndAt          time.Time
	Overridden     bool
}

// ActionItemView is the effective state of an action item for one instance.
type ActionItemView struct {
	ActionItem
	InstanceID recurrence.InstanceID
	Overridden bool
}

// VolunteerView is a volunteer's participation in one instance.
type VolunteerView struct {
	Volunteer
	InstanceID recurrence.InstanceID
	Excluded   bool
}

// VolunteerGroupView is a volunteer group's participation in one instance.
type VolunteerGroupView struct {
	VolunteerGroup
	InstanceID recurrence.InstanceID
	Excluded   bool
}

// EffectiveEvent merges the template event, the instance times and an
// optional detail exception.
func EffectiveEvent(base Event, inst recurrence.Instance, exc *EventException) EventInstanceView {
	v := EventInstanceView{
		InstanceID:     inst.ID,
		RuleID:         inst.RuleID,
		EventID:        base.ID,
		OrganizationID: inst.OrganizationID,
		SequenceNumber: inst.SequenceNumber,
		Name:           base.Name,
		Description:    base.Description,
		Location:       base.Location,
		StartAt:        inst.OccurrenceStart,
		EndAt:          inst.OccurrenceEnd,
	}
	if exc == nil {
		return v
	}

	v.Overridden = true
	if exc.Name != nil {
		v.Name = *exc.Name
	}
	if exc.Description != nil {
		v.Description = *exc.Description
	}
	if exc.Location != nil {
		v.Location = *exc.Location
	}
	if exc.StartAt != nil {
		v.StartAt = *exc.StartAt
	}
	if exc.EndAt != nil {
		v.EndAt = *exc.EndAt
	}
	return v
}

// EffectiveActionItem substitutes the exception's present fields into a copy
// of base.
func EffectiveActionItem(base ActionItem, instanceID recurrence.InstanceID, exc *ActionItemException) ActionItemView {
	v := ActionItemView{ActionItem: base, InstanceID: instanceID}
	if exc == nil {
		return v
	}

	v.Overridden = true
	if exc.Completed != nil {
		v.Completed = *exc.Completed
	}
	if exc.PostCompletionNotes != nil {
		v.PostCompletionNotes = *exc.PostCompletionNotes
	}
	return v
}

// EffectiveVolunteer marks the volunteer excluded when an exception row exists,
// whatever its contents.
func EffectiveVolunteer(base Volunteer, instanceID recurrence.InstanceID, exc *VolunteerException) VolunteerView {
	return VolunteerView{Volunteer: base, InstanceID: instanceID, Excluded: exc != nil}
}

// EffectiveVolunteerGroup marks the group excluded when an exception row exists.
func EffectiveVolunteerGroup(base VolunteerGroup, instanceID recurrence.InstanceID, exc *VolunteerGroupException) VolunteerGroupView {
	return VolunteerGroupView{VolunteerGroup: base, InstanceID: instanceID, Excluded: exc != nil}
}
