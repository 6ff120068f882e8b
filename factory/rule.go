/*
Package factory provides JSON to Go conversion for the authoring layer.

PURPOSE:
  Converts JSON recurrence definitions and event payloads into
  recurrence.RecurrenceInput, recurrence.Rule and overlay entities. The API
  and the CLI both go through this package, so the wire shape lives in one
  place.

JSON SCHEMA (recurring event):
  {
    "organizationId": "org-1",
    "name": "Food bank shift",
    "location": "Warehouse",
    "startAt": "2025-03-03T09:00:00Z",
    "endAt": "2025-03-03T12:00:00Z",
    "recurrence": {
      "frequency": "WEEKLY",
      "interval": 1,
      "byDay": ["MO", "WE"],
      "never": true
    }
  }

  Exactly one of "count", "endDate", "never" terminates a recurrence.

USAGE:
  f := factory.NewRuleFactory()
  draft, err := f.ParseEvent(jsonString)
  ev, rule, res := f.BuildRecurringEvent(draft)
  if !res.IsValid { ... }

SEE ALSO:
  - recurrence/validate.go: the checks BuildRecurringEvent runs
  - api/handlers.go: HTTP entry points
*/
package factory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/recurrence-engine/overlay"
	"github.com/warp/recurrence-engine/recurrence"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RecurrenceJSON is the JSON representation of a recurrence definition.
// It carries no validate tags: recurrence.ValidateRecurrenceInput reports
// every violation at once.
type RecurrenceJSON struct {
	Frequency  string     `json:"frequency"`
	Interval   *int       `json:"interval,omitempty"`
	Count      *int       `json:"count,omitempty"`
	EndDate    *time.Time `json:"endDate,omitempty"`
	Never      bool       `json:"never,omitempty"`
	ByDay      []string   `json:"byDay,omitempty"`
	ByMonth    []int      `json:"byMonth,omitempty"`
	ByMonthDay []int      `json:"byMonthDay,omitempty"`
}

// EventJSON is the JSON representation of an event, recurring or not.
type EventJSON struct {
	ID             string          `json:"id,omitempty"`
	OrganizationID string          `json:"organizationId" validate:"required"`
	Name           string          `json:"name" validate:"required,max=256"`
	Description    string          `json:"description,omitempty"`
	Location       string          `json:"location,omitempty"`
	StartAt        time.Time       `json:"startAt" validate:"required"`
	EndAt          time.Time       `json:"endAt" validate:"required,gtfield=StartAt"`
	Recurrence     *RecurrenceJSON `json:"recurrence,omitempty"`
}

// ActionItemJSON is the JSON representation of an action item.
type ActionItemJSON struct {
	ID                 string          `json:"id,omitempty"`
	AssigneeID         string          `json:"assigneeId" validate:"required"`
	Category           string          `json:"category,omitempty"`
	PreCompletionNotes string          `json:"preCompletionNotes,omitempty"`
	AllottedHours      decimal.Decimal `json:"allottedHours"`
}

// VolunteerJSON is the JSON representation of an event volunteer.
type VolunteerJSON struct {
	ID          string `json:"id,omitempty"`
	UserID      string `json:"userId" validate:"required"`
	HasAccepted bool   `json:"hasAccepted,omitempty"`
}

// VolunteerGroupJSON is the JSON representation of a volunteer group.
type VolunteerGroupJSON struct {
	ID                 string `json:"id,omitempty"`
	Name               string `json:"name" validate:"required"`
	Description        string `json:"description,omitempty"`
	LeaderID           string `json:"leaderId,omitempty"`
	VolunteersRequired int    `json:"volunteersRequired,omitempty" validate:"gte=0"`
}

// EventDraft is a parsed event plus its optional recurrence definition.
type EventDraft struct {
	Event      overlay.Event
	Recurrence *recurrence.RecurrenceInput
}

// =============================================================================
// RULE FACTORY
// =============================================================================

// RuleFactory converts authoring JSON to engine structs.
type RuleFactory struct {
	now func() time.Time
}

// NewRuleFactory creates a new rule factory.
func NewRuleFactory() *RuleFactory {
	return &RuleFactory{now: time.Now}
}

// WithClock overrides the CreatedAt timestamp source.
func (f *RuleFactory) WithClock(now func() time.Time) *RuleFactory {
	f.now = now
	return f
}

// ParseRecurrence parses a JSON string into a RecurrenceInput.
func (f *RuleFactory) ParseRecurrence(jsonStr string) (recurrence.RecurrenceInput, error) {
	var rj RecurrenceJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return recurrence.RecurrenceInput{}, fmt.Errorf("failed to parse recurrence JSON: %w", err)
	}
	return f.RecurrenceFromJSON(rj), nil
}

// RecurrenceFromJSON converts RecurrenceJSON to a RecurrenceInput. Times are
// normalized to UTC.
func (f *RuleFactory) RecurrenceFromJSON(rj RecurrenceJSON) recurrence.RecurrenceInput {
	in := recurrence.RecurrenceInput{
		Frequency:  recurrence.Frequency(rj.Frequency),
		Interval:   rj.Interval,
		Count:      rj.Count,
		Never:      rj.Never,
		ByDay:      rj.ByDay,
		ByMonth:    rj.ByMonth,
		ByMonthDay: rj.ByMonthDay,
	}
	if rj.EndDate != nil {
		end := rj.EndDate.UTC()
		in.EndDate = &end
	}
	return in
}

// ParseEvent parses a JSON string into an EventDraft.
func (f *RuleFactory) ParseEvent(jsonStr string) (EventDraft, error) {
	var ej EventJSON
	if err := json.Unmarshal([]byte(jsonStr), &ej); err != nil {
		return EventDraft{}, fmt.Errorf("failed to parse event JSON: %w", err)
	}
	return f.EventFromJSON(ej, ""), nil
}

// EventFromJSON converts EventJSON to an EventDraft. A missing ID is
// generated; actor becomes CreatedBy.
func (f *RuleFactory) EventFromJSON(ej EventJSON, actor string) EventDraft {
	id := recurrence.EventID(ej.ID)
	if id == "" {
		id = recurrence.NewEventID()
	}
	now := f.stamp()

	draft := EventDraft{
		Event: overlay.Event{
			ID:             id,
			OrganizationID: recurrence.OrganizationID(ej.OrganizationID),
			Name:           ej.Name,
			Description:    ej.Description,
			Location:       ej.Location,
			StartAt:        ej.StartAt.UTC(),
			EndAt:          ej.EndAt.UTC(),
			IsRecurring:    ej.Recurrence != nil,
			CreatedBy:      actor,
			CreatedAt:      now,
			UpdatedAt:      now,
		},
	}
	if ej.Recurrence != nil {
		in := f.RecurrenceFromJSON(*ej.Recurrence)
		draft.Recurrence = &in
	}
	return draft
}

// BuildRecurringEvent validates the draft's recurrence against the event start
// and builds the rule. The rule is only meaningful when the result is valid.
func (f *RuleFactory) BuildRecurringEvent(d EventDraft) (overlay.Event, recurrence.Rule, recurrence.ValidationResult) {
	if d.Recurrence == nil {
		return d.Event, recurrence.Rule{}, recurrence.ValidationResult{
			IsValid: false,
			Errors:  []string{"recurrence is required for a recurring event"},
		}
	}

	res := recurrence.ValidateRecurrenceInput(*d.Recurrence, d.Event.StartAt)
	if !d.Event.EndAt.After(d.Event.StartAt) {
		res.IsValid = false
		res.Errors = append(res.Errors, "endAt must be after startAt")
	}
	if !res.IsValid {
		return d.Event, recurrence.Rule{}, res
	}

	rule := recurrence.NewRule(d.Event.ID, d.Event.OrganizationID, *d.Recurrence, d.Event.StartAt, d.Event.EndAt)
	rule.CreatedAt = d.Event.CreatedAt
	rule.UpdatedAt = d.Event.CreatedAt
	return d.Event, rule, res
}

// ToJSON converts a persisted rule back to its authoring shape.
func (f *RuleFactory) ToJSON(r recurrence.Rule) RecurrenceJSON {
	rj := RecurrenceJSON{
		Frequency:  string(r.Frequency),
		Count:      r.Count,
		EndDate:    r.RecurrenceEndDate,
		Never:      r.Never,
		ByDay:      r.ByDay,
		ByMonth:    r.ByMonth,
		ByMonthDay: r.ByMonthDay,
	}
	if r.Interval != 1 {
		interval := r.Interval
		rj.Interval = &interval
	}
	return rj
}

// =============================================================================
// ENTITY CONVERSION
// =============================================================================

// ActionItemFromJSON attaches an action item to ev.
func (f *RuleFactory) ActionItemFromJSON(aj ActionItemJSON, ev overlay.Event, actor string) overlay.ActionItem {
	id := overlay.ActionItemID(aj.ID)
	if id == "" {
		id = overlay.ActionItemID(newID())
	}
	now := f.stamp()
	return overlay.ActionItem{
		ID:                 id,
		OrganizationID:     ev.OrganizationID,
		EventID:            ev.ID,
		AssigneeID:         aj.AssigneeID,
		Category:           aj.Category,
		PreCompletionNotes: aj.PreCompletionNotes,
		AllottedHours:      aj.AllottedHours,
		CreatedBy:          actor,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// VolunteerFromJSON attaches a volunteer to ev.
func (f *RuleFactory) VolunteerFromJSON(vj VolunteerJSON, ev overlay.Event, actor string) overlay.Volunteer {
	id := overlay.VolunteerID(vj.ID)
	if id == "" {
		id = overlay.VolunteerID(newID())
	}
	return overlay.Volunteer{
		ID:               id,
		EventID:          ev.ID,
		UserID:           vj.UserID,
		HasAccepted:      vj.HasAccepted,
		HoursVolunteered: decimal.Zero,
		CreatedBy:        actor,
		CreatedAt:        f.stamp(),
	}
}

// VolunteerGroupFromJSON attaches a volunteer group to ev.
func (f *RuleFactory) VolunteerGroupFromJSON(gj VolunteerGroupJSON, ev overlay.Event, actor string) overlay.VolunteerGroup {
	id := overlay.VolunteerGroupID(gj.ID)
	if id == "" {
		id = overlay.VolunteerGroupID(newID())
	}
	return overlay.VolunteerGroup{
		ID:                 id,
		EventID:            ev.ID,
		Name:               gj.Name,
		Description:        gj.Description,
		LeaderID:           gj.LeaderID,
		VolunteersRequired: gj.VolunteersRequired,
		CreatedBy:          actor,
		CreatedAt:          f.stamp(),
	}
}

// stamp is the audit timestamp, in whole seconds like the SQLite store.
func (f *RuleFactory) stamp() time.Time { return f.now().UTC().Truncate(time.Second) }

func newID() string { return uuid.Must(uuid.NewV7()).String() }

// =============================================================================
// PRESETS
// =============================================================================

// WeeklyJSON returns a never-ending weekly recurrence on the given day codes.
func WeeklyJSON(days ...string) string {
	b, _ := json.Marshal(RecurrenceJSON{Frequency: string(recurrence.FreqWeekly), ByDay: days, Never: true})
	return string(b)
}

// MonthlyByDayJSON returns a monthly recurrence on an ordinal weekday such as
// "1MO" or "-1FR", ending after count occurrences.
func MonthlyByDayJSON(dayCode string, count int) string {
	b, _ := json.Marshal(RecurrenceJSON{Frequency: string(recurrence.FreqMonthly), ByDay: []string{dayCode}, Count: &count})
	return string(b)
}
