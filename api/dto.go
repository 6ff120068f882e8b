/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine model from the external API contract. Field names are
  camelCase on the wire.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Authoring:
    CreateEventResponse, ValidateRecurrenceRequest (wraps factory JSON types)

  Rules and instances:
    RuleDTO, EventInstanceDTO

  Overlay:
    EventExceptionRequest, ActionItemExceptionRequest
    ActionItemViewDTO, VolunteerViewDTO, VolunteerGroupViewDTO

  Workers:
    GenerationReportDTO, CleanupReportDTO, WorkerStatusDTO

VALIDATION:
  Request bodies carry go-playground/validator tags and are checked by
  Handler.decode before any engine call.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/rule.go: EventJSON and RecurrenceJSON
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/recurrence-engine/factory"
	"github.com/warp/recurrence-engine/overlay"
	"github.com/warp/recurrence-engine/recurrence"
	"github.com/warp/recurrence-engine/worker"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// ValidateRecurrenceRequest checks a recurrence against a prospective start.
type ValidateRecurrenceRequest struct {
	StartAt    time.Time              `json:"startAt" validate:"required"`
	Recurrence factory.RecurrenceJSON `json:"recurrence"`
}

// EventExceptionRequest overrides event details for one instance.
// Omitted fields inherit from the template event.
type EventExceptionRequest struct {
	Name        *string    `json:"name,omitempty" validate:"omitempty,min=1,max=256"`
	Description *string    `json:"description,omitempty"`
	Location    *string    `json:"location,omitempty"`
	StartAt     *time.Time `json:"startAt,omitempty"`
	EndAt       *time.Time `json:"endAt,omitempty"`
}

// ActionItemExceptionRequest overrides completion state for one instance.
type ActionItemExceptionRequest struct {
	Completed           *bool   `json:"completed,omitempty"`
	PostCompletionNotes *string `json:"postCompletionNotes,omitempty" validate:"omitempty,max=4096"`
}

// LoadScenarioRequest selects a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenarioId" validate:"required"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// EventDTO represents a template event.
type EventDTO struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	Location       string    `json:"location,omitempty"`
	StartAt        time.Time `json:"startAt"`
	EndAt          time.Time `json:"endAt"`
	IsRecurring    bool      `json:"isRecurring"`
	CreatedBy      string    `json:"createdBy,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// RuleDTO represents a persisted recurrence rule.
type RuleDTO struct {
	ID                  string                 `json:"id"`
	BaseEventID         string                 `json:"baseEventId"`
	OrganizationID      string                 `json:"organizationId"`
	Recurrence          factory.RecurrenceJSON `json:"recurrence"`
	RecurrenceStartDate time.Time              `json:"recurrenceStartDate"`
	DurationSeconds     int64                  `json:"durationSeconds"`
	LatestInstanceDate  *time.Time             `json:"latestInstanceDate,omitempty"`
}

// CreateEventResponse is returned after creating an event.
type CreateEventResponse struct {
	Event     EventDTO `json:"event"`
	Rule      *RuleDTO `json:"rule,omitempty"`
	Instances int      `json:"instancesCreated"`
}

// EventDetailDTO is an event plus its rule, when recurring.
type EventDetailDTO struct {
	Event EventDTO `json:"event"`
	Rule  *RuleDTO `json:"rule,omitempty"`
}

// EventInstanceDTO is the effective view of one instance.
type EventInstanceDTO struct {
	InstanceID     string    `json:"instanceId"`
	RuleID         string    `json:"ruleId"`
	EventID        string    `json:"eventId"`
	OrganizationID string    `json:"organizationId"`
	SequenceNumber int       `json:"sequenceNumber"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	Location       string    `json:"location,omitempty"`
	StartAt        time.Time `json:"startAt"`
	EndAt          time.Time `json:"endAt"`
	Overridden     bool      `json:"overridden"`
}

// ActionItemViewDTO is an action item as seen by one instance.
type ActionItemViewDTO struct {
	ID                  string          `json:"id"`
	InstanceID          string          `json:"instanceId"`
	EventID             string          `json:"eventId"`
	AssigneeID          string          `json:"assigneeId"`
	Category            string          `json:"category,omitempty"`
	PreCompletionNotes  string          `json:"preCompletionNotes,omitempty"`
	PostCompletionNotes string          `json:"postCompletionNotes,omitempty"`
	Completed           bool            `json:"completed"`
	AllottedHours       decimal.Decimal `json:"allottedHours"`
	Overridden          bool            `json:"overridden"`
}

// VolunteerViewDTO is a volunteer's participation in one instance.
type VolunteerViewDTO struct {
	ID          string `json:"id"`
	InstanceID  string `json:"instanceId"`
	UserID      string `json:"userId"`
	HasAccepted bool   `json:"hasAccepted"`
	Excluded    bool   `json:"excluded"`
}

// VolunteerGroupViewDTO is a volunteer group's participation in one instance.
type VolunteerGroupViewDTO struct {
	ID                 string `json:"id"`
	InstanceID         string `json:"instanceId"`
	Name               string `json:"name"`
	VolunteersRequired int    `json:"volunteersRequired"`
	Excluded           bool   `json:"excluded"`
}

// ExceptionDTO is the stored audit trail of an exception write.
type ExceptionDTO struct {
	InstanceID string    `json:"instanceId"`
	EntityID   string    `json:"entityId"`
	CreatedBy  string    `json:"createdBy"`
	UpdatedBy  string    `json:"updatedBy"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// RuleFailureDTO is one rule skipped during a generation pass.
type RuleFailureDTO struct {
	RuleID string `json:"ruleId"`
	Error  string `json:"error"`
}

// GenerationReportDTO summarizes a generation pass.
type GenerationReportDTO struct {
	From             time.Time        `json:"from"`
	To               time.Time        `json:"to"`
	RulesProcessed   int              `json:"rulesProcessed"`
	InstancesCreated int              `json:"instancesCreated"`
	InstancesExisted int              `json:"instancesExisted"`
	Failures         []RuleFailureDTO `json:"failures"`
}

// CleanupReportDTO summarizes a cleanup sweep.
type CleanupReportDTO struct {
	Deleted           int      `json:"deleted"`
	DependentsDeleted int      `json:"dependentsDeleted"`
	Skipped           []string `json:"skipped"`
}

// WorkerStatusDTO describes one scheduled worker.
type WorkerStatusDTO struct {
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"`
	NextRun   time.Time  `json:"nextRun"`
	LastRun   *time.Time `json:"lastRun,omitempty"`
	LastError string     `json:"lastError,omitempty"`
	Running   bool       `json:"running"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toEventDTO(ev overlay.Event) EventDTO {
	return EventDTO{
		ID:             string(ev.ID),
		OrganizationID: string(ev.OrganizationID),
		Name:           ev.Name,
		Description:    ev.Description,
		Location:       ev.Location,
		StartAt:        ev.StartAt,
		EndAt:          ev.EndAt,
		IsRecurring:    ev.IsRecurring,
		CreatedBy:      ev.CreatedBy,
		CreatedAt:      ev.CreatedAt,
	}
}

func toRuleDTO(f *factory.RuleFactory, r recurrence.Rule) *RuleDTO {
	return &RuleDTO{
		ID:                  string(r.ID),
		BaseEventID:         string(r.BaseEventID),
		OrganizationID:      string(r.OrganizationID),
		Recurrence:          f.ToJSON(r),
		RecurrenceStartDate: r.RecurrenceStartDate,
		DurationSeconds:     int64(r.Duration / time.Second),
		LatestInstanceDate:  r.LatestInstanceDate,
	}
}

func toEventInstanceDTO(v overlay.EventInstanceView) EventInstanceDTO {
	return EventInstanceDTO{
		InstanceID:     string(v.InstanceID),
		RuleID:         string(v.RuleID),
		EventID:        string(v.EventID),
		OrganizationID: string(v.OrganizationID),
		SequenceNumber: v.SequenceNumber,
		Name:           v.Name,
		Description:    v.Description,
		Location:       v.Location,
		StartAt:        v.StartAt,
		EndAt:          v.EndAt,
		Overridden:     v.Overridden,
	}
}

func toActionItemViewDTO(v overlay.ActionItemView) ActionItemViewDTO {
	return ActionItemViewDTO{
		ID:                  string(v.ID),
		InstanceID:          string(v.InstanceID),
		EventID:             string(v.EventID),
		AssigneeID:          v.AssigneeID,
		Category:            v.Category,
		PreCompletionNotes:  v.PreCompletionNotes,
		PostCompletionNotes: v.PostCompletionNotes,
		Completed:           v.Completed,
		AllottedHours:       v.AllottedHours,
		Overridden:          v.Overridden,
	}
}

func toVolunteerViewDTO(v overlay.VolunteerView) VolunteerViewDTO {
	return VolunteerViewDTO{
		ID:          string(v.ID),
		InstanceID:  string(v.InstanceID),
		UserID:      v.UserID,
		HasAccepted: v.HasAccepted,
		Excluded:    v.Excluded,
	}
}

func toVolunteerGroupViewDTO(v overlay.VolunteerGroupView) VolunteerGroupViewDTO {
	return VolunteerGroupViewDTO{
		ID:                 string(v.ID),
		InstanceID:         string(v.InstanceID),
		Name:               v.Name,
		VolunteersRequired: v.VolunteersRequired,
		Excluded:           v.Excluded,
	}
}

func toExceptionDTO(instanceID recurrence.InstanceID, entityID string, m overlay.ExceptionMeta) ExceptionDTO {
	return ExceptionDTO{
		InstanceID: string(instanceID),
		EntityID:   entityID,
		CreatedBy:  m.CreatedBy,
		UpdatedBy:  m.UpdatedBy,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func toGenerationReportDTO(r worker.GenerationReport) GenerationReportDTO {
	dto := GenerationReportDTO{
		From:             r.Window.Start,
		To:               r.Window.End,
		RulesProcessed:   r.RulesProcessed,
		InstancesCreated: r.InstancesCreated,
		InstancesExisted: r.InstancesExisted,
		Failures:         []RuleFailureDTO{},
	}
	for _, f := range r.Failures {
		dto.Failures = append(dto.Failures, RuleFailureDTO{RuleID: string(f.RuleID), Error: f.Err.Error()})
	}
	return dto
}

func toCleanupReportDTO(r recurrence.RetireReport) CleanupReportDTO {
	dto := CleanupReportDTO{
		Deleted:           len(r.Deleted),
		DependentsDeleted: r.DependentsDeleted,
		Skipped:           []string{},
	}
	for _, s := range r.Skipped {
		dto.Skipped = append(dto.Skipped, string(s.ID))
	}
	return dto
}

func toWorkerStatusDTO(r *worker.Runner) WorkerStatusDTO {
	last, err := r.LastRun()
	dto := WorkerStatusDTO{
		Name:     r.Name,
		Schedule: r.Schedule.String(),
		NextRun:  r.NextRunTime(),
		Running:  r.Running(),
	}
	if !last.IsZero() {
		dto.LastRun = &last
	}
	if err != nil {
		dto.LastError = err.Error()
	}
	return dto
}
