/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	recurring events. Each scenario creates template events with their rules,
	attaches action items and volunteers, and materializes the current window.

AVAILABLE SCENARIOS:

	food-bank:      Never-ending weekly shift (MO, WE) with tasks and volunteers
	board-meeting:  Monthly on the first Monday, twelve occurrences
	month-end:      Monthly on the last Friday, ending after six months

HOW SCENARIOS WORK:
 1. Build the event JSON the authoring layer would send
 2. Parse and validate it via the factory
 3. Persist event + rule in one transaction
 4. Attach base entities
 5. Materialize the generation window

USAGE VIA API:

	POST /api/scenarios/load
	{"scenarioId": "food-bank"}

NOTE:

	Scenarios only add data; loading one twice creates a second copy.

SEE ALSO:
  - handlers.go: CreateEvent follows the same path
  - factory/rule.go: JSON presets
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/recurrence-engine/factory"
	"github.com/warp/recurrence-engine/overlay"
	"github.com/warp/recurrence-engine/recurrence"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "food-bank",
		Name:        "Food Bank Shifts",
		Description: "Weekly Monday and Wednesday shift that never ends, with tasks, volunteers and a driver group",
	},
	{
		ID:          "board-meeting",
		Name:        "Board Meeting",
		Description: "First Monday of every month, twelve meetings",
	},
	{
		ID:          "month-end",
		Name:        "Month-End Close",
		Description: "Last Friday of the month for six months",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the most recently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario loads a demo scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	var (
		resp CreateEventResponse
		err  error
	)
	switch req.ScenarioID {
	case "food-bank":
		resp, err = h.loadFoodBankScenario(ctx)
	case "board-meeting":
		resp, err = h.loadRecurringScenario(ctx, "Board meeting", "Town hall", 18, 2*time.Hour, factory.MonthlyByDayJSON("1MO", 12))
	case "month-end":
		resp, err = h.loadRecurringScenario(ctx, "Month-end close", "", 15, time.Hour, factory.MonthlyByDayJSON("-1FR", 6))
	default:
		h.writeEngineError(w, "Unknown scenario", recurrence.NotFound("scenario", req.ScenarioID))
		return
	}
	if err != nil {
		h.writeEngineError(w, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusCreated, resp)
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadFoodBankScenario(ctx context.Context) (CreateEventResponse, error) {
	resp, ev, err := h.createScenarioEvent(ctx, "Food bank shift", "Warehouse", 9, 3*time.Hour, factory.WeeklyJSON("MO", "WE"))
	if err != nil {
		return resp, err
	}

	items := []factory.ActionItemJSON{
		{AssigneeID: "user-coordinator", Category: "setup", PreCompletionNotes: "Unlock loading dock", AllottedHours: decimal.NewFromFloat(0.5)},
		{AssigneeID: "user-coordinator", Category: "inventory", PreCompletionNotes: "Count pallets", AllottedHours: decimal.NewFromInt(1)},
	}
	for _, aj := range items {
		if err := h.Store.SaveActionItem(ctx, h.Factory.ActionItemFromJSON(aj, ev, "scenario")); err != nil {
			return resp, err
		}
	}
	for _, user := range []string{"user-ana", "user-ben"} {
		if err := h.Store.SaveVolunteer(ctx, h.Factory.VolunteerFromJSON(factory.VolunteerJSON{UserID: user, HasAccepted: true}, ev, "scenario")); err != nil {
			return resp, err
		}
	}
	group := factory.VolunteerGroupJSON{Name: "Drivers", Description: "Pickup runs", LeaderID: "user-ana", VolunteersRequired: 2}
	if err := h.Store.SaveVolunteerGroup(ctx, h.Factory.VolunteerGroupFromJSON(group, ev, "scenario")); err != nil {
		return resp, err
	}
	return resp, nil
}

func (h *Handler) loadRecurringScenario(ctx context.Context, name, location string, hour int, length time.Duration, recurrenceJSON string) (CreateEventResponse, error) {
	resp, _, err := h.createScenarioEvent(ctx, name, location, hour, length, recurrenceJSON)
	return resp, err
}

// createScenarioEvent anchors the event at hour:00 UTC today and runs it
// through the same path as CreateEvent.
func (h *Handler) createScenarioEvent(ctx context.Context, name, location string, hour int, length time.Duration, recurrenceJSON string) (CreateEventResponse, overlay.Event, error) {
	in, err := h.Factory.ParseRecurrence(recurrenceJSON)
	if err != nil {
		return CreateEventResponse{}, overlay.Event{}, err
	}

	y, m, d := h.now().UTC().Date()
	start := time.Date(y, m, d, hour, 0, 0, 0, time.UTC)
	draft := h.Factory.EventFromJSON(factory.EventJSON{
		OrganizationID: "org-demo",
		Name:           name,
		Location:       location,
		StartAt:        start,
		EndAt:          start.Add(length),
	}, "scenario")
	draft.Event.IsRecurring = true
	draft.Recurrence = &in

	ev, rule, res := h.Factory.BuildRecurringEvent(draft)
	if !res.IsValid {
		return CreateEventResponse{}, ev, fmt.Errorf("scenario %s has an invalid recurrence: %v", name, res.Errors)
	}
	if err := h.Store.CreateRecurringEvent(ctx, ev, rule); err != nil {
		return CreateEventResponse{}, ev, err
	}
	report, err := h.Workers.Generation.MaterializeRule(ctx, rule)
	if err != nil {
		return CreateEventResponse{}, ev, err
	}
	return CreateEventResponse{
		Event:     toEventDTO(ev),
		Rule:      toRuleDTO(h.Factory, rule),
		Instances: report.Created,
	}, ev, nil
}
