/*
handlers.go - HTTP API handlers for the recurrence engine

PURPOSE:
  Exposes event authoring, rule validation, instance listing and the
  exception overlay via REST API. Handles HTTP request/response, JSON
  serialization, and delegates to the engine packages.

ENDPOINTS:
  Events:
    POST   /api/events                               Create event (optionally recurring)
    GET    /api/events/{id}                          Event and its rule
    POST   /api/events/{id}/action-items             Attach action item
    POST   /api/events/{id}/volunteers               Attach volunteer
    POST   /api/events/{id}/volunteer-groups         Attach volunteer group

  Recurrence:
    POST   /api/recurrence/validate                  Validate a recurrence definition
    GET    /api/rules/{id}                           Rule details
    GET    /api/rules/{id}/instances?from=&to=       Effective instances
    GET    /api/rules/{id}/calendar.ics?from=&to=    Effective instances as iCalendar

  Instances (exception overlay):
    GET    /api/instances/{id}                       Effective instance
    PUT    /api/instances/{id}/exception             Override event details
    GET    /api/instances/{id}/action-items          Effective action items
    PUT    /api/instances/{id}/action-items/{itemID}/exception
    GET    /api/instances/{id}/volunteers            Effective volunteers
    PUT    /api/instances/{id}/volunteers/{volunteerID}/exception
    GET    /api/instances/{id}/volunteer-groups      Effective volunteer groups
    PUT    /api/instances/{id}/volunteer-groups/{groupID}/exception

  Admin:
    GET    /api/admin/workers                        Worker schedules and last runs
    POST   /api/admin/generate                       Run a generation pass now
    POST   /api/admin/cleanup                        Run a cleanup sweep now

ACTOR:
  Exception writes require the X-Actor-ID header; it becomes createdBy on
  first write and updatedBy on every write.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors ({isValid, errors}) or malformed input
  - 404: Referenced rule, instance or entity not found
  - 409: Worker pass already running
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/warp/recurrence-engine/calendar"
	"github.com/warp/recurrence-engine/factory"
	"github.com/warp/recurrence-engine/overlay"
	"github.com/warp/recurrence-engine/recurrence"
	"github.com/warp/recurrence-engine/worker"
)

// ActorHeader carries the identity recorded on exception writes.
const ActorHeader = "X-Actor-ID"

// defaultListSpan is the instance listing range when "to" is omitted.
const defaultListSpan = 31 * 24 * time.Hour

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is every persistence operation the API needs.
type Store interface {
	recurrence.RuleStore
	recurrence.InstanceStore
	overlay.Store

	GetRuleByEvent(ctx context.Context, eventID recurrence.EventID) (*recurrence.Rule, error)
	SaveEvent(ctx context.Context, ev overlay.Event) error
	CreateRecurringEvent(ctx context.Context, ev overlay.Event, r recurrence.Rule) error
	SaveActionItem(ctx context.Context, a overlay.ActionItem) error
	SaveVolunteer(ctx context.Context, v overlay.Volunteer) error
	SaveVolunteerGroup(ctx context.Context, g overlay.VolunteerGroup) error
}

// Workers are the background jobs the admin endpoints trigger. Runners may
// be nil when scheduling is disabled; the workers themselves are required.
type Workers struct {
	Generation       *worker.GenerationWorker
	GenerationRunner *worker.Runner
	Cleanup          *worker.CleanupWorker
	CleanupRunner    *worker.Runner
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   Store
	Factory *factory.RuleFactory
	Overlay *overlay.Service
	Workers Workers

	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time

	currentScenario string
}

// NewHandler creates a handler. Missing workers are built with defaults on
// the real clock.
func NewHandler(store Store, workers Workers, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if workers.Generation == nil {
		workers.Generation = worker.NewGenerationWorker(store, store, worker.RealClock{}, logger)
	}
	if workers.Cleanup == nil {
		workers.Cleanup = worker.NewCleanupWorker(store, worker.RealClock{}, logger)
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Handler{
		Store:    store,
		Factory:  factory.NewRuleFactory(),
		Overlay:  overlay.NewService(store, store, store),
		Workers:  workers,
		validate: v,
		logger:   logger.With("component", "api"),
		now:      time.Now,
	}
}

// WithClock overrides the clock used for audit timestamps and default ranges.
func (h *Handler) WithClock(now func() time.Time) *Handler {
	h.now = now
	h.Factory.WithClock(now)
	h.Overlay.WithClock(now)
	return h
}

// =============================================================================
// EVENT HANDLERS
// =============================================================================

// CreateEvent creates a template event. A recurring event is validated,
// persisted with its rule in one transaction and materialized for the
// current window.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req factory.EventJSON
	if !h.decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	draft := h.Factory.EventFromJSON(req, r.Header.Get(ActorHeader))

	if draft.Recurrence == nil {
		if err := h.Store.SaveEvent(ctx, draft.Event); err != nil {
			h.writeEngineError(w, "Failed to create event", err)
			return
		}
		writeJSON(w, http.StatusCreated, CreateEventResponse{Event: toEventDTO(draft.Event)})
		return
	}

	ev, rule, res := h.Factory.BuildRecurringEvent(draft)
	if !res.IsValid {
		writeJSON(w, http.StatusBadRequest, res)
		return
	}
	if err := h.Store.CreateRecurringEvent(ctx, ev, rule); err != nil {
		h.writeEngineError(w, "Failed to create recurring event", err)
		return
	}

	// The event exists from here on. A failed materialization is retried by
	// the next generation pass.
	report, err := h.Workers.Generation.MaterializeRule(ctx, rule)
	if err != nil {
		h.logger.Warn("initial materialization failed", "rule_id", rule.ID, "error", err)
	}
	if stored, err := h.Store.GetRule(ctx, rule.ID); err == nil && stored != nil {
		rule = *stored
	}

	writeJSON(w, http.StatusCreated, CreateEventResponse{
		Event:     toEventDTO(ev),
		Rule:      toRuleDTO(h.Factory, rule),
		Instances: report.Created,
	})
}

// GetEvent returns an event and, when recurring, its rule.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.loadEvent(w, r)
	if !ok {
		return
	}
	resp := EventDetailDTO{Event: toEventDTO(*ev)}
	if ev.IsRecurring {
		rule, err := h.Store.GetRuleByEvent(r.Context(), ev.ID)
		if err != nil {
			h.writeEngineError(w, "Failed to get rule", err)
			return
		}
		if rule != nil {
			resp.Rule = toRuleDTO(h.Factory, *rule)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateActionItem attaches an action item to an event.
func (h *Handler) CreateActionItem(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.loadEvent(w, r)
	if !ok {
		return
	}
	var req factory.ActionItemJSON
	if !h.decode(w, r, &req) {
		return
	}
	item := h.Factory.ActionItemFromJSON(req, *ev, r.Header.Get(ActorHeader))
	if err := h.Store.SaveActionItem(r.Context(), item); err != nil {
		h.writeEngineError(w, "Failed to create action item", err)
		return
	}
	writeJSON(w, http.StatusCreated, toActionItemViewDTO(overlay.ActionItemView{ActionItem: item}))
}

// CreateVolunteer attaches a volunteer to an event.
func (h *Handler) CreateVolunteer(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.loadEvent(w, r)
	if !ok {
		return
	}
	var req factory.VolunteerJSON
	if !h.decode(w, r, &req) {
		return
	}
	v := h.Factory.VolunteerFromJSON(req, *ev, r.Header.Get(ActorHeader))
	if err := h.Store.SaveVolunteer(r.Context(), v); err != nil {
		h.writeEngineError(w, "Failed to create volunteer", err)
		return
	}
	writeJSON(w, http.StatusCreated, toVolunteerViewDTO(overlay.VolunteerView{Volunteer: v}))
}

// CreateVolunteerGroup attaches a volunteer group to an event.
func (h *Handler) CreateVolunteerGroup(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.loadEvent(w, r)
	if !ok {
		return
	}
	var req factory.VolunteerGroupJSON
	if !h.decode(w, r, &req) {
		return
	}
	g := h.Factory.VolunteerGroupFromJSON(req, *ev, r.Header.Get(ActorHeader))
	if err := h.Store.SaveVolunteerGroup(r.Context(), g); err != nil {
		h.writeEngineError(w, "Failed to create volunteer group", err)
		return
	}
	writeJSON(w, http.StatusCreated, toVolunteerGroupViewDTO(overlay.VolunteerGroupView{VolunteerGroup: g}))
}

// =============================================================================
// RECURRENCE HANDLERS
// =============================================================================

// ValidateRecurrence returns the validation result of a recurrence definition.
// The result is data: an invalid definition still answers 200.
func (h *Handler) ValidateRecurrence(w http.ResponseWriter, r *http.Request) {
	var req ValidateRecurrenceRequest
	if !h.decode(w, r, &req) {
		return
	}
	in := h.Factory.RecurrenceFromJSON(req.Recurrence)
	writeJSON(w, http.StatusOK, recurrence.ValidateRecurrenceInput(in, req.StartAt.UTC()))
}

// GetRule returns a rule.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	id := recurrence.RuleID(chi.URLParam(r, "id"))
	rule, err := h.Store.GetRule(r.Context(), id)
	if err != nil {
		h.writeEngineError(w, "Failed to get rule", err)
		return
	}
	if rule == nil {
		h.writeEngineError(w, "Rule not found", recurrence.NotFound("rule", string(id)))
		return
	}
	writeJSON(w, http.StatusOK, toRuleDTO(h.Factory, *rule))
}

// ListRuleInstances returns the effective instances of a rule in [from, to).
func (h *Handler) ListRuleInstances(w http.ResponseWriter, r *http.Request) {
	views, ok := h.ruleViews(w, r)
	if !ok {
		return
	}
	dtos := make([]EventInstanceDTO, len(views))
	for i, v := range views {
		dtos[i] = toEventInstanceDTO(v)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RuleCalendar returns the effective instances of a rule as iCalendar.
func (h *Handler) RuleCalendar(w http.ResponseWriter, r *http.Request) {
	views, ok := h.ruleViews(w, r)
	if !ok {
		return
	}
	name := ""
	if len(views) > 0 {
		name = views[0].Name
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := (calendar.Feed{Name: name, Stamp: h.now()}).Write(w, views); err != nil {
		h.logger.Warn("failed to write calendar", "error", err)
	}
}

func (h *Handler) ruleViews(w http.ResponseWriter, r *http.Request) ([]overlay.EventInstanceView, bool) {
	from, to, err := h.parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid range", err)
		return nil, false
	}
	id := recurrence.RuleID(chi.URLParam(r, "id"))
	views, err := h.Overlay.EffectiveEventInstances(r.Context(), id, from, to)
	if err != nil {
		h.writeEngineError(w, "Failed to list instances", err)
		return nil, false
	}
	return views, true
}

// =============================================================================
// INSTANCE HANDLERS
// =============================================================================

// GetInstance returns the effective view of one instance.
func (h *Handler) GetInstance(w http.ResponseWriter, r *http.Request) {
	view, err := h.Overlay.EffectiveEventInstance(r.Context(), instanceID(r))
	if err != nil {
		h.writeEngineError(w, "Failed to get instance", err)
		return
	}
	writeJSON(w, http.StatusOK, toEventInstanceDTO(view))
}

// UpsertEventException overrides event details for one instance.
func (h *Handler) UpsertEventException(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req EventExceptionRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.StartAt != nil && req.EndAt != nil && !req.EndAt.After(*req.StartAt) {
		writeJSON(w, http.StatusBadRequest, recurrence.ValidationResult{Errors: []string{"endAt must be after startAt"}})
		return
	}

	ctx := r.Context()
	exc, err := h.Overlay.UpsertEventException(ctx, overlay.EventExceptionInput{
		InstanceID:  instanceID(r),
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		StartAt:     utcPtr(req.StartAt),
		EndAt:       utcPtr(req.EndAt),
	}, actor)
	if err != nil {
		h.writeEngineError(w, "Failed to save exception", err)
		return
	}
	view, err := h.Overlay.EffectiveEventInstance(ctx, exc.InstanceID)
	if err != nil {
		h.writeEngineError(w, "Failed to get instance", err)
		return
	}
	writeJSON(w, http.StatusOK, toEventInstanceDTO(view))
}

// ListInstanceActionItems returns the effective action items of an instance.
func (h *Handler) ListInstanceActionItems(w http.ResponseWriter, r *http.Request) {
	views, err := h.Overlay.EffectiveActionItemsForInstance(r.Context(), instanceID(r))
	if err != nil {
		h.writeEngineError(w, "Failed to list action items", err)
		return
	}
	dtos := make([]ActionItemViewDTO, len(views))
	for i, v := range views {
		dtos[i] = toActionItemViewDTO(v)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UpsertActionItemException records completion state of an action item for
// one instance.
func (h *Handler) UpsertActionItemException(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req ActionItemExceptionRequest
	if !h.decode(w, r, &req) {
		return
	}
	exc, err := h.Overlay.UpsertActionItemException(r.Context(), overlay.ActionItemExceptionInput{
		ActionItemID:        overlay.ActionItemID(chi.URLParam(r, "itemID")),
		InstanceID:          instanceID(r),
		Completed:           req.Completed,
		PostCompletionNotes: req.PostCompletionNotes,
	}, actor)
	if err != nil {
		h.writeEngineError(w, "Failed to save exception", err)
		return
	}
	writeJSON(w, http.StatusOK, toExceptionDTO(exc.InstanceID, string(exc.ActionItemID), exc.ExceptionMeta))
}

// ListInstanceVolunteers returns the volunteers of an instance.
func (h *Handler) ListInstanceVolunteers(w http.ResponseWriter, r *http.Request) {
	views, err := h.Overlay.EffectiveVolunteersForInstance(r.Context(), instanceID(r))
	if err != nil {
		h.writeEngineError(w, "Failed to list volunteers", err)
		return
	}
	dtos := make([]VolunteerViewDTO, len(views))
	for i, v := range views {
		dtos[i] = toVolunteerViewDTO(v)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UpsertVolunteerException excludes a volunteer from one instance.
func (h *Handler) UpsertVolunteerException(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	exc, err := h.Overlay.UpsertVolunteerException(r.Context(),
		overlay.VolunteerID(chi.URLParam(r, "volunteerID")), instanceID(r), actor)
	if err != nil {
		h.writeEngineError(w, "Failed to save exception", err)
		return
	}
	writeJSON(w, http.StatusOK, toExceptionDTO(exc.InstanceID, string(exc.VolunteerID), exc.ExceptionMeta))
}

// ListInstanceVolunteerGroups returns the volunteer groups of an instance.
func (h *Handler) ListInstanceVolunteerGroups(w http.ResponseWriter, r *http.Request) {
	views, err := h.Overlay.EffectiveVolunteerGroupsForInstance(r.Context(), instanceID(r))
	if err != nil {
		h.writeEngineError(w, "Failed to list volunteer groups", err)
		return
	}
	dtos := make([]VolunteerGroupViewDTO, len(views))
	for i, v := range views {
		dtos[i] = toVolunteerGroupViewDTO(v)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UpsertVolunteerGroupException excludes a volunteer group from one instance.
func (h *Handler) UpsertVolunteerGroupException(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	exc, err := h.Overlay.UpsertVolunteerGroupException(r.Context(),
		overlay.VolunteerGroupID(chi.URLParam(r, "groupID")), instanceID(r), actor)
	if err != nil {
		h.writeEngineError(w, "Failed to save exception", err)
		return
	}
	writeJSON(w, http.StatusOK, toExceptionDTO(exc.InstanceID, string(exc.VolunteerGroupID), exc.ExceptionMeta))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// ListWorkers returns the status of the scheduled workers.
func (h *Handler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	dtos := []WorkerStatusDTO{}
	for _, runner := range []*worker.Runner{h.Workers.GenerationRunner, h.Workers.CleanupRunner} {
		if runner != nil {
			dtos = append(dtos, toWorkerStatusDTO(runner))
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// TriggerGeneration runs a generation pass immediately.
func (h *Handler) TriggerGeneration(w http.ResponseWriter, r *http.Request) {
	if err := h.runNow(r.Context(), h.Workers.GenerationRunner, h.Workers.Generation.Run); err != nil {
		h.writeEngineError(w, "Generation pass failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toGenerationReportDTO(h.Workers.Generation.LastReport()))
}

// TriggerCleanup runs a cleanup sweep immediately.
func (h *Handler) TriggerCleanup(w http.ResponseWriter, r *http.Request) {
	if err := h.runNow(r.Context(), h.Workers.CleanupRunner, h.Workers.Cleanup.Run); err != nil {
		h.writeEngineError(w, "Cleanup sweep failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toCleanupReportDTO(h.Workers.Cleanup.LastReport()))
}

// runNow goes through the runner when one is scheduled so a manual pass
// never overlaps a scheduled one.
func (h *Handler) runNow(ctx context.Context, runner *worker.Runner, job worker.JobFunc) error {
	if runner != nil {
		return runner.RunNow(ctx)
	}
	return job(ctx)
}

// Health reports whether the store answers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Store.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Store unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

// decode reads a JSON body into dst and runs struct validation. On failure
// the 400 response is already written.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return false
		}
		res := recurrence.ValidationResult{}
		for _, fe := range verrs {
			res.Errors = append(res.Errors, fieldMessage(fe))
		}
		writeJSON(w, http.StatusBadRequest, res)
		return false
	}
	return true
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gtfield":
		return fmt.Sprintf("%s must be after %s", fe.Field(), lowerFirst(fe.Param()))
	case "max", "min":
		return fmt.Sprintf("%s must have %s %s", fe.Field(), fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func (h *Handler) loadEvent(w http.ResponseWriter, r *http.Request) (*overlay.Event, bool) {
	id := recurrence.EventID(chi.URLParam(r, "id"))
	ev, err := h.Store.GetEvent(r.Context(), id)
	if err != nil {
		h.writeEngineError(w, "Failed to get event", err)
		return nil, false
	}
	if ev == nil {
		h.writeEngineError(w, "Event not found", recurrence.NotFound("event", string(id)))
		return nil, false
	}
	return ev, true
}

// parseRange reads optional RFC 3339 "from" and "to" query parameters.
// from defaults to now and to to from plus defaultListSpan.
func (h *Handler) parseRange(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	from := h.now().UTC()
	if s := q.Get("from"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("from: %w", err)
		}
		from = t.UTC()
	}
	to := from.Add(defaultListSpan)
	if s := q.Get("to"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("to: %w", err)
		}
		to = t.UTC()
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, recurrence.ErrInvalidWindow
	}
	return from, to, nil
}

func requireActor(w http.ResponseWriter, r *http.Request) (string, bool) {
	actor := strings.TrimSpace(r.Header.Get(ActorHeader))
	if actor == "" {
		writeError(w, http.StatusBadRequest, ActorHeader+" header is required", nil)
		return "", false
	}
	return actor, true
}

func instanceID(r *http.Request) recurrence.InstanceID {
	return recurrence.InstanceID(chi.URLParam(r, "id"))
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// writeEngineError maps engine errors to HTTP status codes.
func (h *Handler) writeEngineError(w http.ResponseWriter, message string, err error) {
	switch {
	case recurrence.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case recurrence.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, worker.ErrAlreadyRunning):
		writeError(w, http.StatusConflict, message, err)
	default:
		h.logger.Error(message, "error", err)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
