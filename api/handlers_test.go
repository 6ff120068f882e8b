/*
handlers_test.go - HTTP tests for API handlers

Tests for:
- Event creation (recurring, one-off, invalid)
- Recurrence validation endpoint
- Instance listing and the ICS feed
- Exception overlay writes and effective reads
- Admin triggers, health and metrics
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/recurrence-engine/recurrence"
	"github.com/warp/recurrence-engine/store/sqlite"
	"github.com/warp/recurrence-engine/worker"
)

// testNow is a Monday.
var testNow = time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	handler *Handler
	router  *chi.Mux
	clock   *worker.FakeClock
	store   *sqlite.Store
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clock := worker.NewFakeClock(testNow)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gen := worker.NewGenerationWorker(store, store, clock, logger)
	clean := worker.NewCleanupWorker(store, clock, logger)

	h := NewHandler(store, Workers{
		Generation:       gen,
		GenerationRunner: worker.NewRunner("generation", worker.MustParseSchedule("0 * * * *"), gen.Run, clock, logger),
		Cleanup:          clean,
	}, logger).WithClock(clock.Now)

	return &testEnv{
		handler: h,
		router:  NewRouter(h, RouterOptions{Quiet: true}),
		clock:   clock,
		store:   store,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, actor string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = strings.NewReader(b)
	default:
		buf, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set(ActorHeader, actor)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

const dailyFiveJSON = `{
	"organizationId": "org-1",
	"name": "Morning shift",
	"location": "Warehouse",
	"startAt": "2025-06-02T09:00:00Z",
	"endAt": "2025-06-02T12:00:00Z",
	"recurrence": {"frequency": "DAILY", "count": 5}
}`

// createDailyFive creates a five-occurrence daily event and returns the
// response plus its instances in order.
func (e *testEnv) createDailyFive(t *testing.T) (CreateEventResponse, []EventInstanceDTO) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/events", dailyFiveJSON, "user-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[CreateEventResponse](t, rec)
	require.NotNil(t, created.Rule)

	rec = e.do(t, http.MethodGet, "/api/rules/"+created.Rule.ID+"/instances?from=2025-06-01T00:00:00Z&to=2025-07-01T00:00:00Z", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return created, decodeBody[[]EventInstanceDTO](t, rec)
}

// =============================================================================
// EVENT TESTS
// =============================================================================

func TestCreateEvent_Recurring(t *testing.T) {
	// GIVEN: A daily recurrence with count 5
	// WHEN: Creating the event
	// THEN: Rule and five instances exist, numbered 1..5

	env := setupTestEnv(t)
	created, instances := env.createDailyFive(t)

	assert.Equal(t, 5, created.Instances)
	assert.True(t, created.Event.IsRecurring)
	assert.Equal(t, "user-1", created.Event.CreatedBy)
	assert.Equal(t, "DAILY", created.Rule.Recurrence.Frequency)
	require.NotNil(t, created.Rule.Recurrence.Count)
	assert.Equal(t, 5, *created.Rule.Recurrence.Count)
	assert.Equal(t, int64(3*3600), created.Rule.DurationSeconds)
	require.NotNil(t, created.Rule.LatestInstanceDate)
	assert.True(t, created.Rule.LatestInstanceDate.Equal(testNow.AddDate(0, 0, 4)))

	require.Len(t, instances, 5)
	for i, inst := range instances {
		assert.Equal(t, i+1, inst.SequenceNumber)
		assert.True(t, inst.StartAt.Equal(testNow.AddDate(0, 0, i)))
		assert.True(t, inst.EndAt.Equal(testNow.AddDate(0, 0, i).Add(3*time.Hour)))
		assert.Equal(t, "Morning shift", inst.Name)
		assert.False(t, inst.Overridden)
	}
}

func TestCreateEvent_OneOff(t *testing.T) {
	env := setupTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/events", `{
		"organizationId": "org-1",
		"name": "Gala",
		"startAt": "2025-06-10T18:00:00Z",
		"endAt": "2025-06-10T22:00:00Z"
	}`, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decodeBody[CreateEventResponse](t, rec)
	assert.Nil(t, created.Rule)
	assert.False(t, created.Event.IsRecurring)

	rec = env.do(t, http.MethodGet, "/api/events/"+created.Event.ID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decodeBody[EventDetailDTO](t, rec)
	assert.Equal(t, "Gala", detail.Event.Name)
	assert.Nil(t, detail.Rule)
}

func TestCreateEvent_InvalidRecurrence(t *testing.T) {
	// GIVEN: A recurrence with two termination policies and a bad month
	// WHEN: Creating the event
	// THEN: 400 with every violation, nothing persisted

	env := setupTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/events", `{
		"organizationId": "org-1",
		"name": "Broken",
		"startAt": "2025-06-02T09:00:00Z",
		"endAt": "2025-06-02T10:00:00Z",
		"recurrence": {"frequency": "MONTHLY", "count": 3, "never": true, "byMonth": [13]}
	}`, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	res := decodeBody[recurrence.ValidationResult](t, rec)
	assert.False(t, res.IsValid)
	assert.Len(t, res.Errors, 2)

	rules, err := env.store.ListActiveRules(context.Background(), testNow.AddDate(-1, 0, 0))
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestCreateEvent_MissingFields(t *testing.T) {
	env := setupTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/events", `{
		"startAt": "2025-06-02T09:00:00Z",
		"endAt": "2025-06-02T08:00:00Z"
	}`, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	res := decodeBody[recurrence.ValidationResult](t, rec)
	assert.Contains(t, res.Errors, "organizationId is required")
	assert.Contains(t, res.Errors, "name is required")
	assert.Contains(t, res.Errors, "endAt must be after startAt")
}

func TestCreateEvent_MalformedJSON(t *testing.T) {
	env := setupTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/events", `{"name":`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", decodeBody[ErrorResponse](t, rec).Error)
}

func TestGetEvent_NotFound(t *testing.T) {
	env := setupTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/events/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// RECURRENCE TESTS
// =============================================================================

func TestValidateRecurrence(t *testing.T) {
	env := setupTestEnv(t)

	tests := []struct {
		name      string
		body      string
		wantValid bool
	}{
		{
			name:      "weekly never-ending",
			body:      `{"startAt":"2025-06-02T09:00:00Z","recurrence":{"frequency":"WEEKLY","byDay":["MO","WE"],"never":true}}`,
			wantValid: true,
		},
		{
			name:      "yearly never-ending",
			body:      `{"startAt":"2025-06-02T09:00:00Z","recurrence":{"frequency":"YEARLY","never":true}}`,
			wantValid: false,
		},
		{
			name:      "end date before start",
			body:      `{"startAt":"2025-06-02T09:00:00Z","recurrence":{"frequency":"DAILY","endDate":"2025-06-01T00:00:00Z"}}`,
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/recurrence/validate", tt.body, "")
			require.Equal(t, http.StatusOK, rec.Code)
			res := decodeBody[recurrence.ValidationResult](t, rec)
			assert.Equal(t, tt.wantValid, res.IsValid, res.Errors)
		})
	}
}

func TestListRuleInstances_InvalidRange(t *testing.T) {
	env := setupTestEnv(t)
	created, _ := env.createDailyFive(t)

	rec := env.do(t, http.MethodGet, "/api/rules/"+created.Rule.ID+"/instances?from=2025-07-01T00:00:00Z&to=2025-06-01T00:00:00Z", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/rules/"+created.Rule.ID+"/instances?from=yesterday", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRuleInstances_DefaultRange(t *testing.T) {
	// GIVEN: Clock at the first occurrence
	// WHEN: Listing without from/to
	// THEN: The range starts now, so all five instances are returned

	env := setupTestEnv(t)
	created, _ := env.createDailyFive(t)

	rec := env.do(t, http.MethodGet, "/api/rules/"+created.Rule.ID+"/instances", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]EventInstanceDTO](t, rec), 5)
}

func TestGetRule_NotFound(t *testing.T) {
	env := setupTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/rules/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRuleCalendar(t *testing.T) {
	env := setupTestEnv(t)
	created, _ := env.createDailyFive(t)

	rec := env.do(t, http.MethodGet, "/api/rules/"+created.Rule.ID+"/calendar.ics?from=2025-06-01T00:00:00Z&to=2025-07-01T00:00:00Z", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/calendar; charset=utf-8", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Equal(t, 5, strings.Count(body, "BEGIN:VEVENT"))
	assert.Contains(t, body, "SUMMARY:Morning shift")
	assert.NotContains(t, body, "RRULE")
}

// =============================================================================
// INSTANCE / EXCEPTION TESTS
// =============================================================================

func TestGetInstance_NotFound(t *testing.T) {
	env := setupTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/instances/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpsertEventException_RequiresActor(t *testing.T) {
	env := setupTestEnv(t)
	_, instances := env.createDailyFive(t)

	rec := env.do(t, http.MethodPut, "/api/instances/"+instances[0].InstanceID+"/exception", `{"name":"Moved"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ActorHeader+" header is required", decodeBody[ErrorResponse](t, rec).Error)
}

func TestUpsertEventException_OverridesOneInstance(t *testing.T) {
	// GIVEN: Five instances
	// WHEN: Renaming and shortening the second one
	// THEN: Only the second instance reflects the override

	env := setupTestEnv(t)
	_, instances := env.createDailyFive(t)
	target := instances[1]

	rec := env.do(t, http.MethodPut, "/api/instances/"+target.InstanceID+"/exception", map[string]any{
		"name":    "Short shift",
		"startAt": target.StartAt,
		"endAt":   target.StartAt.Add(time.Hour),
	}, "user-2")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	view := decodeBody[EventInstanceDTO](t, rec)
	assert.Equal(t, "Short shift", view.Name)
	assert.True(t, view.Overridden)
	assert.True(t, view.EndAt.Equal(target.StartAt.Add(time.Hour)))
	assert.Equal(t, "Warehouse", view.Location)

	rec = env.do(t, http.MethodGet, "/api/instances/"+instances[2].InstanceID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	other := decodeBody[EventInstanceDTO](t, rec)
	assert.Equal(t, "Morning shift", other.Name)
	assert.False(t, other.Overridden)
}

func TestUpsertEventException_EndBeforeStart(t *testing.T) {
	env := setupTestEnv(t)
	_, instances := env.createDailyFive(t)

	rec := env.do(t, http.MethodPut, "/api/instances/"+instances[0].InstanceID+"/exception", map[string]any{
		"startAt": testNow,
		"endAt":   testNow.Add(-time.Hour),
	}, "user-2")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActionItemException_SingleInstance(t *testing.T) {
	// GIVEN: An event with one action item and five instances
	// WHEN: Completing the item on the first instance
	// THEN: The first instance shows it completed, the second does not

	env := setupTestEnv(t)
	created, instances := env.createDailyFive(t)

	rec := env.do(t, http.MethodPost, "/api/events/"+created.Event.ID+"/action-items", `{
		"assigneeId": "user-9",
		"category": "setup",
		"preCompletionNotes": "Unlock the dock",
		"allottedHours": "1.5"
	}`, "user-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	item := decodeBody[ActionItemViewDTO](t, rec)

	rec = env.do(t, http.MethodPut, "/api/instances/"+instances[0].InstanceID+"/action-items/"+item.ID+"/exception",
		`{"completed": true, "postCompletionNotes": "Done early"}`, "user-9")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	exc := decodeBody[ExceptionDTO](t, rec)
	assert.Equal(t, "user-9", exc.CreatedBy)
	assert.Equal(t, "user-9", exc.UpdatedBy)

	rec = env.do(t, http.MethodGet, "/api/instances/"+instances[0].InstanceID+"/action-items", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	first := decodeBody[[]ActionItemViewDTO](t, rec)
	require.Len(t, first, 1)
	assert.True(t, first[0].Completed)
	assert.True(t, first[0].Overridden)
	assert.Equal(t, "Done early", first[0].PostCompletionNotes)
	assert.Equal(t, "Unlock the dock", first[0].PreCompletionNotes)
	assert.Equal(t, "1.5", first[0].AllottedHours.String())

	rec = env.do(t, http.MethodGet, "/api/instances/"+instances[1].InstanceID+"/action-items", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	second := decodeBody[[]ActionItemViewDTO](t, rec)
	require.Len(t, second, 1)
	assert.False(t, second[0].Completed)
	assert.False(t, second[0].Overridden)
}

func TestActionItemException_UnknownItem(t *testing.T) {
	env := setupTestEnv(t)
	_, instances := env.createDailyFive(t)

	rec := env.do(t, http.MethodPut, "/api/instances/"+instances[0].InstanceID+"/action-items/missing/exception",
		`{"completed": true}`, "user-9")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVolunteerExceptions(t *testing.T) {
	// GIVEN: A volunteer and a volunteer group on the event
	// WHEN: Excluding both from the third instance
	// THEN: Only the third instance reports them excluded

	env := setupTestEnv(t)
	created, instances := env.createDailyFive(t)

	rec := env.do(t, http.MethodPost, "/api/events/"+created.Event.ID+"/volunteers", `{"userId":"user-5","hasAccepted":true}`, "user-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	vol := decodeBody[VolunteerViewDTO](t, rec)

	rec = env.do(t, http.MethodPost, "/api/events/"+created.Event.ID+"/volunteer-groups", `{"name":"Drivers","volunteersRequired":2}`, "user-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	group := decodeBody[VolunteerGroupViewDTO](t, rec)

	third := instances[2].InstanceID
	rec = env.do(t, http.MethodPut, "/api/instances/"+third+"/volunteers/"+vol.ID+"/exception", nil, "user-5")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = env.do(t, http.MethodPut, "/api/instances/"+third+"/volunteer-groups/"+group.ID+"/exception", nil, "user-5")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/instances/"+third+"/volunteers", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	vols := decodeBody[[]VolunteerViewDTO](t, rec)
	require.Len(t, vols, 1)
	assert.True(t, vols[0].Excluded)

	rec = env.do(t, http.MethodGet, "/api/instances/"+third+"/volunteer-groups", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	groups := decodeBody[[]VolunteerGroupViewDTO](t, rec)
	require.Len(t, groups, 1)
	assert.True(t, groups[0].Excluded)

	rec = env.do(t, http.MethodGet, "/api/instances/"+instances[3].InstanceID+"/volunteers", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	others := decodeBody[[]VolunteerViewDTO](t, rec)
	require.Len(t, others, 1)
	assert.False(t, others[0].Excluded)
}

// =============================================================================
// ADMIN TESTS
// =============================================================================

func TestTriggerGeneration_Idempotent(t *testing.T) {
	// GIVEN: A rule already materialized on creation
	// WHEN: Triggering a generation pass
	// THEN: Nothing new is created

	env := setupTestEnv(t)
	env.createDailyFive(t)

	rec := env.do(t, http.MethodPost, "/api/admin/generate", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	report := decodeBody[GenerationReportDTO](t, rec)
	assert.Equal(t, 1, report.RulesProcessed)
	assert.Equal(t, 0, report.InstancesCreated)
	assert.Equal(t, 5, report.InstancesExisted)
	assert.Empty(t, report.Failures)
	assert.True(t, report.To.Equal(testNow.Add(worker.DefaultHorizon)))
}

func TestTriggerCleanup_RetiresExpired(t *testing.T) {
	// GIVEN: Five instances, one with an exception
	// WHEN: Moving past retention and triggering cleanup
	// THEN: All five are retired along with the exception

	env := setupTestEnv(t)
	_, instances := env.createDailyFive(t)
	rec := env.do(t, http.MethodPut, "/api/instances/"+instances[0].InstanceID+"/exception", `{"name":"Moved"}`, "user-2")
	require.Equal(t, http.StatusOK, rec.Code)

	env.clock.Advance(worker.DefaultRetention + 30*24*time.Hour)

	rec = env.do(t, http.MethodPost, "/api/admin/cleanup", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decodeBody[CleanupReportDTO](t, rec)
	assert.Equal(t, 5, report.Deleted)
	assert.Equal(t, 1, report.DependentsDeleted)
	assert.Empty(t, report.Skipped)

	rec = env.do(t, http.MethodGet, "/api/instances/"+instances[0].InstanceID, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListWorkers(t *testing.T) {
	env := setupTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/admin/workers", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	workers := decodeBody[[]WorkerStatusDTO](t, rec)
	require.Len(t, workers, 1)
	assert.Equal(t, "generation", workers[0].Name)
	assert.Equal(t, "0 * * * *", workers[0].Schedule)
	assert.Nil(t, workers[0].LastRun)

	env.do(t, http.MethodPost, "/api/admin/generate", nil, "")

	rec = env.do(t, http.MethodGet, "/api/admin/workers", nil, "")
	workers = decodeBody[[]WorkerStatusDTO](t, rec)
	require.Len(t, workers, 1)
	require.NotNil(t, workers[0].LastRun)
	assert.True(t, workers[0].LastRun.Equal(testNow))
	assert.Empty(t, workers[0].LastError)
	assert.False(t, workers[0].Running)
}

func TestHealthAndMetrics(t *testing.T) {
	env := setupTestEnv(t)
	env.createDailyFive(t)

	rec := env.do(t, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody[map[string]string](t, rec)["status"])

	rec = env.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "recurrence_generation_instances_created_total")
}
