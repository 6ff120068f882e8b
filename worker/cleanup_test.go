package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/recurrence-engine/overlay"
	"github.com/warp/recurrence-engine/recurrence"
	"github.com/warp/recurrence-engine/recurrence/store"
	"github.com/warp/recurrence-engine/worker"
)

// seedHistory materializes a daily rule from 120 days ago to 30 days ahead and
// attaches a volunteer exclusion to the oldest instance.
func seedHistory(t *testing.T) (*store.Memory, recurrence.Rule, recurrence.Instance) {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()

	start := now.AddDate(0, 0, -120)
	r := saveRule(t, mem, recurrence.RecurrenceInput{Frequency: recurrence.FreqDaily, Never: true}, start)
	_, err := recurrence.NewMaterializer(mem).MaterializeWindow(ctx, r, recurrence.Window{Start: start, End: now.AddDate(0, 0, 30)})
	require.NoError(t, err)

	insts, err := mem.ListInstances(ctx, r.ID, start, now)
	require.NoError(t, err)
	oldest := insts[0]

	vol := overlay.Volunteer{ID: "vol-1", EventID: r.BaseEventID, UserID: "u-1"}
	require.NoError(t, mem.SaveVolunteer(ctx, vol))
	_, err = overlay.NewService(mem, mem, mem).UpsertVolunteerException(ctx, vol.ID, oldest.ID, "alice")
	require.NoError(t, err)

	return mem, r, oldest
}

func TestCleanup_CascadeRetiresExpiredWithDependents(t *testing.T) {
	// GIVEN: 150 daily instances, the oldest 30 ended more than 90 days ago
	// WHEN: Running cleanup with the default cascade policy
	// THEN: Those 30 are gone with their exception; the rest are untouched

	ctx := context.Background()
	mem, r, oldest := seedHistory(t)

	w := worker.NewCleanupWorker(mem, worker.NewFakeClock(now), quietLogger())
	report, err := w.RunOnce(ctx)
	require.NoError(t, err)

	assert.Len(t, report.Deleted, 30)
	assert.Equal(t, 1, report.DependentsDeleted)
	assert.Empty(t, report.Skipped)

	gone, err := mem.GetInstance(ctx, oldest.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	remaining, err := mem.ListInstances(ctx, r.ID, time.Time{}, now.AddDate(1, 0, 0))
	require.NoError(t, err)
	assert.Len(t, remaining, 120)
	for _, inst := range remaining {
		assert.False(t, inst.OccurrenceEnd.Before(now.Add(-w.Retention)))
	}
}

func TestCleanup_RefuseKeepsInstancesWithDependents(t *testing.T) {
	ctx := context.Background()
	mem, _, oldest := seedHistory(t)

	w := worker.NewCleanupWorker(mem, worker.NewFakeClock(now), quietLogger())
	w.Policy = recurrence.RetireRefuse
	report, err := w.RunOnce(ctx)
	require.NoError(t, err)

	assert.Len(t, report.Deleted, 29)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, oldest.ID, report.Skipped[0].ID)

	kept, err := mem.GetInstance(ctx, oldest.ID)
	require.NoError(t, err)
	assert.NotNil(t, kept)
}

func TestCleanup_GenerationDoesNotRecreateRetired(t *testing.T) {
	ctx := context.Background()
	mem, r, _ := seedHistory(t)
	clock := worker.NewFakeClock(now)

	_, err := worker.NewCleanupWorker(mem, clock, quietLogger()).RunOnce(ctx)
	require.NoError(t, err)

	gen := worker.NewGenerationWorker(mem, mem, clock, quietLogger())
	gen.Horizon = 30 * 24 * time.Hour
	report, err := gen.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.InstancesCreated)

	remaining, err := mem.ListInstances(ctx, r.ID, time.Time{}, now.AddDate(1, 0, 0))
	require.NoError(t, err)
	assert.Len(t, remaining, 120)
}
