package recurrence_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/recurrence-engine/recurrence"
	"github.com/warp/recurrence-engine/recurrence/store"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// =============================================================================
// MATERIALIZATION TESTS
// =============================================================================

func TestMaterialize_CreatesOneInstancePerOccurrence(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	m := recurrence.NewMaterializer(mem).WithClock(fixedClock(anchor))

	r := testRule(recurrence.FreqDaily, anchor)
	r.Count = intPtr(3)
	r.Duration = 90 * time.Minute

	report, err := m.MaterializeWindow(ctx, r, recurrence.Window{})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Created)
	assert.Equal(t, 0, report.Existing)
	assert.Equal(t, anchor.AddDate(0, 0, 2), report.Latest)

	insts, err := mem.ListInstances(ctx, r.ID, anchor, anchor.AddDate(0, 1, 0))
	require.NoError(t, err)
	require.Len(t, insts, 3)
	for i, inst := range insts {
		assert.Equal(t, r.ID, inst.RuleID)
		assert.Equal(t, r.BaseEventID, inst.BaseEventID)
		assert.Equal(t, r.OrganizationID, inst.OrganizationID)
		assert.Equal(t, inst.OccurrenceStart.Add(90*time.Minute), inst.OccurrenceEnd)
		assert.Equal(t, i+1, inst.SequenceNumber)
		assert.Equal(t, anchor, inst.CreatedAt)
	}
}

func TestMaterialize_IdempotentOverOverlappingWindows(t *testing.T) {
	// GIVEN: A never-ending daily rule
	// WHEN: Materializing [day 0, day 10) then [day 5, day 15), then [day 0, day 15) again
	// THEN: Exactly 15 instances exist, each created once

	ctx := context.Background()
	mem := store.NewMemory()
	m := recurrence.NewMaterializer(mem)

	r := testRule(recurrence.FreqDaily, anchor)
	r.Never = true

	first, err := m.MaterializeWindow(ctx, r, recurrence.Window{Start: anchor, End: anchor.AddDate(0, 0, 10)})
	require.NoError(t, err)
	assert.Equal(t, 10, first.Created)

	second, err := m.MaterializeWindow(ctx, r, recurrence.Window{Start: anchor.AddDate(0, 0, 5), End: anchor.AddDate(0, 0, 15)})
	require.NoError(t, err)
	assert.Equal(t, 5, second.Created)
	assert.Equal(t, 5, second.Existing)

	third, err := m.MaterializeWindow(ctx, r, recurrence.Window{Start: anchor, End: anchor.AddDate(0, 0, 15)})
	require.NoError(t, err)
	assert.Equal(t, 0, third.Created)
	assert.Equal(t, 15, third.Existing)

	insts, err := mem.ListInstances(ctx, r.ID, anchor, anchor.AddDate(1, 0, 0))
	require.NoError(t, err)
	assert.Len(t, insts, 15)
}

func TestMaterialize_SameSequenceNumberFromAnyWindow(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	m := recurrence.NewMaterializer(mem)

	r := testRule(recurrence.FreqWeekly, anchor)
	r.Never = true

	_, err := m.MaterializeWindow(ctx, r, recurrence.Window{Start: anchor.AddDate(0, 0, 21), End: anchor.AddDate(0, 0, 28)})
	require.NoError(t, err)

	insts, err := mem.ListInstances(ctx, r.ID, anchor, anchor.AddDate(1, 0, 0))
	require.NoError(t, err)
	require.Len(t, insts, 1)
	assert.Equal(t, 4, insts[0].SequenceNumber)
}

func TestMaterialize_NeverWithoutWindowEndRefused(t *testing.T) {
	m := recurrence.NewMaterializer(store.NewMemory())

	r := testRule(recurrence.FreqDaily, anchor)
	r.Never = true

	_, err := m.MaterializeWindow(context.Background(), r, recurrence.Window{})
	assert.ErrorIs(t, err, recurrence.ErrUnboundedExpansion)
}

func TestMaterialize_ReportsTruncation(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	m := recurrence.NewMaterializer(mem)

	r := testRule(recurrence.FreqDaily, anchor)
	r.Never = true
	e, err := recurrence.NewExpander(r)
	require.NoError(t, err)
	e.MaxOccurrences = 2

	report, err := m.Materialize(ctx, r, e.Sequence(recurrence.Window{End: anchor.AddDate(0, 0, 30)}))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Created)
	assert.True(t, report.Truncated)
}

// failingStore fails every insert.
type failingStore struct {
	recurrence.InstanceStore
}

var errWriteFailed = errors.New("disk full")

func (failingStore) InsertInstanceIfAbsent(context.Context, recurrence.Instance) (bool, error) {
	return false, errWriteFailed
}

func TestMaterialize_WriteFailureIsWrapped(t *testing.T) {
	m := recurrence.NewMaterializer(failingStore{})

	r := testRule(recurrence.FreqDaily, anchor)
	r.Count = intPtr(2)

	report, err := m.MaterializeWindow(context.Background(), r, recurrence.Window{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errWriteFailed)
	assert.Contains(t, err.Error(), string(r.ID))
	assert.Equal(t, 0, report.Created)
}

func TestMaterialize_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mem := store.NewMemory()
	r := testRule(recurrence.FreqDaily, anchor)
	r.Count = intPtr(5)

	_, err := recurrence.NewMaterializer(mem).MaterializeWindow(ctx, r, recurrence.Window{})
	assert.ErrorIs(t, err, context.Canceled)
}
