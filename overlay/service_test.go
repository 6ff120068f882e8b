package overlay_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/recurrence-engine/overlay"
	"github.com/warp/recurrence-engine/recurrence"
	"github.com/warp/recurrence-engine/recurrence/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fixture struct {
	mem     *store.Memory
	svc     *overlay.Service
	event   overlay.Event
	rule    recurrence.Rule
	inst    []recurrence.Instance
	item    overlay.ActionItem
	vol     overlay.Volunteer
	group   overlay.VolunteerGroup
	clockAt time.Time
}

// newFixture materializes a weekly event with five instances plus one action
// item, volunteer and volunteer group on the base event.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()

	ev := overlay.Event{
		ID:             "ev-1",
		OrganizationID: "org-1",
		Name:           "Food bank shift",
		Location:       "Warehouse",
		StartAt:        anchor,
		EndAt:          anchor.Add(2 * time.Hour),
		IsRecurring:    true,
	}
	r := recurrence.NewRule(ev.ID, ev.OrganizationID,
		recurrence.RecurrenceInput{Frequency: recurrence.FreqWeekly, Never: true},
		ev.StartAt, ev.EndAt)
	require.NoError(t, mem.CreateRecurringEvent(ctx, ev, r))

	_, err := recurrence.NewMaterializer(mem).MaterializeWindow(ctx, r,
		recurrence.Window{Start: anchor, End: anchor.AddDate(0, 0, 35)})
	require.NoError(t, err)
	insts, err := mem.ListInstances(ctx, r.ID, anchor, anchor.AddDate(1, 0, 0))
	require.NoError(t, err)
	require.Len(t, insts, 5)

	item := overlay.ActionItem{ID: "ai-1", OrganizationID: "org-1", EventID: ev.ID, Category: "setup"}
	vol := overlay.Volunteer{ID: "vol-1", EventID: ev.ID, UserID: "user-1", HasAccepted: true}
	group := overlay.VolunteerGroup{ID: "grp-1", EventID: ev.ID, Name: "Drivers"}
	require.NoError(t, mem.SaveActionItem(ctx, item))
	require.NoError(t, mem.SaveVolunteer(ctx, vol))
	require.NoError(t, mem.SaveVolunteerGroup(ctx, group))

	f := &fixture{mem: mem, event: ev, rule: r, inst: insts, item: item, vol: vol, group: group, clockAt: anchor}
	f.svc = overlay.NewService(mem, mem, mem).WithClock(func() time.Time { return f.clockAt })
	return f
}

// =============================================================================
// ACTION ITEM EXCEPTIONS
// =============================================================================

func TestService_ActionItemException_AffectsOnlyThatInstance(t *testing.T) {
	// GIVEN: Five instances of a weekly event with one action item
	// WHEN: Completing the action item for instance #3 only
	// THEN: #3 shows completed, every other instance shows the base state

	ctx := context.Background()
	f := newFixture(t)
	target := f.inst[2]

	_, err := f.svc.UpsertActionItemException(ctx, overlay.ActionItemExceptionInput{
		ActionItemID:        f.item.ID,
		InstanceID:          target.ID,
		Completed:           boolPtr(true),
		PostCompletionNotes: strPtr("all done"),
	}, "alice")
	require.NoError(t, err)

	for _, inst := range f.inst {
		views, err := f.svc.EffectiveActionItemsForInstance(ctx, inst.ID)
		require.NoError(t, err)
		require.Len(t, views, 1)

		if inst.ID == target.ID {
			assert.True(t, views[0].Completed)
			assert.Equal(t, "all done", views[0].PostCompletionNotes)
			assert.True(t, views[0].Overridden)
		} else {
			assert.Equal(t, f.item, views[0].ActionItem)
			assert.False(t, views[0].Overridden)
		}
	}

	base, err := f.mem.GetActionItem(ctx, f.item.ID)
	require.NoError(t, err)
	assert.False(t, base.Completed)
}

func TestService_ActionItemException_SecondWriteUpdates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inst := f.inst[0]

	first, err := f.svc.UpsertActionItemException(ctx, overlay.ActionItemExceptionInput{
		ActionItemID: f.item.ID, InstanceID: inst.ID, Completed: boolPtr(true),
	}, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", first.CreatedBy)
	assert.Equal(t, "alice", first.UpdatedBy)

	f.clockAt = anchor.Add(time.Hour)
	second, err := f.svc.UpsertActionItemException(ctx, overlay.ActionItemExceptionInput{
		ActionItemID: f.item.ID, InstanceID: inst.ID, PostCompletionNotes: strPtr("late"),
	}, "bob")
	require.NoError(t, err)

	assert.Equal(t, "alice", second.CreatedBy)
	assert.Equal(t, "bob", second.UpdatedBy)
	assert.Equal(t, anchor, second.CreatedAt)
	assert.Equal(t, anchor.Add(time.Hour), second.UpdatedAt)
	require.NotNil(t, second.Completed)
	assert.True(t, *second.Completed)

	excs, err := f.mem.ListActionItemExceptions(ctx, inst.ID)
	require.NoError(t, err)
	assert.Len(t, excs, 1)
}

func TestService_ActionItemException_NotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.UpsertActionItemException(ctx, overlay.ActionItemExceptionInput{
		ActionItemID: f.item.ID, InstanceID: "missing", Completed: boolPtr(true),
	}, "alice")
	assert.True(t, recurrence.IsNotFound(err))
	var nf *recurrence.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "instance", nf.Kind)

	_, err = f.svc.UpsertActionItemException(ctx, overlay.ActionItemExceptionInput{
		ActionItemID: "missing", InstanceID: f.inst[0].ID, Completed: boolPtr(true),
	}, "alice")
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "action_item", nf.Kind)
}

func TestService_ActionItemException_ItemFromOtherEventIsNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	other := overlay.ActionItem{ID: "ai-other", OrganizationID: "org-1", EventID: "ev-2"}
	require.NoError(t, f.mem.SaveActionItem(ctx, other))

	_, err := f.svc.UpsertActionItemException(ctx, overlay.ActionItemExceptionInput{
		ActionItemID: other.ID, InstanceID: f.inst[0].ID, Completed: boolPtr(true),
	}, "alice")
	assert.True(t, recurrence.IsNotFound(err))
}

// =============================================================================
// VOLUNTEER EXCEPTIONS
// =============================================================================

func TestService_VolunteerExceptions_ExcludeFromOneInstance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	target := f.inst[1]

	_, err := f.svc.UpsertVolunteerException(ctx, f.vol.ID, target.ID, "alice")
	require.NoError(t, err)
	_, err = f.svc.UpsertVolunteerGroupException(ctx, f.group.ID, target.ID, "alice")
	require.NoError(t, err)

	for _, inst := range f.inst {
		vols, err := f.svc.EffectiveVolunteersForInstance(ctx, inst.ID)
		require.NoError(t, err)
		require.Len(t, vols, 1)
		groups, err := f.svc.EffectiveVolunteerGroupsForInstance(ctx, inst.ID)
		require.NoError(t, err)
		require.Len(t, groups, 1)

		excluded := inst.ID == target.ID
		assert.Equal(t, excluded, vols[0].Excluded, "instance %d", inst.SequenceNumber)
		assert.Equal(t, excluded, groups[0].Excluded, "instance %d", inst.SequenceNumber)
	}
}

func TestService_VolunteerException_NotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.UpsertVolunteerException(ctx, "missing", f.inst[0].ID, "alice")
	assert.True(t, recurrence.IsNotFound(err))

	_, err = f.svc.UpsertVolunteerGroupException(ctx, f.group.ID, "missing", "alice")
	assert.True(t, recurrence.IsNotFound(err))
}

// =============================================================================
// EVENT EXCEPTIONS
// =============================================================================

func TestService_EventException_EffectiveInstances(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.UpsertEventException(ctx, overlay.EventExceptionInput{
		InstanceID: f.inst[4].ID,
		Location:   strPtr("Community hall"),
	}, "alice")
	require.NoError(t, err)

	views, err := f.svc.EffectiveEventInstances(ctx, f.rule.ID, anchor, anchor.AddDate(1, 0, 0))
	require.NoError(t, err)
	require.Len(t, views, 5)

	for i, v := range views {
		assert.Equal(t, i+1, v.SequenceNumber)
		assert.Equal(t, f.event.Name, v.Name)
		if i == 4 {
			assert.Equal(t, "Community hall", v.Location)
			assert.True(t, v.Overridden)
		} else {
			assert.Equal(t, "Warehouse", v.Location)
			assert.False(t, v.Overridden)
		}
	}

	single, err := f.svc.EffectiveEventInstance(ctx, f.inst[4].ID)
	require.NoError(t, err)
	assert.Equal(t, views[4], single)
}

func TestService_EffectiveReads_NotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.EffectiveEventInstance(ctx, "missing")
	assert.True(t, recurrence.IsNotFound(err))

	_, err = f.svc.EffectiveEventInstances(ctx, "missing", anchor, anchor.AddDate(0, 1, 0))
	assert.True(t, recurrence.IsNotFound(err))

	_, err = f.svc.EffectiveActionItemsForInstance(ctx, "missing")
	assert.True(t, recurrence.IsNotFound(err))
}

func TestService_EventException_StoresWholeSeconds(t *testing.T) {
	// GIVEN: A clock and override times with sub-second precision
	// WHEN: Writing an event exception
	// THEN: Times and audit fields are truncated to the second, as SQLite stores them

	ctx := context.Background()
	f := newFixture(t)
	f.clockAt = anchor.Add(1500 * time.Millisecond)

	start := f.inst[0].OccurrenceStart.Add(30*time.Minute + 250*time.Millisecond)
	end := start.Add(time.Hour)
	exc, err := f.svc.UpsertEventException(ctx, overlay.EventExceptionInput{
		InstanceID: f.inst[0].ID,
		StartAt:    &start,
		EndAt:      &end,
	}, "alice")
	require.NoError(t, err)

	require.NotNil(t, exc.StartAt)
	require.NotNil(t, exc.EndAt)
	assert.Equal(t, start.Truncate(time.Second), *exc.StartAt)
	assert.Equal(t, end.Truncate(time.Second), *exc.EndAt)
	assert.Equal(t, anchor.Add(time.Second), exc.CreatedAt)
	assert.Equal(t, anchor.Add(time.Second), exc.UpdatedAt)
}
