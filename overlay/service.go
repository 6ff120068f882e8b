/*
service.go - Exception mutation and effective-view reads

PURPOSE:
  The entry point the API layer uses for exceptions. Every mutation checks
  that the referenced instance and base entity exist (and belong together)
  before upserting; a missing reference is a recurrence.NotFoundError.

  Reads build effective views for one instance: each base entity of the
  instance's event merged with its exception for that instance, if any.

CONCURRENCY:
  No locking. The only write is the store's atomic upsert; racing writers
  for the same key produce one row and last write wins.
*/
package overlay

import (
	"context"
	"time"

	"github.com/warp/recurrence-engine/recurrence"
)

// Service applies and reads per-instance exceptions.
type Service struct {
	store     Store
	instances recurrence.InstanceStore
	rules     recurrence.RuleStore
	now       func() time.Time
}

// NewService creates a Service.
func NewService(store Store, instances recurrence.InstanceStore, rules recurrence.RuleStore) *Service {
	return &Service{store: store, instances: instances, rules: rules, now: time.Now}
}

// WithClock overrides the timestamp source used for audit fields.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// =============================================================================
// MUTATION INPUTS
// =============================================================================

// ActionItemExceptionInput is the action-item exception mutation surface.
type ActionItemExceptionInput struct {
	ActionItemID        ActionItemID
	InstanceID          recurrence.InstanceID
	Completed           *bool
	PostCompletionNotes *string
}

// EventExceptionInput overrides event details for one instance.
type EventExceptionInput struct {
	InstanceID  recurrence.InstanceID
	Name        *string
	Description *string
	Location    *string
	StartAt     *time.Time
	EndAt       *time.Time
}

// =============================================================================
// MUTATIONS
// =============================================================================

// UpsertActionItemException records completion state of an action item for
// one instance.
func (s *Service) UpsertActionItemException(ctx context.Context, in ActionItemExceptionInput, actor string) (ActionItemException, error) {
	inst, err := s.instance(ctx, in.InstanceID)
	if err != nil {
		return ActionItemException{}, err
	}
	item, err := s.store.GetActionItem(ctx, in.ActionItemID)
	if err != nil {
		return ActionItemException{}, err
	}
	if item == nil || item.EventID != inst.BaseEventID {
		return ActionItemException{}, recurrence.NotFound("action_item", string(in.ActionItemID))
	}

	return s.store.UpsertActionItemException(ctx, ActionItemException{
		ActionItemID:        item.ID,
		InstanceID:          inst.ID,
		Completed:           in.Completed,
		PostCompletionNotes: in.PostCompletionNotes,
		ExceptionMeta:       s.meta(actor),
	})
}

// UpsertVolunteerException excludes a volunteer from one instance.
func (s *Service) UpsertVolunteerException(ctx context.Context, volunteerID VolunteerID, instanceID recurrence.InstanceID, actor string) (VolunteerException, error) {
	inst, err := s.instance(ctx, instanceID)
	if err != nil {
		return VolunteerException{}, err
	}
	v, err := s.store.GetVolunteer(ctx, volunteerID)
	if err != nil {
		return VolunteerException{}, err
	}
	if v == nil || v.EventID != inst.BaseEventID {
		return VolunteerException{}, recurrence.NotFound("volunteer", string(volunteerID))
	}

	return s.store.UpsertVolunteerException(ctx, VolunteerException{
		VolunteerID:   v.ID,
		InstanceID:    inst.ID,
		ExceptionMeta: s.meta(actor),
	})
}

// UpsertVolunteerGroupException excludes a volunteer group from one instance.
func (s *Service) UpsertVolunteerGroupException(ctx context.Context, groupID VolunteerGroupID, instanceID recurrence.InstanceID, actor string) (VolunteerGroupException, error) {
	inst, err := s.instance(ctx, instanceID)
	if err != nil {
		return VolunteerGroupException{}, err
	}
	g, err := s.store.GetVolunteerGroup(ctx, groupID)
	if err != nil {
		return VolunteerGroupException{}, err
	}
	if g == nil || g.EventID != inst.BaseEventID {
		return VolunteerGroupException{}, recurrence.NotFound("volunteer_group", string(groupID))
	}

	return s.store.UpsertVolunteerGroupException(ctx, VolunteerGroupException{
		VolunteerGroupID: g.ID,
		InstanceID:       inst.ID,
		ExceptionMeta:    s.meta(actor),
	})
}

// UpsertEventException overrides event details for one instance.
func (s *Service) UpsertEventException(ctx context.Context, in EventExceptionInput, actor string) (EventException, error) {
	inst, err := s.instance(ctx, in.InstanceID)
	if err != nil {
		return EventException{}, err
	}
	ev, err := s.event(ctx, inst.BaseEventID)
	if err != nil {
		return EventException{}, err
	}

	return s.store.UpsertEventException(ctx, EventException{
		EventID:       ev.ID,
		InstanceID:    inst.ID,
		Name:          in.Name,
		Description:   in.Description,
		Location:      in.Location,
		StartAt:       truncate(in.StartAt),
		EndAt:         truncate(in.EndAt),
		ExceptionMeta: s.meta(actor),
	})
}

// =============================================================================
// EFFECTIVE VIEWS
// =============================================================================

// EffectiveEventInstance returns the merged view of one instance.
func (s *Service) EffectiveEventInstance(ctx context.Context, instanceID recurrence.InstanceID) (EventInstanceView, error) {
	inst, err := s.instance(ctx, instanceID)
	if err != nil {
		return EventInstanceView{}, err
	}
	ev, err := s.event(ctx, inst.BaseEventID)
	if err != nil {
		return EventInstanceView{}, err
	}
	exc, err := s.store.GetEventException(ctx, ev.ID, inst.ID)
	if err != nil {
		return EventInstanceView{}, err
	}
	return EffectiveEvent(*ev, *inst, exc), nil
}

// EffectiveEventInstances returns merged views of a rule's instances starting
// in [from, to).
func (s *Service) EffectiveEventInstances(ctx context.Context, ruleID recurrence.RuleID, from, to time.Time) ([]EventInstanceView, error) {
	rule, err := s.rules.GetRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, recurrence.NotFound("rule", string(ruleID))
	}
	ev, err := s.event(ctx, rule.BaseEventID)
	if err != nil {
		return nil, err
	}

	insts, err := s.instances.ListInstances(ctx, ruleID, from, to)
	if err != nil {
		return nil, err
	}
	excs, err := s.store.ListEventExceptions(ctx, ev.ID)
	if err != nil {
		return nil, err
	}
	byInstance := make(map[recurrence.InstanceID]*EventException, len(excs))
	for i := range excs {
		byInstance[excs[i].InstanceID] = &excs[i]
	}

	views := make([]EventInstanceView, 0, len(insts))
	for _, inst := range insts {
		views = append(views, EffectiveEvent(*ev, inst, byInstance[inst.ID]))
	}
	return views, nil
}

// EffectiveActionItemsForInstance returns every action item of the instance's
// event with that instance's exception applied.
func (s *Service) EffectiveActionItemsForInstance(ctx context.Context, instanceID recurrence.InstanceID) ([]ActionItemView, error) {
	inst, err := s.instance(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	items, err := s.store.ListActionItemsByEvent(ctx, inst.BaseEventID)
	if err != nil {
		return nil, err
	}
	excs, err := s.store.ListActionItemExceptions(ctx, inst.ID)
	if err != nil {
		return nil, err
	}
	byItem := make(map[ActionItemID]*ActionItemException, len(excs))
	for i := range excs {
		byItem[excs[i].ActionItemID] = &excs[i]
	}

	views := make([]ActionItemView, 0, len(items))
	for _, item := range items {
		views = append(views, EffectiveActionItem(item, inst.ID, byItem[item.ID]))
	}
	return views, nil
}

// EffectiveVolunteersForInstance returns the event's volunteers, each marked
// excluded when an exception exists for this instance.
func (s *Service) EffectiveVolunteersForInstance(ctx context.Context, instanceID recurrence.InstanceID) ([]VolunteerView, error) {
	inst, err := s.instance(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	vols, err := s.store.ListVolunteersByEvent(ctx, inst.BaseEventID)
	if err != nil {
		return nil, err
	}
	excs, err := s.store.ListVolunteerExceptions(ctx, inst.ID)
	if err != nil {
		return nil, err
	}
	byVolunteer := make(map[VolunteerID]*VolunteerException, len(excs))
	for i := range excs {
		byVolunteer[excs[i].VolunteerID] = &excs[i]
	}

	views := make([]VolunteerView, 0, len(vols))
	for _, v := range vols {
		views = append(views, EffectiveVolunteer(v, inst.ID, byVolunteer[v.ID]))
	}
	return views, nil
}

// EffectiveVolunteerGroupsForInstance returns the event's volunteer groups,
// each marked excluded when an exception exists for this instance.
func (s *Service) EffectiveVolunteerGroupsForInstance(ctx context.Context, instanceID recurrence.InstanceID) ([]VolunteerGroupView, error) {
	inst, err := s.instance(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	groups, err := s.store.ListVolunteerGroupsByEvent(ctx, inst.BaseEventID)
	if err != nil {
		return nil, err
	}
	excs, err := s.store.ListVolunteerGroupExceptions(ctx, inst.ID)
	if err != nil {
		return nil, err
	}
	byGroup := make(map[VolunteerGroupID]*VolunteerGroupException, len(excs))
	for i := range excs {
		byGroup[excs[i].VolunteerGroupID] = &excs[i]
	}

	views := make([]VolunteerGroupView, 0, len(groups))
	for _, g := range groups {
		views = append(views, EffectiveVolunteerGroup(g, inst.ID, byGroup[g.ID]))
	}
	return views, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Service) instance(ctx context.Context, id recurrence.InstanceID) (*recurrence.Instance, error) {
	inst, err := s.instances.GetInstance(ctx, id)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, recurrence.NotFound("instance", string(id))
	}
	return inst, nil
}

func (s *Service) event(ctx context.Context, id recurrence.EventID) (*Event, error) {
	ev, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, recurrence.NotFound("event", string(id))
	}
	return ev, nil
}

func (s *Service) meta(actor string) ExceptionMeta {
	now := s.now().UTC().Truncate(time.Second)
	return ExceptionMeta{CreatedBy: actor, UpdatedBy: actor, CreatedAt: now, UpdatedAt: now}
}

// truncate drops sub-second precision, which the SQLite store does not keep.
func truncate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC().Truncate(time.Second)
	return &u
}
