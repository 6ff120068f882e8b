// Package store provides in-memory Store implementations.
package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/warp/recurrence-engine/overlay"
	"github.com/warp/recurrence-engine/recurrence"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements recurrence.RuleStore, recurrence.InstanceStore and
// overlay.Store. A single mutex makes every write atomic, which gives the
// same insert-if-absent and upsert guarantees as the SQL uniqueness constraints.
type Memory struct {
	mu sync.RWMutex

	rules     map[recurrence.RuleID]recurrence.Rule
	instances map[recurrence.InstanceID]recurrence.Instance
	byRule    map[recurrence.RuleID][]recurrence.InstanceID // sorted by OccurrenceStart
	occKeys   map[occurrenceKey]recurrence.InstanceID

	events      map[recurrence.EventID]overlay.Event
	actionItems map[overlay.ActionItemID]overlay.ActionItem
	volunteers  map[overlay.VolunteerID]overlay.Volunteer
	groups      map[overlay.VolunteerGroupID]overlay.VolunteerGroup

	eventExc     map[eventExcKey]overlay.EventException
	actionExc    map[actionExcKey]overlay.ActionItemException
	volunteerExc map[volunteerExcKey]overlay.VolunteerException
	groupExc     map[groupExcKey]overlay.VolunteerGroupException
}

type occurrenceKey struct {
	RuleID recurrence.RuleID
	Start  int64
}

type eventExcKey struct {
	EventID    recurrence.EventID
	InstanceID recurrence.InstanceID
}

type actionExcKey struct {
	ActionItemID overlay.ActionItemID
	InstanceID   recurrence.InstanceID
}

type volunteerExcKey struct {
	VolunteerID overlay.VolunteerID
	InstanceID  recurrence.InstanceID
}

type groupExcKey struct {
	GroupID    overlay.VolunteerGroupID
	InstanceID recurrence.InstanceID
}

func NewMemory() *Memory {
	return &Memory{
		rules:        make(map[recurrence.RuleID]recurrence.Rule),
		instances:    make(map[recurrence.InstanceID]recurrence.Instance),
		byRule:       make(map[recurrence.RuleID][]recurrence.InstanceID),
		occKeys:      make(map[occurrenceKey]recurrence.InstanceID),
		events:       make(map[recurrence.EventID]overlay.Event),
		actionItems:  make(map[overlay.ActionItemID]overlay.ActionItem),
		volunteers:   make(map[overlay.VolunteerID]overlay.Volunteer),
		groups:       make(map[overlay.VolunteerGroupID]overlay.VolunteerGroup),
		eventExc:     make(map[eventExcKey]overlay.EventException),
		actionExc:    make(map[actionExcKey]overlay.ActionItemException),
		volunteerExc: make(map[volunteerExcKey]overlay.VolunteerException),
		groupExc:     make(map[groupExcKey]overlay.VolunteerGroupException),
	}
}

// =============================================================================
// RULES
// =============================================================================

func (m *Memory) SaveRule(_ context.Context, r recurrence.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[r.ID] = cloneRule(r)
	return nil
}

func (m *Memory) GetRule(_ context.Context, id recurrence.RuleID) (*recurrence.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rules[id]
	if !ok {
		return nil, nil
	}
	r = cloneRule(r)
	return &r, nil
}

func (m *Memory) GetRuleByEvent(_ context.Context, eventID recurrence.EventID) (*recurrence.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rules {
		if r.BaseEventID == eventID {
			r = cloneRule(r)
			return &r, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListActiveRules(_ context.Context, since time.Time) ([]recurrence.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []recurrence.Rule
	for _, r := range m.rules {
		if r.RecurrenceEndDate != nil && !r.RecurrenceEndDate.After(since) {
			continue
		}
		out = append(out, cloneRule(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// cloneRule copies the slices and pointers a Rule carries so callers never
// share them with the map.
func cloneRule(r recurrence.Rule) recurrence.Rule {
	r.ByDay = slices.Clone(r.ByDay)
	r.ByMonth = slices.Clone(r.ByMonth)
	r.ByMonthDay = slices.Clone(r.ByMonthDay)
	r.Count = clonePtr(r.Count)
	r.RecurrenceEndDate = clonePtr(r.RecurrenceEndDate)
	r.LatestInstanceDate = clonePtr(r.LatestInstanceDate)
	return r
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func (m *Memory) MarkMaterialized(_ context.Context, id recurrence.RuleID, latest time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rules[id]
	if !ok {
		return recurrence.NotFound("rule", string(id))
	}
	if r.LatestInstanceDate == nil || latest.After(*r.LatestInstanceDate) {
		l := latest.UTC()
		r.LatestInstanceDate = &l
		r.UpdatedAt = time.Now().UTC()
		m.rules[id] = r
	}
	return nil
}

// =============================================================================
// INSTANCES
// =============================================================================

func (m *Memory) InsertInstanceIfAbsent(_ context.Context, inst recurrence.Instance) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := occurrenceKey{RuleID: inst.RuleID, Start: inst.OccurrenceStart.UTC().Unix()}
	if _, exists := m.occKeys[k]; exists {
		return false, nil
	}

	m.instances[inst.ID] = inst
	m.occKeys[k] = inst.ID

	ids := m.byRule[inst.RuleID]
	i := sort.Search(len(ids), func(i int) bool {
		return m.instances[ids[i]].OccurrenceStart.After(inst.OccurrenceStart)
	})
	ids = append(ids, "")
	copy(ids[i+1:], ids[i:])
	ids[i] = inst.ID
	m.byRule[inst.RuleID] = ids
	return true, nil
}

func (m *Memory) GetInstance(_ context.Context, id recurrence.InstanceID) (*recurrence.Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.instances[id]
	if !ok {
		return nil, nil
	}
	return &inst, nil
}

func (m *Memory) ListInstances(_ context.Context, ruleID recurrence.RuleID, from, to time.Time) ([]recurrence.Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	w := recurrence.Window{Start: from, End: to}
	var out []recurrence.Instance
	for _, id := range m.byRule[ruleID] {
		inst := m.instances[id]
		if w.Contains(inst.OccurrenceStart) {
			out = append(out, inst)
		}
	}
	return out, nil
}

func (m *Memory) RetireInstances(_ context.Context, cutoff time.Time, policy recurrence.RetirePolicy) (recurrence.RetireReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var report recurrence.RetireReport
	var expired []recurrence.Instance
	for _, inst := range m.instances {
		if inst.OccurrenceEnd.Before(cutoff) {
			expired = append(expired, inst)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].OccurrenceStart.Before(expired[j].OccurrenceStart) })

	for _, inst := range expired {
		deps := m.dependentsLocked(inst.ID)
		if deps > 0 && policy == recurrence.RetireRefuse {
			report.Skipped = append(report.Skipped, recurrence.SkippedInstance{ID: inst.ID, RuleID: inst.RuleID, Dependents: deps})
			continue
		}
		if deps > 0 {
			m.deleteDependentsLocked(inst.ID)
			report.DependentsDeleted += deps
		}
		m.deleteInstanceLocked(inst)
		report.Deleted = append(report.Deleted, inst.ID)
	}
	return report, nil
}

func (m *Memory) dependentsLocked(id recurrence.InstanceID) int {
	n := 0
	for k := range m.eventExc {
		if k.InstanceID == id {
			n++
		}
	}
	for k := range m.actionExc {
		if k.InstanceID == id {
			n++
		}
	}
	for k := range m.volunteerExc {
		if k.InstanceID == id {
			n++
		}
	}
	for k := range m.groupExc {
		if k.InstanceID == id {
			n++
		}
	}
	return n
}

func (m *Memory) deleteDependentsLocked(id recurrence.InstanceID) {
	for k := range m.eventExc {
		if k.InstanceID == id {
			delete(m.eventExc, k)
		}
	}
	for k := range m.actionExc {
		if k.InstanceID == id {
			delete(m.actionExc, k)
		}
	}
	for k := range m.volunteerExc {
		if k.InstanceID == id {
			delete(m.volunteerExc, k)
		}
	}
	for k := range m.groupExc {
		if k.InstanceID == id {
			delete(m.groupExc, k)
		}
	}
}

func (m *Memory) deleteInstanceLocked(inst recurrence.Instance) {
	delete(m.instances, inst.ID)
	delete(m.occKeys, occurrenceKey{RuleID: inst.RuleID, Start: inst.OccurrenceStart.UTC().Unix()})

	ids := m.byRule[inst.RuleID]
	for i, id := range ids {
		if id == inst.ID {
			m.byRule[inst.RuleID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
}

// =============================================================================
// BASE ENTITIES
// =============================================================================

func (m *Memory) SaveEvent(_ context.Context, ev overlay.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[ev.ID] = ev
	return nil
}

// CreateRecurringEvent stores a template event and its rule together.
func (m *Memory) CreateRecurringEvent(_ context.Context, ev overlay.Event, r recurrence.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[ev.ID] = ev
	m.rules[r.ID] = cloneRule(r)
	return nil
}

func (m *Memory) GetEvent(_ context.Context, id recurrence.EventID) (*overlay.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ev, ok := m.events[id]
	if !ok {
		return nil, nil
	}
	return &ev, nil
}

func (m *Memory) SaveActionItem(_ context.Context, a overlay.ActionItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actionItems[a.ID] = a
	return nil
}

func (m *Memory) GetActionItem(_ context.Context, id overlay.ActionItemID) (*overlay.ActionItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.actionItems[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *Memory) ListActionItemsByEvent(_ context.Context, eventID recurrence.EventID) ([]overlay.ActionItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []overlay.ActionItem
	for _, a := range m.actionItems {
		if a.EventID == eventID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SaveVolunteer(_ context.Context, v overlay.Volunteer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volunteers[v.ID] = v
	return nil
}

func (m *Memory) GetVolunteer(_ context.Context, id overlay.VolunteerID) (*overlay.Volunteer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.volunteers[id]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (m *Memory) ListVolunteersByEvent(_ context.Context, eventID recurrence.EventID) ([]overlay.Volunteer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []overlay.Volunteer
	for _, v := range m.volunteers {
		if v.EventID == eventID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SaveVolunteerGroup(_ context.Context, g overlay.VolunteerGroup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[g.ID] = g
	return nil
}

func (m *Memory) GetVolunteerGroup(_ context.Context, id overlay.VolunteerGroupID) (*overlay.VolunteerGroup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.groups[id]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

func (m *Memory) ListVolunteerGroupsByEvent(_ context.Context, eventID recurrence.EventID) ([]overlay.VolunteerGroup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []overlay.VolunteerGroup
	for _, g := range m.groups {
		if g.EventID == eventID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// EXCEPTIONS - Upsert on composite key
// =============================================================================

func (m *Memory) UpsertEventException(_ context.Context, exc overlay.EventException) (overlay.EventException, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.instances[exc.InstanceID]; !ok {
		return overlay.EventException{}, recurrence.NotFound("instance", string(exc.InstanceID))
	}
	k := eventExcKey{EventID: exc.EventID, InstanceID: exc.InstanceID}
	cur, exists := m.eventExc[k]
	if !exists {
		m.eventExc[k] = exc
		return exc, nil
	}

	if exc.Name != nil {
		cur.Name = exc.Name
	}
	if exc.Description != nil {
		cur.Description = exc.Description
	}
	if exc.Location != nil {
		cur.Location = exc.Location
	}
	if exc.StartAt != nil {
		cur.StartAt = exc.StartAt
	}
	if exc.EndAt != nil {
		cur.EndAt = exc.EndAt
	}
	cur.UpdatedBy = exc.UpdatedBy
	cur.UpdatedAt = exc.UpdatedAt
	m.eventExc[k] = cur
	return cur, nil
}

func (m *Memory) GetEventException(_ context.Context, eventID recurrence.EventID, instanceID recurrence.InstanceID) (*overlay.EventException, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	exc, ok := m.eventExc[eventExcKey{EventID: eventID, InstanceID: instanceID}]
	if !ok {
		return nil, nil
	}
	return &exc, nil
}

func (m *Memory) ListEventExceptions(_ context.Context, eventID recurrence.EventID) ([]overlay.EventException, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []overlay.EventException
	for k, exc := range m.eventExc {
		if k.EventID == eventID {
			out = append(out, exc)
		}
	}
	return out, nil
}

func (m *Memory) UpsertActionItemException(_ context.Context, exc overlay.ActionItemException) (overlay.ActionItemException, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.instances[exc.InstanceID]; !ok {
		return overlay.ActionItemException{}, recurrence.NotFound("instance", string(exc.InstanceID))
	}
	k := actionExcKey{ActionItemID: exc.ActionItemID, InstanceID: exc.InstanceID}
	cur, exists := m.actionExc[k]
	if !exists {
		m.actionExc[k] = exc
		return exc, nil
	}

	if exc.Completed != nil {
		cur.Completed = exc.Completed
	}
	if exc.PostCompletionNotes != nil {
		cur.PostCompletionNotes = exc.PostCompletionNotes
	}
	cur.UpdatedBy = exc.UpdatedBy
	cur.UpdatedAt = exc.UpdatedAt
	m.actionExc[k] = cur
	return cur, nil
}

func (m *Memory) ListActionItemExceptions(_ context.Context, instanceID recurrence.InstanceID) ([]overlay.ActionItemException, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []overlay.ActionItemException
	for k, exc := range m.actionExc {
		if k.InstanceID == instanceID {
			out = append(out, exc)
		}
	}
	return out, nil
}

func (m *Memory) UpsertVolunteerException(_ context.Context, exc overlay.VolunteerException) (overlay.VolunteerException, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.instances[exc.InstanceID]; !ok {
		return overlay.VolunteerException{}, recurrence.NotFound("instance", string(exc.InstanceID))
	}
	k := volunteerExcKey{VolunteerID: exc.VolunteerID, InstanceID: exc.InstanceID}
	cur, exists := m.volunteerExc[k]
	if !exists {
		m.volunteerExc[k] = exc
		return exc, nil
	}
	cur.UpdatedBy = exc.UpdatedBy
	cur.UpdatedAt = exc.UpdatedAt
	m.volunteerExc[k] = cur
	return cur, nil
}

func (m *Memory) ListVolunteerExceptions(_ context.Context, instanceID recurrence.InstanceID) ([]overlay.VolunteerException, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []overlay.VolunteerException
	for k, exc := range m.volunteerExc {
		if k.InstanceID == instanceID {
			out = append(out, exc)
		}
	}
	return out, nil
}

func (m *Memory) UpsertVolunteerGroupException(_ context.Context, exc overlay.VolunteerGroupException) (overlay.VolunteerGroupException, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.instances[exc.InstanceID]; !ok {
		return overlay.VolunteerGroupException{}, recurrence.NotFound("instance", string(exc.InstanceID))
	}
	k := groupExcKey{GroupID: exc.VolunteerGroupID, InstanceID: exc.InstanceID}
	cur, exists := m.groupExc[k]
	if !exists {
		m.groupExc[k] = exc
		return exc, nil
	}
	cur.UpdatedBy = exc.UpdatedBy
	cur.UpdatedAt = exc.UpdatedAt
	m.groupExc[k] = cur
	return cur, nil
}

func (m *Memory) ListVolunteerGroupExceptions(_ context.Context, instanceID recurrence.InstanceID) ([]overlay.VolunteerGroupException, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []overlay.VolunteerGroupException
	for k, exc := range m.groupExc {
		if k.InstanceID == instanceID {
			out = append(out, exc)
		}
	}
	return out, nil
}
