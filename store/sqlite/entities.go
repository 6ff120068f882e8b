package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/recurrence-engine/overlay"
	"github.com/warp/recurrence-engine/recurrence"
)

// =============================================================================
// EVENTS
// =============================================================================

const eventColumns = `id, organization_id, name, description, location, start_at, end_at,
	is_recurring, created_by, created_at, updated_at`

// SaveEvent inserts or updates a template event.
func (s *Store) SaveEvent(ctx context.Context, ev overlay.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saveEvent(ctx, s.db, ev)
}

func (s *Store) saveEvent(ctx context.Context, db execer, ev overlay.Event) error {
	now := time.Now().UTC()
	createdAt := ev.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	query := `
		INSERT INTO events (` + eventColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			location = excluded.location,
			start_at = excluded.start_at,
			end_at = excluded.end_at,
			is_recurring = excluded.is_recurring,
			updated_at = excluded.updated_at
	`

	_, err := db.ExecContext(ctx, query,
		ev.ID, ev.OrganizationID, ev.Name, ev.Description, ev.Location,
		formatTime(ev.StartAt), formatTime(ev.EndAt), ev.IsRecurring, ev.CreatedBy,
		formatTime(createdAt), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}
	return nil
}

// CreateRecurringEvent stores a template event and its rule in one transaction.
func (s *Store) CreateRecurringEvent(ctx context.Context, ev overlay.Event, r recurrence.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.saveEvent(ctx, tx, ev); err != nil {
		return err
	}
	if err := s.saveRule(ctx, tx, r); err != nil {
		return err
	}
	return tx.Commit()
}

// GetEvent retrieves an event by ID.
func (s *Store) GetEvent(ctx context.Context, id recurrence.EventID) (*overlay.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		ev                   overlay.Event
		startAt, endAt       string
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id).Scan(
		&ev.ID, &ev.OrganizationID, &ev.Name, &ev.Description, &ev.Location,
		&startAt, &endAt, &ev.IsRecurring, &ev.CreatedBy, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	ev.StartAt = parseTime(startAt)
	ev.EndAt = parseTime(endAt)
	ev.CreatedAt = parseTime(createdAt)
	ev.UpdatedAt = parseTime(updatedAt)
	return &ev, nil
}

// =============================================================================
// ACTION ITEMS
// =============================================================================

const actionItemColumns = `id, organization_id, event_id, assignee_id, category,
	pre_completion_notes, post_completion_notes, completed, allotted_hours,
	created_by, created_at, updated_at`

// SaveActionItem inserts or updates an action item.
func (s *Store) SaveActionItem(ctx context.Context, a overlay.ActionItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	query := `
		INSERT INTO action_items (` + actionItemColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			assignee_id = excluded.assignee_id,
			category = excluded.category,
			pre_completion_notes = excluded.pre_completion_notes,
			post_completion_notes = excluded.post_completion_notes,
			completed = excluded.completed,
			allotted_hours = excluded.allotted_hours,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		a.ID, a.OrganizationID, a.EventID, a.AssigneeID, a.Category,
		a.PreCompletionNotes, a.PostCompletionNotes, a.Completed, a.AllottedHours.String(),
		a.CreatedBy, formatTime(createdAt), formatTime(now),
	)
	if err != nil {
		if isForeignKeyError(err) {
			return recurrence.NotFound("event", string(a.EventID))
		}
		return fmt.Errorf("failed to save action item: %w", err)
	}
	return nil
}

// GetActionItem retrieves an action item by ID.
func (s *Store) GetActionItem(ctx context.Context, id overlay.ActionItemID) (*overlay.ActionItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+actionItemColumns+` FROM action_items WHERE id = ?`, id)
	a, err := scanActionItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListActionItemsByEvent returns the action items attached to an event.
func (s *Store) ListActionItemsByEvent(ctx context.Context, eventID recurrence.EventID) ([]overlay.ActionItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+actionItemColumns+` FROM action_items WHERE event_id = ? ORDER BY id ASC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query action items: %w", err)
	}
	defer rows.Close()

	var items []overlay.ActionItem
	for rows.Next() {
		a, err := scanActionItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func scanActionItem(row scanner) (overlay.ActionItem, error) {
	var (
		a                    overlay.ActionItem
		hours                string
		createdAt, updatedAt string
	)
	err := row.Scan(
		&a.ID, &a.OrganizationID, &a.EventID, &a.AssigneeID, &a.Category,
		&a.PreCompletionNotes, &a.PostCompletionNotes, &a.Completed, &hours,
		&a.CreatedBy, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return a, err
	}
	if err != nil {
		return a, fmt.Errorf("failed to scan action item: %w", err)
	}

	a.AllottedHours, _ = decimal.NewFromString(hours)
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return a, nil
}

// =============================================================================
// VOLUNTEERS
// =============================================================================

const volunteerColumns = `id, event_id, user_id, has_accepted, hours_volunteered, created_by, created_at`

// SaveVolunteer inserts or updates a volunteer.
func (s *Store) SaveVolunteer(ctx context.Context, v overlay.Volunteer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := v.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
		INSERT INTO event_volunteers (` + volunteerColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			has_accepted = excluded.has_accepted,
			hours_volunteered = excluded.hours_volunteered
	`

	_, err := s.db.ExecContext(ctx, query,
		v.ID, v.EventID, v.UserID, v.HasAccepted, v.HoursVolunteered.String(),
		v.CreatedBy, formatTime(createdAt),
	)
	if err != nil {
		if isForeignKeyError(err) {
			return recurrence.NotFound("event", string(v.EventID))
		}
		return fmt.Errorf("failed to save volunteer: %w", err)
	}
	return nil
}

// GetVolunteer retrieves a volunteer by ID.
func (s *Store) GetVolunteer(ctx context.Context, id overlay.VolunteerID) (*overlay.Volunteer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+volunteerColumns+` FROM event_volunteers WHERE id = ?`, id)
	v, err := scanVolunteer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ListVolunteersByEvent returns the volunteers of an event.
func (s *Store) ListVolunteersByEvent(ctx context.Context, eventID recurrence.EventID) ([]overlay.Volunteer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+volunteerColumns+` FROM event_volunteers WHERE event_id = ? ORDER BY id ASC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query volunteers: %w", err)
	}
	defer rows.Close()

	var vols []overlay.Volunteer
	for rows.Next() {
		v, err := scanVolunteer(rows)
		if err != nil {
			return nil, err
		}
		vols = append(vols, v)
	}
	return vols, rows.Err()
}

func scanVolunteer(row scanner) (overlay.Volunteer, error) {
	var (
		v                overlay.Volunteer
		hours, createdAt string
	)
	err := row.Scan(&v.ID, &v.EventID, &v.UserID, &v.HasAccepted, &hours, &v.CreatedBy, &createdAt)
	if err == sql.ErrNoRows {
		return v, err
	}
	if err != nil {
		return v, fmt.Errorf("failed to scan volunteer: %w", err)
	}

	v.HoursVolunteered, _ = decimal.NewFromString(hours)
	v.CreatedAt = parseTime(createdAt)
	return v, nil
}

// =============================================================================
// VOLUNTEER GROUPS
// =============================================================================

const groupColumns = `id, event_id, name, description, leader_id, volunteers_required, created_by, created_at`

// SaveVolunteerGroup inserts or updates a volunteer group.
func (s *Store) SaveVolunteerGroup(ctx context.Context, g overlay.VolunteerGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := g.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
		INSERT INTO event_volunteer_groups (` + groupColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			leader_id = excluded.leader_id,
			volunteers_required = excluded.volunteers_required
	`

	_, err := s.db.ExecContext(ctx, query,
		g.ID, g.EventID, g.Name, g.Description, g.LeaderID, g.VolunteersRequired,
		g.CreatedBy, formatTime(createdAt),
	)
	if err != nil {
		if isForeignKeyError(err) {
			return recurrence.NotFound("event", string(g.EventID))
		}
		return fmt.Errorf("failed to save volunteer group: %w", err)
	}
	return nil
}

// GetVolunteerGroup retrieves a volunteer group by ID.
func (s *Store) GetVolunteerGroup(ctx context.Context, id overlay.VolunteerGroupID) (*overlay.VolunteerGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM event_volunteer_groups WHERE id = ?`, id)
	g, err := scanGroup(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// ListVolunteerGroupsByEvent returns the volunteer groups of an event.
func (s *Store) ListVolunteerGroupsByEvent(ctx context.Context, eventID recurrence.EventID) ([]overlay.VolunteerGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+groupColumns+` FROM event_volunteer_groups WHERE event_id = ? ORDER BY id ASC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query volunteer groups: %w", err)
	}
	defer rows.Close()

	var groups []overlay.VolunteerGroup
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func scanGroup(row scanner) (overlay.VolunteerGroup, error) {
	var (
		g         overlay.VolunteerGroup
		createdAt string
	)
	err := row.Scan(&g.ID, &g.EventID, &g.Name, &g.Description, &g.LeaderID, &g.VolunteersRequired, &g.CreatedBy, &createdAt)
	if err == sql.ErrNoRows {
		return g, err
	}
	if err != nil {
		return g, fmt.Errorf("failed to scan volunteer group: %w", err)
	}

	g.CreatedAt = parseTime(createdAt)
	return g, nil
}
