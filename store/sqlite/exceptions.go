package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/warp/recurrence-engine/overlay"
	"github.com/warp/recurrence-engine/recurrence"
)

// =============================================================================
// EXCEPTION STORE (overlay.ExceptionStore interface)
// =============================================================================
//
// Every upsert runs INSERT ... ON CONFLICT DO UPDATE and reads the row back in
// the same transaction. COALESCE(excluded.x, x) keeps a stored override when
// the new write leaves that field unset. created_by and created_at are never
// in the SET list.

// UpsertEventException records event detail overrides for one instance.
func (s *Store) UpsertEventException(ctx context.Context, exc overlay.EventException) (overlay.EventException, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return overlay.EventException{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO event_instance_exceptions
		(event_id, instance_id, name, description, location, start_at, end_at,
		 created_by, updated_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(event_id, instance_id) DO UPDATE SET
			name = COALESCE(excluded.name, name),
			description = COALESCE(excluded.description, description),
			location = COALESCE(excluded.location, location),
			start_at = COALESCE(excluded.start_at, start_at),
			end_at = COALESCE(excluded.end_at, end_at),
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at
	`

	_, err = tx.ExecContext(ctx, query,
		exc.EventID, exc.InstanceID,
		nullString(exc.Name), nullString(exc.Description), nullString(exc.Location),
		nullTime(exc.StartAt), nullTime(exc.EndAt),
		exc.CreatedBy, exc.UpdatedBy, formatTime(exc.CreatedAt), formatTime(exc.UpdatedAt),
	)
	if err != nil {
		if isForeignKeyError(err) {
			return overlay.EventException{}, recurrence.NotFound("instance", string(exc.InstanceID))
		}
		return overlay.EventException{}, fmt.Errorf("failed to upsert event exception: %w", err)
	}

	stored, err := scanEventException(tx.QueryRowContext(ctx,
		`SELECT `+eventExceptionColumns+` FROM event_instance_exceptions WHERE event_id = ? AND instance_id = ?`,
		exc.EventID, exc.InstanceID))
	if err != nil {
		return overlay.EventException{}, err
	}
	if err := tx.Commit(); err != nil {
		return overlay.EventException{}, fmt.Errorf("failed to commit event exception: %w", err)
	}
	return stored, nil
}

const eventExceptionColumns = `event_id, instance_id, name, description, location, start_at, end_at,
	created_by, updated_by, created_at, updated_at`

// GetEventException returns the detail exception for one instance, or nil.
func (s *Store) GetEventException(ctx context.Context, eventID recurrence.EventID, instanceID recurrence.InstanceID) (*overlay.EventException, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exc, err := scanEventException(s.db.QueryRowContext(ctx,
		`SELECT `+eventExceptionColumns+` FROM event_instance_exceptions WHERE event_id = ? AND instance_id = ?`,
		eventID, instanceID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &exc, nil
}

// ListEventExceptions returns every detail exception of an event.
func (s *Store) ListEventExceptions(ctx context.Context, eventID recurrence.EventID) ([]overlay.EventException, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventExceptionColumns+` FROM event_instance_exceptions WHERE event_id = ?`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query event exceptions: %w", err)
	}
	defer rows.Close()

	var out []overlay.EventException
	for rows.Next() {
		exc, err := scanEventException(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, exc)
	}
	return out, rows.Err()
}

func scanEventException(row scanner) (overlay.EventException, error) {
	var (
		exc                         overlay.EventException
		name, description, location sql.NullString
		startAt, endAt              sql.NullString
		createdAt, updatedAt        string
	)
	err := row.Scan(
		&exc.EventID, &exc.InstanceID, &name, &description, &location, &startAt, &endAt,
		&exc.CreatedBy, &exc.UpdatedBy, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return exc, err
	}
	if err != nil {
		return exc, fmt.Errorf("failed to scan event exception: %w", err)
	}

	exc.Name = stringPtr(name)
	exc.Description = stringPtr(description)
	exc.Location = stringPtr(location)
	exc.StartAt = parseNullTime(startAt)
	exc.EndAt = parseNullTime(endAt)
	exc.CreatedAt = parseTime(createdAt)
	exc.UpdatedAt = parseTime(updatedAt)
	return exc, nil
}

// =============================================================================
// ACTION ITEM EXCEPTIONS
// =============================================================================

const actionExceptionColumns = `action_item_id, instance_id, completed, post_completion_notes,
	created_by, updated_by, created_at, updated_at`

// UpsertActionItemException records completion state for one instance.
func (s *Store) UpsertActionItemException(ctx context.Context, exc overlay.ActionItemException) (overlay.ActionItemException, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return overlay.ActionItemException{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO action_item_exceptions (` + actionExceptionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(action_item_id, instance_id) DO UPDATE SET
			completed = COALESCE(excluded.completed, completed),
			post_completion_notes = COALESCE(excluded.post_completion_notes, post_completion_notes),
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at
	`

	_, err = tx.ExecContext(ctx, query,
		exc.ActionItemID, exc.InstanceID, nullBool(exc.Completed), nullString(exc.PostCompletionNotes),
		exc.CreatedBy, exc.UpdatedBy, formatTime(exc.CreatedAt), formatTime(exc.UpdatedAt),
	)
	if err != nil {
		if isForeignKeyError(err) {
			return overlay.ActionItemException{}, recurrence.NotFound("instance", string(exc.InstanceID))
		}
		return overlay.ActionItemException{}, fmt.Errorf("failed to upsert action item exception: %w", err)
	}

	stored, err := scanActionException(tx.QueryRowContext(ctx,
		`SELECT `+actionExceptionColumns+` FROM action_item_exceptions WHERE action_item_id = ? AND instance_id = ?`,
		exc.ActionItemID, exc.InstanceID))
	if err != nil {
		return overlay.ActionItemException{}, err
	}
	if err := tx.Commit(); err != nil {
		return overlay.ActionItemException{}, fmt.Errorf("failed to commit action item exception: %w", err)
	}
	return stored, nil
}

// ListActionItemExceptions returns the action item exceptions of an instance.
func (s *Store) ListActionItemExceptions(ctx context.Context, instanceID recurrence.InstanceID) ([]overlay.ActionItemException, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+actionExceptionColumns+` FROM action_item_exceptions WHERE instance_id = ?`, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query action item exceptions: %w", err)
	}
	defer rows.Close()

	var out []overlay.ActionItemException
	for rows.Next() {
		exc, err := scanActionException(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, exc)
	}
	return out, rows.Err()
}

func scanActionException(row scanner) (overlay.ActionItemException, error) {
	var (
		exc                  overlay.ActionItemException
		completed            sql.NullBool
		notes                sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(
		&exc.ActionItemID, &exc.InstanceID, &completed, &notes,
		&exc.CreatedBy, &exc.UpdatedBy, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return exc, err
	}
	if err != nil {
		return exc, fmt.Errorf("failed to scan action item exception: %w", err)
	}

	if completed.Valid {
		c := completed.Bool
		exc.Completed = &c
	}
	exc.PostCompletionNotes = stringPtr(notes)
	exc.CreatedAt = parseTime(createdAt)
	exc.UpdatedAt = parseTime(updatedAt)
	return exc, nil
}

// =============================================================================
// VOLUNTEER AND VOLUNTEER GROUP EXCEPTIONS
// =============================================================================
//
// These carry no override fields. The row's presence excludes the volunteer
// or group from the instance; a repeat write only refreshes the audit fields.

// UpsertVolunteerException excludes a volunteer from one instance.
func (s *Store) UpsertVolunteerException(ctx context.Context, exc overlay.VolunteerException) (overlay.VolunteerException, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.upsertPresence(ctx, "event_volunteer_exceptions", "volunteer_id", string(exc.VolunteerID), exc.InstanceID, exc.ExceptionMeta)
	if err != nil {
		return overlay.VolunteerException{}, err
	}
	return overlay.VolunteerException{VolunteerID: exc.VolunteerID, InstanceID: exc.InstanceID, ExceptionMeta: meta}, nil
}

// ListVolunteerExceptions returns the volunteer exclusions of an instance.
func (s *Store) ListVolunteerExceptions(ctx context.Context, instanceID recurrence.InstanceID) ([]overlay.VolunteerException, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []overlay.VolunteerException
	err := s.listPresence(ctx, "event_volunteer_exceptions", "volunteer_id", instanceID, func(id string, meta overlay.ExceptionMeta) {
		out = append(out, overlay.VolunteerException{VolunteerID: overlay.VolunteerID(id), InstanceID: instanceID, ExceptionMeta: meta})
	})
	return out, err
}

// UpsertVolunteerGroupException excludes a volunteer group from one instance.
func (s *Store) UpsertVolunteerGroupException(ctx context.Context, exc overlay.VolunteerGroupException) (overlay.VolunteerGroupException, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.upsertPresence(ctx, "event_volunteer_group_exceptions", "volunteer_group_id", string(exc.VolunteerGroupID), exc.InstanceID, exc.ExceptionMeta)
	if err != nil {
		return overlay.VolunteerGroupException{}, err
	}
	return overlay.VolunteerGroupException{VolunteerGroupID: exc.VolunteerGroupID, InstanceID: exc.InstanceID, ExceptionMeta: meta}, nil
}

// ListVolunteerGroupExceptions returns the volunteer group exclusions of an instance.
func (s *Store) ListVolunteerGroupExceptions(ctx context.Context, instanceID recurrence.InstanceID) ([]overlay.VolunteerGroupException, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []overlay.VolunteerGroupException
	err := s.listPresence(ctx, "event_volunteer_group_exceptions", "volunteer_group_id", instanceID, func(id string, meta overlay.ExceptionMeta) {
		out = append(out, overlay.VolunteerGroupException{VolunteerGroupID: overlay.VolunteerGroupID(id), InstanceID: instanceID, ExceptionMeta: meta})
	})
	return out, err
}

// upsertPresence writes a presence-only exception row. table and keyColumn
// are package constants, never caller input.
func (s *Store) upsertPresence(ctx context.Context, table, keyColumn, key string, instanceID recurrence.InstanceID, meta overlay.ExceptionMeta) (overlay.ExceptionMeta, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return overlay.ExceptionMeta{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO ` + table + ` (` + keyColumn + `, instance_id, created_by, updated_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(` + keyColumn + `, instance_id) DO UPDATE SET
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at
	`
	_, err = tx.ExecContext(ctx, query,
		key, instanceID, meta.CreatedBy, meta.UpdatedBy, formatTime(meta.CreatedAt), formatTime(meta.UpdatedAt))
	if err != nil {
		if isForeignKeyError(err) {
			return overlay.ExceptionMeta{}, recurrence.NotFound("instance", string(instanceID))
		}
		return overlay.ExceptionMeta{}, fmt.Errorf("failed to upsert %s: %w", table, err)
	}

	var stored overlay.ExceptionMeta
	var createdAt, updatedAt string
	err = tx.QueryRowContext(ctx,
		`SELECT created_by, updated_by, created_at, updated_at FROM `+table+` WHERE `+keyColumn+` = ? AND instance_id = ?`,
		key, instanceID,
	).Scan(&stored.CreatedBy, &stored.UpdatedBy, &createdAt, &updatedAt)
	if err != nil {
		return overlay.ExceptionMeta{}, fmt.Errorf("failed to read %s: %w", table, err)
	}
	stored.CreatedAt = parseTime(createdAt)
	stored.UpdatedAt = parseTime(updatedAt)

	if err := tx.Commit(); err != nil {
		return overlay.ExceptionMeta{}, fmt.Errorf("failed to commit %s: %w", table, err)
	}
	return stored, nil
}

func (s *Store) listPresence(ctx context.Context, table, keyColumn string, instanceID recurrence.InstanceID, fn func(id string, meta overlay.ExceptionMeta)) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+keyColumn+`, created_by, updated_by, created_at, updated_at FROM `+table+` WHERE instance_id = ?`,
		instanceID)
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id                   string
			meta                 overlay.ExceptionMeta
			createdAt, updatedAt string
		)
		if err := rows.Scan(&id, &meta.CreatedBy, &meta.UpdatedBy, &createdAt, &updatedAt); err != nil {
			return fmt.Errorf("failed to scan %s: %w", table, err)
		}
		meta.CreatedAt = parseTime(createdAt)
		meta.UpdatedAt = parseTime(updatedAt)
		fn(id, meta)
	}
	return rows.Err()
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
