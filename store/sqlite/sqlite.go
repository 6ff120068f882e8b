/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements every persistence interface of the recurrence engine using
  SQLite. The same statements port to PostgreSQL with minor dialect changes
  (ON CONFLICT is shared by both).

INTERFACES IMPLEMENTED:
  recurrence.RuleStore:     Recurrence templates
  recurrence.InstanceStore: Materialized instances
  overlay.EntityStore:      Events, action items, volunteers, groups
  overlay.ExceptionStore:   Per-instance exception rows

UNIQUENESS IS THE CONCURRENCY CONTROL:
  - recurring_event_instances UNIQUE(rule_id, occurrence_start)
      InsertInstanceIfAbsent uses ON CONFLICT DO NOTHING, so two generation
      workers racing on the same occurrence produce exactly one row.
  - every exception table has a composite primary key (entity, instance)
      Upserts use ON CONFLICT DO UPDATE, so racing writers produce one row
      and the last write wins.

KEY TABLES:
  events:                           Template events
  recurrence_rules:                 One rule per recurring template event
  recurring_event_instances:        Materialized occurrences
  action_items, event_volunteers,
  event_volunteer_groups:           Base entities attached to events
  event_instance_exceptions,
  action_item_exceptions,
  event_volunteer_exceptions,
  event_volunteer_group_exceptions: Sparse per-instance overrides

RETIREMENT:
  Exception tables reference instances without ON DELETE CASCADE.
  RetireInstances deletes dependents explicitly (cascade policy) or skips
  the instance (refuse policy), always inside one transaction.

CONCURRENCY:
  Uses sync.RWMutex for in-process safety and a single connection, which
  also keeps ":memory:" databases shared across calls. With PostgreSQL the
  database handles this instead.

USAGE:
  store, err := sqlite.New("./data/recurrence.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  materializer := recurrence.NewMaterializer(store)

SEE ALSO:
  - recurrence/store.go: RuleStore and InstanceStore
  - overlay/store.go: EntityStore and ExceptionStore
  - recurrence/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/recurrence-engine/overlay"
	"github.com/warp/recurrence-engine/recurrence"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Template events
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		start_at TEXT NOT NULL,
		end_at TEXT NOT NULL,
		is_recurring BOOLEAN NOT NULL DEFAULT FALSE,
		created_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_organization
		ON events(organization_id);

	-- Recurrence rules (templates, never rewritten by generation)
	CREATE TABLE IF NOT EXISTS recurrence_rules (
		id TEXT PRIMARY KEY,
		base_event_id TEXT NOT NULL REFERENCES events(id),
		organization_id TEXT NOT NULL,
		frequency TEXT NOT NULL,
		interval INTEGER NOT NULL DEFAULT 1,
		count INTEGER,
		never BOOLEAN NOT NULL DEFAULT FALSE,
		recurrence_start_date TEXT NOT NULL,
		recurrence_end_date TEXT,
		by_day_json TEXT,
		by_month_json TEXT,
		by_month_day_json TEXT,
		duration_seconds INTEGER NOT NULL DEFAULT 0,
		latest_instance_date TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rules_base_event
		ON recurrence_rules(base_event_id);
	CREATE INDEX IF NOT EXISTS idx_rules_end_date
		ON recurrence_rules(recurrence_end_date);

	-- Materialized instances
	CREATE TABLE IF NOT EXISTS recurring_event_instances (
		id TEXT PRIMARY KEY,
		rule_id TEXT NOT NULL REFERENCES recurrence_rules(id),
		base_event_id TEXT NOT NULL,
		organization_id TEXT NOT NULL,
		occurrence_start TEXT NOT NULL,
		occurrence_end TEXT NOT NULL,
		sequence_number INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE(rule_id, occurrence_start)
	);

	CREATE INDEX IF NOT EXISTS idx_instances_occurrence_end
		ON recurring_event_instances(occurrence_end);

	-- Base entities
	CREATE TABLE IF NOT EXISTS action_items (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		event_id TEXT NOT NULL REFERENCES events(id),
		assignee_id TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		pre_completion_notes TEXT NOT NULL DEFAULT '',
		post_completion_notes TEXT NOT NULL DEFAULT '',
		completed BOOLEAN NOT NULL DEFAULT FALSE,
		allotted_hours TEXT NOT NULL DEFAULT '0',
		created_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_action_items_event
		ON action_items(event_id);

	CREATE TABLE IF NOT EXISTS event_volunteers (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL REFERENCES events(id),
		user_id TEXT NOT NULL,
		has_accepted BOOLEAN NOT NULL DEFAULT FALSE,
		hours_volunteered TEXT NOT NULL DEFAULT '0',
		created_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_volunteers_event
		ON event_volunteers(event_id);

	CREATE TABLE IF NOT EXISTS event_volunteer_groups (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL REFERENCES events(id),
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		leader_id TEXT NOT NULL DEFAULT '',
		volunteers_required INTEGER NOT NULL DEFAULT 0,
		created_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_volunteer_groups_event
		ON event_volunteer_groups(event_id);

	-- Exceptions (one row per entity per instance)
	CREATE TABLE IF NOT EXISTS event_instance_exceptions (
		event_id TEXT NOT NULL REFERENCES events(id),
		instance_id TEXT NOT NULL REFERENCES recurring_event_instances(id),
		name TEXT,
		description TEXT,
		location TEXT,
		start_at TEXT,
		end_at TEXT,
		created_by TEXT NOT NULL,
		updated_by TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (event_id, instance_id)
	);

	CREATE TABLE IF NOT EXISTS action_item_exceptions (
		action_item_id TEXT NOT NULL REFERENCES action_items(id),
		instance_id TEXT NOT NULL REFERENCES recurring_event_instances(id),
		completed BOOLEAN,
		post_completion_notes TEXT,
		created_by TEXT NOT NULL,
		updated_by TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (action_item_id, instance_id)
	);

	CREATE TABLE IF NOT EXISTS event_volunteer_exceptions (
		volunteer_id TEXT NOT NULL REFERENCES event_volunteers(id),
		instance_id TEXT NOT NULL REFERENCES recurring_event_instances(id),
		created_by TEXT NOT NULL,
		updated_by TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (volunteer_id, instance_id)
	);

	CREATE TABLE IF NOT EXISTS event_volunteer_group_exceptions (
		volunteer_group_id TEXT NOT NULL REFERENCES event_volunteer_groups(id),
		instance_id TEXT NOT NULL REFERENCES recurring_event_instances(id),
		created_by TEXT NOT NULL,
		updated_by TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (volunteer_group_id, instance_id)
	);

	CREATE INDEX IF NOT EXISTS idx_event_exc_instance
		ON event_instance_exceptions(instance_id);
	CREATE INDEX IF NOT EXISTS idx_action_exc_instance
		ON action_item_exceptions(instance_id);
	CREATE INDEX IF NOT EXISTS idx_volunteer_exc_instance
		ON event_volunteer_exceptions(instance_id);
	CREATE INDEX IF NOT EXISTS idx_group_exc_instance
		ON event_volunteer_group_exceptions(instance_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RULE STORE (recurrence.RuleStore interface)
// =============================================================================

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

const ruleColumns = `id, base_event_id, organization_id, frequency, interval, count, never,
	recurrence_start_date, recurrence_end_date, by_day_json, by_month_json, by_month_day_json,
	duration_seconds, latest_instance_date, created_at, updated_at`

// SaveRule inserts or replaces a rule. Materialized instances are untouched.
func (s *Store) SaveRule(ctx context.Context, r recurrence.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saveRule(ctx, s.db, r)
}

func (s *Store) saveRule(ctx context.Context, db execer, r recurrence.Rule) error {
	byDay, _ := json.Marshal(r.ByDay)
	byMonth, _ := json.Marshal(r.ByMonth)
	byMonthDay, _ := json.Marshal(r.ByMonthDay)

	now := time.Now().UTC()
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	query := `
		INSERT INTO recurrence_rules (` + ruleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			frequency = excluded.frequency,
			interval = excluded.interval,
			count = excluded.count,
			never = excluded.never,
			recurrence_start_date = excluded.recurrence_start_date,
			recurrence_end_date = excluded.recurrence_end_date,
			by_day_json = excluded.by_day_json,
			by_month_json = excluded.by_month_json,
			by_month_day_json = excluded.by_month_day_json,
			duration_seconds = excluded.duration_seconds,
			updated_at = excluded.updated_at
	`

	_, err := db.ExecContext(ctx, query,
		r.ID,
		r.BaseEventID,
		r.OrganizationID,
		r.Frequency,
		r.Interval,
		nullInt(r.Count),
		r.Never,
		formatTime(r.RecurrenceStartDate),
		nullTime(r.RecurrenceEndDate),
		string(byDay),
		string(byMonth),
		string(byMonthDay),
		int64(r.Duration/time.Second),
		nullTime(r.LatestInstanceDate),
		formatTime(createdAt),
		formatTime(now),
	)
	if err != nil {
		if isForeignKeyError(err) {
			return recurrence.NotFound("event", string(r.BaseEventID))
		}
		return fmt.Errorf("failed to save rule: %w", err)
	}
	return nil
}

// GetRule retrieves a rule by ID.
func (s *Store) GetRule(ctx context.Context, id recurrence.RuleID) (*recurrence.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM recurrence_rules WHERE id = ?`, id)
	r, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRuleByEvent retrieves the rule owned by a template event.
func (s *Store) GetRuleByEvent(ctx context.Context, eventID recurrence.EventID) (*recurrence.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM recurrence_rules WHERE base_event_id = ?`, eventID)
	r, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListActiveRules returns rules with no end date or an end date after since.
func (s *Store) ListActiveRules(ctx context.Context, since time.Time) ([]recurrence.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + ruleColumns + `
		FROM recurrence_rules
		WHERE recurrence_end_date IS NULL OR recurrence_end_date > ?
		ORDER BY id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var rules []recurrence.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// MarkMaterialized advances latest_instance_date, never backwards.
func (s *Store) MarkMaterialized(ctx context.Context, id recurrence.RuleID, latest time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM recurrence_rules WHERE id = ?", id).Scan(&count); err != nil {
		return fmt.Errorf("failed to check rule: %w", err)
	}
	if count == 0 {
		return recurrence.NotFound("rule", string(id))
	}

	query := `
		UPDATE recurrence_rules
		SET latest_instance_date = ?, updated_at = ?
		WHERE id = ? AND (latest_instance_date IS NULL OR latest_instance_date < ?)
	`
	l := formatTime(latest)
	if _, err := s.db.ExecContext(ctx, query, l, formatTime(time.Now()), id, l); err != nil {
		return fmt.Errorf("failed to mark rule materialized: %w", err)
	}
	return nil
}

func scanRule(row scanner) (recurrence.Rule, error) {
	var (
		r                          recurrence.Rule
		count                      sql.NullInt64
		startDate                  string
		endDate, latest            sql.NullString
		byDay, byMonth, byMonthDay sql.NullString
		durationSeconds            int64
		createdAt, updatedAt       string
	)

	err := row.Scan(
		&r.ID, &r.BaseEventID, &r.OrganizationID, &r.Frequency, &r.Interval, &count, &r.Never,
		&startDate, &endDate, &byDay, &byMonth, &byMonthDay,
		&durationSeconds, &latest, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return r, err
	}
	if err != nil {
		return r, fmt.Errorf("failed to scan rule: %w", err)
	}

	if count.Valid {
		c := int(count.Int64)
		r.Count = &c
	}
	r.RecurrenceStartDate = parseTime(startDate)
	r.RecurrenceEndDate = parseNullTime(endDate)
	r.LatestInstanceDate = parseNullTime(latest)
	r.Duration = time.Duration(durationSeconds) * time.Second
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)

	if byDay.Valid {
		if err := json.Unmarshal([]byte(byDay.String), &r.ByDay); err != nil {
			return r, fmt.Errorf("failed to scan rule %s: by_day: %w", r.ID, err)
		}
	}
	if byMonth.Valid {
		if err := json.Unmarshal([]byte(byMonth.String), &r.ByMonth); err != nil {
			return r, fmt.Errorf("failed to scan rule %s: by_month: %w", r.ID, err)
		}
	}
	if byMonthDay.Valid {
		if err := json.Unmarshal([]byte(byMonthDay.String), &r.ByMonthDay); err != nil {
			return r, fmt.Errorf("failed to scan rule %s: by_month_day: %w", r.ID, err)
		}
	}
	return r, nil
}

// =============================================================================
// INSTANCE STORE (recurrence.InstanceStore interface)
// =============================================================================

const instanceColumns = `id, rule_id, base_event_id, organization_id, occurrence_start,
	occurrence_end, sequence_number, created_at`

// InsertInstanceIfAbsent inserts an instance unless (rule_id, occurrence_start)
// already exists.
func (s *Store) InsertInstanceIfAbsent(ctx context.Context, inst recurrence.Instance) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO recurring_event_instances (` + instanceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(rule_id, occurrence_start) DO NOTHING
	`

	res, err := s.db.ExecContext(ctx, query,
		inst.ID,
		inst.RuleID,
		inst.BaseEventID,
		inst.OrganizationID,
		formatTime(inst.OccurrenceStart),
		formatTime(inst.OccurrenceEnd),
		inst.SequenceNumber,
		formatTime(inst.CreatedAt),
	)
	if err != nil {
		if isForeignKeyError(err) {
			return false, recurrence.NotFound("rule", string(inst.RuleID))
		}
		return false, fmt.Errorf("failed to insert instance: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to insert instance: %w", err)
	}
	return n == 1, nil
}

// GetInstance retrieves an instance by ID.
func (s *Store) GetInstance(ctx context.Context, id recurrence.InstanceID) (*recurrence.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+instanceColumns+` FROM recurring_event_instances WHERE id = ?`, id)
	inst, err := scanInstance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

// ListInstances returns a rule's instances starting in [from, to).
func (s *Store) ListInstances(ctx context.Context, ruleID recurrence.RuleID, from, to time.Time) ([]recurrence.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + instanceColumns + `
		FROM recurring_event_instances
		WHERE rule_id = ? AND occurrence_start >= ? AND occurrence_start < ?
		ORDER BY occurrence_start ASC
	`

	rows, err := s.db.QueryContext(ctx, query, ruleID, formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query instances: %w", err)
	}
	defer rows.Close()

	var instances []recurrence.Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		instances = append(instances, inst)
	}
	return instances, rows.Err()
}

// dependentTables are the exception tables that reference instances.
var dependentTables = []string{
	"event_instance_exceptions",
	"action_item_exceptions",
	"event_volunteer_exceptions",
	"event_volunteer_group_exceptions",
}

// RetireInstances deletes instances whose occurrence_end is before cutoff,
// handling exception rows according to policy. The sweep is one transaction.
func (s *Store) RetireInstances(ctx context.Context, cutoff time.Time, policy recurrence.RetirePolicy) (recurrence.RetireReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var report recurrence.RetireReport

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return report, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, rule_id FROM recurring_event_instances
		WHERE occurrence_end < ?
		ORDER BY occurrence_start ASC
	`, formatTime(cutoff))
	if err != nil {
		return report, fmt.Errorf("failed to query expired instances: %w", err)
	}

	type expired struct {
		id     recurrence.InstanceID
		ruleID recurrence.RuleID
	}
	var candidates []expired
	for rows.Next() {
		var e expired
		if err := rows.Scan(&e.id, &e.ruleID); err != nil {
			rows.Close()
			return report, fmt.Errorf("failed to scan expired instance: %w", err)
		}
		candidates = append(candidates, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return report, err
	}
	rows.Close()

	for _, c := range candidates {
		deps := 0
		for _, table := range dependentTables {
			var n int
			if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+" WHERE instance_id = ?", c.id).Scan(&n); err != nil {
				return recurrence.RetireReport{}, fmt.Errorf("failed to count dependents: %w", err)
			}
			deps += n
		}

		if deps > 0 && policy == recurrence.RetireRefuse {
			report.Skipped = append(report.Skipped, recurrence.SkippedInstance{ID: c.id, RuleID: c.ruleID, Dependents: deps})
			continue
		}
		if deps > 0 {
			for _, table := range dependentTables {
				if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE instance_id = ?", c.id); err != nil {
					return recurrence.RetireReport{}, fmt.Errorf("failed to delete dependents: %w", err)
				}
			}
			report.DependentsDeleted += deps
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM recurring_event_instances WHERE id = ?", c.id); err != nil {
			return recurrence.RetireReport{}, fmt.Errorf("failed to delete instance: %w", err)
		}
		report.Deleted = append(report.Deleted, c.id)
	}

	if err := tx.Commit(); err != nil {
		return recurrence.RetireReport{}, fmt.Errorf("failed to commit retirement: %w", err)
	}
	return report, nil
}

func scanInstance(row scanner) (recurrence.Instance, error) {
	var (
		inst                  recurrence.Instance
		start, end, createdAt string
	)

	err := row.Scan(
		&inst.ID, &inst.RuleID, &inst.BaseEventID, &inst.OrganizationID,
		&start, &end, &inst.SequenceNumber, &createdAt,
	)
	if err == sql.ErrNoRows {
		return inst, err
	}
	if err != nil {
		return inst, fmt.Errorf("failed to scan instance: %w", err)
	}

	inst.OccurrenceStart = parseTime(start)
	inst.OccurrenceEnd = parseTime(end)
	inst.CreatedAt = parseTime(createdAt)
	return inst, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// formatTime stores whole seconds; fractional seconds are dropped. Columns
// are compared as strings, so the format stays fixed-width.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t.UTC()
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

var (
	_ recurrence.RuleStore     = (*Store)(nil)
	_ recurrence.InstanceStore = (*Store)(nil)
	_ overlay.Store            = (*Store)(nil)
)
