package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/evanschultz/sprinter/internal/app"
	"github.com/evanschultz/sprinter/internal/domain"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// Repository stores sprint snapshots in normalized sprint, sprinter and task tables.
type Repository struct {
	db *sql.DB
}

// Open opens the requested operation.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// OpenInMemory opens in memory.
func OpenInMemory() (*Repository, error) {
	db, err := sql.Open(driverName, "file::memory:?cache=shared")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the requested operation.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping reports whether the database answers.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// migrate handles migrate.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS sprints (
			id TEXT PRIMARY KEY,
			version TEXT NOT NULL,
			saved_at TEXT NOT NULL,
			saved_unix INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sprinters (
			sprint_id TEXT NOT NULL,
			id TEXT NOT NULL,
			name TEXT NOT NULL,
			position INTEGER NOT NULL,
			has_capacity INTEGER NOT NULL DEFAULT 0,
			suggested_sp INTEGER NOT NULL DEFAULT 0,
			target_sp INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY(sprint_id, id),
			FOREIGN KEY(sprint_id) REFERENCES sprints(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			sprint_id TEXT NOT NULL,
			id TEXT NOT NULL,
			position INTEGER NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			story_points INTEGER NOT NULL,
			priority TEXT NOT NULL,
			assigned_to TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY(sprint_id, id),
			FOREIGN KEY(sprint_id) REFERENCES sprints(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sprints_saved ON sprints(saved_unix DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_assigned ON tasks(sprint_id, assigned_to);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// SaveSnapshot replaces the stored rows of snap's sprint in one transaction.
func (r *Repository) SaveSnapshot(ctx context.Context, snap app.Snapshot) (err error) {
	if strings.TrimSpace(snap.SprintID) == "" {
		return errors.New("sprint id is required")
	}
	version := snap.Version
	if version == "" {
		version = app.SnapshotVersion
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sprints(id, version, saved_at, saved_unix)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			version = excluded.version,
			saved_at = excluded.saved_at,
			saved_unix = excluded.saved_unix
	`, snap.SprintID, version, ts(snap.SavedAt), snap.SavedAt.UTC().UnixNano())
	if err != nil {
		return err
	}
	if err = deleteSprintRows(ctx, tx, snap.SprintID); err != nil {
		return err
	}

	for i, member := range snap.Roster {
		entry, hasCapacity := snap.Capacity[member.ID]
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sprinters(sprint_id, id, name, position, has_capacity, suggested_sp, target_sp)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, snap.SprintID, member.ID, member.Name, i, boolInt(hasCapacity), entry.SuggestedStoryPoints, entry.TargetStoryPointsPerPerson)
		if err != nil {
			return err
		}
	}
	for i, task := range snap.Tasks {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO tasks(sprint_id, id, position, title, description, story_points, priority, assigned_to, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			snap.SprintID,
			task.ID,
			i,
			task.Title,
			task.Description,
			task.StoryPoints,
			string(task.Priority),
			nullableString(task.AssignedTo),
			ts(task.CreatedAt),
			ts(task.UpdatedAt),
		)
		if err != nil {
			return err
		}
	}

	err = tx.Commit()
	return err
}

// LoadSnapshot reads one sprint by id.
func (r *Repository) LoadSnapshot(ctx context.Context, sprintID string) (app.Snapshot, error) {
	var (
		snap     app.Snapshot
		savedRaw string
	)
	row := r.db.QueryRowContext(ctx, `SELECT id, version, saved_at FROM sprints WHERE id = ?`, sprintID)
	if err := row.Scan(&snap.SprintID, &snap.Version, &savedRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return app.Snapshot{}, fmt.Errorf("sprint %q: %w", sprintID, app.ErrNotFound)
		}
		return app.Snapshot{}, err
	}
	snap.SavedAt = parseTS(savedRaw)

	roster, capacity, err := r.loadRoster(ctx, sprintID)
	if err != nil {
		return app.Snapshot{}, err
	}
	snap.Roster = roster
	snap.Capacity = capacity

	tasks, err := r.loadTasks(ctx, sprintID)
	if err != nil {
		return app.Snapshot{}, err
	}
	snap.Tasks = tasks
	return snap, nil
}

// LatestSnapshot reads the most recently saved sprint.
func (r *Repository) LatestSnapshot(ctx context.Context) (app.Snapshot, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM sprints ORDER BY saved_unix DESC, rowid DESC LIMIT 1`).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return app.Snapshot{}, app.ErrNotFound
		}
		return app.Snapshot{}, err
	}
	return r.LoadSnapshot(ctx, id)
}

// ListSprints summarizes stored sprints, newest first.
func (r *Repository) ListSprints(ctx context.Context) ([]app.SprintSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			s.id,
			s.saved_at,
			(SELECT COUNT(*) FROM sprinters p WHERE p.sprint_id = s.id),
			(SELECT COUNT(*) FROM tasks t WHERE t.sprint_id = s.id),
			(SELECT COUNT(*) FROM tasks t WHERE t.sprint_id = s.id AND t.assigned_to IS NOT NULL),
			(SELECT COALESCE(SUM(t.story_points), 0) FROM tasks t WHERE t.sprint_id = s.id)
		FROM sprints s
		ORDER BY s.saved_unix DESC, s.rowid DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]app.SprintSummary, 0)
	for rows.Next() {
		var (
			summary  app.SprintSummary
			savedRaw string
		)
		if err := rows.Scan(&summary.SprintID, &savedRaw, &summary.RosterSize, &summary.TaskCount, &summary.Assigned, &summary.StoryPoints); err != nil {
			return nil, err
		}
		summary.SavedAt = parseTS(savedRaw)
		out = append(out, summary)
	}
	return out, rows.Err()
}

// DeleteSprint removes a sprint and its rows.
func (r *Repository) DeleteSprint(ctx context.Context, sprintID string) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = deleteSprintRows(ctx, tx, sprintID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sprints WHERE id = ?`, sprintID)
	if err != nil {
		return err
	}
	if err = translateNoRows(res); err != nil {
		return err
	}
	err = tx.Commit()
	return err
}

func (r *Repository) loadRoster(ctx context.Context, sprintID string) ([]app.SnapshotSprinter, map[string]app.SnapshotCapacity, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, has_capacity, suggested_sp, target_sp
		FROM sprinters
		WHERE sprint_id = ?
		ORDER BY position ASC
	`, sprintID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	roster := make([]app.SnapshotSprinter, 0)
	capacity := map[string]app.SnapshotCapacity{}
	for rows.Next() {
		var (
			member      app.SnapshotSprinter
			hasCapacity int
			entry       app.SnapshotCapacity
		)
		if err := rows.Scan(&member.ID, &member.Name, &hasCapacity, &entry.SuggestedStoryPoints, &entry.TargetStoryPointsPerPerson); err != nil {
			return nil, nil, err
		}
		roster = append(roster, member)
		if hasCapacity != 0 {
			capacity[member.ID] = entry
		}
	}
	return roster, capacity, rows.Err()
}

func (r *Repository) loadTasks(ctx context.Context, sprintID string) ([]app.SnapshotTask, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, description, story_points, priority, assigned_to, created_at, updated_at
		FROM tasks
		WHERE sprint_id = ?
		ORDER BY position ASC
	`, sprintID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]app.SnapshotTask, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

// scanner represents the row scanning contract shared by sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// execerContext represents a write-only DB contract used by DB and Tx implementations.
type execerContext interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}

func deleteSprintRows(ctx context.Context, execer execerContext, sprintID string) error {
	if _, err := execer.ExecContext(ctx, `DELETE FROM tasks WHERE sprint_id = ?`, sprintID); err != nil {
		return err
	}
	_, err := execer.ExecContext(ctx, `DELETE FROM sprinters WHERE sprint_id = ?`, sprintID)
	return err
}

func scanTask(s scanner) (app.SnapshotTask, error) {
	var (
		task       app.SnapshotTask
		priority   string
		assignedTo sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := s.Scan(&task.ID, &task.Title, &task.Description, &task.StoryPoints, &priority, &assignedTo, &createdRaw, &updatedRaw); err != nil {
		return app.SnapshotTask{}, err
	}
	task.Priority = domain.Priority(priority)
	if assignedTo.Valid {
		holder := assignedTo.String
		task.AssignedTo = &holder
	}
	task.CreatedAt = parseTS(createdRaw)
	task.UpdatedAt = parseTS(updatedRaw)
	return task, nil
}

// translateNoRows handles translate no rows.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

// ts handles ts.
func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTS parses input into a normalized form.
func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

func nullableString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
