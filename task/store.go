package task

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id               TEXT PRIMARY KEY,
	description      TEXT NOT NULL,
	status           TEXT NOT NULL,
	priority         INTEGER NOT NULL DEFAULT 1,
	executor_class   TEXT NOT NULL DEFAULT '',
	depends_on       TEXT NOT NULL DEFAULT '[]',
	result           TEXT NOT NULL DEFAULT '',
	error            TEXT NOT NULL DEFAULT '',
	attestation_hash TEXT NOT NULL DEFAULT '',
	workload         REAL NOT NULL DEFAULT 0,
	created_at       DATETIME NOT NULL,
	updated_at       DATETIME NOT NULL,
	started_at       DATETIME,
	completed_at     DATETIME
);
`

// SQLiteStore persists tasks in a SQLite database and enforces the lifecycle
// state machine with compare-and-swap updates.
type SQLiteStore struct {
	db *sql.DB
}

var _ Registry = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the tasks table exists. The caller is responsible for calling Close.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1) // prevent SQLITE_BUSY
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Create validates the description, persists a new task in StatusPending,
// and returns it.
func (s *SQLiteStore) Create(description string, priority Priority, dependsOn []string) (*Task, error) {
	if strings.TrimSpace(description) == "" {
		return nil, fmt.Errorf("%w: description is empty", ErrInvalidInput)
	}
	if len(description) > MaxDescriptionLen {
		return nil, fmt.Errorf("%w: description exceeds %d characters", ErrInvalidInput, MaxDescriptionLen)
	}
	for _, dep := range dependsOn {
		if strings.TrimSpace(dep) == "" {
			return nil, fmt.Errorf("%w: empty dependency id", ErrInvalidInput)
		}
	}

	now := time.Now().UTC()
	t := &Task{
		ID:          uuid.New().String(),
		Description: description,
		Status:      StatusPending,
		Priority:    priority,
		DependsOn:   dependsOn,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// Structured list encoding: a delimiter join would corrupt ids that
	// contain the delimiter.
	deps, _ := json.Marshal(t.DependsOn)

	_, err := s.db.Exec(`
		INSERT INTO tasks
			(id, description, status, priority, executor_class, depends_on,
			 result, error, attestation_hash, workload, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Description, string(t.Status), int(t.Priority), "", string(deps),
		"", "", "", 0.0, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return t, nil
}

// Get retrieves a task by ID.
func (s *SQLiteStore) Get(id string) (*Task, error) {
	row := s.db.QueryRow(`SELECT * FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return t, err
}

// Transition performs a compare-and-swap status change. The WHERE clause
// matches on both id and the expected status, so two concurrent callers
// racing the same transition see exactly one winner.
func (s *SQLiteStore) Transition(id string, expected, next Status, up Update) (*Task, error) {
	if !CanTransition(expected, next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, expected, next)
	}

	q := strings.Builder{}
	q.WriteString("UPDATE tasks SET status=?, updated_at=?")
	args := []any{string(next), time.Now().UTC()}

	if up.ExecutorClass != nil {
		q.WriteString(", executor_class=?")
		args = append(args, *up.ExecutorClass)
	}
	if up.Result != nil {
		q.WriteString(", result=?")
		args = append(args, *up.Result)
	}
	if up.Error != nil {
		q.WriteString(", error=?")
		args = append(args, *up.Error)
	}
	if up.AttestationHash != nil {
		q.WriteString(", attestation_hash=?")
		args = append(args, *up.AttestationHash)
	}
	if up.Workload != nil {
		q.WriteString(", workload=?")
		args = append(args, *up.Workload)
	}
	// COALESCE keeps the first write: started_at and completed_at are
	// settable at most once.
	if up.StartedAt != nil {
		q.WriteString(", started_at=COALESCE(started_at, ?)")
		args = append(args, up.StartedAt.UTC())
	}
	if up.CompletedAt != nil {
		q.WriteString(", completed_at=COALESCE(completed_at, ?)")
		args = append(args, up.CompletedAt.UTC())
	}
	q.WriteString(" WHERE id=? AND status=?")
	args = append(args, id, string(expected))

	res, err := s.db.Exec(q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("transition task: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		// Either the task does not exist or another caller moved it first.
		cur, err := s.Get(id)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: task %s is %s, expected %s", ErrInvalidTransition, id, cur.Status, expected)
	}
	return s.Get(id)
}

// Cancel moves the task to StatusCancelled from any non-terminal state in a
// single atomic update. A result arriving for an already-cancelled task later
// loses its own compare-and-swap and is discarded by the caller.
func (s *SQLiteStore) Cancel(id string) (*Task, error) {
	res, err := s.db.Exec(`
		UPDATE tasks SET status=?, updated_at=?
		WHERE id=? AND status IN (?,?,?)`,
		string(StatusCancelled), time.Now().UTC(), id,
		string(StatusPending), string(StatusRouting), string(StatusExecuting),
	)
	if err != nil {
		return nil, fmt.Errorf("cancel task: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		cur, err := s.Get(id)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: cannot cancel task %s in status %s", ErrInvalidTransition, id, cur.Status)
	}
	return s.Get(id)
}

// ListByStatus returns tasks in the given status, most recently created first.
func (s *SQLiteStore) ListByStatus(status *Status, limit int) ([]*Task, error) {
	q := strings.Builder{}
	q.WriteString("SELECT * FROM tasks WHERE 1=1")
	args := []any{}

	if status != nil {
		q.WriteString(" AND status=?")
		args = append(args, string(*status))
	}
	q.WriteString(" ORDER BY created_at DESC, id ASC")
	if limit > 0 {
		q.WriteString(fmt.Sprintf(" LIMIT %d", limit))
	}

	rows, err := s.db.Query(q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// scanner abstracts sql.Row and sql.Rows for scanTask.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*Task, error) {
	var t Task
	var status, dependsOnJSON string
	var priority int
	var startedAt, completedAt sql.NullTime

	err := s.Scan(
		&t.ID, &t.Description, &status, &priority, &t.ExecutorClass,
		&dependsOnJSON, &t.Result, &t.Error, &t.AttestationHash, &t.Workload,
		&t.CreatedAt, &t.UpdatedAt,
		&startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Status = Status(status)
	t.Priority = Priority(priority)

	_ = json.Unmarshal([]byte(dependsOnJSON), &t.DependsOn)

	if startedAt.Valid {
		t.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	return &t, nil
}
