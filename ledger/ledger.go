// Package ledger converts workload scores into credited incentive balances
// per executor and exposes ranking.
package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS balances (
	executor_id     TEXT PRIMARY KEY,
	balance         REAL NOT NULL DEFAULT 0,
	total_earned    REAL NOT NULL DEFAULT 0,
	total_spent     REAL NOT NULL DEFAULT 0,
	completed_tasks INTEGER NOT NULL DEFAULT 0,
	updated_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS credited_tasks (
	task_id     TEXT PRIMARY KEY,
	executor_id TEXT NOT NULL,
	amount      REAL NOT NULL,
	credited_at DATETIME NOT NULL
);
`

var (
	// ErrAlreadyCredited is returned when a task id has already earned a
	// reward. It signals a caller bug or race, not a retryable condition.
	ErrAlreadyCredited = errors.New("reward already credited")

	// ErrAgentNotFound is returned when querying the balance of an executor
	// with no award history.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrInsufficientBalance is returned when a spend exceeds the balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// AgentBalance is the per-executor ledger entry.
// Invariant: Balance == TotalEarned - TotalSpent.
type AgentBalance struct {
	ExecutorID     string  `json:"executor_id"`
	Balance        float64 `json:"balance"`
	TotalEarned    float64 `json:"total_earned"`
	TotalSpent     float64 `json:"total_spent"`
	CompletedTasks int     `json:"completed_tasks"`
}

// Params configures the reward arithmetic.
type Params struct {
	BaseReward         float64
	WorkloadMultiplier float64
}

// DefaultParams returns the standard reward parameters.
func DefaultParams() Params {
	return Params{BaseReward: 10, WorkloadMultiplier: 0.05}
}

// CalculateReward converts a workload score into a reward amount, scaled by
// the quality multiplier and rounded to currency precision. It is monotonic
// non-decreasing in workload for a fixed quality score.
func (p Params) CalculateReward(workload, qualityScore float64) float64 {
	amount := math.Round(p.BaseReward + workload*p.WorkloadMultiplier)
	return math.Round(amount*qualityScore*100) / 100
}

// SQLiteLedger persists executor balances in a SQLite database. The credited
// task index makes awarding idempotent per task id, and the single write
// connection serializes concurrent credits so none are lost.
type SQLiteLedger struct {
	db     *sql.DB
	params Params
}

// NewSQLiteLedger opens (or creates) a ledger database at dbPath.
// The caller is responsible for calling Close.
func NewSQLiteLedger(dbPath string, params Params) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1) // prevent SQLITE_BUSY
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteLedger{db: db, params: params}, nil
}

// Close releases the underlying database connection.
func (l *SQLiteLedger) Close() error { return l.db.Close() }

// Params returns the ledger's reward parameters.
func (l *SQLiteLedger) Params() Params { return l.params }

// Award credits the executor for a completed task, lazily creating its
// balance row. A task id that has already been credited is rejected with
// ErrAlreadyCredited and nothing is written.
func (l *SQLiteLedger) Award(executorID, taskID string, workload, qualityScore float64) (float64, error) {
	amount := l.params.CalculateReward(workload, qualityScore)
	now := time.Now().UTC()

	tx, err := l.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin award tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	err = tx.QueryRow(`SELECT COUNT(1) FROM credited_tasks WHERE task_id = ?`, taskID).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("check credited index: %w", err)
	}
	if exists > 0 {
		return 0, fmt.Errorf("%w: task %s", ErrAlreadyCredited, taskID)
	}

	if _, err := tx.Exec(`
		INSERT INTO credited_tasks (task_id, executor_id, amount, credited_at)
		VALUES (?,?,?,?)`,
		taskID, executorID, amount, now,
	); err != nil {
		return 0, fmt.Errorf("record credited task: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO balances (executor_id, balance, total_earned, total_spent, completed_tasks, updated_at)
		VALUES (?,?,?,0,1,?)
		ON CONFLICT(executor_id) DO UPDATE SET
			balance = balance + excluded.balance,
			total_earned = total_earned + excluded.total_earned,
			completed_tasks = completed_tasks + 1,
			updated_at = excluded.updated_at`,
		executorID, amount, amount, now,
	); err != nil {
		return 0, fmt.Errorf("credit balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit award: %w", err)
	}
	return amount, nil
}

// Spend debits the executor's balance. Awards never reduce a balance; this
// is the only path that does.
func (l *SQLiteLedger) Spend(executorID string, amount float64) (*AgentBalance, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("spend amount must be positive, got %v", amount)
	}
	now := time.Now().UTC()

	res, err := l.db.Exec(`
		UPDATE balances SET
			balance = balance - ?,
			total_spent = total_spent + ?,
			updated_at = ?
		WHERE executor_id = ? AND balance >= ?`,
		amount, amount, now, executorID, amount,
	)
	if err != nil {
		return nil, fmt.Errorf("spend: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		if _, err := l.GetBalance(executorID); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: executor %s", ErrInsufficientBalance, executorID)
	}
	return l.GetBalance(executorID)
}

// GetBalance returns the executor's ledger entry.
func (l *SQLiteLedger) GetBalance(executorID string) (*AgentBalance, error) {
	row := l.db.QueryRow(`
		SELECT executor_id, balance, total_earned, total_spent, completed_tasks
		FROM balances WHERE executor_id = ?`, executorID)

	var b AgentBalance
	err := row.Scan(&b.ExecutorID, &b.Balance, &b.TotalEarned, &b.TotalSpent, &b.CompletedTasks)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, executorID)
	}
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return &b, nil
}

// Leaderboard returns up to limit entries ranked by balance descending.
// Ties break by executor id ascending so the ordering is reproducible.
func (l *SQLiteLedger) Leaderboard(limit int) ([]*AgentBalance, error) {
	q := `
		SELECT executor_id, balance, total_earned, total_spent, completed_tasks
		FROM balances ORDER BY balance DESC, executor_id ASC`
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := l.db.Query(q)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []*AgentBalance
	for rows.Next() {
		var b AgentBalance
		if err := rows.Scan(&b.ExecutorID, &b.Balance, &b.TotalEarned, &b.TotalSpent, &b.CompletedTasks); err != nil {
			return nil, err
		}
		entries = append(entries, &b)
	}
	return entries, rows.Err()
}
