// Package task defines the task model, lifecycle state machine, and persistence.
package task

import (
	"errors"
	"time"
)

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRouting   Status = "routing"
	StatusExecuting Status = "executing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Priority determines task presentation order. It carries no preemption
// semantics.
type Priority int

const (
	PriorityLow      Priority = 0
	PriorityNormal   Priority = 1
	PriorityHigh     Priority = 2
	PriorityCritical Priority = 3
)

// MaxDescriptionLen is the largest accepted task description.
const MaxDescriptionLen = 10000

var (
	// ErrInvalidInput is returned when a submission is rejected before persistence.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned when a task id does not exist.
	ErrNotFound = errors.New("task not found")

	// ErrInvalidTransition is returned when a lifecycle change is illegal or
	// lost a compare-and-swap race.
	ErrInvalidTransition = errors.New("invalid state transition")
)

// Task is a unit of submitted work.
type Task struct {
	ID              string     `json:"id"`
	Description     string     `json:"description"`
	Status          Status     `json:"status"`
	Priority        Priority   `json:"priority"`
	ExecutorClass   string     `json:"executor_class,omitempty"`
	DependsOn       []string   `json:"depends_on,omitempty"` // advisory only, not enforced
	Result          string     `json:"result,omitempty"`
	Error           string     `json:"error,omitempty"`
	AttestationHash string     `json:"attestation_hash,omitempty"`
	Workload        float64    `json:"workload,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// IsTerminal reports whether the status has no outgoing transitions.
func IsTerminal(s Status) bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransition reports whether from -> to is a legal lifecycle change.
// Cancellation is reachable from every non-terminal state.
func CanTransition(from, to Status) bool {
	if !IsTerminal(from) && to == StatusCancelled {
		return true
	}
	switch from {
	case StatusPending:
		return to == StatusRouting
	case StatusRouting:
		return to == StatusExecuting
	case StatusExecuting:
		return to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}

// Update carries the fields a transition is allowed to write. Nil pointers
// leave the stored value untouched.
type Update struct {
	ExecutorClass   *string
	Result          *string
	Error           *string
	AttestationHash *string
	Workload        *float64
	StartedAt       *time.Time
	CompletedAt     *time.Time
}

// Registry is the single source of truth for task records.
type Registry interface {
	// Create persists a new task in StatusPending.
	Create(description string, priority Priority, dependsOn []string) (*Task, error)

	// Get retrieves a task by ID.
	Get(id string) (*Task, error)

	// Transition performs a compare-and-swap lifecycle change: it succeeds
	// only if the task's current status equals expected and expected -> next
	// is legal. Concurrent callers racing on the same task see exactly one
	// winner; losers get ErrInvalidTransition.
	Transition(id string, expected, next Status, up Update) (*Task, error)

	// Cancel moves a task from any non-terminal state to StatusCancelled.
	Cancel(id string) (*Task, error)

	// ListByStatus returns tasks in the given status, most recently created
	// first. A nil status matches all tasks.
	ListByStatus(status *Status, limit int) ([]*Task, error)
}
