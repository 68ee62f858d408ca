// Package events provides the in-process lifecycle event feed. The
// orchestrator publishes; SSE clients and diagnostics consume.
package events

import (
	"context"
	"time"
)

// Type identifies the kind of lifecycle event.
type Type string

const (
	TypeTaskCreated   Type = "task_created"
	TypeTaskRouted    Type = "task_routed"
	TypeTaskCompleted Type = "task_completed"
	TypeTaskFailed    Type = "task_failed"
	TypeTaskCancelled Type = "task_cancelled"
	TypeRewardAwarded Type = "reward_awarded"
)

// Event is a single lifecycle notification.
type Event struct {
	ID         string            `json:"id"`
	Type       Type              `json:"type"`
	TaskID     string            `json:"task_id,omitempty"`
	ExecutorID string            `json:"executor_id,omitempty"`
	Detail     map[string]string `json:"detail,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Handler processes published events.
type Handler func(ctx context.Context, e *Event) error

// Feed is the lifecycle event backbone. Every subscriber receives every
// published event.
type Feed interface {
	// Publish delivers an event to all subscribers.
	Publish(ctx context.Context, e *Event) error

	// Subscribe registers a handler for all events.
	// Returns an unsubscribe function.
	Subscribe(handler Handler) (unsubscribe func())

	// History returns the most recent limit events in chronological order.
	History(limit int) []*Event
}
