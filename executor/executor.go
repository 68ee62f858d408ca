// Package executor provides a uniform capability abstraction over
// heterogeneous task executors and the bounded retry policy applied to them.
package executor

import (
	"context"
	"time"

	"github.com/taskmesh/taskmesh/routing"
)

// FailureKind classifies an execution failure for the retry policy.
type FailureKind string

const (
	// FailureNone marks a successful result.
	FailureNone FailureKind = ""
	// FailureTimeout marks a transient timeout; retryable.
	FailureTimeout FailureKind = "timeout"
	// FailureUnavailable marks a transient availability failure; retryable.
	FailureUnavailable FailureKind = "unavailable"
	// FailureFatal marks any other failure; never retried.
	FailureFatal FailureKind = "fatal"
)

// Retryable reports whether the failure kind is on the retry allow-list.
func (k FailureKind) Retryable() bool {
	return k == FailureTimeout || k == FailureUnavailable
}

// Result is the outcome of a single execution attempt. Executors never
// raise past the Execute boundary: every failure, including network and
// timeout failures of a remote backend, is converted into a failure Result.
type Result struct {
	Success      bool          `json:"success"`
	Output       string        `json:"output,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Kind         FailureKind   `json:"kind,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// Executor is a capability that can perform a task's work.
type Executor interface {
	// ID identifies the executor for attestation and reward purposes.
	ID() string

	// Class returns the executor class this capability serves.
	Class() routing.Class

	// Execute runs the described work and reports the outcome. It must not
	// panic or return control flow errors; failures become failure Results.
	Execute(ctx context.Context, description string) Result

	// HealthCheck reports whether the executor can currently accept work.
	HealthCheck(ctx context.Context) bool
}

// failure builds a failure Result with the elapsed duration.
func failure(kind FailureKind, msg string, start time.Time) Result {
	return Result{
		Success:      false,
		ErrorMessage: msg,
		Kind:         kind,
		Duration:     time.Since(start),
	}
}
