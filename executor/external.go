package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/taskmesh/taskmesh/routing"
)

// Integration is the hook an externally integrated agent (chat bot, partner
// system) implements to perform work on taskmesh's behalf.
type Integration interface {
	Name() string
	Perform(ctx context.Context, description string) (string, error)
	Available(ctx context.Context) bool
}

// External bridges a registered integration into the executor contract,
// isolating its failure modes from the orchestration pipeline.
type External struct {
	id          string
	integration Integration
}

// NewExternal creates an External executor around the given integration.
func NewExternal(id string, integration Integration) *External {
	if id == "" {
		id = "external-1"
	}
	return &External{id: id, integration: integration}
}

func (e *External) ID() string           { return e.id }
func (e *External) Class() routing.Class { return routing.ClassExternal }

// Execute delegates to the integration, converting panics and errors into
// failure results.
func (e *External) Execute(ctx context.Context, description string) (res Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = failure(FailureFatal, fmt.Sprintf("integration panic: %v", r), start)
		}
	}()

	if e.integration == nil {
		return failure(FailureUnavailable, "no integration registered", start)
	}
	if !e.integration.Available(ctx) {
		return failure(FailureUnavailable, fmt.Sprintf("integration %s unavailable", e.integration.Name()), start)
	}

	output, err := e.integration.Perform(ctx, description)
	if err != nil {
		kind := FailureFatal
		if ctx.Err() != nil {
			kind = FailureTimeout
		}
		return failure(kind, err.Error(), start)
	}
	return Result{Success: true, Output: output, Duration: time.Since(start)}
}

// HealthCheck reports the integration's availability.
func (e *External) HealthCheck(ctx context.Context) bool {
	return e.integration != nil && e.integration.Available(ctx)
}
