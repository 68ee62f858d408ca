package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/taskmesh/taskmesh/routing"
)

// WorkFunc performs the actual work for an in-process executor.
type WorkFunc func(ctx context.Context, description string) (string, error)

// Local runs tasks in-process. The work function is injectable; the default
// produces a short processed summary of the description.
type Local struct {
	id   string
	work WorkFunc
}

// NewLocal creates a Local executor. A nil work function uses the default.
func NewLocal(id string, work WorkFunc) *Local {
	if id == "" {
		id = "local-1"
	}
	if work == nil {
		work = defaultWork
	}
	return &Local{id: id, work: work}
}

func (l *Local) ID() string           { return l.id }
func (l *Local) Class() routing.Class { return routing.ClassLocal }

// Execute runs the work function, converting panics and errors into failure
// results so nothing escapes the capability boundary.
func (l *Local) Execute(ctx context.Context, description string) (res Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = failure(FailureFatal, fmt.Sprintf("executor panic: %v", r), start)
		}
	}()

	select {
	case <-ctx.Done():
		return failure(FailureTimeout, ctx.Err().Error(), start)
	default:
	}

	output, err := l.work(ctx, description)
	if err != nil {
		kind := FailureFatal
		if ctx.Err() != nil {
			kind = FailureTimeout
		}
		return failure(kind, err.Error(), start)
	}
	return Result{Success: true, Output: output, Duration: time.Since(start)}
}

// HealthCheck always succeeds for in-process execution.
func (l *Local) HealthCheck(_ context.Context) bool { return true }

func defaultWork(_ context.Context, description string) (string, error) {
	summary := description
	if len(summary) > 120 {
		summary = summary[:119] + "…"
	}
	return fmt.Sprintf("processed: %s", strings.TrimSpace(summary)), nil
}
