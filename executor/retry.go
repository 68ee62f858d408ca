package executor

import (
	"context"
	"fmt"
	"time"
)

// RetryPolicy bounds how transient execution failures are retried. It is a
// plain value so call sites can compose and tests can exercise it directly.
// Only FailureTimeout and FailureUnavailable results are retried; everything
// else propagates immediately.
type RetryPolicy struct {
	MaxAttempts   int           `json:"max_attempts"`
	BaseDelay     time.Duration `json:"base_delay"`
	BackoffFactor float64       `json:"backoff_factor"`
}

// DefaultRetryPolicy returns the standard bounded policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   3,
		BaseDelay:     200 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

// Run executes the task through e, retrying retryable failures with
// exponential backoff until success, a non-retryable failure, the attempt
// bound, or context cancellation.
func (p RetryPolicy) Run(ctx context.Context, e Executor, description string) Result {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.BaseDelay

	var res Result
	for attempt := 1; attempt <= attempts; attempt++ {
		res = e.Execute(ctx, description)
		if res.Success || !res.Kind.Retryable() || attempt == attempts {
			return res
		}

		select {
		case <-ctx.Done():
			res.ErrorMessage = fmt.Sprintf("%s (retry aborted: %v)", res.ErrorMessage, ctx.Err())
			return res
		case <-time.After(delay):
		}
		if p.BackoffFactor > 1 {
			delay = time.Duration(float64(delay) * p.BackoffFactor)
		}
	}
	return res
}
