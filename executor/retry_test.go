package executor_test

import (
	"context"
	"testing"
	"time"

	"github.com/taskmesh/taskmesh/executor"
	"github.com/taskmesh/taskmesh/executor/mock"
	"github.com/taskmesh/taskmesh/routing"
)

func fastPolicy() executor.RetryPolicy {
	return executor.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, BackoffFactor: 2.0}
}

func TestRetryPolicy_SucceedsAfterTransientFailures(t *testing.T) {
	m := mock.New("mock-1", routing.ClassLocal,
		mock.Fail(executor.FailureTimeout, "slow"),
		mock.Fail(executor.FailureUnavailable, "down"),
		mock.Succeed("done"),
	)

	res := fastPolicy().Run(context.Background(), m, "task")
	if !res.Success {
		t.Fatalf("Result = %+v, want success", res)
	}
	if res.Output != "done" {
		t.Errorf("Output = %q, want done", res.Output)
	}
	if m.CallCount() != 3 {
		t.Errorf("attempts = %d, want 3", m.CallCount())
	}
}

func TestRetryPolicy_FatalNotRetried(t *testing.T) {
	m := mock.New("mock-1", routing.ClassLocal,
		mock.Fail(executor.FailureFatal, "bad input"),
		mock.Succeed("never reached"),
	)

	res := fastPolicy().Run(context.Background(), m, "task")
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.ErrorMessage != "bad input" {
		t.Errorf("ErrorMessage = %q", res.ErrorMessage)
	}
	if m.CallCount() != 1 {
		t.Errorf("attempts = %d, want 1 (no retry for fatal)", m.CallCount())
	}
}

func TestRetryPolicy_AttemptBound(t *testing.T) {
	m := mock.New("mock-1", routing.ClassLocal,
		mock.Fail(executor.FailureTimeout, "slow"),
	)

	res := fastPolicy().Run(context.Background(), m, "task")
	if res.Success {
		t.Fatal("expected failure after exhausting attempts")
	}
	if res.Kind != executor.FailureTimeout {
		t.Errorf("Kind = %q, want timeout", res.Kind)
	}
	if m.CallCount() != 3 {
		t.Errorf("attempts = %d, want 3", m.CallCount())
	}
}

func TestRetryPolicy_ZeroAttemptsStillRunsOnce(t *testing.T) {
	m := mock.New("mock-1", routing.ClassLocal)
	res := executor.RetryPolicy{}.Run(context.Background(), m, "task")
	if !res.Success {
		t.Fatalf("Result = %+v, want success", res)
	}
	if m.CallCount() != 1 {
		t.Errorf("attempts = %d, want 1", m.CallCount())
	}
}

func TestRetryPolicy_ContextCancelStopsRetrying(t *testing.T) {
	m := mock.New("mock-1", routing.ClassLocal,
		mock.Fail(executor.FailureUnavailable, "down"),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := executor.RetryPolicy{MaxAttempts: 5, BaseDelay: time.Hour, BackoffFactor: 2.0}
	res := p.Run(ctx, m, "task")
	if res.Success {
		t.Fatal("expected failure")
	}
	if m.CallCount() != 1 {
		t.Errorf("attempts = %d, want 1 (cancelled before backoff)", m.CallCount())
	}
}

func TestFailureKind_Retryable(t *testing.T) {
	cases := map[executor.FailureKind]bool{
		executor.FailureTimeout:     true,
		executor.FailureUnavailable: true,
		executor.FailureFatal:       false,
		executor.FailureNone:        false,
	}
	for kind, want := range cases {
		if got := kind.Retryable(); got != want {
			t.Errorf("Retryable(%q) = %v, want %v", kind, got, want)
		}
	}
}
