// Package dispatch implements the orchestration pipeline: task lifecycle,
// routing decision, execution, attestation, and reward settlement.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/taskmesh/taskmesh/attest"
	"github.com/taskmesh/taskmesh/events"
	"github.com/taskmesh/taskmesh/executor"
	"github.com/taskmesh/taskmesh/ledger"
	"github.com/taskmesh/taskmesh/routing"
	"github.com/taskmesh/taskmesh/task"
)

// Config wires the orchestrator's collaborators. Registry, Policy,
// Executors, and Ledger are required.
type Config struct {
	Registry  task.Registry
	Policy    *routing.Policy
	Executors *executor.Registry
	Ledger    *ledger.SQLiteLedger
	Feed      events.Feed
	Retry     executor.RetryPolicy
	// QualityScore scales every reward; sourced outside the core. Zero
	// means the default of 1.0.
	QualityScore float64
	Logger       *slog.Logger
}

// Service runs the task-dispatch pipeline. All methods are safe for
// concurrent use: per-task serialization comes from the registry's
// compare-and-swap transitions and per-executor credit serialization from
// the ledger.
type Service struct {
	registry  task.Registry
	policy    *routing.Policy
	executors *executor.Registry
	ledger    *ledger.SQLiteLedger
	feed      events.Feed
	retry     executor.RetryPolicy
	quality   float64
	logger    *slog.Logger
}

// Outcome is the result of driving a task through the pipeline.
type Outcome struct {
	Task   *task.Task `json:"task"`
	Reward float64    `json:"reward"`
}

// New creates a Service from the given config.
func New(cfg Config) (*Service, error) {
	if cfg.Registry == nil || cfg.Policy == nil || cfg.Executors == nil || cfg.Ledger == nil {
		return nil, fmt.Errorf("dispatch: registry, policy, executors, and ledger are required")
	}
	if cfg.Feed == nil {
		cfg.Feed = events.NewInMemoryFeed()
	}
	if cfg.QualityScore <= 0 {
		cfg.QualityScore = 1.0
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		registry:  cfg.Registry,
		policy:    cfg.Policy,
		executors: cfg.Executors,
		ledger:    cfg.Ledger,
		feed:      cfg.Feed,
		retry:     cfg.Retry,
		quality:   cfg.QualityScore,
		logger:    cfg.Logger,
	}, nil
}

// Feed returns the lifecycle event feed.
func (s *Service) Feed() events.Feed { return s.feed }

// CreateTask validates and persists a new pending task.
func (s *Service) CreateTask(ctx context.Context, description string, priority task.Priority, dependsOn []string) (*task.Task, error) {
	t, err := s.registry.Create(description, priority, dependsOn)
	if err != nil {
		return nil, err
	}
	s.logger.Info("task created",
		slog.String("task", t.ID),
		slog.Int("priority", int(t.Priority)),
		slog.Int("complexity", s.policy.Complexity(t.Description)),
	)
	s.publish(ctx, &events.Event{Type: events.TypeTaskCreated, TaskID: t.ID})
	return t, nil
}

// GetTask returns the task record.
func (s *Service) GetTask(id string) (*task.Task, error) {
	return s.registry.Get(id)
}

// ListTasks returns tasks, optionally filtered by status, most recently
// created first.
func (s *Service) ListTasks(status *task.Status, limit int) ([]*task.Task, error) {
	return s.registry.ListByStatus(status, limit)
}

// ExecuteTask drives a pending task through routing, execution, attestation,
// and reward settlement. Exactly one of two concurrent calls on the same
// task proceeds past pending; the other fails with ErrInvalidTransition.
func (s *Service) ExecuteTask(ctx context.Context, id string) (*Outcome, error) {
	t, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}

	decision := s.policy.Decide(t.Description)
	class := string(decision.Class)
	t, err = s.registry.Transition(id, task.StatusPending, task.StatusRouting, task.Update{
		ExecutorClass: &class,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("task routed",
		slog.String("task", id),
		slog.String("class", class),
		slog.Float64("confidence", decision.Confidence),
		slog.String("reason", decision.Reason),
	)
	s.publish(ctx, &events.Event{
		Type:   events.TypeTaskRouted,
		TaskID: id,
		Detail: map[string]string{"class": class, "reason": decision.Reason},
	})

	started := time.Now().UTC()
	t, err = s.registry.Transition(id, task.StatusRouting, task.StatusExecuting, task.Update{
		StartedAt: &started,
	})
	if err != nil {
		return nil, err
	}

	// Routing has no direct exit to Failed, so an unroutable task moves
	// into Executing first and fails from there.
	exec, ok := s.executors.Get(decision.Class)
	if !ok {
		return s.failTask(ctx, id, task.StatusExecuting, fmt.Sprintf("no executor registered for class %q", class))
	}

	res := s.retry.Run(ctx, exec, t.Description)
	if !res.Success {
		return s.failTask(ctx, id, task.StatusExecuting, res.ErrorMessage)
	}

	// Seal the result before the terminal transition so the attestation
	// fields land in the same compare-and-swap. If the task was cancelled
	// mid-flight the CAS loses and the result is discarded unrewarded.
	att, err := attest.Generate(id, exec.ID(), res.Output)
	if err != nil {
		return s.failTask(ctx, id, task.StatusExecuting, fmt.Sprintf("attestation: %v", err))
	}

	completed := time.Now().UTC()
	t, err = s.registry.Transition(id, task.StatusExecuting, task.StatusCompleted, task.Update{
		Result:          &res.Output,
		AttestationHash: &att.Hash,
		Workload:        &att.Workload,
		CompletedAt:     &completed,
	})
	if err != nil {
		s.logger.Warn("result discarded", slog.String("task", id), slog.Any("err", err))
		return nil, err
	}
	s.publish(ctx, &events.Event{
		Type:       events.TypeTaskCompleted,
		TaskID:     id,
		ExecutorID: exec.ID(),
	})

	// Attestation failure is fatal to the reward step only: the task stays
	// completed, the failure is logged for investigation.
	if !attest.Verify(att) {
		s.logger.Error("attestation verification failed, withholding reward",
			slog.String("task", id),
			slog.String("executor", exec.ID()),
		)
		return &Outcome{Task: t}, nil
	}

	reward, err := s.ledger.Award(exec.ID(), id, att.Workload, s.quality)
	if err != nil {
		return nil, fmt.Errorf("award reward for task %s: %w", id, err)
	}
	s.logger.Info("reward awarded",
		slog.String("task", id),
		slog.String("executor", exec.ID()),
		slog.Float64("workload", att.Workload),
		slog.Float64("reward", reward),
	)
	s.publish(ctx, &events.Event{
		Type:       events.TypeRewardAwarded,
		TaskID:     id,
		ExecutorID: exec.ID(),
		Detail:     map[string]string{"amount": fmt.Sprintf("%.2f", reward)},
	})

	return &Outcome{Task: t, Reward: reward}, nil
}

// CancelTask cancels a non-terminal task. A task cancelled while executing
// never reaches completed and never earns a reward.
func (s *Service) CancelTask(ctx context.Context, id string) (*task.Task, error) {
	t, err := s.registry.Cancel(id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("task cancelled", slog.String("task", id))
	s.publish(ctx, &events.Event{Type: events.TypeTaskCancelled, TaskID: id})
	return t, nil
}

// ExecutorHealth probes every registered executor and reports readiness by
// class.
func (s *Service) ExecutorHealth(ctx context.Context) map[string]bool {
	health := make(map[string]bool)
	for _, e := range s.executors.List() {
		health[string(e.Class())] = e.HealthCheck(ctx)
	}
	return health
}

// GetBalance returns the executor's ledger entry.
func (s *Service) GetBalance(executorID string) (*ledger.AgentBalance, error) {
	return s.ledger.GetBalance(executorID)
}

// Leaderboard returns up to limit executors ranked by balance.
func (s *Service) Leaderboard(limit int) ([]*ledger.AgentBalance, error) {
	return s.ledger.Leaderboard(limit)
}

// failTask moves the task to failed from the given state and reports the
// failure as a normal outcome, not an error.
func (s *Service) failTask(ctx context.Context, id string, from task.Status, msg string) (*Outcome, error) {
	completed := time.Now().UTC()
	t, err := s.registry.Transition(id, from, task.StatusFailed, task.Update{
		Error:       &msg,
		CompletedAt: &completed,
	})
	if err != nil {
		// Lost to a concurrent cancel; the task is already terminal.
		return nil, err
	}
	s.logger.Warn("task failed", slog.String("task", id), slog.String("error", msg))
	s.publish(ctx, &events.Event{
		Type:   events.TypeTaskFailed,
		TaskID: id,
		Detail: map[string]string{"error": msg},
	})
	return &Outcome{Task: t}, nil
}

func (s *Service) publish(ctx context.Context, e *events.Event) {
	if err := s.feed.Publish(ctx, e); err != nil {
		s.logger.Warn("publish event", slog.String("type", string(e.Type)), slog.Any("err", err))
	}
}
