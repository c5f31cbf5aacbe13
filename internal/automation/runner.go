package automation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/webramesh/email-marketing-sub000/internal/config"
	"github.com/webramesh/email-marketing-sub000/internal/dto"
	"github.com/webramesh/email-marketing-sub000/internal/models"
	"github.com/webramesh/email-marketing-sub000/internal/queue"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Repository is the automation persistence used by the runner and the service.
type Repository interface {
	CreateAutomation(ctx context.Context, a *models.Automation) error
	GetAutomation(ctx context.Context, tenantID, id uint) (*models.Automation, error)
	Activate(ctx context.Context, tenantID, id uint, definition datatypes.JSON, now time.Time) error
	CreateExecution(ctx context.Context, e *models.AutomationExecution) error
	GetExecution(ctx context.Context, id string) (*models.AutomationExecution, error)
	HasRunningExecution(ctx context.Context, automationID, subscriberID uint) (bool, error)
	Checkpoint(ctx context.Context, id string, expectedStep int, cp models.ExecutionCheckpoint) (bool, error)
	CompleteExecution(ctx context.Context, id string, success bool, reason string, now time.Time) (bool, error)
}

type SubscriberStore interface {
	GetSubscriber(ctx context.Context, tenantID, id uint) (*models.Subscriber, error)
}

const (
	OutcomeAdvanced  = "advanced"
	OutcomeCompleted = "completed"
	OutcomeSkipped   = "skipped"
)

// StepOutcome is stored as the automation job's result.
type StepOutcome struct {
	ExecutionID string `json:"executionId"`
	Status      string `json:"status"`
	Node        string `json:"node,omitempty"`
	Next        string `json:"next,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// LockKey serializes all jobs of one execution.
func LockKey(executionID string) string {
	return "execution:" + executionID
}

// Runner consumes the automation queue: one job runs one step of one execution.
type Runner struct {
	repo        Repository
	subscribers SubscriberStore
	enqueuer    queue.Enqueuer
	executors   map[string]Executor
	log         *slog.Logger
	now         func() time.Time
}

func NewRunner(repo Repository, subscribers SubscriberStore, enqueuer queue.Enqueuer, evaluator ConditionEvaluator, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	if evaluator == nil {
		evaluator = NewExprEvaluator()
	}
	log = log.With("component", "automation")

	prims := primitives{enqueuer: enqueuer, evaluator: evaluator, log: log}
	return &Runner{
		repo:        repo,
		subscribers: subscribers,
		enqueuer:    enqueuer,
		executors: map[string]Executor{
			config.AutomationModeGraph:  &GraphExecutor{primitives: prims},
			config.AutomationModeLegacy: &LegacyExecutor{primitives: prims},
		},
		log: log,
		now: time.Now,
	}
}

func (r *Runner) Register(reg *queue.Registry) {
	reg.Register(config.QueueAutomation, config.JobTypeRunAutomation, r.Handle, r.OnFailure)
}

// Handle runs the step the job was enqueued for. Terminal executions and jobs whose
// step was already taken by another job are successful no-ops.
func (r *Runner) Handle(ctx context.Context, job *queue.Job) (any, error) {
	p, err := queue.Decode[dto.AutomationJobPayload](job)
	if err != nil {
		return nil, err
	}

	exec, err := r.repo.GetExecution(ctx, p.ExecutionID)
	if err != nil {
		return nil, structural(err)
	}

	if exec.Status != config.ExecutionStatusRunning {
		return StepOutcome{ExecutionID: exec.ID, Status: OutcomeSkipped, Reason: "execution is " + exec.Status}, nil
	}
	if exec.StepIndex != p.StepIndex {
		r.log.Warn("stale automation job", "execution_id", exec.ID, "job_step", p.StepIndex, "execution_step", exec.StepIndex)
		return StepOutcome{ExecutionID: exec.ID, Status: OutcomeSkipped, Reason: "step already executed"}, nil
	}

	a, err := r.repo.GetAutomation(ctx, p.TenantID, p.AutomationID)
	if err != nil {
		return nil, structural(err)
	}

	sub, err := r.subscribers.GetSubscriber(ctx, p.TenantID, p.SubscriberID)
	if err != nil {
		return nil, structural(err)
	}

	mode := a.Mode
	if mode == "" {
		mode = config.AutomationModeGraph
	}
	executor, ok := r.executors[mode]
	if !ok {
		return nil, queue.Permanent(fmt.Errorf("automation %d: unknown mode %q", a.ID, a.Mode))
	}

	vars := map[string]any{}
	if len(exec.Variables) > 0 {
		if err := json.Unmarshal(exec.Variables, &vars); err != nil {
			return nil, queue.Permanent(fmt.Errorf("execution %s: variables: %w", exec.ID, err))
		}
	}

	res, err := executor.Step(ctx, StepInput{Automation: a, Execution: exec, Subscriber: sub, Variables: vars})
	if err != nil {
		return nil, err
	}

	now := r.now().UTC()

	if res.Done {
		if _, err := r.repo.CompleteExecution(ctx, exec.ID, true, "", now); err != nil {
			return nil, err
		}
		return StepOutcome{ExecutionID: exec.ID, Status: OutcomeCompleted, Node: res.Executed}, nil
	}

	for k, v := range res.Variables {
		vars[k] = v
	}
	rawVars, err := json.Marshal(vars)
	if err != nil {
		return nil, queue.Permanent(fmt.Errorf("execution %s: variables: %w", exec.ID, err))
	}

	// checkpoint before enqueueing the successor
	advanced, err := r.repo.Checkpoint(ctx, exec.ID, p.StepIndex, models.ExecutionCheckpoint{
		CurrentNodeID:    res.Next,
		Variables:        datatypes.JSON(rawVars),
		LastExecutedNode: res.Executed,
		LastExecutedAt:   now,
	})
	if err != nil {
		return nil, err
	}
	if !advanced {
		return StepOutcome{ExecutionID: exec.ID, Status: OutcomeSkipped, Reason: "step already executed"}, nil
	}

	next := dto.AutomationJobPayload{
		TenantID:     p.TenantID,
		AutomationID: p.AutomationID,
		SubscriberID: p.SubscriberID,
		StepIndex:    p.StepIndex + 1,
		ExecutionID:  exec.ID,
	}
	if _, err := r.enqueuer.Enqueue(ctx, config.QueueAutomation, config.JobTypeRunAutomation, next, queue.Options{
		Delay:   res.Delay,
		LockKey: LockKey(exec.ID),
	}); err != nil {
		// the checkpoint moved on, so a retry of this job would be skipped as stale
		return nil, queue.Permanent(fmt.Errorf("execution %s checkpointed at %s but successor was not enqueued: %w", exec.ID, res.Next, err))
	}

	return StepOutcome{ExecutionID: exec.ID, Status: OutcomeAdvanced, Node: res.Executed, Next: res.Next}, nil
}

// OnFailure marks the execution FAILED once its job is abandoned.
func (r *Runner) OnFailure(ctx context.Context, job *queue.Job, cause error) {
	var p dto.AutomationJobPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil || p.ExecutionID == "" {
		r.log.Error("automation job abandoned without execution", "job_id", job.ID, "error", cause)
		return
	}

	changed, err := r.repo.CompleteExecution(ctx, p.ExecutionID, false, cause.Error(), r.now().UTC())
	if err != nil {
		r.log.Error("record execution failure failed", "execution_id", p.ExecutionID, "error", err)
		return
	}
	r.log.Warn("automation execution failed", "execution_id", p.ExecutionID, "recorded", changed, "error", cause)
}

// structural marks missing rows permanent. Other storage errors stay retryable.
func structural(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return queue.Permanent(err)
	}
	return err
}
