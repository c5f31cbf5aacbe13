package automation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/webramesh/email-marketing-sub000/internal/config"
	"github.com/webramesh/email-marketing-sub000/internal/content"
	"github.com/webramesh/email-marketing-sub000/internal/dto"
	"github.com/webramesh/email-marketing-sub000/internal/metrics"
	"github.com/webramesh/email-marketing-sub000/internal/models"
	"github.com/webramesh/email-marketing-sub000/internal/queue"
)

// StepInput is everything one step needs. Variables are the execution's current variables.
type StepInput struct {
	Automation *models.Automation
	Execution  *models.AutomationExecution
	Subscriber *models.Subscriber
	Variables  map[string]any
}

// StepResult describes what happens after a step.
type StepResult struct {
	// Executed is the node or step that ran.
	Executed string
	// Next is the node or step to run next. Ignored when Done.
	Next string
	// Delay postpones the next step.
	Delay time.Duration
	// Variables are merged into the execution.
	Variables map[string]any
	Done      bool
}

// Executor runs exactly one step of an execution.
type Executor interface {
	Step(ctx context.Context, in StepInput) (StepResult, error)
}

// primitives are the node semantics shared by the graph and legacy executors.
type primitives struct {
	enqueuer  queue.Enqueuer
	evaluator ConditionEvaluator
	log       *slog.Logger
}

// sendEmail enqueues one personalized send. Subscribers who left the active audience
// are skipped and the step still succeeds.
func (p *primitives) sendEmail(ctx context.Context, in StepInput, nodeID string, a *ActionNode) (map[string]any, error) {
	metrics.RecordAutomationStep(string(KindAction))

	if a == nil || a.ActionType != ActionEmail {
		return nil, queue.Permanent(fmt.Errorf("node %s: unsupported action", nodeID))
	}

	if in.Subscriber.Status != config.SubscriberStatusActive {
		p.log.Info("skipping email to inactive subscriber",
			"execution_id", in.Execution.ID,
			"subscriber_id", in.Subscriber.ID,
			"status", in.Subscriber.Status,
		)
		return map[string]any{"skipped_" + nodeID: true}, nil
	}

	vars := content.ForSubscriber(in.Subscriber, in.Variables)
	msg := content.Personalize(content.Message{
		Subject: a.Subject,
		HTML:    a.HTMLContent,
		Text:    a.TextContent,
	}, vars)

	automationID := in.Automation.ID
	subscriberID := in.Subscriber.ID
	payload := dto.EmailJobPayload{
		TenantID: in.Automation.TenantID,
		Message: dto.EmailMessage{
			To:       in.Subscriber.Email,
			From:     a.FromEmail,
			FromName: a.FromName,
			ReplyTo:  a.ReplyTo,
			Subject:  msg.Subject,
			HTML:     msg.HTML,
			Text:     msg.Text,
		},
		SubscriberID: &subscriberID,
		AutomationID: &automationID,
		Metadata: map[string]any{
			"executionId": in.Execution.ID,
			"nodeId":      nodeID,
		},
	}

	if _, err := p.enqueuer.Enqueue(ctx, config.QueueEmail, config.JobTypeSendEmail, payload, queue.Options{}); err != nil {
		return nil, fmt.Errorf("enqueue email for node %s: %w", nodeID, err)
	}
	return map[string]any{"sent_" + nodeID: true}, nil
}

// delay computes the wait of a delay node. A bad unit cannot be fixed by retrying.
func (p *primitives) delay(nodeID string, d *DelayNode) (time.Duration, error) {
	metrics.RecordAutomationStep(string(KindDelay))

	if d == nil {
		return 0, queue.Permanent(fmt.Errorf("node %s: missing delay", nodeID))
	}
	dur, err := d.Duration()
	if err != nil {
		return 0, queue.Permanent(fmt.Errorf("node %s: %w", nodeID, err))
	}
	return dur, nil
}

// evaluate decides a condition node. Evaluation errors are permanent: the expression
// and the subscriber data will not change on retry.
func (p *primitives) evaluate(ctx context.Context, in StepInput, nodeID string, c *ConditionNode) (bool, error) {
	metrics.RecordAutomationStep(string(KindCondition))

	if c == nil {
		return false, queue.Permanent(fmt.Errorf("node %s: missing condition", nodeID))
	}

	ok, err := p.evaluator.Evaluate(ctx, c.Expression, ConditionEnv(in.Subscriber, in.Variables))
	if err != nil {
		if ctx.Err() != nil {
			return false, err
		}
		return false, queue.Permanent(fmt.Errorf("node %s: evaluate condition: %w", nodeID, err))
	}
	return ok, nil
}
