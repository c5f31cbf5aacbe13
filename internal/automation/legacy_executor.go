package automation

import (
	"context"

	"github.com/webramesh/email-marketing-sub000/internal/queue"
)

// LegacyExecutor runs the ordered step array of automations that predate graphs.
// The execution's StepIndex is the position in the array.
type LegacyExecutor struct {
	primitives
}

var _ Executor = (*LegacyExecutor)(nil)

func (l *LegacyExecutor) Step(ctx context.Context, in StepInput) (StepResult, error) {
	steps, err := ParseSteps(in.Automation.Steps)
	if err != nil {
		return StepResult{}, queue.Permanent(err)
	}

	i := in.Execution.StepIndex
	if i >= len(steps) {
		return StepResult{Done: true}, nil
	}

	step := steps[i]
	res := StepResult{Executed: step.ID}

	switch step.Kind {
	case KindAction:
		vars, err := l.sendEmail(ctx, in, step.ID, step.Action)
		if err != nil {
			return StepResult{}, err
		}
		res.Variables = vars

	case KindDelay:
		d, err := l.delay(step.ID, step.Delay)
		if err != nil {
			return StepResult{}, err
		}
		res.Delay = d

	case KindCondition:
		ok, err := l.evaluate(ctx, in, step.ID, step.Condition)
		if err != nil {
			return StepResult{}, err
		}
		res.Variables = map[string]any{"condition_" + step.ID: ok}
		if !ok {
			res.Done = true
			return res, nil
		}
	}

	if i+1 >= len(steps) {
		res.Done = true
		return res, nil
	}
	res.Next = stepID(i + 1)
	return res, nil
}
