package automation

import (
	"context"
	"fmt"

	"github.com/webramesh/email-marketing-sub000/internal/queue"
)

// GraphExecutor walks an automation's node graph one node per step.
type GraphExecutor struct {
	primitives
}

var _ Executor = (*GraphExecutor)(nil)

func (g *GraphExecutor) Step(ctx context.Context, in StepInput) (StepResult, error) {
	def, err := ParseDefinition(in.Automation.Definition)
	if err != nil {
		return StepResult{}, queue.Permanent(err)
	}

	current := in.Execution.CurrentNodeID
	if current == "" {
		current = def.EntryNode()
	}
	if current == "" {
		return StepResult{Done: true}, nil
	}

	node, ok := def.Node(current)
	if !ok {
		return StepResult{}, queue.Permanent(fmt.Errorf("node %q not found in automation %d", current, in.Automation.ID))
	}

	res := StepResult{Executed: node.ID}

	var branch bool
	switch node.Kind {
	case KindAction:
		vars, err := g.sendEmail(ctx, in, node.ID, node.Action)
		if err != nil {
			return StepResult{}, err
		}
		res.Variables = vars

	case KindDelay:
		d, err := g.delay(node.ID, node.Delay)
		if err != nil {
			return StepResult{}, err
		}
		res.Delay = d

	case KindCondition:
		branch, err = g.evaluate(ctx, in, node.ID, node.Condition)
		if err != nil {
			return StepResult{}, err
		}
		res.Variables = map[string]any{"condition_" + node.ID: branch}

	case KindTrigger:
		// only reached when an execution was checkpointed at the trigger itself
	}

	res.Next = def.Next(node, branch)
	res.Done = res.Next == ""
	return res, nil
}
