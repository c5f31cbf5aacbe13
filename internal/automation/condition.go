package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/webramesh/email-marketing-sub000/internal/models"
)

// ConditionEvaluator decides a CONDITION node.
type ConditionEvaluator interface {
	ExpressionCompiler
	Evaluate(ctx context.Context, expression string, env map[string]any) (bool, error)
}

// ExprEvaluator evaluates expr-lang expressions with a compiled program cache.
type ExprEvaluator struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

func NewExprEvaluator() *ExprEvaluator {
	return &ExprEvaluator{cache: make(map[string]*vm.Program)}
}

var _ ConditionEvaluator = (*ExprEvaluator)(nil)

// every environment has the same shape, so one compiled program serves all executions
func envShape() map[string]any {
	return map[string]any{
		"subscriber": map[string]any{},
		"variables":  map[string]any{},
	}
}

func (e *ExprEvaluator) program(expression string) (*vm.Program, error) {
	e.mu.RLock()
	p, ok := e.cache[expression]
	e.mu.RUnlock()
	if ok {
		return p, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok = e.cache[expression]; ok {
		return p, nil
	}

	p, err := expr.Compile(expression, expr.Env(envShape()), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}
	e.cache[expression] = p
	return p, nil
}

func (e *ExprEvaluator) Compile(expression string) error {
	_, err := e.program(expression)
	return err
}

// Evaluate runs expression against env. A non-boolean result is an error.
func (e *ExprEvaluator) Evaluate(ctx context.Context, expression string, env map[string]any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	p, err := e.program(expression)
	if err != nil {
		return false, err
	}

	out, err := expr.Run(p, env)
	if err != nil {
		return false, err
	}

	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q did not evaluate to a boolean, got %T", expression, out)
	}
	return b, nil
}

// ConditionEnv exposes the subscriber and the execution variables to expressions,
// e.g. `subscriber.customFields.plan == "pro" && variables.opened == true`.
func ConditionEnv(s *models.Subscriber, variables map[string]any) map[string]any {
	sub := map[string]any{}
	if s != nil {
		custom := map[string]any{}
		if len(s.CustomFields) > 0 {
			_ = json.Unmarshal(s.CustomFields, &custom)
		}
		sub = map[string]any{
			"id":           s.ID,
			"email":        s.Email,
			"firstName":    s.FirstName,
			"lastName":     s.LastName,
			"status":       s.Status,
			"listId":       s.ListID,
			"customFields": custom,
		}
	}

	if variables == nil {
		variables = map[string]any{}
	}
	return map[string]any{
		"subscriber": sub,
		"variables":  variables,
	}
}
