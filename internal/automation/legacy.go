package automation

import (
	"encoding/json"
	"fmt"
	"strings"
)

type legacyStep struct {
	Type   string          `json:"type"`
	Config json.RawMessage `json:"config"`
}

var legacyKinds = map[string]NodeKind{
	"email":     KindAction,
	"delay":     KindDelay,
	"condition": KindCondition,
}

// ParseSteps decodes a legacy step array into nodes with ids "step-<index>".
func ParseSteps(raw []byte) ([]Node, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var steps []legacyStep
	if err := json.Unmarshal(raw, &steps); err != nil {
		return nil, fmt.Errorf("%w: steps: %v", ErrInvalidDefinition, err)
	}

	nodes := make([]Node, 0, len(steps))
	for i, s := range steps {
		kind, ok := legacyKinds[strings.ToLower(s.Type)]
		if !ok {
			return nil, fmt.Errorf("%w: step %d: unknown type %q", ErrInvalidDefinition, i, s.Type)
		}

		cfg := s.Config
		if len(cfg) == 0 {
			cfg = []byte("{}")
		}

		b, err := json.Marshal(rawNode{ID: stepID(i), Type: kind, Config: cfg})
		if err != nil {
			return nil, err
		}

		var n Node
		if err := json.Unmarshal(b, &n); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
		}
		if n.Action != nil && n.Action.ActionType == "" {
			n.Action.ActionType = ActionEmail
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// ValidateSteps checks every step config. An empty sequence is valid and completes immediately.
func ValidateSteps(steps []Node, compiler ExpressionCompiler) error {
	var problems []string
	for i, n := range steps {
		if err := validateNode(n, compiler); err != nil {
			problems = append(problems, fmt.Sprintf("step %d: %v", i, err))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidDefinition, strings.Join(problems, "; "))
	}
	return nil
}

func stepID(i int) string {
	return fmt.Sprintf("step-%d", i)
}
