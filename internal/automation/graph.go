package automation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type NodeKind string

const (
	KindTrigger   NodeKind = "TRIGGER"
	KindAction    NodeKind = "ACTION"
	KindCondition NodeKind = "CONDITION"
	KindDelay     NodeKind = "DELAY"
)

const (
	ConnectionConditional = "conditional"
	ConnectionAlways      = "always"

	ActionEmail = "email"
)

var ErrInvalidDefinition = errors.New("invalid automation definition")

type TriggerNode struct {
	TriggerType string `json:"triggerType,omitempty"`
	CampaignID  *uint  `json:"campaignId,omitempty"`
	LinkURL     string `json:"linkUrl,omitempty"`
}

type ActionNode struct {
	ActionType  string `json:"actionType"`
	Subject     string `json:"subject"`
	HTMLContent string `json:"htmlContent"`
	TextContent string `json:"textContent,omitempty"`
	FromEmail   string `json:"fromEmail"`
	FromName    string `json:"fromName,omitempty"`
	ReplyTo     string `json:"replyTo,omitempty"`
}

type ConditionNode struct {
	Expression string `json:"expression"`
}

type DelayNode struct {
	Value int    `json:"value"`
	Unit  string `json:"unit"`
}

// Duration converts the delay to a wait. Unknown units yield an error.
func (d DelayNode) Duration() (time.Duration, error) {
	if d.Value < 0 {
		return 0, fmt.Errorf("negative delay %d", d.Value)
	}

	v := time.Duration(d.Value)
	switch strings.ToLower(d.Unit) {
	case "minutes", "minute":
		return v * time.Minute, nil
	case "hours", "hour":
		return v * time.Hour, nil
	case "days", "day":
		return v * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown delay unit %q", d.Unit)
	}
}

// Node is a tagged union: exactly the field matching Kind is set.
type Node struct {
	ID   string
	Kind NodeKind

	Trigger   *TriggerNode
	Action    *ActionNode
	Condition *ConditionNode
	Delay     *DelayNode
}

type rawNode struct {
	ID     string          `json:"id"`
	Type   NodeKind        `json:"type"`
	Config json.RawMessage `json:"config,omitempty"`
}

func (n *Node) UnmarshalJSON(b []byte) error {
	var raw rawNode
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	n.ID = raw.ID
	n.Kind = NodeKind(strings.ToUpper(string(raw.Type)))

	cfg := raw.Config
	if len(cfg) == 0 || string(cfg) == "null" {
		cfg = []byte("{}")
	}

	var target any
	switch n.Kind {
	case KindTrigger:
		n.Trigger = &TriggerNode{}
		target = n.Trigger
	case KindAction:
		n.Action = &ActionNode{}
		target = n.Action
	case KindCondition:
		n.Condition = &ConditionNode{}
		target = n.Condition
	case KindDelay:
		n.Delay = &DelayNode{}
		target = n.Delay
	default:
		return fmt.Errorf("node %q: unknown type %q", raw.ID, raw.Type)
	}

	if err := json.Unmarshal(cfg, target); err != nil {
		return fmt.Errorf("node %q: config: %w", raw.ID, err)
	}
	return nil
}

func (n Node) MarshalJSON() ([]byte, error) {
	var cfg any
	switch n.Kind {
	case KindTrigger:
		cfg = n.Trigger
	case KindAction:
		cfg = n.Action
	case KindCondition:
		cfg = n.Condition
	case KindDelay:
		cfg = n.Delay
	}

	raw := rawNode{ID: n.ID, Type: n.Kind}
	if cfg != nil {
		b, err := json.Marshal(cfg)
		if err != nil {
			return nil, err
		}
		raw.Config = b
	}
	return json.Marshal(raw)
}

type ConnectionCondition struct {
	Type string `json:"type"`
}

type Connection struct {
	Source    string               `json:"source"`
	Target    string               `json:"target"`
	Condition *ConnectionCondition `json:"condition,omitempty"`
}

// conditionType is "" for an unconditioned connection.
func (c Connection) conditionType() string {
	if c.Condition == nil {
		return ""
	}
	return c.Condition.Type
}

type Definition struct {
	Nodes       []Node       `json:"nodes"`
	Connections []Connection `json:"connections"`
}

// ParseDefinition decodes a stored graph. It does not validate it.
func ParseDefinition(raw []byte) (*Definition, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty definition", ErrInvalidDefinition)
	}

	var def Definition
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	return &def, nil
}

func (d *Definition) Node(id string) (*Node, bool) {
	for i := range d.Nodes {
		if d.Nodes[i].ID == id {
			return &d.Nodes[i], true
		}
	}
	return nil, false
}

func (d *Definition) Trigger() (*Node, bool) {
	for i := range d.Nodes {
		if d.Nodes[i].Kind == KindTrigger {
			return &d.Nodes[i], true
		}
	}
	return nil, false
}

// Outgoing returns the connections leaving id in definition order.
func (d *Definition) Outgoing(id string) []Connection {
	var out []Connection
	for _, c := range d.Connections {
		if c.Source == id {
			out = append(out, c)
		}
	}
	return out
}

// EntryNode is the node directly after the trigger, or "" when the trigger has no successor.
func (d *Definition) EntryNode() string {
	t, ok := d.Trigger()
	if !ok {
		return ""
	}
	if out := d.Outgoing(t.ID); len(out) > 0 {
		return out[0].Target
	}
	return ""
}

// Next resolves the successor of node. For a condition node, result selects the
// conditional connection when true and an always or unconditioned one when false.
// Other nodes follow their first connection. "" means traversal ends.
func (d *Definition) Next(node *Node, result bool) string {
	out := d.Outgoing(node.ID)

	if node.Kind != KindCondition {
		if len(out) > 0 {
			return out[0].Target
		}
		return ""
	}

	for _, c := range out {
		t := c.conditionType()
		if result && t == ConnectionConditional {
			return c.Target
		}
		if !result && (t == ConnectionAlways || t == "") {
			return c.Target
		}
	}
	return ""
}

// ExpressionCompiler checks a condition expression without running it.
type ExpressionCompiler interface {
	Compile(expression string) error
}

// Validate checks the graph structure and every node's config. compiler may be nil.
func (d *Definition) Validate(compiler ExpressionCompiler) error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if len(d.Nodes) == 0 {
		add("no nodes")
	}

	seen := map[string]bool{}
	triggers := 0
	for _, n := range d.Nodes {
		if n.ID == "" {
			add("node without id")
			continue
		}
		if seen[n.ID] {
			add("duplicate node id %q", n.ID)
		}
		seen[n.ID] = true

		if n.Kind == KindTrigger {
			triggers++
		}
		if err := validateNode(n, compiler); err != nil {
			add("node %q: %v", n.ID, err)
		}
	}
	if triggers != 1 {
		add("expected exactly one TRIGGER node, found %d", triggers)
	}

	for _, c := range d.Connections {
		if !seen[c.Source] {
			add("connection from unknown node %q", c.Source)
		}
		if !seen[c.Target] {
			add("connection to unknown node %q", c.Target)
		}
		if t, ok := d.Node(c.Target); ok && t.Kind == KindTrigger {
			add("connection into trigger %q", c.Target)
		}
		switch c.conditionType() {
		case "", ConnectionAlways, ConnectionConditional:
		default:
			add("connection %s->%s: unknown condition type %q", c.Source, c.Target, c.Condition.Type)
		}
	}

	if len(problems) == 0 && d.hasCycle() {
		add("graph contains a cycle")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidDefinition, strings.Join(problems, "; "))
	}
	return nil
}

func validateNode(n Node, compiler ExpressionCompiler) error {
	switch n.Kind {
	case KindTrigger:
		if n.Trigger == nil {
			return errors.New("missing trigger config")
		}
	case KindAction:
		return validateAction(n.Action)
	case KindCondition:
		if n.Condition == nil || strings.TrimSpace(n.Condition.Expression) == "" {
			return errors.New("condition expression is required")
		}
		if compiler != nil {
			if err := compiler.Compile(n.Condition.Expression); err != nil {
				return fmt.Errorf("condition does not compile: %w", err)
			}
		}
	case KindDelay:
		if n.Delay == nil {
			return errors.New("missing delay config")
		}
		if _, err := n.Delay.Duration(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown type %q", n.Kind)
	}
	return nil
}

func validateAction(a *ActionNode) error {
	if a == nil {
		return errors.New("missing action config")
	}
	if a.ActionType != ActionEmail {
		return fmt.Errorf("unsupported action type %q", a.ActionType)
	}
	if a.Subject == "" || a.HTMLContent == "" || a.FromEmail == "" {
		return errors.New("email action needs subject, htmlContent and fromEmail")
	}
	return nil
}

// hasCycle reports whether any node can reach itself. Executions must terminate.
func (d *Definition) hasCycle() bool {
	const (
		unvisited = iota
		visiting
		done
	)
	state := map[string]int{}

	var visit func(id string) bool
	visit = func(id string) bool {
		switch state[id] {
		case visiting:
			return true
		case done:
			return false
		}
		state[id] = visiting
		for _, c := range d.Outgoing(id) {
			if visit(c.Target) {
				return true
			}
		}
		state[id] = done
		return false
	}

	for _, n := range d.Nodes {
		if visit(n.ID) {
			return true
		}
	}
	return false
}
