package rules

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/embarkhq/embark/pkg/template"
)

// Evaluation errors are fatal to a check call. A rule that cannot be
// evaluated must propagate, never silently read as false, since a silently
// false rule would corrupt segmentation without signal.
var (
	ErrUnknownType     = errors.New("unknown rule type")
	ErrUnknownOperator = errors.New("unknown rule operator")
	ErrNotCombinator   = errors.New("wrapper operator is not a boolean combinator")
)

// EventInput is one candidate event presented to an evaluation: its name and
// flattened payload.
type EventInput struct {
	Name       string
	Properties map[string]any
}

// Input bundles the subject of a check: the user's flattened attributes and
// the candidate events event wrappers iterate over.
type Input struct {
	User   map[string]any
	Events []EventInput
}

// Scope is the per-call evaluation state handed to checkers. Event is the
// payload of the event currently under test (set by an enclosing event
// wrapper); Parent carries cached results for group=parent nodes used by the
// incremental matcher.
type Scope struct {
	User   map[string]any
	Events []EventInput
	Event  map[string]any
	Parent map[string]bool
	Now    time.Time
}

// Object resolves the input object a node queries against.
func (s *Scope) Object(group Group) map[string]any {
	if group == GroupEvent {
		return s.Event
	}

	return s.User
}

// Checker evaluates one node type. Implementations must be deterministic and
// side-effect-free.
type Checker interface {
	Check(scope *Scope, node *Node) (bool, error)
}

// Registry maps a rule's declared type to its checker and is the evaluation
// entry point.
type Registry struct {
	checkers map[NodeType]Checker
	now      func() time.Time
}

// RegistryOption customizes registry construction.
type RegistryOption func(*Registry)

// WithClock overrides the evaluation clock, used by tests and by callers
// replaying history.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

// NewRegistry builds a registry with every built-in checker registered.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		checkers: make(map[NodeType]Checker),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	r.checkers[NodeTypeString] = &StringChecker{}
	r.checkers[NodeTypeNumber] = &NumberChecker{}
	r.checkers[NodeTypeBoolean] = &BooleanChecker{}
	r.checkers[NodeTypeDate] = &DateChecker{}
	r.checkers[NodeTypeArray] = &ArrayChecker{}
	r.checkers[NodeTypeWrapper] = &WrapperChecker{registry: r}

	return r
}

// Check evaluates a single tree against the input.
func (r *Registry) Check(input Input, node *Node) (bool, error) {
	scope := &Scope{
		User:   input.User,
		Events: input.Events,
		Now:    r.now(),
	}

	return r.check(scope, node)
}

// CheckAll evaluates a bare list of rules as an implicit and-wrapper.
func (r *Registry) CheckAll(input Input, nodes []*Node) (bool, error) {
	return r.Check(input, &Node{
		Type:     NodeTypeWrapper,
		Operator: OperatorAnd,
		Children: nodes,
	})
}

func (r *Registry) check(scope *Scope, node *Node) (bool, error) {
	checker, ok := r.checkers[node.Type]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownType, node.Type)
	}

	return checker.Check(scope, node)
}

// resolveValue resolves a rule value literal once per evaluation. String
// literals carrying template syntax are rendered against the current scope,
// so expressions like relative dates are computed at check time rather than
// precomputed.
func resolveValue(scope *Scope, value any) (any, error) {
	s, ok := value.(string)
	if !ok || !strings.Contains(s, "{{") {
		return value, nil
	}

	rendered, err := template.Render(s, map[string]any{
		"user":  scope.User,
		"event": scope.Event,
		"now":   scope.Now.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve rule value %q: %w", s, err)
	}

	return rendered, nil
}
