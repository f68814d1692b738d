// Package rules implements the condition tree evaluation engine used for
// list membership and journey gate branching. Trees are explicit values with
// owned children; the flattened parent/root form exists only at the storage
// boundary.
package rules

// NodeType selects which checker evaluates a node.
type NodeType string

const (
	NodeTypeWrapper NodeType = "wrapper"
	NodeTypeString  NodeType = "string"
	NodeTypeNumber  NodeType = "number"
	NodeTypeBoolean NodeType = "boolean"
	NodeTypeDate    NodeType = "date"
	NodeTypeArray   NodeType = "array"
)

// Group selects which input object a node evaluates against.
type Group string

const (
	GroupUser   Group = "user"   // The subject user's flattened attributes
	GroupEvent  Group = "event"  // The event payload currently under test
	GroupParent Group = "parent" // A boolean carried from a prior evaluation pass
)

// Operator is the comparison or combinator applied by a checker. Operators
// are type-specific; an operator unknown to a node's checker is a hard
// evaluation error, never a silent false.
type Operator string

const (
	// Boolean combinators, wrapper nodes only.
	OperatorAnd  Operator = "and"
	OperatorOr   Operator = "or"
	OperatorXor  Operator = "xor"
	OperatorNone Operator = "none"

	// Shared across value checkers.
	OperatorEquals    Operator = "equals"
	OperatorNotEquals Operator = "not_equals"
	OperatorIsSet     Operator = "is_set"
	OperatorIsNotSet  Operator = "is_not_set"
	OperatorEmpty     Operator = "empty"

	// Number ordering.
	OperatorGreaterThan    Operator = "greater_than"
	OperatorLessThan       Operator = "less_than"
	OperatorGreaterOrEqual Operator = "greater_or_equal"
	OperatorLessOrEqual    Operator = "less_or_equal"

	// Date ordering, calendar-aware. The "on or" variants are non-strict.
	OperatorBefore     Operator = "before"
	OperatorAfter      Operator = "after"
	OperatorOnOrBefore Operator = "on_or_before"
	OperatorOnOrAfter  Operator = "on_or_after"

	// String affixes.
	OperatorStartsWith    Operator = "starts_with"
	OperatorNotStartsWith Operator = "not_starts_with"
	OperatorEndsWith      Operator = "ends_with"
	OperatorNotEndsWith   Operator = "not_ends_with"
	OperatorContains      Operator = "contains"
	OperatorNotContains   Operator = "not_contains"

	// Array membership.
	OperatorIncludes    Operator = "includes"
	OperatorNotIncludes Operator = "not_includes"
)

// IsCombinator reports whether the operator is a wrapper combinator.
func (o Operator) IsCombinator() bool {
	switch o {
	case OperatorAnd, OperatorOr, OperatorXor, OperatorNone:
		return true
	default:
		return false
	}
}

// EventNamePath is the path an event wrapper uses to address the candidate
// event's name rather than a payload field.
const EventNamePath = "name"

// Node is one node of a condition tree. Children are owned exclusively by
// their parent wrapper, so cycles are structurally impossible. A non-wrapper
// node never has children.
type Node struct {
	ID         string   `json:"id,omitempty"`
	UUID       string   `json:"uuid"`
	ParentUUID string   `json:"parent_uuid,omitempty"`
	RootUUID   string   `json:"root_uuid,omitempty"`
	Type       NodeType `json:"type"     validate:"required"`
	Group      Group    `json:"group,omitempty"`
	Path       string   `json:"path,omitempty"`
	Operator   Operator `json:"operator" validate:"required"`
	Value      any      `json:"value,omitempty"`
	Children   []*Node  `json:"children,omitempty"`
}

// IsWrapper reports whether the node combines children rather than testing a
// value.
func (n *Node) IsWrapper() bool {
	return n.Type == NodeTypeWrapper
}

// IsEventWrapper reports whether the node is a wrapper scoped to events of a
// particular name: its children are evaluated against each candidate event
// payload whose name equals the wrapper's value.
func (n *Node) IsEventWrapper() bool {
	return n.IsWrapper() && n.Group == GroupEvent && n.Path == EventNamePath
}

// EventName returns the event name an event wrapper is scoped to.
func (n *Node) EventName() string {
	s, _ := n.Value.(string)

	return s
}

// Walk visits the node and every descendant in depth-first order.
func (n *Node) Walk(visit func(*Node)) {
	visit(n)

	for _, child := range n.Children {
		child.Walk(visit)
	}
}

// EventNames returns the distinct event names referenced by event wrappers
// anywhere in the tree. Callers use this to bound event history queries.
func (n *Node) EventNames() []string {
	seen := make(map[string]bool)

	var names []string

	n.Walk(func(node *Node) {
		if node.IsEventWrapper() {
			name := node.EventName()
			if name != "" && !seen[name] {
				seen[name] = true

				names = append(names, name)
			}
		}
	})

	return names
}
