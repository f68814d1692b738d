package rules

import "fmt"

// WrapperChecker combines child results with a boolean combinator. An event
// wrapper additionally scopes its children to each candidate event of the
// configured name, short-circuiting true on the first satisfying event.
type WrapperChecker struct {
	registry *Registry
}

func (c *WrapperChecker) Check(scope *Scope, node *Node) (bool, error) {
	if !node.Operator.IsCombinator() {
		return false, fmt.Errorf("%w: %q", ErrNotCombinator, node.Operator)
	}

	// An event wrapper is scoped to events of its name before children are
	// considered: with no children it asks "did this event happen at all",
	// so the name match decides it, not the vacuous combinator.
	if node.IsEventWrapper() {
		return c.checkEventWrapper(scope, node)
	}

	// A non-event wrapper with no children is vacuously true.
	if len(node.Children) == 0 {
		return true, nil
	}

	results := make([]bool, 0, len(node.Children))

	for _, child := range node.Children {
		result, err := c.checkChild(scope, child)
		if err != nil {
			return false, err
		}

		results = append(results, result)
	}

	return combine(node.Operator, results), nil
}

// checkEventWrapper iterates the candidate events whose name equals the
// wrapper's value and evaluates the children against each matching event's
// payload. No matching event means false.
func (c *WrapperChecker) checkEventWrapper(scope *Scope, node *Node) (bool, error) {
	name := node.EventName()

	for _, event := range scope.Events {
		if event.Name != name {
			continue
		}

		eventScope := &Scope{
			User:   scope.User,
			Events: scope.Events,
			Event:  event.Properties,
			Parent: scope.Parent,
			Now:    scope.Now,
		}

		results := make([]bool, 0, len(node.Children))

		for _, child := range node.Children {
			result, err := c.checkChild(eventScope, child)
			if err != nil {
				return false, err
			}

			results = append(results, result)
		}

		if combine(node.Operator, results) {
			return true, nil
		}
	}

	return false, nil
}

func (c *WrapperChecker) checkChild(scope *Scope, child *Node) (bool, error) {
	// group=parent nodes carry a boolean from a prior evaluation pass instead
	// of querying an input object.
	if child.Group == GroupParent {
		return scope.Parent[child.UUID], nil
	}

	return c.registry.check(scope, child)
}

func combine(op Operator, results []bool) bool {
	trues := 0

	for _, r := range results {
		if r {
			trues++
		}
	}

	switch op {
	case OperatorAnd:
		return trues == len(results)
	case OperatorOr:
		return trues > 0
	case OperatorXor:
		return trues == 1
	case OperatorNone:
		return trues == 0
	default:
		return false
	}
}
