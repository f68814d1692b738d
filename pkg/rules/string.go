package rules

import (
	"fmt"
	"strings"
)

// existence handles the operators shared by all value checkers. The second
// return reports whether the operator was an existence probe at all.
func existence(values []any, op Operator) (bool, bool) {
	switch op {
	case OperatorIsSet:
		for _, v := range values {
			if v != nil {
				return true, true
			}
		}

		return false, true
	case OperatorIsNotSet:
		for _, v := range values {
			if v != nil {
				return false, true
			}
		}

		return true, true
	case OperatorEmpty:
		for _, v := range values {
			if !isBlank(v) {
				return false, true
			}
		}

		return true, true
	default:
		return false, false
	}
}

// StringChecker evaluates string nodes: equality and affix operators with
// coercion of non-string scalars to string. Negated operators hold when no
// queried value matches the positive form, including over an empty result
// set.
type StringChecker struct{}

func (c *StringChecker) Check(scope *Scope, node *Node) (bool, error) {
	values := Scalars(Query(scope.Object(node.Group), node.Path))

	if result, handled := existence(values, node.Operator); handled {
		return result, nil
	}

	positive, negated, err := stringOp(node.Operator)
	if err != nil {
		return false, err
	}

	resolved, err := resolveValue(scope, node.Value)
	if err != nil {
		return false, err
	}

	expected, _ := asString(resolved)

	matched := false

	for _, v := range values {
		s, ok := asString(v)
		if !ok {
			continue
		}

		if positive(s, expected) {
			matched = true

			break
		}
	}

	if negated {
		return !matched, nil
	}

	return matched, nil
}

// stringOp maps an operator to its positive predicate and whether the
// operator negates it.
func stringOp(op Operator) (func(value, expected string) bool, bool, error) {
	switch op {
	case OperatorEquals, OperatorNotEquals:
		return func(v, e string) bool { return v == e }, op == OperatorNotEquals, nil
	case OperatorStartsWith, OperatorNotStartsWith:
		return strings.HasPrefix, op == OperatorNotStartsWith, nil
	case OperatorEndsWith, OperatorNotEndsWith:
		return strings.HasSuffix, op == OperatorNotEndsWith, nil
	case OperatorContains, OperatorNotContains:
		return strings.Contains, op == OperatorNotContains, nil
	default:
		return nil, false, fmt.Errorf("%w: %q for string rule", ErrUnknownOperator, op)
	}
}
