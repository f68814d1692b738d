package rules

import "fmt"

// NumberChecker evaluates number nodes with numeric coercion on both sides.
type NumberChecker struct{}

func (c *NumberChecker) Check(scope *Scope, node *Node) (bool, error) {
	values := Scalars(Query(scope.Object(node.Group), node.Path))

	if result, handled := existence(values, node.Operator); handled {
		return result, nil
	}

	if err := validNumberOp(node.Operator); err != nil {
		return false, err
	}

	resolved, err := resolveValue(scope, node.Value)
	if err != nil {
		return false, err
	}

	expected, ok := asNumber(resolved)
	if !ok {
		return node.Operator == OperatorNotEquals, nil
	}

	matched := false

	for _, v := range values {
		n, ok := asNumber(v)
		if !ok {
			continue
		}

		if compareNumber(n, expected, node.Operator) {
			matched = true

			break
		}
	}

	if node.Operator == OperatorNotEquals {
		return !matched, nil
	}

	return matched, nil
}

func validNumberOp(op Operator) error {
	switch op {
	case OperatorEquals, OperatorNotEquals,
		OperatorGreaterThan, OperatorLessThan,
		OperatorGreaterOrEqual, OperatorLessOrEqual:
		return nil
	default:
		return fmt.Errorf("%w: %q for number rule", ErrUnknownOperator, op)
	}
}

// compareNumber applies the positive form of the operator; not_equals is
// resolved by the caller as the negation of equals.
func compareNumber(value, expected float64, op Operator) bool {
	switch op {
	case OperatorEquals, OperatorNotEquals:
		return value == expected
	case OperatorGreaterThan:
		return value > expected
	case OperatorLessThan:
		return value < expected
	case OperatorGreaterOrEqual:
		return value >= expected
	case OperatorLessOrEqual:
		return value <= expected
	default:
		return false
	}
}
