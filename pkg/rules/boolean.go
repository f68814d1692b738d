package rules

import "fmt"

// BooleanChecker evaluates boolean nodes with lenient coercion: "true" and 1
// read as true, "false", 0 and the empty string as false.
type BooleanChecker struct{}

func (c *BooleanChecker) Check(scope *Scope, node *Node) (bool, error) {
	values := Scalars(Query(scope.Object(node.Group), node.Path))

	if result, handled := existence(values, node.Operator); handled {
		return result, nil
	}

	switch node.Operator {
	case OperatorEquals, OperatorNotEquals:
	default:
		return false, fmt.Errorf("%w: %q for boolean rule", ErrUnknownOperator, node.Operator)
	}

	resolved, err := resolveValue(scope, node.Value)
	if err != nil {
		return false, err
	}

	expected, ok := asBool(resolved)
	if !ok {
		return node.Operator == OperatorNotEquals, nil
	}

	matched := false

	for _, v := range values {
		b, ok := asBool(v)
		if !ok {
			continue
		}

		if b == expected {
			matched = true

			break
		}
	}

	if node.Operator == OperatorNotEquals {
		return !matched, nil
	}

	return matched, nil
}
