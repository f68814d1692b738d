package rules

import "fmt"

// ArrayChecker evaluates array nodes: membership tests over queried slices.
// Array emptiness is length zero.
type ArrayChecker struct{}

func (c *ArrayChecker) Check(scope *Scope, node *Node) (bool, error) {
	values := Query(scope.Object(node.Group), node.Path)

	switch node.Operator {
	case OperatorIsSet, OperatorIsNotSet, OperatorEmpty:
		result, _ := existence(values, node.Operator)

		return result, nil
	case OperatorIncludes, OperatorNotIncludes:
	default:
		return false, fmt.Errorf("%w: %q for array rule", ErrUnknownOperator, node.Operator)
	}

	resolved, err := resolveValue(scope, node.Value)
	if err != nil {
		return false, err
	}

	expected, _ := asString(resolved)

	matched := false

	for _, v := range values {
		arr, ok := v.([]any)
		if !ok {
			continue
		}

		for _, elem := range arr {
			s, ok := asString(elem)
			if !ok {
				continue
			}

			if s == expected {
				matched = true

				break
			}
		}

		if matched {
			break
		}
	}

	if node.Operator == OperatorNotIncludes {
		return !matched, nil
	}

	return matched, nil
}
