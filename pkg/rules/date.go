package rules

import (
	"fmt"
	"time"
)

// DateChecker evaluates date nodes with calendar-aware comparisons at day
// precision. Rule values may be relative-date expressions ("1 month ago")
// resolved against now at check time.
type DateChecker struct{}

func (c *DateChecker) Check(scope *Scope, node *Node) (bool, error) {
	values := Scalars(Query(scope.Object(node.Group), node.Path))

	if result, handled := existence(values, node.Operator); handled {
		return result, nil
	}

	if err := validDateOp(node.Operator); err != nil {
		return false, err
	}

	resolved, err := resolveValue(scope, node.Value)
	if err != nil {
		return false, err
	}

	expected, ok := asTime(resolved, scope.Now)
	if !ok {
		return node.Operator == OperatorNotEquals, nil
	}

	matched := false

	for _, v := range values {
		t, ok := asTime(v, scope.Now)
		if !ok {
			continue
		}

		if compareDate(t, expected, node.Operator) {
			matched = true

			break
		}
	}

	if node.Operator == OperatorNotEquals {
		return !matched, nil
	}

	return matched, nil
}

func validDateOp(op Operator) error {
	switch op {
	case OperatorEquals, OperatorNotEquals,
		OperatorBefore, OperatorAfter,
		OperatorOnOrBefore, OperatorOnOrAfter:
		return nil
	default:
		return fmt.Errorf("%w: %q for date rule", ErrUnknownOperator, op)
	}
}

// day truncates a timestamp to its calendar day in UTC.
func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()

	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// compareDate applies the positive form of the operator at day precision;
// the "on or" variants are non-strict.
func compareDate(value, expected time.Time, op Operator) bool {
	v, e := day(value), day(expected)

	switch op {
	case OperatorEquals, OperatorNotEquals:
		return v.Equal(e)
	case OperatorBefore:
		return v.Before(e)
	case OperatorAfter:
		return v.After(e)
	case OperatorOnOrBefore:
		return !v.After(e)
	case OperatorOnOrAfter:
		return !v.Before(e)
	default:
		return false
	}
}
