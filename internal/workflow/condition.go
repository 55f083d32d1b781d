package workflow

import (
	"strconv"
	"strings"
)

// Comparison operators, longest first so ">=" is never split as ">"
var operators = []string{">=", "<=", "!=", "==", ">", "<"}

// EvaluateCondition decides whether a step runs.
//
// Without an operator the step runs when the resolved text is non-empty.
// Otherwise the text is split at the first occurrence of the first operator
// from the priority list that appears anywhere in it. Both sides are trimmed
// and resolved; numeric operands compare as float64, anything else supports
// only case-insensitive == and !=.
func EvaluateCondition(condition string, vars *Variables) bool {
	op, idx := findOperator(condition)
	if op == "" {
		return vars.Resolve(condition) != ""
	}

	left := vars.Resolve(strings.TrimSpace(condition[:idx]))
	right := vars.Resolve(strings.TrimSpace(condition[idx+len(op):]))

	l, lerr := strconv.ParseFloat(strings.TrimSpace(left), 64)
	r, rerr := strconv.ParseFloat(strings.TrimSpace(right), 64)
	if lerr == nil && rerr == nil {
		return compareNumbers(op, l, r)
	}

	switch op {
	case "==":
		return strings.EqualFold(left, right)
	case "!=":
		return !strings.EqualFold(left, right)
	default:
		return false
	}
}

func findOperator(condition string) (string, int) {
	for _, op := range operators {
		if idx := strings.Index(condition, op); idx >= 0 {
			return op, idx
		}
	}
	return "", -1
}

func compareNumbers(op string, l, r float64) bool {
	switch op {
	case ">=":
		return l >= r
	case "<=":
		return l <= r
	case "!=":
		return l != r
	case "==":
		return l == r
	case ">":
		return l > r
	case "<":
		return l < r
	}
	return false
}
