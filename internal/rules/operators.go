// internal/rules/operators.go
package rules

import "github.com/solatis/stashkeeper/internal/types"

// Compare applies cmp to a quest's current stage and a target stage.
// Unknown comparators never match.
func Compare(current int, cmp types.Comparator, target int) bool {
	switch cmp {
	case types.CmpEqual:
		return current == target
	case types.CmpNotEqual:
		return current != target
	case types.CmpGreater:
		return current > target
	case types.CmpGreaterOrEqual:
		return current >= target
	case types.CmpLess:
		return current < target
	case types.CmpLessOrEqual:
		return current <= target
	default:
		return false
	}
}

// inRange checks an actor value against an inclusive range. max < 0 is unbounded.
func inRange(value, min, max float64) bool {
	if value < min {
		return false
	}
	return max < 0 || value <= max
}
