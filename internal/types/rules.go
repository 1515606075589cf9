// internal/types/rules.go
package types

import (
	"fmt"
	"strings"
)

/*
 * Domain types for swap rules.
 *
 * SwapRule is the authored unit handed from ingestion to the rule store.
 * Its Kind is decided once by Classify at registration and never re-derived:
 *
 *   removeKeywords | oldForm | newForms  -> kind
 *   ---------------+---------+----------    -------
 *   empty          | absent  | any          Add
 *   empty          | set     | empty        Remove
 *   empty          | set     | non-empty    Replace
 *   non-empty      | any     | empty        Remove (keyword mode)
 *   non-empty      | any     | non-empty    Replace (keyword mode)
 *
 * Filter slices follow "empty means unconstrained". Quest stage conditions
 * are OR-ed, every other filter list is AND-ed across kinds.
 */

// RuleKind is the collection a rule belongs to.
type RuleKind int

const (
	KindAdd RuleKind = iota
	KindRemove
	KindReplace
)

func (k RuleKind) String() string {
	switch k {
	case KindAdd:
		return "Add"
	case KindRemove:
		return "Remove"
	case KindReplace:
		return "Replace"
	default:
		return "Unknown"
	}
}

// Comparator compares a quest's current stage against a target stage.
type Comparator int

const (
	CmpEqual Comparator = iota
	CmpNotEqual
	CmpGreater
	CmpGreaterOrEqual
	CmpLess
	CmpLessOrEqual
)

func (c Comparator) String() string {
	switch c {
	case CmpEqual:
		return "=="
	case CmpNotEqual:
		return "!="
	case CmpGreater:
		return ">"
	case CmpGreaterOrEqual:
		return ">="
	case CmpLess:
		return "<"
	case CmpLessOrEqual:
		return "<="
	default:
		return "?"
	}
}

// Valid reports whether c is one of the six comparators.
func (c Comparator) Valid() bool {
	return c >= CmpEqual && c <= CmpLessOrEqual
}

// ParseComparator accepts symbolic and two-letter forms.
func ParseComparator(s string) (Comparator, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "==", "=", "eq":
		return CmpEqual, nil
	case "!=", "<>", "ne":
		return CmpNotEqual, nil
	case ">", "gt":
		return CmpGreater, nil
	case ">=", "ge", "gte":
		return CmpGreaterOrEqual, nil
	case "<", "lt":
		return CmpLess, nil
	case "<=", "le", "lte":
		return CmpLessOrEqual, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidComparator, s)
	}
}

// QuestCondition passes when Compare(currentStage, Comparator, Stage) holds.
type QuestCondition struct {
	Quest      FormID
	Comparator Comparator
	Stage      int
}

// AVRequirement bounds a player actor value. Max < 0 means unbounded.
type AVRequirement struct {
	Name string
	Min  float64
	Max  float64
}

// GlobalRequirement requires a global variable to equal Value exactly.
type GlobalRequirement struct {
	Global FormID
	Value  float64
}

// SwapRule is a registered add/remove/replace rule.
type SwapRule struct {
	ID   RuleID
	Name string
	Kind RuleKind

	// Count < 1 means "all present" for removal and 1 for addition.
	Count        int
	PickAtRandom bool

	AllowVendors    bool
	OnlyVendors     bool
	BypassSafeEdits bool

	RemoveKeywords []string
	OldForm        FormID
	NewForms       []FormID

	LocationKeywords []string
	ValidLocations   []FormID
	ValidWorldspaces []FormID
	References       []FormID
	Containers       []FormID

	RequiredAVs         []AVRequirement
	RequiredGlobals     []GlobalRequirement
	RequiredQuestStages []QuestCondition
}

// KeywordMode reports whether removal matches items by keyword.
func (r *SwapRule) KeywordMode() bool {
	return len(r.RemoveKeywords) > 0
}

// Classify derives the rule kind from its field shape.
// Returns ErrEmptyRule for shapes with nothing to do. Returns
// ErrAmbiguousRemoval together with a valid kind when both removal
// selectors are set; callers treat that as a warning.
func Classify(r *SwapRule) (RuleKind, error) {
	if !r.KeywordMode() {
		switch {
		case r.OldForm.IsZero() && len(r.NewForms) == 0:
			return KindAdd, ErrEmptyRule
		case r.OldForm.IsZero():
			return KindAdd, nil
		case len(r.NewForms) == 0:
			return KindRemove, nil
		default:
			return KindReplace, nil
		}
	}

	kind := KindRemove
	if len(r.NewForms) > 0 {
		kind = KindReplace
	}
	if !r.OldForm.IsZero() {
		return kind, ErrAmbiguousRemoval
	}
	return kind, nil
}
