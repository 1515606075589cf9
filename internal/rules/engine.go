package rules

import (
	"github.com/solatis/stashkeeper/internal/locations"
	"github.com/solatis/stashkeeper/internal/types"
)

// Target is the view of a container reference the filters need.
type Target interface {
	ID() types.FormID
	Base() (types.FormID, bool)
	Location() (types.FormID, bool)
	Worldspace() (types.FormID, bool)
	Position() types.Position
}

// State answers the dynamic host queries used by condition filters.
type State interface {
	locations.KeywordSource
	PlayerActorValue(name string) (float64, bool)
	QuestStage(quest types.FormID) (int, bool)
	GlobalValue(global types.FormID) (float64, bool)
}

// Evaluator decides rule applicability against the location index and host state.
// It holds no mutable state and is safe to share.
type Evaluator struct {
	index  *locations.Index
	state  State
	radius float64
}

// NewEvaluator creates an evaluator. radius is the marker fallback search
// radius and is expected to be clamped by the caller.
func NewEvaluator(index *locations.Index, state State, radius float64) *Evaluator {
	return &Evaluator{index: index, state: state, radius: radius}
}

// Radius returns the marker fallback search radius.
func (e *Evaluator) Radius() float64 {
	return e.radius
}
