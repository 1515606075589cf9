// internal/rules/evaluate.go
package rules

import "github.com/solatis/stashkeeper/internal/types"

/*
 * Rule applicability.
 *
 * A rule applies when every one of its compiled filters passes. Filters run
 * in compiled (cost) order and the first failure stops evaluation.
 *
 * Per-filter semantics:
 *   - reference / container / worldspace: membership of the target's id,
 *     base type or worldspace
 *   - actor values: every requirement holds (value >= min, and <= max unless
 *     max is negative)
 *   - quest stages: at least one condition holds; unknown quests fail
 *   - globals: every global equals its expected value exactly
 *   - locations: the effective location or one of its ancestors is listed
 *   - location keywords: the effective location or an ancestor carries one
 *     of the keywords
 *
 * The effective location is the target's own location. A target without one
 * borrows the location of the nearest map marker of its worldspace inside
 * the lookup radius.
 */

// IsApplicable reports whether rule applies to target.
func (e *Evaluator) IsApplicable(rule *CompiledRule, target Target) bool {
	ok, _ := e.Explain(rule, target)
	return ok
}

// Explain is IsApplicable that also names the first failing filter.
// The name is empty when the rule applies.
func (e *Evaluator) Explain(rule *CompiledRule, target Target) (bool, string) {
	var (
		loc      types.FormID
		hasLoc   bool
		resolved bool
	)
	effectiveLocation := func() (types.FormID, bool) {
		if !resolved {
			loc, hasLoc = e.effectiveLocation(target)
			resolved = true
		}
		return loc, hasLoc
	}

	for _, f := range rule.Filters {
		if !e.evaluateFilter(f.Kind, rule, target, effectiveLocation) {
			return false, f.Kind.String()
		}
	}
	return true, ""
}

func (e *Evaluator) evaluateFilter(kind FilterKind, rule *CompiledRule, target Target, location func() (types.FormID, bool)) bool {
	switch kind {
	case FilterReference:
		_, ok := rule.references[target.ID()]
		return ok
	case FilterContainer:
		base, ok := target.Base()
		if !ok {
			return false
		}
		_, ok = rule.containers[base]
		return ok
	case FilterActorValue:
		return e.actorValuesHold(rule.Rule.RequiredAVs)
	case FilterQuestStage:
		return e.anyQuestStageHolds(rule.Rule.RequiredQuestStages)
	case FilterGlobal:
		return e.globalsHold(rule.Rule.RequiredGlobals)
	case FilterWorldspace:
		ws, ok := target.Worldspace()
		if !ok {
			return false
		}
		_, ok = rule.worldspaces[ws]
		return ok
	case FilterLocation:
		loc, ok := location()
		if !ok {
			return false
		}
		return e.index.Matches(loc, rule.locations)
	case FilterLocationKeyword:
		loc, ok := location()
		if !ok {
			return false
		}
		return e.index.HasKeyword(e.state, loc, rule.Rule.LocationKeywords)
	default:
		return false
	}
}

// effectiveLocation returns the target's location, or the location of the
// nearest marker of its worldspace within the lookup radius.
func (e *Evaluator) effectiveLocation(target Target) (types.FormID, bool) {
	if loc, ok := target.Location(); ok {
		return loc, true
	}
	ws, ok := target.Worldspace()
	if !ok {
		return 0, false
	}
	marker, ok := e.index.NearestMarker(ws, target.Position(), e.radius)
	if !ok {
		return 0, false
	}
	return marker.Location, true
}

func (e *Evaluator) actorValuesHold(reqs []types.AVRequirement) bool {
	for _, req := range reqs {
		value, ok := e.state.PlayerActorValue(req.Name)
		if !ok || !inRange(value, req.Min, req.Max) {
			return false
		}
	}
	return true
}

func (e *Evaluator) anyQuestStageHolds(conds []types.QuestCondition) bool {
	for _, qc := range conds {
		stage, ok := e.state.QuestStage(qc.Quest)
		if ok && Compare(stage, qc.Comparator, qc.Stage) {
			return true
		}
	}
	return false
}

func (e *Evaluator) globalsHold(reqs []types.GlobalRequirement) bool {
	for _, req := range reqs {
		value, ok := e.state.GlobalValue(req.Global)
		if !ok || value != req.Value {
			return false
		}
	}
	return true
}
