// internal/rules/compile.go
package rules

import (
	"fmt"
	"sort"

	"github.com/solatis/stashkeeper/internal/types"
)

/*
 * Rule compilation and validation.
 *
 * Compiles types.SwapRule to CompiledRule: identity filter lists become sets,
 * empty filters are dropped (vacuous truth) and the remaining filters are
 * ordered by ascending cost.
 *
 * Compilation workflow:
 *   1. Validate comparators and actor value ranges
 *   2. Build lookup sets for reference/container/worldspace/location filters
 *   3. Collect non-empty filters with their canonical cost
 *   4. Stable sort by cost
 *
 * Validation at compile time keeps malformed rules out of the store instead
 * of failing silently on every container event.
 */

// Filter is one non-empty predicate of a compiled rule.
type Filter struct {
	Kind FilterKind
	Cost int
}

// CompiledRule is a registered rule ready for evaluation.
type CompiledRule struct {
	Rule    *types.SwapRule
	Filters []Filter // ordered by ascending cost
	Cost    int      // sum of filter costs

	references  map[types.FormID]struct{}
	containers  map[types.FormID]struct{}
	worldspaces map[types.FormID]struct{}
	locations   map[types.FormID]struct{}
}

// Compile validates and pre-processes a rule for evaluation.
func Compile(rule *types.SwapRule) (*CompiledRule, error) {
	for _, qc := range rule.RequiredQuestStages {
		if !qc.Comparator.Valid() {
			return nil, fmt.Errorf("%w: quest %s", types.ErrInvalidComparator, qc.Quest)
		}
	}
	for _, av := range rule.RequiredAVs {
		if av.Max >= 0 && av.Max < av.Min {
			return nil, fmt.Errorf("%w: %s [%g, %g]", types.ErrInvalidRange, av.Name, av.Min, av.Max)
		}
	}

	compiled := &CompiledRule{
		Rule:        rule,
		references:  toSet(rule.References),
		containers:  toSet(rule.Containers),
		worldspaces: toSet(rule.ValidWorldspaces),
		locations:   toSet(rule.ValidLocations),
	}

	add := func(k FilterKind, nonEmpty bool) {
		if !nonEmpty {
			return
		}
		c := filterCost(k)
		compiled.Filters = append(compiled.Filters, Filter{Kind: k, Cost: c})
		compiled.Cost += c
	}
	add(FilterReference, len(rule.References) > 0)
	add(FilterContainer, len(rule.Containers) > 0)
	add(FilterActorValue, len(rule.RequiredAVs) > 0)
	add(FilterQuestStage, len(rule.RequiredQuestStages) > 0)
	add(FilterGlobal, len(rule.RequiredGlobals) > 0)
	add(FilterWorldspace, len(rule.ValidWorldspaces) > 0)
	add(FilterLocation, len(rule.ValidLocations) > 0)
	add(FilterLocationKeyword, len(rule.LocationKeywords) > 0)

	sort.SliceStable(compiled.Filters, func(i, j int) bool {
		return compiled.Filters[i].Cost < compiled.Filters[j].Cost
	})

	return compiled, nil
}

func toSet(ids []types.FormID) map[types.FormID]struct{} {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[types.FormID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
