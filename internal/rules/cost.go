// internal/rules/cost.go
package rules

/*
 * Cost model for rule filters.
 *
 * Every non-empty filter of a rule gets a canonical cost; Compile stable-sorts
 * filters by ascending cost so that cheap identity checks reject a container
 * before the location hierarchy is consulted.
 *
 * Resulting order:
 *   reference < container < actor values < quest stages < globals
 *   < worldspace < locations < location keywords
 *
 * Identity filters are single set lookups. Actor value, quest and global
 * filters each call into the host once per entry. Location filters walk the
 * cached ancestor chain and may fall back to a marker scan; keyword filters
 * additionally call into the host once per (location, keyword) pair.
 */

// Canonical filter costs.
const (
	CostReference       = 1
	CostContainer       = 2
	CostActorValue      = 4
	CostQuestStage      = 5
	CostGlobal          = 6
	CostWorldspace      = 8
	CostLocation        = 64
	CostLocationKeyword = 96
)

// FilterKind enumerates the hand-written filter types.
type FilterKind int

const (
	FilterReference FilterKind = iota
	FilterContainer
	FilterActorValue
	FilterQuestStage
	FilterGlobal
	FilterWorldspace
	FilterLocation
	FilterLocationKeyword
)

func (k FilterKind) String() string {
	switch k {
	case FilterReference:
		return "reference"
	case FilterContainer:
		return "container"
	case FilterActorValue:
		return "actor_value"
	case FilterQuestStage:
		return "quest_stage"
	case FilterGlobal:
		return "global"
	case FilterWorldspace:
		return "worldspace"
	case FilterLocation:
		return "location"
	case FilterLocationKeyword:
		return "location_keyword"
	default:
		return "unknown"
	}
}

// filterCost returns the canonical cost of a filter kind.
func filterCost(k FilterKind) int {
	switch k {
	case FilterReference:
		return CostReference
	case FilterContainer:
		return CostContainer
	case FilterActorValue:
		return CostActorValue
	case FilterQuestStage:
		return CostQuestStage
	case FilterGlobal:
		return CostGlobal
	case FilterWorldspace:
		return CostWorldspace
	case FilterLocation:
		return CostLocation
	case FilterLocationKeyword:
		return CostLocationKeyword
	default:
		return CostLocationKeyword
	}
}
