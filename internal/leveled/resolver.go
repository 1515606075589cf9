// Package leveled expands leveled item lists into concrete item stacks.
//
// The host computes one level of a list (which entries are drawn for the
// player's level and the requested count); the resolver flattens nested
// sublists by recursing with each entry's own count. Malformed data where a
// sublist contains itself is cut at the repeating entry instead of recursing
// forever.
package leveled

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/solatis/stashkeeper/internal/types"
)

// Calculator is the host API used to compute one level of a leveled list.
type Calculator interface {
	IsLeveledList(form types.FormID) bool
	CalculateLeveledList(list types.FormID, level, count int) []types.ItemStack
	PlayerLevel() int
}

// Resolver flattens leveled lists.
type Resolver struct {
	calc   Calculator
	logger *slog.Logger
}

// NewResolver creates a resolver over calc.
func NewResolver(calc Calculator, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{calc: calc, logger: logger}
}

// IsLeveled reports whether form must be resolved before it can be added.
func (r *Resolver) IsLeveled(form types.FormID) bool {
	return r.calc.IsLeveledList(form)
}

// Resolve expands list for the current player level and count into concrete
// stacks. Stacks of the same item are merged in first-seen order.
//
// Truncated branches (self-referencing sublists, nesting beyond
// MaxLeveledDepth) are skipped; the stacks from every other branch are still
// returned together with an error describing what was cut.
func (r *Resolver) Resolve(list types.FormID, count int) ([]types.ItemStack, error) {
	if !r.calc.IsLeveledList(list) {
		return nil, fmt.Errorf("%w: %s", types.ErrNotLeveled, list)
	}
	if count < 1 {
		count = 1
	}

	level := r.calc.PlayerLevel()
	acc := &accumulator{index: make(map[types.FormID]int)}
	path := []types.FormID{list}

	var errs []error
	r.expand(list, level, count, path, acc, &errs)
	return acc.stacks, errors.Join(errs...)
}

func (r *Resolver) expand(list types.FormID, level, count int, path []types.FormID, acc *accumulator, errs *[]error) {
	for _, entry := range r.calc.CalculateLeveledList(list, level, count) {
		if entry.Item.IsZero() || entry.Count < 1 {
			continue
		}
		if !r.calc.IsLeveledList(entry.Item) {
			acc.add(entry)
			continue
		}

		if onPath(path, entry.Item) {
			r.logger.Error("leveled list references itself, branch skipped",
				"list", entry.Item,
				"path", path,
			)
			*errs = append(*errs, fmt.Errorf("%w: %s", types.ErrLeveledCycle, entry.Item))
			continue
		}
		if len(path) >= types.MaxLeveledDepth {
			r.logger.Error("leveled list nesting too deep, branch skipped",
				"list", entry.Item,
				"depth", len(path),
			)
			*errs = append(*errs, fmt.Errorf("%w: %s", types.ErrLeveledTooDeep, entry.Item))
			continue
		}

		r.logger.Debug("resolving leveled sublist", "list", entry.Item, "count", entry.Count)
		r.expand(entry.Item, level, entry.Count, append(path, entry.Item), acc, errs)
	}
}

func onPath(path []types.FormID, id types.FormID) bool {
	for _, p := range path {
		if p == id {
			return true
		}
	}
	return false
}

// accumulator merges stacks of the same item preserving first-seen order.
type accumulator struct {
	stacks []types.ItemStack
	index  map[types.FormID]int
}

func (a *accumulator) add(s types.ItemStack) {
	if i, ok := a.index[s.Item]; ok {
		a.stacks[i].Count += s.Count
		return
	}
	a.index[s.Item] = len(a.stacks)
	a.stacks = append(a.stacks, s)
}
