package world

import (
	"github.com/solatis/stashkeeper/internal/types"
)

// IsLeveledList reports whether form is a leveled list.
func (w *World) IsLeveledList(form types.FormID) bool {
	_, ok := w.leveled[form]
	return ok
}

// CalculateLeveledList draws one level of list.
//
// Entries above level are ineligible. Unless the list calculates from all
// levels, only entries at the highest eligible level are drawn from. A list
// that calculates for each item draws count times, each draw independently
// subject to chance-none; otherwise one draw is made and its count scaled.
// Sublists are returned as-is for the caller to expand.
func (w *World) CalculateLeveledList(list types.FormID, level, count int) []types.ItemStack {
	l, ok := w.leveled[list]
	if !ok || count < 1 {
		return nil
	}

	eligible := eligibleEntries(l, level)
	if len(eligible) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !l.eachItem {
		if w.rollNone(l.chanceNone) {
			return nil
		}
		e := eligible[w.rng.Intn(len(eligible))]
		return []types.ItemStack{{Item: types.FormID(e.Form), Count: max(e.Count, 1) * count}}
	}

	var out []types.ItemStack
	for range count {
		if w.rollNone(l.chanceNone) {
			continue
		}
		e := eligible[w.rng.Intn(len(eligible))]
		out = append(out, types.ItemStack{Item: types.FormID(e.Form), Count: max(e.Count, 1)})
	}
	return out
}

func eligibleEntries(l *leveledList, level int) []LeveledEntryDoc {
	var out []LeveledEntryDoc
	top := -1
	for _, e := range l.entries {
		if e.Level > level || e.Form == 0 {
			continue
		}
		if !l.allLevels {
			switch {
			case e.Level > top:
				top = e.Level
				out = out[:0]
			case e.Level < top:
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

// rollNone must be called with w.mu held.
func (w *World) rollNone(chance int) bool {
	if chance <= 0 {
		return false
	}
	if chance >= 100 {
		return true
	}
	return w.rng.Intn(100) < chance
}
