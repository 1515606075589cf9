package containers

import (
	"sort"

	"github.com/solatis/stashkeeper/internal/types"
)

// ledger is the per-event inventory snapshot. Counts are read from the host
// once; afterwards the ledger tracks the engine's own mutations so that later
// rules in the same pass see consistent quantities.
type ledger struct {
	ref    ContainerRef
	counts map[types.FormID]int
}

func newLedger(ref ContainerRef) *ledger {
	counts := make(map[types.FormID]int)
	for item, n := range ref.InventoryCounts() {
		if n > 0 {
			counts[item] = n
		}
	}
	return &ledger{ref: ref, counts: counts}
}

func (l *ledger) count(item types.FormID) int {
	return l.counts[item]
}

// remove takes up to n of item out of the container and returns how many left.
func (l *ledger) remove(item types.FormID, n int, reason types.RemoveReason) int {
	present := l.counts[item]
	if n > present {
		n = present
	}
	if n < 1 {
		return 0
	}
	l.ref.RemoveItem(item, n, reason)
	if present == n {
		delete(l.counts, item)
	} else {
		l.counts[item] = present - n
	}
	return n
}

func (l *ledger) add(item types.FormID, n int) {
	if n < 1 || item.IsZero() {
		return
	}
	l.ref.AddItem(item, n)
	l.counts[item] += n
}

// items returns the held item types plus extra, deduplicated and sorted.
func (l *ledger) items(extra []types.FormID) []types.FormID {
	seen := make(map[types.FormID]bool, len(l.counts)+len(extra))
	out := make([]types.FormID, 0, len(l.counts)+len(extra))
	for item := range l.counts {
		seen[item] = true
		out = append(out, item)
	}
	for _, item := range extra {
		if !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
