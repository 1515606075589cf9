package world

import (
	"sort"

	"github.com/solatis/stashkeeper/internal/types"
)

// Delta is one inventory mutation applied to a reference.
type Delta struct {
	Item   types.FormID
	Count  int // negative for removals
	Reason types.RemoveReason
}

// Ref is a placed reference. Container references carry an inventory and
// record every mutation as a Delta.
type Ref struct {
	w *World

	id         types.FormID
	base       types.FormID
	cell       types.FormID
	location   types.FormID
	worldspace types.FormID
	position   types.Position
	mapMarker  bool
	owner      types.FormID

	inventory map[types.FormID]int
	deltas    []Delta
}

func newRef(w *World, d ReferenceDoc) *Ref {
	r := &Ref{
		w:          w,
		id:         types.FormID(d.ID),
		base:       types.FormID(d.Base),
		cell:       types.FormID(d.Cell),
		location:   types.FormID(d.Location),
		worldspace: types.FormID(d.Worldspace),
		position:   d.Position,
		mapMarker:  d.MapMarker,
		owner:      types.FormID(d.Owner),
		inventory:  make(map[types.FormID]int),
	}
	for _, s := range stacks(d.Inventory) {
		r.inventory[s.Item] += s.Count
	}
	return r
}

func (r *Ref) ID() types.FormID { return r.id }

// Base returns the base object when it is a container.
func (r *Ref) Base() (types.FormID, bool) {
	if r.w.FormKind(r.base) != types.FormContainer {
		return 0, false
	}
	return r.base, true
}

func (r *Ref) Location() (types.FormID, bool) {
	return r.location, !r.location.IsZero()
}

func (r *Ref) Worldspace() (types.FormID, bool) {
	return r.worldspace, !r.worldspace.IsZero()
}

func (r *Ref) Position() types.Position { return r.position }

func (r *Ref) IsMapMarker() bool { return r.mapMarker }

func (r *Ref) FactionOwner() (types.FormID, bool) {
	return r.owner, !r.owner.IsZero()
}

func (r *Ref) Cell() (types.FormID, bool) {
	return r.cell, !r.cell.IsZero()
}

// InventoryCounts returns a copy of the current inventory.
func (r *Ref) InventoryCounts() map[types.FormID]int {
	r.w.mu.RLock()
	defer r.w.mu.RUnlock()
	out := make(map[types.FormID]int, len(r.inventory))
	for item, n := range r.inventory {
		out[item] = n
	}
	return out
}

// Inventory returns the inventory as stacks sorted by item.
func (r *Ref) Inventory() []types.ItemStack {
	counts := r.InventoryCounts()
	out := make([]types.ItemStack, 0, len(counts))
	for item, n := range counts {
		out = append(out, types.ItemStack{Item: item, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Item < out[j].Item })
	return out
}

func (r *Ref) AddItem(item types.FormID, count int) {
	if count < 1 {
		return
	}
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	r.inventory[item] += count
	r.deltas = append(r.deltas, Delta{Item: item, Count: count})
}

// RemoveItem removes up to count; the recorded delta is what actually left.
func (r *Ref) RemoveItem(item types.FormID, count int, reason types.RemoveReason) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	present := r.inventory[item]
	if count > present {
		count = present
	}
	if count < 1 {
		return
	}
	if count == present {
		delete(r.inventory, item)
	} else {
		r.inventory[item] = present - count
	}
	r.deltas = append(r.deltas, Delta{Item: item, Count: -count, Reason: reason})
}

// Deltas returns the mutations recorded since the last ClearDeltas.
func (r *Ref) Deltas() []Delta {
	r.w.mu.RLock()
	defer r.w.mu.RUnlock()
	return append([]Delta(nil), r.deltas...)
}

// ClearDeltas forgets recorded mutations.
func (r *Ref) ClearDeltas() {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	r.deltas = nil
}
