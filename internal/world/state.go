package world

import (
	"fmt"
	"strings"

	"github.com/solatis/stashkeeper/internal/types"
)

// State is a partial update of the dynamic player and quest state.
// Zero-value fields are left untouched.
type State struct {
	PlayerLevel int
	ActorValues map[string]float64
	QuestStages map[types.FormID]int
	Globals     map[types.FormID]float64
}

// ApplyState merges s into the world. Quests and globals must already exist.
func (w *World) ApplyState(s State) error {
	for id := range s.QuestStages {
		if w.FormKind(id) != types.FormQuest {
			return fmt.Errorf("%w: quest %s", types.ErrFormNotFound, id)
		}
	}
	for id := range s.Globals {
		if w.FormKind(id) != types.FormGlobal {
			return fmt.Errorf("%w: global %s", types.ErrFormNotFound, id)
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if s.PlayerLevel > 0 {
		w.playerLevel = s.PlayerLevel
	}
	for name, v := range s.ActorValues {
		w.actorValues[strings.ToLower(name)] = v
	}
	for id, stage := range s.QuestStages {
		w.questStages[id] = stage
	}
	for id, v := range s.Globals {
		w.globals[id] = v
	}
	return nil
}

// Ref returns the reference with id.
func (w *World) Ref(id types.FormID) (*Ref, bool) {
	r, ok := w.refs[id]
	return r, ok
}

// ContainerRefs returns every reference whose base is a container, by id.
func (w *World) ContainerRefs() []*Ref {
	var out []*Ref
	for _, id := range sortedKeys(w.refs) {
		if r := w.refs[id]; w.FormKind(r.base) == types.FormContainer {
			out = append(out, r)
		}
	}
	return out
}

// SetInventory replaces the reference's inventory and clears its deltas.
func (w *World) SetInventory(id types.FormID, inv []types.ItemStack) error {
	r, ok := w.refs[id]
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrUnknownReference, id)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	r.inventory = make(map[types.FormID]int, len(inv))
	for _, s := range inv {
		if s.Count > 0 && !s.Item.IsZero() {
			r.inventory[s.Item] += s.Count
		}
	}
	r.deltas = nil
	return nil
}
