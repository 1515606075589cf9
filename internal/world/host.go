package world

import (
	"strings"

	"github.com/solatis/stashkeeper/internal/locations"
	"github.com/solatis/stashkeeper/internal/types"
)

// Locations returns every location id in ascending order.
func (w *World) Locations() []types.FormID {
	return sortedKeys(w.locations)
}

// ParentLocation returns the direct parent of loc.
func (w *World) ParentLocation(loc types.FormID) (types.FormID, bool) {
	l, ok := w.locations[loc]
	if !ok || l.parent.IsZero() {
		return 0, false
	}
	return l.parent, true
}

// Worldspaces returns every worldspace id in ascending order.
func (w *World) Worldspaces() []types.FormID {
	return sortedKeys(w.worldspaces)
}

// PersistentCell returns the worldspace's persistent cell.
func (w *World) PersistentCell(ws types.FormID) (types.FormID, bool) {
	cell, ok := w.worldspaces[ws]
	if !ok || cell.IsZero() {
		return 0, false
	}
	return cell, true
}

// CellReferences returns the references placed in cell.
func (w *World) CellReferences(cellID types.FormID) []locations.Reference {
	c, ok := w.cells[cellID]
	if !ok {
		return nil
	}
	out := make([]locations.Reference, 0, len(c.refs))
	for _, id := range c.refs {
		out = append(out, w.refs[id])
	}
	return out
}

// LocationHasKeyword reports whether loc carries keyword, case-insensitively.
func (w *World) LocationHasKeyword(loc types.FormID, keyword string) bool {
	l, ok := w.locations[loc]
	if !ok {
		return false
	}
	_, ok = l.keywords[strings.ToLower(keyword)]
	return ok
}

// ItemHasKeyword reports whether item carries keyword, case-insensitively.
func (w *World) ItemHasKeyword(item types.FormID, keyword string) bool {
	kws, ok := w.itemKeywords[item]
	if !ok {
		return false
	}
	_, ok = kws[strings.ToLower(keyword)]
	return ok
}

// ContainerRespawns reports the base container's respawn flag.
func (w *World) ContainerRespawns(base types.FormID) bool {
	c, ok := w.containers[base]
	return ok && c.respawns
}

// EncounterZoneNeverResets reports the cell's encounter zone flag.
func (w *World) EncounterZoneNeverResets(cellID types.FormID) bool {
	c, ok := w.cells[cellID]
	return ok && c.neverResets
}

// Factions returns every faction id in ascending order.
func (w *World) Factions() []types.FormID {
	return sortedKeys(w.factions)
}

// FactionIsVendor reports the faction's vendor flag.
func (w *World) FactionIsVendor(id types.FormID) bool {
	f, ok := w.factions[id]
	return ok && f.vendor
}

// MerchantContainer returns the faction's merchant chest reference.
func (w *World) MerchantContainer(id types.FormID) (types.FormID, bool) {
	f, ok := w.factions[id]
	if !ok || f.merchant.IsZero() {
		return 0, false
	}
	return f.merchant, true
}

// ContainerBases returns every container base id in ascending order.
func (w *World) ContainerBases() []types.FormID {
	return sortedKeys(w.containers)
}

// ContainerContents returns the base container's default contents.
func (w *World) ContainerContents(base types.FormID) []types.ItemStack {
	c, ok := w.containers[base]
	if !ok {
		return nil
	}
	return append([]types.ItemStack(nil), c.contents...)
}

// PlayerLevel returns the player's current level.
func (w *World) PlayerLevel() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.playerLevel
}

// PlayerActorValue returns the player's current value for name.
func (w *World) PlayerActorValue(name string) (float64, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	v, ok := w.actorValues[strings.ToLower(name)]
	return v, ok
}

// QuestStage returns the quest's current stage.
func (w *World) QuestStage(quest types.FormID) (int, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	v, ok := w.questStages[quest]
	return v, ok
}

// GlobalValue returns the global's current value.
func (w *World) GlobalValue(global types.FormID) (float64, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	v, ok := w.globals[global]
	return v, ok
}
