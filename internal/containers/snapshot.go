// Package containers is the mutation engine: it applies registered swap rules
// to container references when the host touches them.
package containers

import (
	"log/slog"

	"github.com/solatis/stashkeeper/internal/leveled"
	"github.com/solatis/stashkeeper/internal/locations"
	"github.com/solatis/stashkeeper/internal/merchant"
	"github.com/solatis/stashkeeper/internal/rules"
	"github.com/solatis/stashkeeper/internal/types"
)

// Host is the host API the engine queries while handling a container.
type Host interface {
	rules.State
	leveled.Calculator
	ContainerRespawns(base types.FormID) bool
	EncounterZoneNeverResets(cell types.FormID) bool
	FactionIsVendor(faction types.FormID) bool
	ItemHasKeyword(item types.FormID, keyword string) bool
}

// World is everything needed to build a snapshot on data load.
type World interface {
	Host
	locations.Source
	merchant.Source
}

// ContainerRef is a live container reference supplied per event.
// The engine never retains it past the event.
type ContainerRef interface {
	rules.Target
	FactionOwner() (types.FormID, bool)
	Cell() (types.FormID, bool)
	InventoryCounts() map[types.FormID]int
	AddItem(item types.FormID, count int)
	RemoveItem(item types.FormID, count int, reason types.RemoveReason)
}

// Snapshot bundles everything built on data load. It is immutable; a data
// reload builds a new snapshot and swaps it into the Manager.
type Snapshot struct {
	Host      Host
	Store     *rules.Store
	Index     *locations.Index
	Merchants *merchant.Cache
	Evaluator *rules.Evaluator
	Resolver  *leveled.Resolver
}

// BuildSnapshot indexes world and binds it to store. radius must already be clamped.
func BuildSnapshot(world World, store *rules.Store, radius float64, logger *slog.Logger) *Snapshot {
	if logger == nil {
		logger = slog.Default()
	}
	index := locations.Build(world, logger)
	return &Snapshot{
		Host:      world,
		Store:     store,
		Index:     index,
		Merchants: merchant.Build(world, logger),
		Evaluator: rules.NewEvaluator(index, world, radius),
		Resolver:  leveled.NewResolver(world, logger),
	}
}
