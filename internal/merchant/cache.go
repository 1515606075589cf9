// Package merchant caches which container references back a vendor and
// which items each container base type starts with.
package merchant

import (
	"log/slog"
	"sort"

	"github.com/solatis/stashkeeper/internal/types"
)

// Source is the host data the cache is built from.
type Source interface {
	Factions() []types.FormID
	FactionIsVendor(faction types.FormID) bool
	MerchantContainer(faction types.FormID) (types.FormID, bool)
	ContainerBases() []types.FormID
	ContainerContents(base types.FormID) []types.ItemStack
}

// Cache is built once on data load and read-only afterwards.
type Cache struct {
	merchants map[types.FormID]types.FormID // container ref -> faction
	items     map[types.FormID][]types.FormID
}

// Build scans vendor factions and container bases.
func Build(src Source, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Cache{
		merchants: make(map[types.FormID]types.FormID),
		items:     make(map[types.FormID][]types.FormID),
	}

	for _, faction := range src.Factions() {
		if !src.FactionIsVendor(faction) {
			continue
		}
		ref, ok := src.MerchantContainer(faction)
		if !ok {
			continue
		}
		c.merchants[ref] = faction
	}

	for _, base := range src.ContainerBases() {
		seen := make(map[types.FormID]bool)
		var items []types.FormID
		for _, stack := range src.ContainerContents(base) {
			if stack.Item.IsZero() || seen[stack.Item] {
				continue
			}
			seen[stack.Item] = true
			items = append(items, stack.Item)
		}
		sort.Slice(items, func(i, j int) bool { return items[i] < items[j] })
		c.items[base] = items
	}

	logger.Info("merchant cache built",
		"merchant_containers", len(c.merchants),
		"container_types", len(c.items),
	)
	return c
}

// IsMerchantContainer reports whether ref is a vendor faction's merchant chest.
func (c *Cache) IsMerchantContainer(ref types.FormID) bool {
	_, ok := c.merchants[ref]
	return ok
}

// ContainerItems returns the default item types of a container base, sorted by id.
func (c *Cache) ContainerItems(base types.FormID) []types.FormID {
	return c.items[base]
}
