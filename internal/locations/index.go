// Package locations precomputes the location hierarchy and the per-worldspace
// map-marker sets used by spatial rule filters.
//
// The index is built once when host data finishes loading and is read-only
// afterwards, so lookups need no locking.
package locations

import (
	"log/slog"
	"sort"

	"github.com/solatis/stashkeeper/internal/types"
)

// Source is the slice of the host game-data API the index is built from.
type Source interface {
	Locations() []types.FormID
	ParentLocation(loc types.FormID) (types.FormID, bool)
	Worldspaces() []types.FormID
	PersistentCell(ws types.FormID) (types.FormID, bool)
	CellReferences(cell types.FormID) []Reference
}

// Reference is a placed object inside a cell.
type Reference interface {
	ID() types.FormID
	Location() (types.FormID, bool)
	Position() types.Position
	IsMapMarker() bool
}

// KeywordSource answers keyword membership for locations.
type KeywordSource interface {
	LocationHasKeyword(loc types.FormID, keyword string) bool
}

// Marker is a map marker captured at build time.
type Marker struct {
	ID       types.FormID
	Location types.FormID
	Position types.Position
}

// Index maps locations to their ancestor chains and worldspaces to markers.
type Index struct {
	ancestors map[types.FormID][]types.FormID
	markers   map[types.FormID][]Marker
	cycles    int
}

// Build walks every location's parent chain and collects map markers from
// every worldspace's persistent cell. Cyclic chains are logged and truncated;
// the build never fails.
func Build(src Source, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}

	ix := &Index{
		ancestors: make(map[types.FormID][]types.FormID),
		markers:   make(map[types.FormID][]Marker),
	}

	for _, loc := range src.Locations() {
		chain, cyclic := parentChain(src, loc)
		if cyclic {
			ix.cycles++
			logger.Error("recursive parent locations, chain truncated",
				"location", loc,
				"chain", chain,
			)
		}
		if len(chain) > 0 {
			ix.ancestors[loc] = chain
		}
	}

	for _, ws := range src.Worldspaces() {
		cell, ok := src.PersistentCell(ws)
		if !ok {
			continue
		}

		var markers []Marker
		for _, ref := range src.CellReferences(cell) {
			if !ref.IsMapMarker() {
				continue
			}
			loc, ok := ref.Location()
			if !ok {
				continue
			}
			markers = append(markers, Marker{ID: ref.ID(), Location: loc, Position: ref.Position()})
		}

		// Stable order: equal distances resolve to the lowest marker id.
		sort.Slice(markers, func(i, j int) bool { return markers[i].ID < markers[j].ID })
		ix.markers[ws] = markers
	}

	logger.Info("location index built",
		"locations", len(ix.ancestors),
		"worldspaces", len(ix.markers),
		"markers", ix.MarkerCount(),
		"cycles", ix.cycles,
	)
	return ix
}

// parentChain returns loc's ancestors nearest first. The second result is
// true when the chain was cut short by a revisit or by MaxLocationDepth.
func parentChain(src Source, loc types.FormID) ([]types.FormID, bool) {
	var chain []types.FormID
	seen := map[types.FormID]bool{loc: true}

	current := loc
	for len(chain) < types.MaxLocationDepth {
		parent, ok := src.ParentLocation(current)
		if !ok || parent.IsZero() {
			return chain, false
		}
		if seen[parent] {
			return chain, true
		}
		seen[parent] = true
		chain = append(chain, parent)
		current = parent
	}
	parent, ok := src.ParentLocation(current)
	return chain, ok && !parent.IsZero()
}

// Ancestors returns the cached ancestor chain of loc, nearest first.
// The returned slice must not be modified.
func (ix *Index) Ancestors(loc types.FormID) []types.FormID {
	return ix.ancestors[loc]
}

// Markers returns the map markers inside ws.
func (ix *Index) Markers(ws types.FormID) []Marker {
	return ix.markers[ws]
}

// NearestMarker returns the marker of ws closest to pos within radius.
func (ix *Index) NearestMarker(ws types.FormID, pos types.Position, radius float64) (Marker, bool) {
	var (
		best     Marker
		bestDist float64
		found    bool
	)
	for _, m := range ix.markers[ws] {
		d := m.Position.Distance(pos)
		if d > radius {
			continue
		}
		if !found || d < bestDist {
			best, bestDist, found = m, d, true
		}
	}
	return best, found
}

// Matches reports whether loc or any of its ancestors is in set.
func (ix *Index) Matches(loc types.FormID, set map[types.FormID]struct{}) bool {
	if _, ok := set[loc]; ok {
		return true
	}
	for _, parent := range ix.ancestors[loc] {
		if _, ok := set[parent]; ok {
			return true
		}
	}
	return false
}

// HasKeyword reports whether loc or any ancestor carries one of keywords.
// The location itself is checked before its ancestors; first match wins.
func (ix *Index) HasKeyword(kw KeywordSource, loc types.FormID, keywords []string) bool {
	if hasAny(kw, loc, keywords) {
		return true
	}
	for _, parent := range ix.ancestors[loc] {
		if hasAny(kw, parent, keywords) {
			return true
		}
	}
	return false
}

func hasAny(kw KeywordSource, loc types.FormID, keywords []string) bool {
	for _, k := range keywords {
		if kw.LocationHasKeyword(loc, k) {
			return true
		}
	}
	return false
}

// Len returns the number of locations with at least one ancestor.
func (ix *Index) Len() int {
	return len(ix.ancestors)
}

// MarkerCount returns the total number of indexed markers.
func (ix *Index) MarkerCount() int {
	n := 0
	for _, m := range ix.markers {
		n += len(m)
	}
	return n
}

// Cycles returns how many chains were truncated because of a cycle or the depth bound.
func (ix *Index) Cycles() int {
	return ix.cycles
}
