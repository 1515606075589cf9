package rules

import (
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/solatis/stashkeeper/internal/locations"
	"github.com/solatis/stashkeeper/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRef is a placed reference; zero ids mean "absent".
type fakeRef struct {
	id, base, loc, ws types.FormID
	pos               types.Position
	marker            bool
}

func (r fakeRef) ID() types.FormID { return r.id }
func (r fakeRef) Base() (types.FormID, bool) {
	return r.base, !r.base.IsZero()
}
func (r fakeRef) Location() (types.FormID, bool) {
	return r.loc, !r.loc.IsZero()
}
func (r fakeRef) Worldspace() (types.FormID, bool) {
	return r.ws, !r.ws.IsZero()
}
func (r fakeRef) Position() types.Position { return r.pos }
func (r fakeRef) IsMapMarker() bool        { return r.marker }

// fakeHost implements locations.Source and State and records state queries.
type fakeHost struct {
	parents    map[types.FormID]types.FormID
	persistent map[types.FormID]types.FormID
	cellRefs   map[types.FormID][]locations.Reference
	keywords   map[types.FormID][]string
	avs        map[string]float64
	quests     map[types.FormID]int
	globals    map[types.FormID]float64

	queries []string
}

func (h *fakeHost) Locations() []types.FormID {
	var out []types.FormID
	for id := range h.parents {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (h *fakeHost) ParentLocation(loc types.FormID) (types.FormID, bool) {
	p, ok := h.parents[loc]
	return p, ok
}

func (h *fakeHost) Worldspaces() []types.FormID {
	var out []types.FormID
	for id := range h.persistent {
		out = append(out, id)
	}
	return out
}

func (h *fakeHost) PersistentCell(ws types.FormID) (types.FormID, bool) {
	c, ok := h.persistent[ws]
	return c, ok
}

func (h *fakeHost) CellReferences(cell types.FormID) []locations.Reference {
	return h.cellRefs[cell]
}

func (h *fakeHost) LocationHasKeyword(loc types.FormID, keyword string) bool {
	h.queries = append(h.queries, "keyword")
	for _, k := range h.keywords[loc] {
		if strings.EqualFold(k, keyword) {
			return true
		}
	}
	return false
}

func (h *fakeHost) PlayerActorValue(name string) (float64, bool) {
	h.queries = append(h.queries, "actor_value")
	v, ok := h.avs[name]
	return v, ok
}

func (h *fakeHost) QuestStage(quest types.FormID) (int, bool) {
	h.queries = append(h.queries, "quest")
	s, ok := h.quests[quest]
	return s, ok
}

func (h *fakeHost) GlobalValue(global types.FormID) (float64, bool) {
	h.queries = append(h.queries, "global")
	v, ok := h.globals[global]
	return v, ok
}

const (
	hold     types.FormID = 0x100
	city     types.FormID = 0x101
	district types.FormID = 0x102
	wilds    types.FormID = 0x103

	tamriel   types.FormID = 0x3C
	solstheim types.FormID = 0x3D
	persist   types.FormID = 0xD74

	markerNear types.FormID = 0x501
	markerFar  types.FormID = 0x502

	chestBase types.FormID = 0x600
	otherBase types.FormID = 0x601
	chestRef  types.FormID = 0x700

	mainQuest types.FormID = 0x800
	sideQuest types.FormID = 0x801
	daysGlob  types.FormID = 0x900
)

// newHost builds district -> city -> hold, a wilds location, and two
// markers in Tamriel's persistent cell.
func newHost() *fakeHost {
	return &fakeHost{
		parents: map[types.FormID]types.FormID{
			district: city,
			city:     hold,
			hold:     0,
			wilds:    0,
		},
		persistent: map[types.FormID]types.FormID{tamriel: persist},
		cellRefs: map[types.FormID][]locations.Reference{
			persist: {
				fakeRef{id: markerNear, loc: city, pos: types.Position{X: 100}, marker: true},
				fakeRef{id: markerFar, loc: wilds, pos: types.Position{X: 3000}, marker: true},
			},
		},
		keywords: map[types.FormID][]string{
			hold: {"LocTypeHold"},
			city: {"LocTypeCity"},
		},
		avs:     map[string]float64{"OneHanded": 40},
		quests:  map[types.FormID]int{mainQuest: 10},
		globals: map[types.FormID]float64{daysGlob: 3},
	}
}

func newEvaluator(h *fakeHost, radius float64) *Evaluator {
	return NewEvaluator(locations.Build(h, discardLogger()), h, radius)
}

func mustCompile(t interface {
	Helper()
	Fatalf(string, ...any)
}, r types.SwapRule) *CompiledRule {
	t.Helper()
	c, err := Compile(&r)
	if err != nil {
		t.Fatalf("Compile() error = %v, want nil", err)
	}
	return c
}
