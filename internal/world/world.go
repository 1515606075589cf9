package world

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/antzucaro/matchr"

	"github.com/solatis/stashkeeper/internal/types"
)

type form struct {
	id       types.FormID
	kind     types.FormKind
	editorID string
	name     string
}

type containerBase struct {
	respawns bool
	contents []types.ItemStack
}

type leveledList struct {
	allLevels  bool
	eachItem   bool
	chanceNone int
	entries    []LeveledEntryDoc
}

type location struct {
	parent   types.FormID
	keywords map[string]struct{}
}

type cell struct {
	neverResets bool
	refs        []types.FormID
}

type faction struct {
	vendor   bool
	merchant types.FormID
}

// World implements every host interface over a decoded snapshot.
// State setters and reference mutations are safe for concurrent use.
type World struct {
	mu sync.RWMutex

	plugins   []string
	pluginIdx map[string]int

	forms     map[types.FormID]*form
	editorIDs map[string]types.FormID

	itemKeywords map[types.FormID]map[string]struct{}
	containers   map[types.FormID]*containerBase
	leveled      map[types.FormID]*leveledList
	locations    map[types.FormID]*location
	worldspaces  map[types.FormID]types.FormID
	cells        map[types.FormID]*cell
	refs         map[types.FormID]*Ref
	factions     map[types.FormID]*faction

	playerLevel int
	actorValues map[string]float64
	questStages map[types.FormID]int
	globals     map[types.FormID]float64

	rng *rand.Rand
}

// New indexes doc. Duplicate or zero ids and dangling cell references are
// rejected with ErrInvalidWorld.
func New(doc *Document, seed int64) (*World, error) {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	w := &World{
		pluginIdx:    make(map[string]int, len(doc.Plugins)),
		forms:        make(map[types.FormID]*form),
		editorIDs:    make(map[string]types.FormID),
		itemKeywords: make(map[types.FormID]map[string]struct{}),
		containers:   make(map[types.FormID]*containerBase),
		leveled:      make(map[types.FormID]*leveledList),
		locations:    make(map[types.FormID]*location),
		worldspaces:  make(map[types.FormID]types.FormID),
		cells:        make(map[types.FormID]*cell),
		refs:         make(map[types.FormID]*Ref),
		factions:     make(map[types.FormID]*faction),
		playerLevel:  max(doc.Player.Level, 1),
		actorValues:  make(map[string]float64),
		questStages:  make(map[types.FormID]int),
		globals:      make(map[types.FormID]float64),
		rng:          rand.New(rand.NewSource(seed)),
	}

	for i, p := range doc.Plugins {
		w.plugins = append(w.plugins, p)
		w.pluginIdx[strings.ToLower(p)] = i
	}
	for name, v := range doc.Player.ActorValues {
		w.actorValues[strings.ToLower(name)] = v
	}

	for _, d := range doc.Items {
		if err := w.register(d.FormDoc, types.FormItem); err != nil {
			return nil, err
		}
		w.itemKeywords[types.FormID(d.ID)] = keywordSet(d.Keywords)
	}
	for _, d := range doc.Containers {
		if err := w.register(d.FormDoc, types.FormContainer); err != nil {
			return nil, err
		}
		w.containers[types.FormID(d.ID)] = &containerBase{
			respawns: d.Respawns,
			contents: stacks(d.Contents),
		}
	}
	for _, d := range doc.LeveledLists {
		if err := w.register(d.FormDoc, types.FormLeveledList); err != nil {
			return nil, err
		}
		w.leveled[types.FormID(d.ID)] = &leveledList{
			allLevels:  d.CalculateAllLevels,
			eachItem:   d.CalculateEachItem,
			chanceNone: d.ChanceNone,
			entries:    d.Entries,
		}
	}
	for _, d := range doc.Locations {
		if err := w.register(d.FormDoc, types.FormLocation); err != nil {
			return nil, err
		}
		w.locations[types.FormID(d.ID)] = &location{
			parent:   types.FormID(d.Parent),
			keywords: keywordSet(d.Keywords),
		}
	}
	for _, d := range doc.Worldspaces {
		if err := w.register(d.FormDoc, types.FormWorldspace); err != nil {
			return nil, err
		}
		w.worldspaces[types.FormID(d.ID)] = types.FormID(d.PersistentCell)
	}
	for _, d := range doc.Cells {
		if err := w.register(d.FormDoc, types.FormCell); err != nil {
			return nil, err
		}
		w.cells[types.FormID(d.ID)] = &cell{neverResets: d.EncounterZoneNoResets}
	}
	for _, d := range doc.Factions {
		if err := w.register(d.FormDoc, types.FormFaction); err != nil {
			return nil, err
		}
		w.factions[types.FormID(d.ID)] = &faction{
			vendor:   d.Vendor,
			merchant: types.FormID(d.MerchantContainer),
		}
	}
	for _, d := range doc.Quests {
		if err := w.register(d.FormDoc, types.FormQuest); err != nil {
			return nil, err
		}
		w.questStages[types.FormID(d.ID)] = d.Stage
	}
	for _, d := range doc.Globals {
		if err := w.register(d.FormDoc, types.FormGlobal); err != nil {
			return nil, err
		}
		w.globals[types.FormID(d.ID)] = d.Value
	}

	for _, d := range doc.References {
		if err := w.register(d.FormDoc, types.FormReference); err != nil {
			return nil, err
		}
		ref := newRef(w, d)
		if !ref.cell.IsZero() {
			c, ok := w.cells[ref.cell]
			if !ok {
				return nil, fmt.Errorf("%w: reference %s is in unknown cell %s", types.ErrInvalidWorld, ref.id, ref.cell)
			}
			c.refs = append(c.refs, ref.id)
		}
		w.refs[ref.id] = ref
	}
	return w, nil
}

func (w *World) register(d FormDoc, kind types.FormKind) error {
	id := types.FormID(d.ID)
	if id.IsZero() {
		return fmt.Errorf("%w: %s record without id", types.ErrInvalidWorld, kind)
	}
	if prev, ok := w.forms[id]; ok {
		return fmt.Errorf("%w: %s %s duplicates %s", types.ErrInvalidWorld, kind, id, prev.kind)
	}
	w.forms[id] = &form{id: id, kind: kind, editorID: d.EditorID, name: d.Name}
	if d.EditorID != "" {
		w.editorIDs[strings.ToLower(d.EditorID)] = id
	}
	return nil
}

func keywordSet(keywords []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		set[strings.ToLower(kw)] = struct{}{}
	}
	return set
}

func stacks(docs []StackDoc) []types.ItemStack {
	out := make([]types.ItemStack, 0, len(docs))
	for _, d := range docs {
		if d.Count > 0 && d.Item != 0 {
			out = append(out, types.ItemStack{Item: types.FormID(d.Item), Count: d.Count})
		}
	}
	return out
}

func sortedKeys[V any](m map[types.FormID]V) []types.FormID {
	out := make([]types.FormID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Plugins returns the load order.
func (w *World) Plugins() []string {
	return append([]string(nil), w.plugins...)
}

// FormCount returns the number of indexed records.
func (w *World) FormCount() int {
	return len(w.forms)
}

// ModPresent reports whether plugin is in the load order.
func (w *World) ModPresent(plugin string) bool {
	_, ok := w.pluginIdx[strings.ToLower(plugin)]
	return ok
}

// LookupForm resolves a plugin-local id to a loaded form.
func (w *World) LookupForm(local types.FormID, plugin string) (types.FormID, bool) {
	idx, ok := w.pluginIdx[strings.ToLower(plugin)]
	if !ok || idx > 0xFE {
		return 0, false
	}
	id := types.FormID(uint32(idx)<<24 | uint32(local)&0x00FFFFFF)
	if _, ok := w.forms[id]; !ok {
		return 0, false
	}
	return id, true
}

// LookupEditorID resolves an editor id, case-insensitively.
func (w *World) LookupEditorID(editorID string) (types.FormID, bool) {
	id, ok := w.editorIDs[strings.ToLower(editorID)]
	return id, ok
}

// SuggestEditorID returns the known editor id closest to editorID by
// Jaro-Winkler similarity, if any scores at least 0.85. Ties go to the
// lowest form id.
func (w *World) SuggestEditorID(editorID string) (string, bool) {
	needle := strings.ToLower(editorID)
	best, bestID, bestScore := "", types.FormID(0), 0.85
	for _, f := range w.forms {
		if f.editorID == "" {
			continue
		}
		score := matchr.JaroWinkler(needle, strings.ToLower(f.editorID), false)
		if score > bestScore || (score == bestScore && (best == "" || f.id < bestID)) {
			best, bestID, bestScore = f.editorID, f.id, score
		}
	}
	return best, best != ""
}

// FormKind returns the record type of id.
func (w *World) FormKind(id types.FormID) types.FormKind {
	if f, ok := w.forms[id]; ok {
		return f.kind
	}
	return types.FormUnknown
}

// FormName returns the display name, falling back to the editor id.
func (w *World) FormName(id types.FormID) string {
	f, ok := w.forms[id]
	if !ok {
		return ""
	}
	if f.name != "" {
		return f.name
	}
	return f.editorID
}
