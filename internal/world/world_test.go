package world

import (
	"errors"
	"strings"
	"testing"

	"github.com/solatis/stashkeeper/internal/containers"
	"github.com/solatis/stashkeeper/internal/rules"
	"github.com/solatis/stashkeeper/internal/types"
)

var (
	_ containers.World        = (*World)(nil)
	_ containers.ContainerRef = (*Ref)(nil)
	_ rules.Namer             = (*World)(nil)
)

func loadFixture(t *testing.T) *World {
	t.Helper()
	w, err := LoadFile("testdata/whiterun.yaml", 42)
	if err != nil {
		t.Fatalf("LoadFile() error = %v, want nil", err)
	}
	return w
}

func TestLoadFixture(t *testing.T) {
	w := loadFixture(t)

	if got := w.PlayerLevel(); got != 5 {
		t.Errorf("PlayerLevel() = %d, want 5", got)
	}
	if v, ok := w.PlayerActorValue("onehanded"); !ok || v != 40 {
		t.Errorf("PlayerActorValue(onehanded) = %v, %v, want 40, true", v, ok)
	}
	if got := len(w.ContainerRefs()); got != 5 {
		t.Errorf("len(ContainerRefs()) = %d, want 5", got)
	}
	if got := w.FormName(0x00012EB7); got != "Iron Sword" {
		t.Errorf("FormName() = %q, want Iron Sword", got)
	}
	if got := w.FormName(0x00016BD4); got != "SkyrimLocation" {
		t.Errorf("FormName() = %q, want editor id fallback", got)
	}
	if got := w.FormKind(0x000A0001); got != types.FormLeveledList {
		t.Errorf("FormKind() = %v, want leveled_list", got)
	}
}

func TestLookup(t *testing.T) {
	w := loadFixture(t)

	tests := []struct {
		name   string
		local  types.FormID
		plugin string
		want   types.FormID
		ok     bool
	}{
		{"base game", 0x12EB7, "Skyrim.esm", 0x00012EB7, true},
		{"plugin case", 0x12EB7, "skyrim.ESM", 0x00012EB7, true},
		{"second plugin", 0x800, "Loot.esp", 0x01000800, true},
		{"load order byte ignored", 0xFF000800, "Loot.esp", 0x01000800, true},
		{"missing form", 0x801, "Loot.esp", 0, false},
		{"missing plugin", 0x800, "Other.esp", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := w.LookupForm(tt.local, tt.plugin)
			if got != tt.want || ok != tt.ok {
				t.Errorf("LookupForm() = %s, %v, want %s, %v", got, ok, tt.want, tt.ok)
			}
		})
	}

	if id, ok := w.LookupEditorID("ironsword"); !ok || id != 0x00012EB7 {
		t.Errorf("LookupEditorID() = %s, %v, want 0x00012EB7, true", id, ok)
	}
	if !w.ModPresent("LOOT.esp") {
		t.Error("ModPresent(LOOT.esp) = false, want true")
	}
}

func TestSuggestEditorID(t *testing.T) {
	w := loadFixture(t)

	if got, ok := w.SuggestEditorID("IronSwrod"); !ok || got != "IronSword" {
		t.Errorf("SuggestEditorID(IronSwrod) = %q, %v, want IronSword, true", got, ok)
	}
	if got, ok := w.SuggestEditorID("qqqqqqqq"); ok {
		t.Errorf("SuggestEditorID(qqqqqqqq) = %q, want no suggestion", got)
	}
}

func TestNewRejectsBadSnapshots(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"duplicate id", `
items:
  - {id: "0x10"}
containers:
  - {id: "0x10"}
`},
		{"zero id", `
items:
  - {id: "0x0"}
`},
		{"unknown cell", `
references:
  - {id: "0x10", cell: "0x20"}
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.yaml), 1)
			if !errors.Is(err, types.ErrInvalidWorld) {
				t.Errorf("Load() error = %v, want ErrInvalidWorld", err)
			}
		})
	}
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	_, err := Load(strings.NewReader("itemz: []\n"), 1)
	if err == nil {
		t.Fatal("Load() error = nil, want unknown field error")
	}
}

func TestLoadAcceptsJSON(t *testing.T) {
	w, err := Load(strings.NewReader(`{"items": [{"id": "0x00000010", "keywords": ["A"]}]}`), 1)
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	if !w.ItemHasKeyword(0x10, "a") {
		t.Error("ItemHasKeyword() = false, want true")
	}
}

func TestRefMutations(t *testing.T) {
	w := loadFixture(t)
	ref, ok := w.Ref(0x00030002)
	if !ok {
		t.Fatal("Ref() not found")
	}

	ref.RemoveItem(0x00012EB7, 5, types.RemoveReasonReplace)
	ref.AddItem(0x00013790, 2)
	ref.AddItem(0x00013790, 0)

	if got := ref.InventoryCounts(); len(got) != 1 || got[0x00013790] != 2 {
		t.Errorf("InventoryCounts() = %v, want only axe x2", got)
	}

	want := []Delta{
		{Item: 0x00012EB7, Count: -2, Reason: types.RemoveReasonReplace},
		{Item: 0x00013790, Count: 2},
	}
	got := ref.Deltas()
	if len(got) != len(want) {
		t.Fatalf("Deltas() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Deltas()[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}

	ref.ClearDeltas()
	if got := ref.Deltas(); len(got) != 0 {
		t.Errorf("Deltas() after ClearDeltas = %v, want empty", got)
	}
}

func TestRefBaseOnlyForContainers(t *testing.T) {
	w := loadFixture(t)

	marker, _ := w.Ref(0x00030001)
	if _, ok := marker.Base(); ok {
		t.Error("marker Base() ok = true, want false")
	}
	chest, _ := w.Ref(0x00030002)
	if base, ok := chest.Base(); !ok || base != 0x00034567 {
		t.Errorf("chest Base() = %s, %v, want 0x00034567, true", base, ok)
	}
}

func TestSetInventory(t *testing.T) {
	w := loadFixture(t)

	err := w.SetInventory(0x00030002, []types.ItemStack{{Item: 0x0001D4EC, Count: 3}, {Item: 0x0001D4EC, Count: 1}})
	if err != nil {
		t.Fatalf("SetInventory() error = %v, want nil", err)
	}
	ref, _ := w.Ref(0x00030002)
	if got := ref.InventoryCounts()[0x0001D4EC]; got != 4 {
		t.Errorf("torch count = %d, want 4", got)
	}

	if err := w.SetInventory(0x99, nil); !errors.Is(err, types.ErrUnknownReference) {
		t.Errorf("SetInventory(unknown) error = %v, want ErrUnknownReference", err)
	}
}

func TestApplyState(t *testing.T) {
	w := loadFixture(t)

	err := w.ApplyState(State{
		PlayerLevel: 20,
		ActorValues: map[string]float64{"Sneak": 30},
		QuestStages: map[types.FormID]int{0x00050001: 40},
		Globals:     map[types.FormID]float64{0x00060001: 12},
	})
	if err != nil {
		t.Fatalf("ApplyState() error = %v, want nil", err)
	}
	if got := w.PlayerLevel(); got != 20 {
		t.Errorf("PlayerLevel() = %d, want 20", got)
	}
	if v, _ := w.PlayerActorValue("sneak"); v != 30 {
		t.Errorf("PlayerActorValue(sneak) = %v, want 30", v)
	}
	if s, _ := w.QuestStage(0x00050001); s != 40 {
		t.Errorf("QuestStage() = %d, want 40", s)
	}
	if g, _ := w.GlobalValue(0x00060001); g != 12 {
		t.Errorf("GlobalValue() = %v, want 12", g)
	}

	err = w.ApplyState(State{QuestStages: map[types.FormID]int{0x00060001: 1}})
	if !errors.Is(err, types.ErrFormNotFound) {
		t.Errorf("ApplyState(global as quest) error = %v, want ErrFormNotFound", err)
	}
}

func TestHostFlags(t *testing.T) {
	w := loadFixture(t)

	if !w.ContainerRespawns(0x00034567) || w.ContainerRespawns(0x00034568) {
		t.Error("ContainerRespawns() flags wrong")
	}
	if !w.EncounterZoneNeverResets(0x00001001) || w.EncounterZoneNeverResets(0x00001000) {
		t.Error("EncounterZoneNeverResets() flags wrong")
	}
	if !w.FactionIsVendor(0x00040001) || w.FactionIsVendor(0x00040002) {
		t.Error("FactionIsVendor() flags wrong")
	}
	if mc, ok := w.MerchantContainer(0x00040001); !ok || mc != 0x00030005 {
		t.Errorf("MerchantContainer() = %s, %v", mc, ok)
	}
	if !w.LocationHasKeyword(0x00018A56, "loctypecity") {
		t.Error("LocationHasKeyword() = false, want true")
	}
	if p, ok := w.ParentLocation(0x00018A56); !ok || p != 0x00016772 {
		t.Errorf("ParentLocation() = %s, %v", p, ok)
	}
	if _, ok := w.ParentLocation(0x00016BD4); ok {
		t.Error("ParentLocation(root) ok = true, want false")
	}
	if refs := w.CellReferences(0x00000D74); len(refs) != 2 {
		t.Errorf("len(CellReferences(persistent)) = %d, want 2", len(refs))
	}
}
