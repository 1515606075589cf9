// Package world is an in-memory host: a decoded snapshot of everything the
// engine asks the game about, plus live container references whose
// inventories record every mutation.
//
// Snapshots are YAML (JSON is accepted too):
//
//	plugins: [Skyrim.esm, Loot.esp]
//	player:
//	  level: 12
//	  actor_values: {OneHanded: 40}
//	items:
//	  - {id: "0x00012EB7", editor_id: IronSword, keywords: [WeapTypeSword]}
//	containers:
//	  - {id: "0x00034567", editor_id: ChestBoss, respawns: true}
//	references:
//	  - id: "0x0001A001"
//	    base: "0x00034567"
//	    cell: "0x00001000"
//	    location: "0x00002000"
//	    inventory: [{item: "0x00012EB7", count: 2}]
//
// Form ids are hex strings. The top byte is the index of the owning plugin
// in the plugins list.
package world

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/solatis/stashkeeper/internal/types"
)

// FormRef is a form id decoded from a hex string.
type FormRef types.FormID

// UnmarshalYAML decodes "0x00012EB7" or "12EB7".
func (f *FormRef) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: form id must be a scalar", node.Line)
	}
	id, err := types.ParseFormID(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*f = FormRef(id)
	return nil
}

// MarshalYAML renders the id as a hex string.
func (f FormRef) MarshalYAML() (any, error) {
	return types.FormID(f).String(), nil
}

// Document is the snapshot file layout.
type Document struct {
	Plugins      []string        `yaml:"plugins"`
	Player       PlayerDoc       `yaml:"player"`
	Items        []ItemDoc       `yaml:"items"`
	Containers   []ContainerDoc  `yaml:"containers"`
	LeveledLists []LeveledDoc    `yaml:"leveled_lists"`
	Locations    []LocationDoc   `yaml:"locations"`
	Worldspaces  []WorldspaceDoc `yaml:"worldspaces"`
	Cells        []CellDoc       `yaml:"cells"`
	References   []ReferenceDoc  `yaml:"references"`
	Factions     []FactionDoc    `yaml:"factions"`
	Quests       []QuestDoc      `yaml:"quests"`
	Globals      []GlobalDoc     `yaml:"globals"`
}

// FormDoc is the identity shared by every record.
type FormDoc struct {
	ID       FormRef `yaml:"id"`
	EditorID string  `yaml:"editor_id,omitempty"`
	Name     string  `yaml:"name,omitempty"`
}

type PlayerDoc struct {
	Level       int                `yaml:"level"`
	ActorValues map[string]float64 `yaml:"actor_values"`
}

type StackDoc struct {
	Item  FormRef `yaml:"item"`
	Count int     `yaml:"count"`
}

type ItemDoc struct {
	FormDoc  `yaml:",inline"`
	Keywords []string `yaml:"keywords"`
}

type ContainerDoc struct {
	FormDoc  `yaml:",inline"`
	Respawns bool       `yaml:"respawns"`
	Contents []StackDoc `yaml:"contents"`
}

type LeveledEntryDoc struct {
	Level int     `yaml:"level"`
	Form  FormRef `yaml:"form"`
	Count int     `yaml:"count"`
}

type LeveledDoc struct {
	FormDoc           `yaml:",inline"`
	CalculateAllLevels bool              `yaml:"calculate_from_all_levels"`
	CalculateEachItem  bool              `yaml:"calculate_for_each_item"`
	ChanceNone         int               `yaml:"chance_none"`
	Entries            []LeveledEntryDoc `yaml:"entries"`
}

type LocationDoc struct {
	FormDoc  `yaml:",inline"`
	Parent   FormRef  `yaml:"parent"`
	Keywords []string `yaml:"keywords"`
}

type WorldspaceDoc struct {
	FormDoc        `yaml:",inline"`
	PersistentCell FormRef `yaml:"persistent_cell"`
}

type CellDoc struct {
	FormDoc               `yaml:",inline"`
	EncounterZoneNoResets bool `yaml:"encounter_zone_never_resets"`
}

type ReferenceDoc struct {
	FormDoc    `yaml:",inline"`
	Base       FormRef        `yaml:"base"`
	Cell       FormRef        `yaml:"cell"`
	Location   FormRef        `yaml:"location"`
	Worldspace FormRef        `yaml:"worldspace"`
	Position   types.Position `yaml:"position"`
	MapMarker  bool           `yaml:"map_marker"`
	Owner      FormRef        `yaml:"owner"`
	Inventory  []StackDoc     `yaml:"inventory"`
}

type FactionDoc struct {
	FormDoc           `yaml:",inline"`
	Vendor            bool    `yaml:"vendor"`
	MerchantContainer FormRef `yaml:"merchant_container"`
}

type QuestDoc struct {
	FormDoc `yaml:",inline"`
	Stage   int `yaml:"stage"`
}

type GlobalDoc struct {
	FormDoc `yaml:",inline"`
	Value   float64 `yaml:"value"`
}

// Decode parses a snapshot document. Unknown keys are rejected.
func Decode(r io.Reader) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return &doc, nil
		}
		return nil, fmt.Errorf("world: decode snapshot: %w", err)
	}
	return &doc, nil
}

// Load decodes and indexes a snapshot. seed drives leveled list draws;
// 0 seeds from the clock.
func Load(r io.Reader, seed int64) (*World, error) {
	doc, err := Decode(r)
	if err != nil {
		return nil, err
	}
	return New(doc, seed)
}

// LoadFile reads a snapshot from disk.
func LoadFile(path string, seed int64) (*World, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("world: open snapshot %q: %w", path, err)
	}
	defer f.Close()

	w, err := Load(f, seed)
	if err != nil {
		return nil, fmt.Errorf("world: load snapshot %q: %w", path, err)
	}
	return w, nil
}
