// Package types provides domain models shared across StashKeeper components.
//
// Everything the host engine owns is referenced by FormID. Types here carry no
// behaviour beyond parsing and classification so that the engine packages
// (locations, rules, leveled, containers) can share them without import
// cycles.
package types

import (
	"fmt"
	"math"
	"strings"
)

// FormID identifies a host object: item, container base, location,
// worldspace, cell, reference, faction, quest or global.
// Zero means "absent".
type FormID uint32

// String renders the id the way the host tools print it.
func (id FormID) String() string {
	return fmt.Sprintf("0x%08X", uint32(id))
}

// IsZero reports whether the id is unset.
func (id FormID) IsZero() bool {
	return id == 0
}

// Position is a point in host world units.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Distance returns the euclidean distance between two positions.
func (p Position) Distance(o Position) float64 {
	dx := p.X - o.X
	dy := p.Y - o.Y
	dz := p.Z - o.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// ItemStack is a concrete item type with a count.
type ItemStack struct {
	Item  FormID `json:"item" yaml:"item"`
	Count int    `json:"count" yaml:"count"`
}

// RemoveReason is forwarded to the host when items leave a container.
type RemoveReason int

const (
	RemoveReasonRemove RemoveReason = iota
	RemoveReasonReplace
)

func (r RemoveReason) String() string {
	switch r {
	case RemoveReasonRemove:
		return "remove"
	case RemoveReasonReplace:
		return "replace"
	default:
		return "unknown"
	}
}

// Trigger identifies which host event touched a container.
type Trigger int

const (
	TriggerInitialize Trigger = iota
	TriggerReset
)

func (t Trigger) String() string {
	switch t {
	case TriggerInitialize:
		return "initialize"
	case TriggerReset:
		return "reset"
	default:
		return "unknown"
	}
}

// ParseTrigger accepts "initialize" and "reset". Empty means initialize.
func ParseTrigger(s string) (Trigger, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "initialize", "init":
		return TriggerInitialize, nil
	case "reset":
		return TriggerReset, nil
	default:
		return 0, fmt.Errorf("unknown trigger %q", s)
	}
}

// Engine limits.
const (
	// MinLookupRadius and MaxLookupRadius bound the map-marker fallback search.
	MinLookupRadius = 2500.0
	MaxLookupRadius = 50000.0

	// DefaultLookupRadius is used when no radius is configured.
	DefaultLookupRadius = 5000.0

	// MaxLeveledDepth bounds leveled sublist expansion.
	MaxLeveledDepth = 16

	// MaxLocationDepth bounds ancestor chains independently of cycle detection.
	MaxLocationDepth = 64
)

// FormKind is the host record type of a form.
type FormKind int

const (
	FormUnknown FormKind = iota
	FormItem
	FormLeveledList
	FormContainer
	FormLocation
	FormWorldspace
	FormCell
	FormReference
	FormFaction
	FormQuest
	FormGlobal
)

func (k FormKind) String() string {
	switch k {
	case FormItem:
		return "item"
	case FormLeveledList:
		return "leveled_list"
	case FormContainer:
		return "container"
	case FormLocation:
		return "location"
	case FormWorldspace:
		return "worldspace"
	case FormCell:
		return "cell"
	case FormReference:
		return "reference"
	case FormFaction:
		return "faction"
	case FormQuest:
		return "quest"
	case FormGlobal:
		return "global"
	default:
		return "unknown"
	}
}

// Placeable reports whether forms of this kind can enter an inventory.
func (k FormKind) Placeable() bool {
	return k == FormItem || k == FormLeveledList
}
