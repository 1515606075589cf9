package ingest

import (
	"errors"
	"math"

	"github.com/solatis/stashkeeper/internal/types"
)

// ruleReader decodes one entry of a document's rules array.
type ruleReader struct {
	forms    FormResolver
	report   *Report
	document string

	friendly string
	valid    bool
}

// conditions shared by every change of a rule.
type conditions struct {
	bypass       bool
	allowVendors bool
	onlyVendors  bool
	containers   []types.FormID
	locations    []types.FormID
	worldspaces  []types.FormID
	keywords     []string
	references   []types.FormID
	actorValues  []types.AVRequirement
	globals      []types.GlobalRequirement
	questStages  []types.QuestCondition
}

// read returns one swap rule per valid change. Invalid conditions drop the
// whole rule; an invalid change drops only that change.
func (r *ruleReader) read(raw any) []types.SwapRule {
	data, ok := raw.(map[string]any)
	if !ok {
		r.report.BadData = true
		return nil
	}

	name, ok := data["friendlyName"].(string)
	if !ok {
		r.report.BadData = true
		r.report.MissingName = true
		return nil
	}
	r.friendly = name

	changes, ok := data["changes"].([]any)
	if !ok {
		r.report.NoChanges = append(r.report.NoChanges, name)
		return nil
	}

	r.valid = true
	var cond conditions
	if c, present := data["conditions"]; present && c != nil {
		cond = r.readConditions(c)
	}
	if !r.valid {
		return nil
	}

	var out []types.SwapRule
	for _, change := range changes {
		if swap, ok := r.readChange(change, cond); ok {
			out = append(out, swap)
		}
	}
	return out
}

func (r *ruleReader) field(parts ...string) string {
	s := r.friendly
	for _, p := range parts {
		s += " -> " + p
	}
	return s
}

func (r *ruleReader) badConditions() {
	r.report.BadConditions = append(r.report.BadConditions, r.friendly)
	r.valid = false
}

func (r *ruleReader) readConditions(raw any) conditions {
	var cond conditions

	c, ok := raw.(map[string]any)
	if !ok {
		r.badConditions()
		return cond
	}

	if plugins, present := c["plugins"]; present {
		list, ok := plugins.([]any)
		if !ok {
			r.badConditions()
			return cond
		}
		for _, p := range list {
			s, ok := p.(string)
			if !ok {
				r.badConditions()
				return cond
			}
			if !r.forms.ModPresent(s) {
				r.report.SkippedPlugins = append(r.report.SkippedPlugins, r.friendly)
				r.valid = false
				return cond
			}
		}
	}

	cond.bypass = r.readBool(c, "bypassUnsafeContainers")
	cond.allowVendors = r.readBool(c, "allowVendors")
	cond.onlyVendors = r.readBool(c, "onlyVendors")
	cond.containers = r.readForms(c, "containers", types.FormContainer)
	cond.locations = r.readForms(c, "locations", types.FormLocation)
	cond.worldspaces = r.readForms(c, "worldspaces", types.FormWorldspace)
	cond.keywords = r.readStrings(c, "locationKeywords")
	cond.references = r.readReferences(c)
	cond.actorValues = r.readActorValues(c)
	cond.globals = r.readGlobals(c)
	cond.questStages = r.readQuestStages(c)
	return cond
}

func (r *ruleReader) readBool(m map[string]any, key string) bool {
	v, present := m[key]
	if !present {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		r.badConditions()
		return false
	}
	return b
}

// readArray returns the array at key. Absent is (nil, true).
func (r *ruleReader) readArray(m map[string]any, key string) ([]any, bool) {
	v, present := m[key]
	if !present {
		return nil, true
	}
	list, ok := v.([]any)
	if !ok {
		r.report.NotArray = append(r.report.NotArray, r.field(key))
		r.valid = false
		return nil, false
	}
	return list, true
}

func (r *ruleReader) readStrings(m map[string]any, key string) []string {
	list, ok := r.readArray(m, key)
	if !ok {
		return nil
	}
	var out []string
	for _, v := range list {
		s, ok := v.(string)
		if !ok {
			r.report.BadStringField = append(r.report.BadStringField, r.field(key))
			r.valid = false
			continue
		}
		out = append(out, s)
	}
	return out
}

func (r *ruleReader) readForms(m map[string]any, key string, kind types.FormKind) []types.FormID {
	var out []types.FormID
	for _, s := range r.readStrings(m, key) {
		id, err := r.resolve(s, false, kind)
		switch {
		case err == nil:
			out = append(out, id)
		case errors.Is(err, errPluginAbsent):
		default:
			r.valid = false
			r.recordResolveError(err, r.field(key, s))
		}
	}
	return out
}

// readReferences accepts only "0xID|Plugin"; entries from absent plugins are skipped.
func (r *ruleReader) readReferences(m map[string]any) []types.FormID {
	var out []types.FormID
	for _, s := range r.readStrings(m, "references") {
		ident, err := types.ParseIdentifier(s)
		if err != nil || ident.IsEditorID() {
			r.report.BadFormat = append(r.report.BadFormat, r.field("references", s))
			r.valid = false
			continue
		}
		id, err := r.resolve(s, false, types.FormReference)
		switch {
		case err == nil:
			out = append(out, id)
		case errors.Is(err, errPluginAbsent):
		default:
			r.valid = false
			r.recordResolveError(err, r.field("references", s))
		}
	}
	return out
}

func (r *ruleReader) readActorValues(m map[string]any) []types.AVRequirement {
	list, ok := r.readArray(m, "actorValues")
	if !ok {
		return nil
	}
	var out []types.AVRequirement
	for _, v := range list {
		obj, ok := v.(map[string]any)
		name, nameOK := obj["name"].(string)
		minV, minOK := number(obj["min"])
		maxV, maxOK := number(obj["max"])
		if _, present := obj["max"]; !present {
			maxV, maxOK = -1, true
		}
		if !ok || !nameOK || name == "" || !minOK || !maxOK {
			r.report.BadFormat = append(r.report.BadFormat, r.field("actorValues"))
			r.valid = false
			continue
		}
		out = append(out, types.AVRequirement{Name: name, Min: minV, Max: maxV})
	}
	return out
}

func (r *ruleReader) readGlobals(m map[string]any) []types.GlobalRequirement {
	list, ok := r.readArray(m, "globals")
	if !ok {
		return nil
	}
	var out []types.GlobalRequirement
	for _, v := range list {
		obj, ok := v.(map[string]any)
		ident, identOK := obj["global"].(string)
		value, valueOK := number(obj["value"])
		if !ok || !identOK || !valueOK {
			r.report.BadFormat = append(r.report.BadFormat, r.field("globals"))
			r.valid = false
			continue
		}
		id, err := r.resolve(ident, false, types.FormGlobal)
		if err != nil {
			if !errors.Is(err, errPluginAbsent) {
				r.valid = false
				r.recordResolveError(err, r.field("globals", ident))
			}
			continue
		}
		out = append(out, types.GlobalRequirement{Global: id, Value: value})
	}
	return out
}

func (r *ruleReader) readQuestStages(m map[string]any) []types.QuestCondition {
	list, ok := r.readArray(m, "questStages")
	if !ok {
		return nil
	}
	var out []types.QuestCondition
	for _, v := range list {
		obj, ok := v.(map[string]any)
		ident, identOK := obj["quest"].(string)
		cmpStr, cmpOK := obj["comparator"].(string)
		stage, stageOK := integer(obj["stage"])
		if !ok || !identOK || !cmpOK || !stageOK {
			r.report.BadFormat = append(r.report.BadFormat, r.field("questStages"))
			r.valid = false
			continue
		}
		cmp, err := types.ParseComparator(cmpStr)
		if err != nil {
			r.report.BadFormat = append(r.report.BadFormat, r.field("questStages", cmpStr))
			r.valid = false
			continue
		}
		id, err := r.resolve(ident, false, types.FormQuest)
		if err != nil {
			if !errors.Is(err, errPluginAbsent) {
				r.valid = false
				r.recordResolveError(err, r.field("questStages", ident))
			}
			continue
		}
		out = append(out, types.QuestCondition{Quest: id, Comparator: cmp, Stage: stage})
	}
	return out
}

// readChange builds one swap rule from a change entry.
func (r *ruleReader) readChange(raw any, cond conditions) (types.SwapRule, bool) {
	change, ok := raw.(map[string]any)
	if !ok {
		r.report.BadData = true
		return types.SwapRule{}, false
	}

	oldRaw, hasOld := change["remove"]
	_, hasAdd := change["add"]
	_, hasKeywords := change["removeByKeywords"]
	if !hasOld && !hasAdd && !hasKeywords {
		r.report.BadData = true
		r.report.NoChanges = append(r.report.NoChanges, r.friendly)
		return types.SwapRule{}, false
	}

	swap := types.SwapRule{
		Name:                r.friendly + " >> " + r.document,
		Count:               -1,
		BypassSafeEdits:     cond.bypass,
		AllowVendors:        cond.allowVendors,
		OnlyVendors:         cond.onlyVendors,
		Containers:          cond.containers,
		ValidLocations:      cond.locations,
		ValidWorldspaces:    cond.worldspaces,
		LocationKeywords:    cond.keywords,
		References:          cond.references,
		RequiredAVs:         cond.actorValues,
		RequiredGlobals:     cond.globals,
		RequiredQuestStages: cond.questStages,
	}

	if hasOld {
		s, ok := oldRaw.(string)
		if !ok {
			r.report.BadStringField = append(r.report.BadStringField, r.field("remove"))
			return types.SwapRule{}, false
		}
		id, err := r.resolve(s, true, types.FormUnknown)
		if err != nil {
			if !errors.Is(err, errPluginAbsent) {
				r.recordResolveError(err, r.field("remove", s))
			}
			return types.SwapRule{}, false
		}
		swap.OldForm = id
	}

	// Conditions are already valid here; reuse the field readers for changes.
	r.valid = true
	if hasAdd {
		list, ok := r.readArray(change, "add")
		if !ok {
			return types.SwapRule{}, false
		}
		for _, v := range list {
			s, ok := v.(string)
			if !ok {
				r.report.BadStringField = append(r.report.BadStringField, r.field("add"))
				return types.SwapRule{}, false
			}
			id, err := r.resolve(s, true, types.FormUnknown)
			if err != nil {
				if !errors.Is(err, errPluginAbsent) {
					r.recordResolveError(err, r.field("add", s))
				}
				continue
			}
			swap.NewForms = append(swap.NewForms, id)
		}
	}

	if hasKeywords {
		swap.RemoveKeywords = r.readStrings(change, "removeByKeywords")
		if !r.valid {
			return types.SwapRule{}, false
		}
	}

	if v, present := change["randomAdd"]; present {
		b, ok := v.(bool)
		if !ok {
			r.report.BadFormat = append(r.report.BadFormat, r.field("randomAdd"))
			return types.SwapRule{}, false
		}
		swap.PickAtRandom = b
	}

	if n, ok := integer(change["count"]); ok {
		swap.Count = n
	}
	return swap, true
}

// number accepts JSON (float64) and YAML (int, float64) numbers.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// integer accepts integral numbers only.
func integer(v any) (int, bool) {
	f, ok := number(v)
	if !ok || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}
