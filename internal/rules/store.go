package rules

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/solatis/stashkeeper/internal/types"
)

// Namer renders form ids for log output.
type Namer interface {
	FormName(id types.FormID) string
}

// Store holds the three ordered rule collections.
// It is filled during ingestion and read-only once handed to the mutation engine.
type Store struct {
	add     []*CompiledRule
	remove  []*CompiledRule
	replace []*CompiledRule
	logger  *slog.Logger
	namer   Namer
}

// NewStore creates an empty store. namer may be nil.
func NewStore(logger *slog.Logger, namer Namer) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{logger: logger, namer: namer}
}

// CreateSwapRule classifies, compiles and appends a rule to its collection.
// The rule's Kind and (when empty) ID are assigned here and never change.
func (s *Store) CreateSwapRule(rule types.SwapRule) (*CompiledRule, error) {
	kind, err := types.Classify(&rule)
	if err != nil && !errors.Is(err, types.ErrAmbiguousRemoval) {
		return nil, fmt.Errorf("rule %q: %w", rule.Name, err)
	}
	if err != nil {
		s.logger.Warn("rule sets both an old form and remove keywords; keyword mode wins",
			"rule", rule.Name,
			"old_form", s.name(rule.OldForm),
		)
		rule.OldForm = 0
	}

	rule.Kind = kind
	if rule.ID == "" {
		rule.ID = types.NewRuleID()
	}

	compiled, err := Compile(&rule)
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", rule.Name, err)
	}

	switch kind {
	case types.KindAdd:
		s.add = append(s.add, compiled)
	case types.KindRemove:
		s.remove = append(s.remove, compiled)
	case types.KindReplace:
		s.replace = append(s.replace, compiled)
	}

	s.logRule(compiled)
	return compiled, nil
}

// AddRules returns the add collection in registration order.
func (s *Store) AddRules() []*CompiledRule { return s.add }

// RemoveRules returns the remove collection in registration order.
func (s *Store) RemoveRules() []*CompiledRule { return s.remove }

// ReplaceRules returns the replace collection in registration order.
func (s *Store) ReplaceRules() []*CompiledRule { return s.replace }

// Len returns the total number of registered rules.
func (s *Store) Len() int {
	return len(s.add) + len(s.remove) + len(s.replace)
}

// logRule writes the registration summary. Cosmetic only.
func (s *Store) logRule(c *CompiledRule) {
	r := c.Rule
	attrs := []any{
		"rule", r.Name,
		"id", r.ID,
		"kind", r.Kind.String(),
	}

	switch {
	case r.KeywordMode():
		attrs = append(attrs, "remove_keywords", r.RemoveKeywords)
	case r.Kind != types.KindAdd:
		attrs = append(attrs, "remove", s.name(r.OldForm))
	}
	if r.Kind == types.KindRemove {
		if r.Count > 0 {
			attrs = append(attrs, "count", r.Count)
		} else {
			attrs = append(attrs, "count", "all")
		}
	}
	if len(r.NewForms) > 0 {
		attrs = append(attrs, "add", s.names(r.NewForms), "pick_at_random", r.PickAtRandom)
	}
	if r.Kind == types.KindAdd {
		attrs = append(attrs, "count", max(r.Count, 1))
	}
	if r.BypassSafeEdits {
		attrs = append(attrs, "bypass_safe_edits", true)
	}
	if r.AllowVendors {
		attrs = append(attrs, "allow_vendors", true)
	}
	if r.OnlyVendors {
		attrs = append(attrs, "only_vendors", true)
	}
	if len(r.Containers) > 0 {
		attrs = append(attrs, "containers", s.names(r.Containers))
	}
	if len(r.ValidLocations) > 0 {
		attrs = append(attrs, "locations", s.names(r.ValidLocations))
	}
	if len(r.ValidWorldspaces) > 0 {
		attrs = append(attrs, "worldspaces", s.names(r.ValidWorldspaces))
	}
	if len(r.LocationKeywords) > 0 {
		attrs = append(attrs, "location_keywords", r.LocationKeywords)
	}
	if len(r.References) > 0 {
		attrs = append(attrs, "references", s.names(r.References))
	}
	if n := len(r.RequiredAVs); n > 0 {
		attrs = append(attrs, "actor_values", n)
	}
	if n := len(r.RequiredQuestStages); n > 0 {
		attrs = append(attrs, "quest_stages", n)
	}
	if n := len(r.RequiredGlobals); n > 0 {
		attrs = append(attrs, "globals", n)
	}

	s.logger.Info("registered rule", attrs...)
}

func (s *Store) name(id types.FormID) string {
	if s.namer != nil {
		if n := s.namer.FormName(id); n != "" {
			return n
		}
	}
	return id.String()
}

func (s *Store) names(ids []types.FormID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = s.name(id)
	}
	return out
}
