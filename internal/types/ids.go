package types

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// RuleID is a UUIDv7 assigned to every registered rule.
type RuleID string

// NewRuleID generates a UUIDv7 rule identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewRuleID() RuleID {
	return RuleID(uuid.Must(uuid.NewV7()).String())
}

// ParseRuleID validates and converts a string to RuleID.
func ParseRuleID(s string) (RuleID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return RuleID(s), nil
}

// Identifier is a parsed form identifier from authored rules.
// Either EditorID is set, or LocalID and Plugin are.
type Identifier struct {
	LocalID  FormID
	Plugin   string
	EditorID string
}

// IsEditorID reports whether the identifier names a form by editor id.
func (i Identifier) IsEditorID() bool {
	return i.EditorID != ""
}

func (i Identifier) String() string {
	if i.IsEditorID() {
		return i.EditorID
	}
	return fmt.Sprintf("0x%X|%s", uint32(i.LocalID), i.Plugin)
}

// ParseIdentifier parses "0x800|Plugin.esp" or a bare editor id.
// A pipe-separated string must have exactly two non-empty parts and a hex id.
func ParseIdentifier(s string) (Identifier, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Identifier{}, ErrInvalidIdentifier
	}
	if !strings.Contains(s, "|") {
		return Identifier{EditorID: s}, nil
	}

	parts := strings.Split(s, "|")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Identifier{}, fmt.Errorf("%w: %q", ErrInvalidIdentifier, s)
	}

	id, err := parseHex(parts[0])
	if err != nil {
		return Identifier{}, fmt.Errorf("%w: %q", ErrInvalidIdentifier, s)
	}
	return Identifier{LocalID: id, Plugin: strings.TrimSpace(parts[1])}, nil
}

// ParseFormID parses a hex form id with or without 0x prefix.
func ParseFormID(s string) (FormID, error) {
	id, err := parseHex(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidIdentifier, s)
	}
	return id, nil
}

func parseHex(s string) (FormID, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return 0, ErrInvalidIdentifier
	}
	n, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, err
	}
	return FormID(n), nil
}
