package types

import "errors"

// Sentinel errors for StashKeeper operations.
var (
	// ErrEmptyRule indicates a rule that can neither add nor remove anything.
	ErrEmptyRule = errors.New("rule has no changes")

	// ErrAmbiguousRemoval indicates a rule sets both an old form and remove keywords.
	// Keyword mode wins; the error is reported, not fatal.
	ErrAmbiguousRemoval = errors.New("rule sets both remove and removeByKeywords")

	// ErrInvalidComparator indicates an unknown quest stage comparator.
	ErrInvalidComparator = errors.New("invalid comparator")

	// ErrInvalidRange indicates an actor value range whose max is below its min.
	ErrInvalidRange = errors.New("invalid actor value range")

	// ErrInvalidIdentifier indicates a malformed form identifier.
	ErrInvalidIdentifier = errors.New("invalid form identifier")

	// ErrFormNotFound indicates an identifier that resolves to nothing.
	ErrFormNotFound = errors.New("form not found")

	// ErrLeveledCycle indicates a leveled list that contains itself.
	ErrLeveledCycle = errors.New("leveled list references itself")

	// ErrLeveledTooDeep indicates sublist nesting beyond MaxLeveledDepth.
	ErrLeveledTooDeep = errors.New("leveled list nesting exceeds maximum depth")

	// ErrNotLeveled indicates a form that is not a leveled list.
	ErrNotLeveled = errors.New("form is not a leveled list")

	// ErrNotContainer indicates a reference whose base is not a container.
	ErrNotContainer = errors.New("reference base is not a container")

	// ErrInvalidWorld indicates a world snapshot that cannot be indexed.
	ErrInvalidWorld = errors.New("invalid world snapshot")

	// ErrUnknownReference indicates a reference id the world does not hold.
	ErrUnknownReference = errors.New("unknown reference")

	// ErrNoWorld indicates a bridge call before any world was loaded.
	ErrNoWorld = errors.New("no world loaded")
)
