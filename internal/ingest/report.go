package ingest

import (
	"log/slog"
)

// Report collects the problems found in one rule document.
// Problems never abort ingestion; the offending rule or field is skipped.
type Report struct {
	Name string

	// Unreadable is set when the document could not be opened or parsed.
	Unreadable error

	BadData        bool
	MissingName    bool
	NoChanges      []string
	BadConditions  []string
	BadStringField []string
	NotArray       []string
	BadFormat      []string
	MissingForm    []string
	Rejected       []string

	// Registered counts rules accepted by the store.
	Registered int
	// SkippedPlugins lists rules skipped because a required plugin is absent.
	// Not an error.
	SkippedPlugins []string
}

// HasErrors reports whether anything was wrong with the document.
func (r *Report) HasErrors() bool {
	return r.Unreadable != nil || r.BadData || r.MissingName ||
		len(r.NoChanges) > 0 || len(r.BadConditions) > 0 ||
		len(r.BadStringField) > 0 || len(r.NotArray) > 0 ||
		len(r.BadFormat) > 0 || len(r.MissingForm) > 0 || len(r.Rejected) > 0
}

// Log writes the report. Clean documents log one debug line.
func (r *Report) Log(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	if !r.HasErrors() {
		logger.Debug("rule document ingested",
			"document", r.Name,
			"registered", r.Registered,
			"skipped_for_plugins", len(r.SkippedPlugins),
		)
		return
	}

	attrs := []any{"document", r.Name, "registered", r.Registered}
	if r.Unreadable != nil {
		attrs = append(attrs, "unreadable", r.Unreadable.Error())
	}
	if r.BadData {
		attrs = append(attrs, "bad_data", true)
	}
	if r.MissingName {
		attrs = append(attrs, "missing_friendly_name", true)
	}
	attrs = appendList(attrs, "no_changes", r.NoChanges)
	attrs = appendList(attrs, "unreadable_conditions", r.BadConditions)
	attrs = appendList(attrs, "not_strings", r.BadStringField)
	attrs = appendList(attrs, "not_arrays", r.NotArray)
	attrs = appendList(attrs, "bad_format", r.BadFormat)
	attrs = appendList(attrs, "missing_forms", r.MissingForm)
	attrs = appendList(attrs, "rejected", r.Rejected)

	logger.Warn("rule document has errors", attrs...)
}

func appendList(attrs []any, key string, values []string) []any {
	if len(values) == 0 {
		return attrs
	}
	return append(attrs, key, values)
}
