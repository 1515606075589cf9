// Package ingest turns authored rule documents into registered swap rules.
//
// Documents are JSON or YAML with a top-level "rules" array. Every rule is
// decoded on its own: a malformed rule, condition or change is recorded in
// the document's Report and skipped while the rest of the document still
// registers.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/solatis/stashkeeper/internal/core/db"
	"github.com/solatis/stashkeeper/internal/observe"
	"github.com/solatis/stashkeeper/internal/rules"
	"github.com/solatis/stashkeeper/internal/types"
)

// FormResolver resolves authored identifiers against the loaded host data.
type FormResolver interface {
	LookupForm(local types.FormID, plugin string) (types.FormID, bool)
	LookupEditorID(editorID string) (types.FormID, bool)
	ModPresent(plugin string) bool
	FormKind(id types.FormID) types.FormKind
}

// DocumentLister returns stored rule documents.
type DocumentLister interface {
	ListEnabled(ctx context.Context) ([]db.RuleDocument, error)
}

// Format is a rule document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts json, yaml and yml.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported rule document format %q", s)
	}
}

// Ingester registers rules from documents into a store.
type Ingester struct {
	store   *rules.Store
	forms   FormResolver
	metrics *observe.Metrics
	logger  *slog.Logger
}

// New creates an ingester. metrics and logger may be nil.
func New(store *rules.Store, forms FormResolver, metrics *observe.Metrics, logger *slog.Logger) *Ingester {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingester{store: store, forms: forms, metrics: metrics, logger: logger}
}

// FromDir ingests every rule document in dir in lexical order and logs each
// report. A missing directory is not an error.
func (in *Ingester) FromDir(ctx context.Context, dir string) ([]*Report, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			in.logger.Warn("rules directory not found", "dir", dir)
			return nil, nil
		}
		return nil, fmt.Errorf("read rules directory %q: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, err := ParseFormat(filepath.Ext(e.Name())); err == nil {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	reports := make([]*Report, 0, len(names))
	for _, name := range names {
		format, _ := ParseFormat(filepath.Ext(name))
		body, err := os.ReadFile(filepath.Join(dir, name))
		var report *Report
		if err != nil {
			report = &Report{Name: name, Unreadable: err}
		} else {
			report = in.Document(ctx, name, format, body)
		}
		report.Log(in.logger)
		reports = append(reports, report)
	}
	return reports, nil
}

// FromDB ingests every enabled stored document in name order.
func (in *Ingester) FromDB(ctx context.Context, docs DocumentLister) ([]*Report, error) {
	stored, err := docs.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rule documents: %w", err)
	}

	reports := make([]*Report, 0, len(stored))
	for _, d := range stored {
		var report *Report
		format, err := ParseFormat(d.Format)
		if err != nil {
			report = &Report{Name: d.Name, Unreadable: err}
		} else {
			report = in.Document(ctx, d.Name, format, []byte(d.Body))
		}
		report.Log(in.logger)
		reports = append(reports, report)
	}
	return reports, nil
}

// Document ingests one rule document named name.
func (in *Ingester) Document(ctx context.Context, name string, format Format, body []byte) *Report {
	report := &Report{Name: name}

	root, err := decode(format, body)
	if err != nil {
		report.Unreadable = err
		return report
	}

	doc, ok := root.(map[string]any)
	if !ok {
		report.BadData = true
		return report
	}
	list, ok := doc["rules"].([]any)
	if !ok {
		report.BadData = true
		return report
	}

	for _, raw := range list {
		r := &ruleReader{forms: in.forms, report: report, document: name}
		for _, swap := range r.read(raw) {
			compiled, err := in.store.CreateSwapRule(swap)
			if err != nil {
				report.Rejected = append(report.Rejected, err.Error())
				continue
			}
			report.Registered++
			in.metrics.RecordRuleRegistered(ctx, compiled.Rule.Kind.String())
		}
	}
	return report
}

// Validate decodes a document without registering anything.
func Validate(format Format, body []byte) error {
	root, err := decode(format, body)
	if err != nil {
		return err
	}
	doc, ok := root.(map[string]any)
	if !ok {
		return fmt.Errorf("rule document must be an object")
	}
	if _, ok := doc["rules"].([]any); !ok {
		return fmt.Errorf("rule document must have a rules array")
	}
	return nil
}

func decode(format Format, body []byte) (any, error) {
	var root any
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(body, &root); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(body, &root); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported rule document format %q", format)
	}
	return root, nil
}
