package ingest

import (
	"context"
	"log/slog"

	"github.com/solatis/stashkeeper/internal/observe"
	"github.com/solatis/stashkeeper/internal/rules"
)

// Host resolves identifiers and renders names for registration logs.
type Host interface {
	FormResolver
	rules.Namer
}

// Sources selects where rule documents come from. Files are ingested
// before stored documents.
type Sources struct {
	Dir string
	DB  DocumentLister
}

// BuildStore ingests every source into a fresh store.
func BuildStore(ctx context.Context, host Host, src Sources, metrics *observe.Metrics, logger *slog.Logger) (*rules.Store, []*Report, error) {
	if logger == nil {
		logger = slog.Default()
	}
	store := rules.NewStore(logger, host)
	in := New(store, host, metrics, logger)

	var reports []*Report
	if src.Dir != "" {
		r, err := in.FromDir(ctx, src.Dir)
		if err != nil {
			return nil, nil, err
		}
		reports = append(reports, r...)
	}
	if src.DB != nil {
		r, err := in.FromDB(ctx, src.DB)
		if err != nil {
			return nil, nil, err
		}
		reports = append(reports, r...)
	}

	logger.Info("rules loaded",
		"documents", len(reports),
		"add", len(store.AddRules()),
		"remove", len(store.RemoveRules()),
		"replace", len(store.ReplaceRules()),
	)
	return store, reports, nil
}
