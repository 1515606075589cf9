package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/solatis/stashkeeper/internal/containers"
	"github.com/solatis/stashkeeper/internal/core/config"
	"github.com/solatis/stashkeeper/internal/ingest"
	"github.com/solatis/stashkeeper/internal/rules"
	"github.com/solatis/stashkeeper/internal/types"
	"github.com/solatis/stashkeeper/internal/world"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Apply rules to every container of a world snapshot",
	Long: `Loads a YAML or JSON world snapshot, ingests the configured rule sources
and touches every container reference once, printing the resulting
inventory changes.`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().String("world", "", "world snapshot file (required)")
	simulateCmd.Flags().String("trigger", "initialize", "container event (initialize, reset)")
	simulateCmd.Flags().Bool("explain", false, "print the first failing filter of every rule that did not apply")
	_ = simulateCmd.MarkFlagRequired("world")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	worldPath, _ := cmd.Flags().GetString("world")
	triggerName, _ := cmd.Flags().GetString("trigger")
	explain, _ := cmd.Flags().GetBool("explain")

	trigger, err := types.ParseTrigger(triggerName)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sources, closeDB, err := ruleSources(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	return simulate(cmd.Context(), cmd.OutOrStdout(), cfg, worldPath, sources, trigger, explain)
}

// simulate runs every container of the world at worldPath through the engine.
func simulate(ctx context.Context, out io.Writer, cfg *config.Config, worldPath string, sources ingest.Sources, trigger types.Trigger, explain bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := slog.Default()

	w, err := world.LoadFile(worldPath, cfg.Engine.Seed)
	if err != nil {
		return err
	}

	store, reports, err := ingest.BuildStore(ctx, w, sources, nil, logger)
	if err != nil {
		return err
	}
	dist, err := containers.ParseDistribution(cfg.Engine.KeywordDistribution)
	if err != nil {
		return err
	}
	snap := containers.BuildSnapshot(w, store, cfg.Engine.MaxLookupRadius, logger)
	manager := containers.NewManager(snap, containers.Options{
		Distribution: dist,
		Seed:         cfg.Engine.Seed,
		Logger:       logger,
	})

	refs := w.ContainerRefs()
	changed := 0
	for _, ref := range refs {
		ref.ClearDeltas()
		res := manager.OnContainerTouched(ctx, ref, trigger)
		if len(res.Applied) > 0 {
			changed++
		}
		printResult(out, w, ref, res)
		if explain {
			printMarkerFallback(out, w, snap, ref)
			printSkipped(out, snap, ref, res)
		}
	}

	documentErrors := 0
	for _, r := range reports {
		if r.HasErrors() {
			documentErrors++
		}
	}
	fmt.Fprintf(out, "%d containers, %d changed, %d rules, %d documents with errors\n",
		len(refs), changed, store.Len(), documentErrors)
	return nil
}

func printResult(out io.Writer, w *world.World, ref *world.Ref, res containers.Result) {
	fmt.Fprintf(out, "%s %s vendor=%t unsafe=%t\n", ref.ID(), w.FormName(ref.ID()), res.Vendor, res.Unsafe)
	for _, app := range res.Applied {
		fmt.Fprintf(out, "  %s %s\n", app.Kind, app.RuleName)
	}
	for _, d := range ref.Deltas() {
		if d.Count < 0 {
			fmt.Fprintf(out, "    - %d %s (%s) [%s]\n", -d.Count, w.FormName(d.Item), d.Item, d.Reason)
		} else {
			fmt.Fprintf(out, "    + %d %s (%s)\n", d.Count, w.FormName(d.Item), d.Item)
		}
	}
}

// printMarkerFallback shows which map marker stands in for the location of
// a reference that has none.
func printMarkerFallback(out io.Writer, w *world.World, snap *containers.Snapshot, ref *world.Ref) {
	if _, ok := ref.Location(); ok {
		return
	}
	ws, ok := ref.Worldspace()
	if !ok {
		return
	}
	radius := snap.Evaluator.Radius()
	markers := snap.Index.Markers(ws)

	m, found := snap.Index.NearestMarker(ws, ref.Position(), radius)
	if !found {
		fmt.Fprintf(out, "  no location, no map marker within %.0f units (%d markers in %s)\n",
			radius, len(markers), w.FormName(ws))
		return
	}
	fmt.Fprintf(out, "  no location, using %s via map marker %s at %.0f units (radius %.0f, %d markers in %s)\n",
		w.FormName(m.Location), m.ID, m.Position.Distance(ref.Position()), radius, len(markers), w.FormName(ws))
}

// printSkipped names the first failing filter of each rule that did not apply.
func printSkipped(out io.Writer, snap *containers.Snapshot, ref *world.Ref, res containers.Result) {
	applied := make(map[types.RuleID]bool, len(res.Applied))
	for _, app := range res.Applied {
		applied[app.RuleID] = true
	}

	collections := [][]*rules.CompiledRule{
		snap.Store.ReplaceRules(),
		snap.Store.RemoveRules(),
		snap.Store.AddRules(),
	}
	for _, rs := range collections {
		for _, rule := range rs {
			if applied[rule.Rule.ID] {
				continue
			}
			reason := gateReason(rule.Rule, res)
			if reason == "" {
				reason = "nothing to change"
				if ok, failed := snap.Evaluator.Explain(rule, ref); !ok {
					reason = failed
				}
			}
			fmt.Fprintf(out, "  skip %s: %s\n", rule.Rule.Name, reason)
		}
	}
}

func gateReason(r *types.SwapRule, res containers.Result) string {
	switch {
	case res.Vendor && !r.AllowVendors:
		return "vendor container"
	case r.OnlyVendors && !res.Vendor:
		return "not a vendor container"
	case res.Unsafe && !r.BypassSafeEdits:
		return "unsafe container"
	default:
		return ""
	}
}
