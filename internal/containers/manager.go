package containers

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/solatis/stashkeeper/internal/observe"
	"github.com/solatis/stashkeeper/internal/rules"
	"github.com/solatis/stashkeeper/internal/types"
)

// Distribution controls how keyword-mode replace rules hand the removed total
// to their candidates when not picking at random.
type Distribution int

const (
	// DistributeSplit divides the removed total across candidates so the
	// quantity added equals the quantity removed.
	DistributeSplit Distribution = iota
	// DistributeEach gives every candidate the full removed total.
	DistributeEach
)

func (d Distribution) String() string {
	if d == DistributeEach {
		return "each"
	}
	return "split"
}

// ParseDistribution parses "split" or "each".
func ParseDistribution(s string) (Distribution, error) {
	switch s {
	case "", "split":
		return DistributeSplit, nil
	case "each":
		return DistributeEach, nil
	default:
		return 0, fmt.Errorf("unknown keyword distribution %q (expected split or each)", s)
	}
}

// Options configures a Manager.
type Options struct {
	Distribution Distribution
	// Seed for the candidate picker; 0 seeds from the clock.
	Seed    int64
	Metrics *observe.Metrics
	Logger  *slog.Logger
}

// Manager applies the snapshot's rules to touched containers.
// Calls are serialised: one container pass runs to completion before the next.
type Manager struct {
	mu           sync.Mutex
	snap         *Snapshot
	rng          *rand.Rand
	distribution Distribution
	metrics      *observe.Metrics
	logger       *slog.Logger
}

// NewManager creates a manager over snap. snap may be nil until the first Reload.
func NewManager(snap *Snapshot, opts Options) *Manager {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if opts.Metrics == nil {
		opts.Metrics = observe.DefaultMetrics()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Manager{
		snap:         snap,
		rng:          rand.New(rand.NewSource(seed)),
		distribution: opts.Distribution,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
	}
}

// Reload swaps in a snapshot built from freshly loaded host data.
func (m *Manager) Reload(snap *Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = snap
}

// Snapshot returns the current snapshot.
func (m *Manager) Snapshot() *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// OnContainerTouched is the host event entry point for object initialisation
// and reset. References whose base is not a container are ignored.
func (m *Manager) OnContainerTouched(ctx context.Context, ref ContainerRef, trigger types.Trigger) Result {
	if _, ok := ref.Base(); !ok {
		return Result{Container: ref.ID()}
	}

	start := time.Now()
	res := m.HandleContainer(ctx, ref)
	m.metrics.RecordContainerHandled(ctx, trigger.String(), time.Since(start).Seconds())
	return res
}

// HandleContainer runs the replace, remove and add passes against ref.
func (m *Manager) HandleContainer(ctx context.Context, ref ContainerRef) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	res := Result{Container: ref.ID()}
	snap := m.snap
	if snap == nil {
		return res
	}

	p := &pass{
		m:      m,
		snap:   snap,
		ref:    ref,
		ledger: newLedger(ref),
	}
	p.classify()
	res.Vendor, res.Unsafe = p.vendor, p.unsafe

	for _, rule := range snap.Store.ReplaceRules() {
		if app, ok := p.replace(rule); ok {
			res.Applied = append(res.Applied, app)
		}
	}
	for _, rule := range snap.Store.RemoveRules() {
		if app, ok := p.remove(rule); ok {
			res.Applied = append(res.Applied, app)
		}
	}
	for _, rule := range snap.Store.AddRules() {
		if app, ok := p.add(rule); ok {
			res.Applied = append(res.Applied, app)
		}
	}

	for _, app := range res.Applied {
		m.metrics.RecordRuleApplied(ctx, app.Kind.String(), sumStacks(app.Added), sumStacks(app.Removed))
	}
	if len(res.Applied) > 0 {
		m.logger.Debug("container handled",
			"container", ref.ID(),
			"vendor", res.Vendor,
			"unsafe", res.Unsafe,
			"applied", len(res.Applied),
		)
	}
	return res
}

// pass holds the state of one HandleContainer call.
type pass struct {
	m      *Manager
	snap   *Snapshot
	ref    ContainerRef
	ledger *ledger
	vendor bool
	unsafe bool
}

// classify determines vendor and safety status once per event.
func (p *pass) classify() {
	host := p.snap.Host

	if owner, ok := p.ref.FactionOwner(); ok && host.FactionIsVendor(owner) {
		p.vendor = true
	}
	if p.snap.Merchants != nil && p.snap.Merchants.IsMerchantContainer(p.ref.ID()) {
		p.vendor = true
	}

	if base, ok := p.ref.Base(); ok && !host.ContainerRespawns(base) {
		p.unsafe = true
	}
	if cell, ok := p.ref.Cell(); ok && host.EncounterZoneNeverResets(cell) {
		p.unsafe = true
	}
}

// gate applies the vendor, safety and validity checks.
func (p *pass) gate(rule *rules.CompiledRule) bool {
	r := rule.Rule
	if p.vendor && !r.AllowVendors {
		return false
	}
	if r.OnlyVendors && !p.vendor {
		return false
	}
	if p.unsafe && !r.BypassSafeEdits {
		return false
	}

	ok, failed := p.snap.Evaluator.Explain(rule, p.ref)
	if !ok {
		p.m.logger.Debug("rule not applicable",
			"rule", r.Name,
			"container", p.ref.ID(),
			"failed_filter", failed,
		)
	}
	return ok
}

func sumStacks(stacks []types.ItemStack) int {
	n := 0
	for _, s := range stacks {
		n += s.Count
	}
	return n
}
