package containers

import (
	"github.com/solatis/stashkeeper/internal/rules"
	"github.com/solatis/stashkeeper/internal/types"
)

// Application records what one rule did to a container.
type Application struct {
	RuleID   types.RuleID
	RuleName string
	Kind     types.RuleKind
	Removed  []types.ItemStack
	Added    []types.ItemStack
}

// Result summarises one container event.
type Result struct {
	Container types.FormID
	Vendor    bool
	Unsafe    bool
	Applied   []Application
}

func newApplication(rule *rules.CompiledRule) Application {
	return Application{
		RuleID:   rule.Rule.ID,
		RuleName: rule.Rule.Name,
		Kind:     rule.Rule.Kind,
	}
}

// replace removes the rule's targets and adds replacements for the removed quantity.
func (p *pass) replace(rule *rules.CompiledRule) (Application, bool) {
	if !p.gate(rule) {
		return Application{}, false
	}
	app := newApplication(rule)

	app.Removed = p.removeTargets(rule.Rule, types.RemoveReasonReplace)
	total := sumStacks(app.Removed)
	if total < 1 {
		return Application{}, false
	}

	if rule.Rule.KeywordMode() {
		app.Added = p.distribute(rule.Rule, total, p.m.distribution)
	} else {
		app.Added = p.distribute(rule.Rule, total, DistributeEach)
	}
	return app, true
}

// remove takes the rule's targets out without adding anything.
func (p *pass) remove(rule *rules.CompiledRule) (Application, bool) {
	r := rule.Rule

	// Cheap inventory check before the validity predicate.
	if !r.KeywordMode() && p.ledger.count(r.OldForm) < 1 {
		return Application{}, false
	}
	if !p.gate(rule) {
		return Application{}, false
	}

	app := newApplication(rule)
	app.Removed = p.removeTargets(r, types.RemoveReasonRemove)
	if len(app.Removed) == 0 {
		return Application{}, false
	}
	return app, true
}

// add places the rule's candidates with count max(Count, 1).
func (p *pass) add(rule *rules.CompiledRule) (Application, bool) {
	if len(rule.Rule.NewForms) == 0 {
		return Application{}, false
	}
	if !p.gate(rule) {
		return Application{}, false
	}

	app := newApplication(rule)
	app.Added = p.distribute(rule.Rule, max(rule.Rule.Count, 1), DistributeEach)
	if len(app.Added) == 0 {
		return Application{}, false
	}
	return app, true
}

// removeTargets removes by explicit identity or by keyword intersection.
//
// Explicit mode removes Count when 1 <= Count <= present, otherwise everything
// present. Keyword mode removes every stack whose item carries all keywords.
func (p *pass) removeTargets(r *types.SwapRule, reason types.RemoveReason) []types.ItemStack {
	if !r.KeywordMode() {
		present := p.ledger.count(r.OldForm)
		if present < 1 {
			return nil
		}
		n := r.Count
		if n < 1 || n > present {
			n = present
		}
		removed := p.ledger.remove(r.OldForm, n, reason)
		return []types.ItemStack{{Item: r.OldForm, Count: removed}}
	}

	var extra []types.FormID
	if base, ok := p.ref.Base(); ok && p.snap.Merchants != nil {
		extra = p.snap.Merchants.ContainerItems(base)
	}

	var removed []types.ItemStack
	for _, item := range p.ledger.items(extra) {
		if p.ledger.count(item) < 1 || !p.hasAllKeywords(item, r.RemoveKeywords) {
			continue
		}
		n := p.ledger.remove(item, p.ledger.count(item), reason)
		if n > 0 {
			removed = append(removed, types.ItemStack{Item: item, Count: n})
		}
	}
	return removed
}

func (p *pass) hasAllKeywords(item types.FormID, keywords []string) bool {
	for _, kw := range keywords {
		if !p.snap.Host.ItemHasKeyword(item, kw) {
			return false
		}
	}
	return true
}

// distribute runs the addition step for quantity.
//
// PickAtRandom hands the whole quantity to one uniformly chosen candidate.
// Otherwise DistributeEach gives every candidate the full quantity and
// DistributeSplit divides it, remainder to the earliest candidates.
// An empty candidate list is a no-op.
func (p *pass) distribute(r *types.SwapRule, quantity int, mode Distribution) []types.ItemStack {
	candidates := r.NewForms
	if len(candidates) == 0 || quantity < 1 {
		return nil
	}

	if r.PickAtRandom {
		pick := candidates[p.m.rng.Intn(len(candidates))]
		return p.addCandidate(pick, quantity)
	}

	var added []types.ItemStack
	if mode == DistributeSplit {
		share, rem := quantity/len(candidates), quantity%len(candidates)
		for i, c := range candidates {
			n := share
			if i < rem {
				n++
			}
			if n > 0 {
				added = append(added, p.addCandidate(c, n)...)
			}
		}
		return added
	}

	for _, c := range candidates {
		added = append(added, p.addCandidate(c, quantity)...)
	}
	return added
}

// addCandidate adds quantity of candidate, resolving leveled lists first.
func (p *pass) addCandidate(candidate types.FormID, quantity int) []types.ItemStack {
	if !p.snap.Resolver.IsLeveled(candidate) {
		p.ledger.add(candidate, quantity)
		return []types.ItemStack{{Item: candidate, Count: quantity}}
	}

	stacks, err := p.snap.Resolver.Resolve(candidate, quantity)
	if err != nil {
		p.m.logger.Warn("leveled list partially resolved",
			"list", candidate,
			"container", p.ref.ID(),
			"error", err,
		)
	}
	for _, s := range stacks {
		p.ledger.add(s.Item, s.Count)
	}
	return stacks
}
