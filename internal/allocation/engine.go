// Package allocation splits inflow transactions into percentage-based
// purposes and reconciles the result against previously stored splits.
package allocation

import (
	"sort"
	"time"

	"github.com/Veraticus/tithe/internal/flow"
	"github.com/Veraticus/tithe/internal/model"
	"github.com/Veraticus/tithe/internal/predicate"
)

// Options control a run.
//
// RespectExisting stops a rule from claiming a transaction that already holds
// live allocations from another rule, unless the rule has AllowOverwrite, and
// preserves manual allocations that would otherwise be removed as stale.
// IncludeDisabled lets disabled rules take part, which is how rules are
// previewed while being edited. DryRun computes the preview only.
type Options struct {
	Now             time.Time
	Mode            model.AllocationMode
	RespectExisting bool
	IncludeDisabled bool
	DryRun          bool
}

// Result is the outcome of a run. Created and RemovedIDs are empty for a dry
// run; Preview is identical either way. RemovedIDs lists records dropped
// without a replacement: an id that reappears in Created is left out, and
// Reconcile still swaps in the new record.
type Result struct {
	Created              []model.TransactionAllocation
	RemovedIDs           []string
	AffectedTransactions []string
	Preview              model.AllocationRunPreview
}

// Ordered returns the non-archived rules sorted by priority, name and id.
// Disabled rules are kept only when includeDisabled is set.
func Ordered(rules []model.AllocationRule, includeDisabled bool) []model.AllocationRule {
	out := make([]model.AllocationRule, 0, len(rules))
	for _, r := range rules {
		if r.Archived || (!r.Enabled && !includeDisabled) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
	return out
}

// Run evaluates rules against txns. The first rule in priority order that
// accepts a transaction wins it; later rules are not consulted. Inputs are
// never modified.
func Run(rules []model.AllocationRule, txns []model.Transaction, existing []model.TransactionAllocation,
	lookup predicate.Lookup, settings model.Settings, opts Options) Result {
	if opts.Mode == "" {
		opts.Mode = model.AllocationAuto
	}

	ordered := Ordered(rules, opts.IncludeDisabled)
	rates := NewRateTable(settings)
	agg := newAggregator(ordered, rates.Base())

	inRun := make(map[string]bool, len(ordered))
	for _, r := range ordered {
		inRun[r.ID] = true
	}
	byTxn := indexByTransaction(existing)

	var res Result
	removed := make(map[string]bool)
	remove := func(a model.TransactionAllocation) {
		if !removed[a.ID] {
			removed[a.ID] = true
			res.RemovedIDs = append(res.RemovedIDs, a.ID)
		}
	}

	seen := make(map[string]bool, len(txns))
	for _, txn := range txns {
		if seen[txn.ID] {
			continue
		}
		seen[txn.ID] = true

		current := byTxn[txn.ID]
		winner := ""

		if flow.Classify(txn, lookup.Categories).IsInflow() {
			ev := evaluator{txn: txn, lookup: lookup, rates: rates, opts: opts, cache: map[string]candidate{}}
			live := ev.liveOwners(current, ordered, inRun)

			for _, rule := range ordered {
				if opts.RespectExisting && !rule.AllowOverwrite && ownedByOther(live, rule.ID) {
					continue
				}
				c := ev.evaluate(rule)
				if !c.ok {
					continue
				}

				winner = rule.ID
				agg.add(rule, c.splits, rates)
				res.AffectedTransactions = append(res.AffectedTransactions, txn.ID)

				if !opts.DryRun {
					for _, a := range current {
						if a.RuleID == rule.ID || rule.AllowOverwrite {
							remove(a)
						}
					}
					res.Created = append(res.Created, c.splits...)
				}
				break
			}
		}

		if opts.DryRun {
			continue
		}
		// Records of rules in this run that did not win the transaction are
		// stale: their rule's latest run produced nothing here.
		for _, a := range current {
			if !inRun[a.RuleID] || a.RuleID == winner {
				continue
			}
			if opts.RespectExisting && a.Mode == model.AllocationManual {
				continue
			}
			remove(a)
		}
	}

	res.RemovedIDs = withoutReplaced(res.RemovedIDs, res.Created)
	res.Preview = agg.preview()
	return res
}

// withoutReplaced drops ids that a created record takes over, so a rerun
// that reproduces its own records reports no removals.
func withoutReplaced(removed []string, created []model.TransactionAllocation) []string {
	if len(removed) == 0 || len(created) == 0 {
		return removed
	}
	replaced := make(map[string]bool, len(created))
	for _, a := range created {
		replaced[a.ID] = true
	}
	out := removed[:0]
	for _, id := range removed {
		if !replaced[id] {
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// ownedByOther reports whether a live owner other than ruleID exists.
func ownedByOther(live map[string]bool, ruleID string) bool {
	for owner := range live {
		if owner != ruleID {
			return true
		}
	}
	return false
}

func indexByTransaction(existing []model.TransactionAllocation) map[string][]model.TransactionAllocation {
	idx := make(map[string][]model.TransactionAllocation)
	for _, a := range existing {
		idx[a.TransactionID] = append(idx[a.TransactionID], a)
	}
	return idx
}

// candidate caches whether a rule accepts the transaction and its splits.
type candidate struct {
	splits []model.TransactionAllocation
	ok     bool
}

// evaluator scores rules against a single transaction, memoizing results so
// the liveness check and the main loop agree.
type evaluator struct {
	txn    model.Transaction
	lookup predicate.Lookup
	rates  RateTable
	opts   Options
	cache  map[string]candidate
}

func (e *evaluator) evaluate(rule model.AllocationRule) candidate {
	if c, ok := e.cache[rule.ID]; ok {
		return c
	}
	var c candidate
	if inScope(rule.Scope, e.txn, e.lookup) && predicate.MatchAll(rule.Filters, model.MatchAll, e.txn, e.lookup) {
		c.splits, c.ok = computeSplits(e.txn, rule, e.rates, e.opts)
	}
	e.cache[rule.ID] = c
	return c
}

// liveOwners returns the rules whose existing records on the transaction
// survive this run: owners outside the run, owners that still accept the
// transaction, and owners of protected manual records.
func (e *evaluator) liveOwners(current []model.TransactionAllocation, ordered []model.AllocationRule, inRun map[string]bool) map[string]bool {
	rulesByID := make(map[string]model.AllocationRule, len(ordered))
	for _, r := range ordered {
		rulesByID[r.ID] = r
	}

	live := make(map[string]bool)
	for _, a := range current {
		switch {
		case !inRun[a.RuleID]:
			live[a.RuleID] = true
		case e.opts.RespectExisting && a.Mode == model.AllocationManual:
			live[a.RuleID] = true
		case e.evaluate(rulesByID[a.RuleID]).ok:
			live[a.RuleID] = true
		}
	}
	return live
}
