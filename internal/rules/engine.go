// Package rules applies ordered classification rules to ledger transactions.
package rules

import (
	"slices"
	"sort"
	"strings"

	"github.com/Veraticus/tithe/internal/model"
	"github.com/Veraticus/tithe/internal/predicate"
)

// Result is the outcome of evaluating a rule set against a batch of
// transactions. Updated holds the evaluated copies of every targeted
// transaction in evaluation order; ChangedIDs lists the ones whose values
// actually changed and need persisting.
type Result struct {
	Summaries  []model.RuleRunSummary
	Updated    []model.Transaction
	NewPayees  []model.Payee
	ChangedIDs []string
}

// Ordered returns the active rules sorted by precedence: priority ascending,
// then name, then id.
func Ordered(rules []model.ClassificationRule) []model.ClassificationRule {
	active := make([]model.ClassificationRule, 0, len(rules))
	for _, r := range rules {
		if r.IsActive() {
			active = append(active, r)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		a, b := active[i], active[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
	return active
}

// Preview evaluates without producing anything to persist.
func Preview(rules []model.ClassificationRule, txns []model.Transaction, targetIDs []string, lookup predicate.Lookup) []model.RuleRunSummary {
	return Evaluate(rules, txns, targetIDs, lookup).Summaries
}

// Evaluate runs the active rules over the targeted transactions. An empty
// targetIDs selects every transaction. Inputs are never modified.
func Evaluate(rules []model.ClassificationRule, txns []model.Transaction, targetIDs []string, lookup predicate.Lookup) Result {
	ordered := Ordered(rules)
	targets := selectTargets(txns, targetIDs)
	run := newRun(lookup)

	summaries := make([]model.RuleRunSummary, 0, len(ordered))
	changed := make(map[string]bool, len(targets))

	for _, rule := range ordered {
		summary := model.RuleRunSummary{RuleID: rule.ID, RuleName: rule.Name}
		touched := make(map[model.FieldKey]struct{})

		for i := range targets {
			txn := &targets[i]
			if !predicate.MatchAll(rule.Conditions, rule.Match, *txn, lookup) {
				continue
			}
			summary.Matched++

			for _, action := range rule.Actions {
				field := action.Field()
				if field == "" || run.locked(txn.ID, field) {
					continue
				}
				out := run.apply(action, txn)
				if !out.applied {
					continue
				}
				run.lock(txn.ID, field)
				touched[field] = struct{}{}
				if out.changed {
					changed[txn.ID] = true
				}
			}
		}

		summary.Fields = sortedFields(touched)
		summaries = append(summaries, summary)
	}

	res := Result{
		Summaries: summaries,
		Updated:   targets,
		NewPayees: run.newPayees,
	}
	for _, txn := range targets {
		if changed[txn.ID] {
			res.ChangedIDs = append(res.ChangedIDs, txn.ID)
		}
	}
	return res
}

// selectTargets clones the targeted transactions in caller order, skipping
// unknown and duplicate ids.
func selectTargets(txns []model.Transaction, targetIDs []string) []model.Transaction {
	if len(targetIDs) == 0 {
		out := make([]model.Transaction, len(txns))
		for i, t := range txns {
			out[i] = t.Clone()
		}
		return out
	}

	byID := make(map[string]int, len(txns))
	for i, t := range txns {
		if _, dup := byID[t.ID]; !dup {
			byID[t.ID] = i
		}
	}
	seen := make(map[string]bool, len(targetIDs))
	out := make([]model.Transaction, 0, len(targetIDs))
	for _, id := range targetIDs {
		idx, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, txns[idx].Clone())
	}
	return out
}

func sortedFields(set map[model.FieldKey]struct{}) []model.FieldKey {
	fields := make([]model.FieldKey, 0, len(set))
	for f := range set {
		fields = append(fields, f)
	}
	slices.Sort(fields)
	return fields
}

// payeeIndex maps lowercased names to payees. When two existing payees share
// a name the lowest id wins so resolution does not depend on map order.
func payeeIndex(payees map[string]model.Payee) map[string]model.Payee {
	ids := make([]string, 0, len(payees))
	for id := range payees {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	idx := make(map[string]model.Payee, len(payees))
	for _, id := range ids {
		p := payees[id]
		key := strings.ToLower(strings.TrimSpace(p.Name))
		if _, ok := idx[key]; !ok && key != "" {
			idx[key] = p
		}
	}
	return idx
}
