// Package ledger holds the in-memory ledger state and exposes the rule
// operations callers use: previewing and committing classification runs and
// allocation runs, and saving rules at the validation boundary.
package ledger

import (
	"slices"

	"github.com/Veraticus/tithe/internal/model"
	"github.com/Veraticus/tithe/internal/predicate"
)

// Snapshot is one immutable version of the ledger. Stores never mutate a
// published snapshot; commits replace it with a modified clone.
type Snapshot struct {
	Settings        model.Settings                `json:"settings"`
	Accounts        []model.Account               `json:"accounts"`
	Collections     []model.Collection            `json:"collections"`
	Categories      []model.Category              `json:"categories"`
	SubCategories   []model.SubCategory           `json:"sub_categories"`
	Payees          []model.Payee                 `json:"payees"`
	Tags            []model.Tag                   `json:"tags"`
	Transactions    []model.Transaction           `json:"transactions"`
	Rules           []model.ClassificationRule    `json:"rules"`
	AllocationRules []model.AllocationRule        `json:"allocation_rules"`
	Allocations     []model.TransactionAllocation `json:"allocations"`
	RunLog          []model.RuleRunLogEntry       `json:"run_log"`
}

// NewSnapshot returns an empty ledger using baseCurrency.
func NewSnapshot(baseCurrency string) *Snapshot {
	return &Snapshot{Settings: model.Settings{BaseCurrency: baseCurrency}}
}

// Clone copies every collection so the clone can be edited freely.
func (s *Snapshot) Clone() *Snapshot {
	c := &Snapshot{
		Settings: model.Settings{
			BaseCurrency:  s.Settings.BaseCurrency,
			ExchangeRates: slices.Clone(s.Settings.ExchangeRates),
		},
		Accounts:        slices.Clone(s.Accounts),
		Collections:     slices.Clone(s.Collections),
		Categories:      slices.Clone(s.Categories),
		SubCategories:   slices.Clone(s.SubCategories),
		Payees:          slices.Clone(s.Payees),
		Tags:            slices.Clone(s.Tags),
		Rules:           slices.Clone(s.Rules),
		AllocationRules: slices.Clone(s.AllocationRules),
		Allocations:     slices.Clone(s.Allocations),
		RunLog:          slices.Clone(s.RunLog),
	}
	if s.Transactions != nil {
		c.Transactions = make([]model.Transaction, len(s.Transactions))
		for i, t := range s.Transactions {
			c.Transactions[i] = t.Clone()
		}
	}
	return c
}

// Lookup indexes the snapshot's reference data for rule evaluation.
func (s *Snapshot) Lookup() predicate.Lookup {
	return predicate.NewLookup(s.Accounts, s.Payees, s.Categories, s.SubCategories)
}

// Rule returns the classification rule with id.
func (s *Snapshot) Rule(id string) (model.ClassificationRule, bool) {
	i := slices.IndexFunc(s.Rules, func(r model.ClassificationRule) bool { return r.ID == id })
	if i < 0 {
		return model.ClassificationRule{}, false
	}
	return s.Rules[i], true
}

// AllocationRule returns the allocation rule with id.
func (s *Snapshot) AllocationRule(id string) (model.AllocationRule, bool) {
	i := slices.IndexFunc(s.AllocationRules, func(r model.AllocationRule) bool { return r.ID == id })
	if i < 0 {
		return model.AllocationRule{}, false
	}
	return s.AllocationRules[i], true
}

// replaceTransactions swaps in updated copies by id.
func (s *Snapshot) replaceTransactions(updated []model.Transaction, ids []string) {
	if len(ids) == 0 {
		return
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	byID := make(map[string]model.Transaction, len(ids))
	for _, t := range updated {
		if want[t.ID] {
			byID[t.ID] = t
		}
	}
	for i, t := range s.Transactions {
		if u, ok := byID[t.ID]; ok {
			s.Transactions[i] = u
		}
	}
}

func (s *Snapshot) transactionIDs() map[string]bool {
	ids := make(map[string]bool, len(s.Transactions))
	for _, t := range s.Transactions {
		ids[t.ID] = true
	}
	return ids
}
