package ledgerfile

import (
	"context"
	"fmt"

	"github.com/Veraticus/tithe/internal/ledger"
	"github.com/Veraticus/tithe/internal/model"
)

// RuleProblem pairs a rejected rule with its validation errors.
type RuleProblem struct {
	Name   string
	Errors []model.ValidationError
}

// Report summarizes what Apply changed.
type Report struct {
	Import          ledger.ImportResult
	Rejected        []RuleProblem
	Reference       int
	Rules           int
	AllocationRules int
}

// Apply merges doc into store. Reference data is upserted by id first so
// rules can refer to it, rules go through the store's validation, and
// transactions are imported last so the new rules classify them.
func Apply(ctx context.Context, store *ledger.Store, doc *Document) (Report, error) {
	var report Report

	err := store.Update(ctx, func(next *ledger.Snapshot) error {
		report.Reference = mergeReference(next, doc)
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("failed to merge reference data: %w", err)
	}

	for _, rule := range doc.Rules {
		_, problems, err := store.SaveRule(ctx, rule)
		if err != nil {
			return report, fmt.Errorf("failed to save rule %q: %w", rule.Name, err)
		}
		if len(problems) > 0 {
			report.Rejected = append(report.Rejected, RuleProblem{Name: rule.Name, Errors: problems})
			continue
		}
		report.Rules++
	}

	for _, rule := range doc.AllocationRules {
		_, problems, err := store.SaveAllocationRule(ctx, rule)
		if err != nil {
			return report, fmt.Errorf("failed to save allocation rule %q: %w", rule.Name, err)
		}
		if len(problems) > 0 {
			report.Rejected = append(report.Rejected, RuleProblem{Name: rule.Name, Errors: problems})
			continue
		}
		report.AllocationRules++
	}

	if len(doc.Transactions) > 0 {
		res, err := store.ImportTransactions(ctx, doc.Transactions)
		if err != nil {
			return report, fmt.Errorf("failed to import transactions: %w", err)
		}
		report.Import = res
	}
	return report, nil
}

func mergeReference(next *ledger.Snapshot, doc *Document) int {
	n := 0
	if doc.Settings != nil {
		if doc.Settings.BaseCurrency != "" {
			next.Settings.BaseCurrency = doc.Settings.BaseCurrency
		}
		next.Settings.ExchangeRates = upsert(next.Settings.ExchangeRates, doc.Settings.ExchangeRates,
			func(r model.ExchangeRate) string { return r.Currency }, &n)
	}
	next.Accounts = upsert(next.Accounts, doc.Accounts, func(a model.Account) string { return a.ID }, &n)
	next.Collections = upsert(next.Collections, doc.Collections, func(c model.Collection) string { return c.ID }, &n)
	next.Categories = upsert(next.Categories, doc.Categories, func(c model.Category) string { return c.ID }, &n)
	next.SubCategories = upsert(next.SubCategories, doc.SubCategories, func(s model.SubCategory) string { return s.ID }, &n)
	next.Payees = upsert(next.Payees, doc.Payees, func(p model.Payee) string { return p.ID }, &n)
	next.Tags = upsert(next.Tags, doc.Tags, func(t model.Tag) string { return t.ID }, &n)
	return n
}

// upsert replaces items in dst sharing a key with src and appends the rest,
// counting every written item in n.
func upsert[T any](dst, src []T, key func(T) string, n *int) []T {
	if len(src) == 0 {
		return dst
	}
	index := make(map[string]int, len(dst))
	for i, item := range dst {
		index[key(item)] = i
	}
	for _, item := range src {
		k := key(item)
		if k == "" {
			continue
		}
		if i, ok := index[k]; ok {
			dst[i] = item
		} else {
			index[k] = len(dst)
			dst = append(dst, item)
		}
		*n++
	}
	return dst
}
