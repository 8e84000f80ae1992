package ledger

import (
	"context"
	"slices"
	"time"

	"github.com/Veraticus/tithe/internal/allocation"
	"github.com/Veraticus/tithe/internal/common"
	"github.com/Veraticus/tithe/internal/model"
	"github.com/Veraticus/tithe/internal/predicate"
)

// AllocationFilters narrows the transactions an allocation run considers.
// Zero values mean no restriction.
type AllocationFilters struct {
	From          *time.Time
	To            *time.Time
	AccountIDs    []string
	CollectionIDs []string
}

// PreviewAllocationRun reports what ApplyAllocationRun would do with the same
// arguments. An empty ruleID runs every enabled rule; an unknown ruleID
// yields an empty preview.
func (s *Store) PreviewAllocationRun(ruleID string, filters AllocationFilters) model.AllocationRunPreview {
	snap := s.current()
	res, ok := s.allocate(snap, ruleID, filters, nil, model.AllocationRetroactive, true)
	if !ok {
		return emptyPreview(snap)
	}
	return res.Preview
}

// ApplyAllocationRun runs allocation rules retroactively over the filtered
// transactions and commits the reconciled allocation records.
func (s *Store) ApplyAllocationRun(ctx context.Context, ruleID string, filters AllocationFilters) (model.AllocationRunResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.snap.Clone()
	res, ok := s.allocate(next, ruleID, filters, nil, model.AllocationRetroactive, false)
	if !ok {
		common.LogDebug("Skipping allocation run with unknown rule", common.Fields{"rule_id": ruleID})
		return model.AllocationRunResult{Preview: emptyPreview(next)}, nil
	}
	next.Allocations = allocation.Reconcile(next.Allocations, res.RemovedIDs, res.Created)
	if err := s.commitLocked(ctx, next); err != nil {
		return model.AllocationRunResult{}, err
	}

	result := model.AllocationRunResult{
		Preview: res.Preview,
		Created: len(res.Created),
		Removed: len(res.RemovedIDs),
	}
	common.LogInfo("Allocation run complete", common.Fields{
		"rule_id":      ruleID,
		"transactions": result.Preview.TransactionsAffected,
		"created":      result.Created,
		"removed":      result.Removed,
	})
	return result, nil
}

// allocate evaluates allocation rules against snap without modifying it.
// txnIDs, when non-nil, further restricts the candidate transactions.
func (s *Store) allocate(snap *Snapshot, ruleID string, filters AllocationFilters, txnIDs []string,
	mode model.AllocationMode, dryRun bool) (allocation.Result, bool) {
	opts := allocation.Options{
		Now:             s.now(),
		Mode:            mode,
		RespectExisting: true,
		DryRun:          dryRun,
	}

	ruleSet := snap.AllocationRules
	if ruleID != "" {
		rule, ok := snap.AllocationRule(ruleID)
		if !ok || rule.Archived {
			return allocation.Result{}, false
		}
		ruleSet = []model.AllocationRule{rule}
		opts.IncludeDisabled = true
	}

	lookup := snap.Lookup()
	txns := filterTransactions(snap, filters, txnIDs, lookup)
	return allocation.Run(ruleSet, txns, snap.Allocations, lookup, snap.Settings, opts), true
}

func filterTransactions(snap *Snapshot, filters AllocationFilters, txnIDs []string, lookup predicate.Lookup) []model.Transaction {
	var conds []model.Condition
	if filters.From != nil || filters.To != nil {
		conds = append(conds, model.Condition{Type: model.ConditionDateRange, From: filters.From, To: filters.To})
	}
	if len(filters.AccountIDs) > 0 {
		conds = append(conds, model.Condition{Type: model.ConditionAccount, IDs: filters.AccountIDs})
	}
	if len(filters.CollectionIDs) > 0 {
		conds = append(conds, model.Condition{Type: model.ConditionAccount, IDs: accountsInCollections(snap, filters.CollectionIDs)})
	}

	var want map[string]bool
	if txnIDs != nil {
		want = make(map[string]bool, len(txnIDs))
		for _, id := range txnIDs {
			want[id] = true
		}
	}

	var out []model.Transaction
	for _, t := range snap.Transactions {
		if want != nil && !want[t.ID] {
			continue
		}
		if predicate.MatchAll(conds, model.MatchAll, t, lookup) {
			out = append(out, t)
		}
	}
	return out
}

func accountsInCollections(snap *Snapshot, collectionIDs []string) []string {
	ids := []string{}
	for _, a := range snap.Accounts {
		for _, c := range a.CollectionIDs {
			if slices.Contains(collectionIDs, c) {
				ids = append(ids, a.ID)
				break
			}
		}
	}
	return ids
}

func emptyPreview(snap *Snapshot) model.AllocationRunPreview {
	return allocation.Run(nil, nil, nil, snap.Lookup(), snap.Settings, allocation.Options{DryRun: true}).Preview
}
