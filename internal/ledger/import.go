package ledger

import (
	"context"

	"github.com/Veraticus/tithe/internal/allocation"
	"github.com/Veraticus/tithe/internal/common"
	"github.com/Veraticus/tithe/internal/model"
)

// ImportResult reports what ImportTransactions added and what the
// automatic runs did with the new transactions.
type ImportResult struct {
	Classification model.RuleRunLogEntry
	Allocation     model.AllocationRunResult
	Added          int
	Skipped        int
}

// ImportTransactions adds transactions whose ids are not yet in the ledger,
// then classifies and allocates just those transactions. Everything is
// committed together.
func (s *Store) ImportTransactions(ctx context.Context, txns []model.Transaction) (ImportResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.snap.Clone()
	var res ImportResult
	var added []string
	known := next.transactionIDs()
	for _, t := range txns {
		if t.ID == "" || known[t.ID] {
			res.Skipped++
			continue
		}
		known[t.ID] = true
		next.Transactions = append(next.Transactions, t.Clone())
		added = append(added, t.ID)
	}
	res.Added = len(added)
	if res.Added == 0 {
		return res, nil
	}

	res.Classification, _ = s.classify(next, added, RunOptions{Mode: model.RunAutomatic, Source: SourceImport})

	alloc, _ := s.allocate(next, "", AllocationFilters{}, added, model.AllocationAuto, false)
	next.Allocations = allocation.Reconcile(next.Allocations, alloc.RemovedIDs, alloc.Created)
	res.Allocation = model.AllocationRunResult{
		Preview: alloc.Preview,
		Created: len(alloc.Created),
		Removed: len(alloc.RemovedIDs),
	}

	if err := s.commitLocked(ctx, next); err != nil {
		return ImportResult{}, err
	}
	common.LogInfo("Imported transactions", common.Fields{
		"added":       res.Added,
		"skipped":     res.Skipped,
		"changed":     res.Classification.ChangedCount,
		"allocations": res.Allocation.Created,
	})
	return res, nil
}
