package allocation

import "github.com/Veraticus/tithe/internal/model"

// Reconcile applies a run to the stored record set: the retained records are
// existing minus removedIDs, followed by created. A created record replaces
// any retained record with the same id.
func Reconcile(existing []model.TransactionAllocation, removedIDs []string, created []model.TransactionAllocation) []model.TransactionAllocation {
	drop := make(map[string]bool, len(removedIDs)+len(created))
	for _, id := range removedIDs {
		drop[id] = true
	}
	for _, a := range created {
		drop[a.ID] = true
	}

	out := make([]model.TransactionAllocation, 0, len(existing)+len(created))
	for _, a := range existing {
		if !drop[a.ID] {
			out = append(out, a)
		}
	}
	return append(out, created...)
}
