package ledger

import (
	"context"
	"slices"

	"github.com/google/uuid"

	"github.com/Veraticus/tithe/internal/common"
	"github.com/Veraticus/tithe/internal/model"
	"github.com/Veraticus/tithe/internal/rules"
)

// Run sources recorded in the run log.
const (
	SourceManual = "manual"
	SourceImport = "import"
)

// RunOptions selects how a classification run is recorded. RunID groups the
// chunks of one logical run: when it matches the most recent log entry the
// chunk is folded into that entry instead of taking a new slot.
type RunOptions struct {
	Mode    model.RunMode
	Source  string
	RunID   string
	RuleIDs []string
}

// PreviewRuleRun reports what a run over txnIDs would do. An empty txnIDs
// previews the whole ledger. Nothing is written.
func (s *Store) PreviewRuleRun(txnIDs []string) model.RuleRunPreview {
	snap := s.current()
	targets := targetsFor(snap, txnIDs)
	res := rules.Evaluate(snap.Rules, snap.Transactions, txnIDs, snap.Lookup())
	return model.RuleRunPreview{
		Summaries:        res.Summaries,
		TransactionCount: targets,
		ChangedCount:     len(res.ChangedIDs),
	}
}

// RunRules evaluates the active rules over txnIDs, commits the changed
// transactions and minted payees, and prepends a run log entry. When
// opts.RuleIDs names only rules that do not exist the run is skipped and an
// empty entry is returned.
func (s *Store) RunRules(ctx context.Context, txnIDs []string, opts RunOptions) (model.RuleRunLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.snap.Clone()
	entry, ok := s.classify(next, txnIDs, opts)
	if !ok {
		common.LogDebug("Skipping classification run with unknown rules", common.Fields{
			"rule_ids": opts.RuleIDs,
		})
		return model.RuleRunLogEntry{}, nil
	}
	if err := s.commitLocked(ctx, next); err != nil {
		return model.RuleRunLogEntry{}, err
	}

	common.LogInfo("Classification run complete", common.Fields{
		"mode":         entry.Mode,
		"source":       entry.Source,
		"transactions": entry.TransactionCount,
		"changed":      entry.ChangedCount,
		"new_payees":   len(entry.NewPayees),
	})
	return entry, nil
}

// RunLog returns the retained run log, most recent first.
func (s *Store) RunLog() []model.RuleRunLogEntry {
	return slices.Clone(s.current().RunLog)
}

// classify runs the classification engine against next in place.
func (s *Store) classify(next *Snapshot, txnIDs []string, opts RunOptions) (model.RuleRunLogEntry, bool) {
	selected := next.Rules
	if len(opts.RuleIDs) > 0 {
		selected = selectRules(next.Rules, opts.RuleIDs)
		if len(selected) == 0 {
			return model.RuleRunLogEntry{}, false
		}
	}

	res := rules.Evaluate(selected, next.Transactions, txnIDs, next.Lookup())
	next.replaceTransactions(res.Updated, res.ChangedIDs)
	next.Payees = append(next.Payees, res.NewPayees...)

	mode := opts.Mode
	if mode == "" {
		mode = model.RunManual
	}
	source := opts.Source
	if source == "" {
		source = SourceManual
	}
	id := opts.RunID
	if id == "" {
		id = uuid.NewString()
	}
	entry := model.RuleRunLogEntry{
		RanAt:            s.now(),
		ID:               id,
		Mode:             mode,
		Source:           source,
		Summaries:        res.Summaries,
		NewPayees:        res.NewPayees,
		TransactionCount: targetsFor(next, txnIDs),
		ChangedCount:     len(res.ChangedIDs),
	}
	if opts.RunID != "" && len(next.RunLog) > 0 && next.RunLog[0].ID == opts.RunID {
		next.RunLog[0] = next.RunLog[0].Merge(entry)
	} else {
		next.RunLog = prependCapped(next.RunLog, entry, s.runLogLimit)
	}
	return entry, true
}

func selectRules(all []model.ClassificationRule, ids []string) []model.ClassificationRule {
	var out []model.ClassificationRule
	for _, r := range all {
		if slices.Contains(ids, r.ID) {
			out = append(out, r)
		}
	}
	return out
}

func targetsFor(snap *Snapshot, txnIDs []string) int {
	if len(txnIDs) == 0 {
		return len(snap.Transactions)
	}
	want := make(map[string]bool, len(txnIDs))
	for _, id := range txnIDs {
		want[id] = true
	}
	n := 0
	for _, t := range snap.Transactions {
		if want[t.ID] {
			n++
		}
	}
	return n
}

func prependCapped(log []model.RuleRunLogEntry, entry model.RuleRunLogEntry, limit int) []model.RuleRunLogEntry {
	out := make([]model.RuleRunLogEntry, 0, min(len(log)+1, limit))
	out = append(out, entry)
	for _, e := range log {
		if len(out) == limit {
			break
		}
		out = append(out, e)
	}
	return out
}
