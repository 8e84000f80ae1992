package model

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// RunMode says what triggered a classification run.
type RunMode string

// Run modes.
const (
	RunManual    RunMode = "manual"
	RunAutomatic RunMode = "auto"
)

// RuleRunSummary reports what one rule did during a run. Fields lists the
// field keys the rule's actions acquired, whether or not values changed.
type RuleRunSummary struct {
	RuleID   string     `json:"rule_id"`
	RuleName string     `json:"rule_name"`
	Fields   []FieldKey `json:"fields"`
	Matched  int        `json:"matched"`
}

// RuleRunPreview is the dry-run view of a classification run.
type RuleRunPreview struct {
	Summaries        []RuleRunSummary `json:"summaries"`
	TransactionCount int              `json:"transaction_count"`
	ChangedCount     int              `json:"changed_count"`
}

// RuleRunLogEntry records a committed classification run.
type RuleRunLogEntry struct {
	RanAt            time.Time        `json:"ran_at"`
	ID               string           `json:"id"`
	Mode             RunMode          `json:"mode"`
	Source           string           `json:"source"`
	Summaries        []RuleRunSummary `json:"summaries"`
	NewPayees        []Payee          `json:"new_payees,omitempty"`
	TransactionCount int              `json:"transaction_count"`
	ChangedCount     int              `json:"changed_count"`
}

// IsEmpty reports whether the run did nothing, for example because the
// requested rule does not exist.
func (e RuleRunLogEntry) IsEmpty() bool {
	return e.ID == ""
}

// Merge folds a later part of the same run into e. Counts are summed, new
// payees appended and rule summaries combined by rule id, keeping e's
// identity, timestamp and rule order.
func (e RuleRunLogEntry) Merge(o RuleRunLogEntry) RuleRunLogEntry {
	out := e
	out.TransactionCount += o.TransactionCount
	out.ChangedCount += o.ChangedCount
	out.NewPayees = append(slices.Clone(e.NewPayees), o.NewPayees...)
	out.Summaries = slices.Clone(e.Summaries)

	index := make(map[string]int, len(out.Summaries))
	for i, s := range out.Summaries {
		index[s.RuleID] = i
	}
	for _, s := range o.Summaries {
		i, ok := index[s.RuleID]
		if !ok {
			index[s.RuleID] = len(out.Summaries)
			out.Summaries = append(out.Summaries, s)
			continue
		}
		out.Summaries[i].Matched += s.Matched
		out.Summaries[i].Fields = unionFields(out.Summaries[i].Fields, s.Fields)
	}
	return out
}

func unionFields(a, b []FieldKey) []FieldKey {
	out := make([]FieldKey, 0, len(a)+len(b))
	out = append(out, a...)
	for _, f := range b {
		if !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	slices.Sort(out)
	return out
}

// PurposeBreakdown totals one purpose of one rule across a run.
type PurposeBreakdown struct {
	NativeTotals map[string]decimal.Decimal `json:"native_totals"`
	RuleID       string                     `json:"rule_id"`
	RuleName     string                     `json:"rule_name"`
	PurposeID    string                     `json:"purpose_id"`
	PurposeName  string                     `json:"purpose_name"`
	BaseAmount   decimal.Decimal            `json:"base_amount"`
	Count        int                        `json:"count"`
}

// AllocationRunPreview aggregates the splits an allocation run computes.
// FallbackCurrencies lists native currencies that had no exchange rate and
// were converted at 1.
type AllocationRunPreview struct {
	NativeTotals         map[string]decimal.Decimal `json:"native_totals"`
	BaseCurrency         string                     `json:"base_currency"`
	Breakdown            []PurposeBreakdown         `json:"breakdown"`
	FallbackCurrencies   []string                   `json:"fallback_currencies,omitempty"`
	TotalBaseAmount      decimal.Decimal            `json:"total_base_amount"`
	TransactionsAffected int                        `json:"transactions_affected"`
	AllocationCount      int                        `json:"allocation_count"`
}

// AllocationRunResult is returned by a committed allocation run.
type AllocationRunResult struct {
	Preview AllocationRunPreview `json:"preview"`
	Created int                  `json:"created"`
	Removed int                  `json:"removed"`
}
