package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/tithe/internal/model"
)

const timeLayout = "2006-01-02 15:04"

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func fieldList(fields []model.FieldKey) string {
	if len(fields) == 0 {
		return "-"
	}
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = string(f)
	}
	return strings.Join(parts, ", ")
}

func writeSummaries(w io.Writer, summaries []model.RuleRunSummary) error {
	if len(summaries) == 0 {
		_, err := fmt.Fprintln(w, SubtleStyle.Render("No active rules."))
		return err
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "RULE\tMATCHED\tFIELDS")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", s.RuleName, s.Matched, fieldList(s.Fields))
	}
	return tw.Flush()
}

// RenderRulePreview writes what a classification run would do.
func RenderRulePreview(w io.Writer, p model.RuleRunPreview) error {
	summary := fmt.Sprintf("%d of %d transactions would change", p.ChangedCount, p.TransactionCount)
	if _, err := fmt.Fprintln(w, RenderBox("Rule preview", summary)); err != nil {
		return err
	}
	return writeSummaries(w, p.Summaries)
}

// RenderRunLogEntry writes the outcome of a committed classification run.
func RenderRunLogEntry(w io.Writer, e model.RuleRunLogEntry) error {
	if e.IsEmpty() {
		_, err := fmt.Fprintln(w, FormatWarning("Nothing ran: no matching rules."))
		return err
	}
	lines := []string{
		fmt.Sprintf("%d of %d transactions changed", e.ChangedCount, e.TransactionCount),
		SubtleStyle.Render(fmt.Sprintf("%s run from %s at %s", e.Mode, e.Source, e.RanAt.Format(timeLayout))),
	}
	if len(e.NewPayees) > 0 {
		names := make([]string, len(e.NewPayees))
		for i, p := range e.NewPayees {
			names[i] = p.Name
		}
		lines = append(lines, "New payees: "+strings.Join(names, ", "))
	}
	if _, err := fmt.Fprintln(w, RenderBox("Rules applied", strings.Join(lines, "\n"))); err != nil {
		return err
	}
	return writeSummaries(w, e.Summaries)
}

// RenderRunLog writes the run log as a table, most recent first.
func RenderRunLog(w io.Writer, entries []model.RuleRunLogEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, SubtleStyle.Render("No rule runs recorded yet."))
		return err
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "RAN AT\tMODE\tSOURCE\tTRANSACTIONS\tCHANGED\tNEW PAYEES")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\n",
			e.RanAt.Format(timeLayout), e.Mode, e.Source, e.TransactionCount, e.ChangedCount, len(e.NewPayees))
	}
	return tw.Flush()
}

func nativeTotals(totals map[string]decimal.Decimal) string {
	if len(totals) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(totals))
	for _, cur := range slices.Sorted(maps.Keys(totals)) {
		parts = append(parts, totals[cur].StringFixed(2)+" "+cur)
	}
	return strings.Join(parts, ", ")
}

// RenderAllocationPreview writes the totals and per-purpose breakdown of an
// allocation run.
func RenderAllocationPreview(w io.Writer, p model.AllocationRunPreview) error {
	summary := fmt.Sprintf("%d transactions, %d allocations, %s %s",
		p.TransactionsAffected, p.AllocationCount, p.TotalBaseAmount.StringFixed(2), p.BaseCurrency)
	if _, err := fmt.Fprintln(w, RenderBox("Allocation preview", summary)); err != nil {
		return err
	}
	if len(p.FallbackCurrencies) > 0 {
		msg := fmt.Sprintf("No exchange rate for %s; converted at 1:1.", strings.Join(p.FallbackCurrencies, ", "))
		if _, err := fmt.Fprintln(w, FormatWarning(msg)); err != nil {
			return err
		}
	}
	if len(p.Breakdown) == 0 {
		_, err := fmt.Fprintln(w, SubtleStyle.Render("Nothing to allocate."))
		return err
	}

	tw := newTable(w)
	fmt.Fprintf(tw, "RULE\tPURPOSE\tCOUNT\t%s\tNATIVE\n", p.BaseCurrency)
	for _, row := range p.Breakdown {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			row.RuleName, row.PurposeName, row.Count, row.BaseAmount.StringFixed(2), nativeTotals(row.NativeTotals))
	}
	return tw.Flush()
}

// RenderAllocationResult writes a committed allocation run.
func RenderAllocationResult(w io.Writer, r model.AllocationRunResult) error {
	if err := RenderAllocationPreview(w, r.Preview); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, FormatSuccess(fmt.Sprintf("Created %d and removed %d allocation records", r.Created, r.Removed)))
	return err
}

// RenderValidation lists why a rule was rejected.
func RenderValidation(w io.Writer, name string, errs []model.ValidationError) error {
	if _, err := fmt.Fprintln(w, FormatError(fmt.Sprintf("Rule %q was not saved", name))); err != nil {
		return err
	}
	for _, e := range errs {
		if _, err := fmt.Fprintf(w, "  %s: %s\n", BoldStyle.Render(e.Title), e.Description); err != nil {
			return err
		}
	}
	return nil
}

// FormatDate renders an optional date for tables.
func FormatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02")
}
