package main

import (
	"fmt"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Veraticus/tithe/internal/cli"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Summarize the ledger and its storage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, db, cleanup, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			snap := store.Snapshot()
			out := cmd.OutOrStdout()
			summary := fmt.Sprintf("%s\nBase currency %s, %d exchange rates",
				appConfig.DatabasePath, snap.Settings.BaseCurrency, len(snap.Settings.ExchangeRates))
			fmt.Fprintln(out, cli.RenderBox("Ledger", summary))

			sizes, err := db.SectionSizes(cmd.Context())
			if err != nil {
				return err
			}
			counts := map[string]int{
				"settings":         1,
				"accounts":         len(snap.Accounts),
				"collections":      len(snap.Collections),
				"categories":       len(snap.Categories),
				"sub_categories":   len(snap.SubCategories),
				"payees":           len(snap.Payees),
				"tags":             len(snap.Tags),
				"transactions":     len(snap.Transactions),
				"rules":            len(snap.Rules),
				"allocation_rules": len(snap.AllocationRules),
				"allocations":      len(snap.Allocations),
				"run_log":          len(snap.RunLog),
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "SECTION\tRECORDS\tBYTES")
			keys := make([]string, 0, len(counts))
			for k := range counts {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			for _, k := range keys {
				_, _ = fmt.Fprintf(w, "%s\t%d\t%d\n", k, counts[k], sizes[k])
			}
			return w.Flush()
		},
	}
}
