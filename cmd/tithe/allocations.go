package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Veraticus/tithe/internal/allocation"
	"github.com/Veraticus/tithe/internal/cli"
	"github.com/Veraticus/tithe/internal/ledger"
	"github.com/Veraticus/tithe/internal/ledgerfile"
)

func allocationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "allocations",
		Aliases: []string{"alloc"},
		Short:   "Manage and run income allocation rules",
	}

	cmd.AddCommand(allocationsListCmd())
	cmd.AddCommand(allocationsPreviewCmd())
	cmd.AddCommand(allocationsApplyCmd())
	cmd.AddCommand(allocationsImportCmd())
	cmd.AddCommand(allocationsExportCmd())
	cmd.AddCommand(allocationsArchiveCmd())

	return cmd
}

func allocationsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List allocation rules in precedence order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, _, cleanup, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			list := allocation.Ordered(store.Snapshot().AllocationRules, true)
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.SubtleStyle.Render("No allocation rules."))
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tNAME\tPRIORITY\tSCOPE\tPURPOSES\tTOTAL\tSTATE")
			for _, r := range list {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\t%s%%\t%s\n",
					truncateString(r.ID, 12), truncateString(r.Name, 30), r.Priority, r.Scope.Type,
					len(r.Purposes), r.TotalPercentage().String(), ruleState(r.Enabled, r.Archived))
			}
			return w.Flush()
		},
	}
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("from", "", "Only transactions on or after this date (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "Only transactions on or before this date (YYYY-MM-DD)")
	cmd.Flags().StringSlice("account", nil, "Only these account ids")
	cmd.Flags().StringSlice("collection", nil, "Only accounts in these collection ids")
}

func filtersFromFlags(cmd *cobra.Command) (ledger.AllocationFilters, error) {
	var f ledger.AllocationFilters
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")

	var err error
	if f.From, err = parseDate(from); err != nil {
		return f, err
	}
	if f.To, err = parseDate(to); err != nil {
		return f, err
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return f, fmt.Errorf("--to %s is before --from %s", cli.FormatDate(f.To), cli.FormatDate(f.From))
	}
	f.AccountIDs, _ = cmd.Flags().GetStringSlice("account")
	f.CollectionIDs, _ = cmd.Flags().GetStringSlice("collection")
	return f, nil
}

func ruleIDArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func allocationsPreviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview [rule-id]",
		Short: "Show what an allocation run would do without saving",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filters, err := filtersFromFlags(cmd)
			if err != nil {
				return err
			}
			store, _, cleanup, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			return cli.RenderAllocationPreview(cmd.OutOrStdout(), store.PreviewAllocationRun(ruleIDArg(args), filters))
		},
	}
	addFilterFlags(cmd)
	return cmd
}

func allocationsApplyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply [rule-id]",
		Short: "Run allocation rules retroactively and save the records",
		Long: `Run one allocation rule, or every enabled rule, over past transactions.
Records from other rules are left alone unless a rule allows overwriting,
and manually created records are never replaced.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filters, err := filtersFromFlags(cmd)
			if err != nil {
				return err
			}
			store, _, cleanup, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := store.ApplyAllocationRun(cmd.Context(), ruleIDArg(args), filters)
			if err != nil {
				return err
			}
			return cli.RenderAllocationResult(cmd.OutOrStdout(), res)
		},
	}
	addFilterFlags(cmd)
	return cmd
}

func allocationsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import allocation rules from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := ledgerfile.ReadFile(args[0])
			if err != nil {
				return err
			}
			store, _, cleanup, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			return saveRules(cmd, store, &ledgerfile.Document{AllocationRules: doc.AllocationRules})
		},
	}
}

func allocationsExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Export allocation rules as YAML (stdout when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, cleanup, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()
			return exportDocument(cmd, args, ledgerfile.Export(store.Snapshot(), ledgerfile.SectionAllocationRules))
		},
	}
}

func allocationsArchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive <id>",
		Short: "Archive an allocation rule, keeping its records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, cleanup, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			if err := store.ArchiveAllocationRule(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Archived allocation rule "+args[0]))
			return nil
		},
	}
}
