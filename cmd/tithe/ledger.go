package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/tithe/internal/cli"
	"github.com/Veraticus/tithe/internal/ledgerfile"
)

func ledgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Seed or export the whole ledger as YAML",
	}
	cmd.AddCommand(ledgerSeedCmd())
	cmd.AddCommand(ledgerExportCmd())
	return cmd
}

func ledgerSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file>",
		Short: "Merge accounts, categories, rules and transactions from a YAML file",
		Long: `Merge a YAML ledger file into the ledger. Reference data is upserted by id,
rules are validated before saving, and transactions that are not yet in
the ledger are imported and run through the rules.`,
		Args: cobra.ExactArgs(1),
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

			report, err := ledgerfile.Apply(cmd.Context(), store, doc)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, r := range report.Rejected {
				if err := cli.RenderValidation(out, r.Name, r.Errors); err != nil {
					return err
				}
			}
			fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf(
				"Merged %d reference records, %d classification rules, %d allocation rules and %d transactions",
				report.Reference, report.Rules, report.AllocationRules, report.Import.Added)))
			return nil
		},
	}
}

func ledgerExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Export the ledger as YAML (stdout when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, cleanup, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			sections := ledgerfile.SectionReference | ledgerfile.SectionRules | ledgerfile.SectionAllocationRules
			if withTxns, _ := cmd.Flags().GetBool("transactions"); withTxns {
				sections |= ledgerfile.SectionTransactions
			}
			return exportDocument(cmd, args, ledgerfile.Export(store.Snapshot(), sections))
		},
	}
	cmd.Flags().Bool("transactions", false, "Include transactions")
	return cmd
}
