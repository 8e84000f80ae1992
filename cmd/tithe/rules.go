package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Veraticus/tithe/internal/cli"
	"github.com/Veraticus/tithe/internal/ledger"
	"github.com/Veraticus/tithe/internal/ledgerfile"
	"github.com/Veraticus/tithe/internal/model"
	"github.com/Veraticus/tithe/internal/rules"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rules",
		Aliases: []string{"rule"},
		Short:   "Manage and run classification rules",
	}

	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesPreviewCmd())
	cmd.AddCommand(rulesRunCmd())
	cmd.AddCommand(rulesLogCmd())
	cmd.AddCommand(rulesImportCmd())
	cmd.AddCommand(rulesExportCmd())
	cmd.AddCommand(rulesArchiveCmd())

	return cmd
}

func rulesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List classification rules in run order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, _, cleanup, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			all, _ := cmd.Flags().GetBool("all")
			list := rules.Ordered(store.Snapshot().Rules)
			if all {
				list = store.Snapshot().Rules
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.SubtleStyle.Render("No classification rules."))
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tNAME\tPRIORITY\tMATCH\tCONDITIONS\tACTIONS\tSTATE")
			for _, r := range list {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\t%d\t%s\n",
					truncateString(r.ID, 12), truncateString(r.Name, 30), r.Priority, r.Match,
					len(r.Conditions), len(r.Actions), ruleState(r.Enabled, r.Archived))
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolP("all", "a", false, "Include disabled and archived rules")
	return cmd
}

func ruleState(enabled, archived bool) string {
	switch {
	case archived:
		return "archived"
	case !enabled:
		return "disabled"
	}
	return "active"
}

func rulesPreviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show what a rule run would change without saving",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, _, cleanup, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			ids, _ := cmd.Flags().GetStringSlice("txn")
			return cli.RenderRulePreview(cmd.OutOrStdout(), store.PreviewRuleRun(ids))
		},
	}
	cmd.Flags().StringSlice("txn", nil, "Limit to these transaction ids")
	return cmd
}

func rulesRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run classification rules and save the changes",
		Long: `Run the active classification rules over the ledger, or over the given
transactions, and record the run in the run log. Large ledgers are processed
in chunks of rules.chunk_size transactions. Each chunk is saved as it
finishes, and all chunks share one entry in the run log.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, _, cleanup, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			ids, _ := cmd.Flags().GetStringSlice("txn")
			ruleIDs, _ := cmd.Flags().GetStringSlice("rule")
			quiet, _ := cmd.Flags().GetBool("quiet")

			var progress io.Writer = os.Stderr
			if quiet {
				progress = io.Discard
			}
			entry, err := runRulesChunked(cmd, store, ids, ruleIDs, progress)
			if err != nil {
				return err
			}
			return cli.RenderRunLogEntry(cmd.OutOrStdout(), entry)
		},
	}
	cmd.Flags().StringSlice("txn", nil, "Limit to these transaction ids")
	cmd.Flags().StringSlice("rule", nil, "Run only these rule ids")
	cmd.Flags().BoolP("quiet", "q", false, "Hide the progress bar")
	return cmd
}

// runRulesChunked runs rules over ids, or every transaction, in chunks that
// share a run id, and folds the chunk entries into one for display.
func runRulesChunked(cmd *cobra.Command, store *ledger.Store, ids, ruleIDs []string, progress io.Writer) (model.RuleRunLogEntry, error) {
	ctx := cmd.Context()
	if len(ids) == 0 {
		for _, t := range store.Snapshot().Transactions {
			ids = append(ids, t.ID)
		}
	}
	if len(ids) == 0 {
		return store.RunRules(ctx, nil, ledger.RunOptions{Mode: model.RunManual, Source: ledger.SourceManual, RuleIDs: ruleIDs})
	}

	bar := progressbar.NewOptions(len(ids),
		progressbar.OptionSetWriter(progress),
		progressbar.OptionSetDescription("Running rules"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	runID := uuid.NewString()
	var entries []model.RuleRunLogEntry
	for _, batch := range chunk(ids, appConfig.ChunkSize) {
		if err := ctx.Err(); err != nil {
			return mergeEntries(entries), err
		}
		entry, err := store.RunRules(ctx, batch, ledger.RunOptions{
			Mode:    model.RunManual,
			Source:  ledger.SourceManual,
			RunID:   runID,
			RuleIDs: ruleIDs,
		})
		if err != nil {
			return mergeEntries(entries), err
		}
		if entry.IsEmpty() {
			break
		}
		entries = append(entries, entry)
		_ = bar.Add(len(batch))
	}
	_ = bar.Finish()
	return mergeEntries(entries), nil
}

// mergeEntries folds chunk entries into one for display.
func mergeEntries(entries []model.RuleRunLogEntry) model.RuleRunLogEntry {
	if len(entries) == 0 {
		return model.RuleRunLogEntry{}
	}
	out := entries[0]
	for _, e := range entries[1:] {
		out = out.Merge(e)
	}
	return out
}

func rulesLogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "log",
		Short: "Show recent classification runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, _, cleanup, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()
			return cli.RenderRunLog(cmd.OutOrStdout(), store.RunLog())
		},
	}
}

func rulesImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import classification rules from a YAML file",
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

			return saveRules(cmd, store, &ledgerfile.Document{Rules: doc.Rules})
		},
	}
}

func rulesExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Export classification rules as YAML (stdout when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, cleanup, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()
			return exportDocument(cmd, args, ledgerfile.Export(store.Snapshot(), ledgerfile.SectionRules))
		},
	}
}

func rulesArchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive <id>",
		Short: "Archive a classification rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, cleanup, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			if err := store.ArchiveRule(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Archived rule "+args[0]))
			return nil
		},
	}
}

// saveRules applies the rule sections of doc and reports rejected rules.
func saveRules(cmd *cobra.Command, store *ledger.Store, doc *ledgerfile.Document) error {
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
	fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Saved %d classification and %d allocation rules",
		report.Rules, report.AllocationRules)))
	return nil
}

// exportDocument writes doc to the file named in args, or to stdout.
func exportDocument(cmd *cobra.Command, args []string, doc *ledgerfile.Document) error {
	if len(args) == 0 {
		return ledgerfile.Write(cmd.OutOrStdout(), doc)
	}
	if err := ledgerfile.WriteFile(args[0], doc); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Wrote "+args[0]))
	return nil
}
