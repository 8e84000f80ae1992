package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Veraticus/tithe/internal/cli"
	"github.com/Veraticus/tithe/internal/common"
	"github.com/Veraticus/tithe/internal/model"
	"github.com/Veraticus/tithe/internal/ofx"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import transactions into the ledger",
	}
	cmd.AddCommand(importOFXCmd())
	return cmd
}

func importOFXCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ofx <files...>",
		Short: "Import transactions from OFX/QFX files",
		Long: `Import transactions from OFX or QFX statements exported by your bank.
New transactions are classified and allocated straight away; the run is
logged with source "import".

Examples:
  tithe import ofx ~/Downloads/monzo_march.ofx --account acc-main
  tithe import ofx ~/Downloads/*.qfx`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImportOFX,
	}
	cmd.Flags().String("account", "", "Ledger account id for every transaction (default: statement account number)")
	cmd.Flags().BoolP("dry-run", "d", false, "Parse files and report without saving")
	return cmd
}

func runImportOFX(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	account, _ := cmd.Flags().GetString("account")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	out := cmd.OutOrStdout()

	files, err := expandFiles(args)
	if err != nil {
		return err
	}

	parser := ofx.NewParser(ofx.Options{AccountID: account, BaseCurrency: appConfig.BaseCurrency})
	var txns []model.Transaction
	for _, path := range files {
		f, err := os.Open(path) // #nosec G304 - user supplied statement path
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		parsed, err := parser.ParseFile(ctx, f)
		_ = f.Close()
		if err != nil {
			return common.NewUserError("Could not read "+filepath.Base(path), err)
		}
		common.LogDebug("Parsed statement", common.Fields{"file": filepath.Base(path), "transactions": len(parsed)})
		txns = append(txns, parsed...)
	}
	if len(txns) == 0 {
		return common.NewUserError("No transactions found", common.ErrNoTransactions)
	}

	if dryRun {
		fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("Found %d transactions in %d files (dry run, nothing saved)", len(txns), len(files))))
		return nil
	}

	store, _, cleanup, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := store.ImportTransactions(ctx, txns)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Imported %d transactions (%d already present)", res.Added, res.Skipped)))
	if res.Added == 0 {
		return nil
	}
	if err := cli.RenderRunLogEntry(out, res.Classification); err != nil {
		return err
	}
	return cli.RenderAllocationResult(out, res.Allocation)
}

// expandFiles resolves glob patterns, keeping literal paths that exist.
func expandFiles(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) > 0 {
			files = append(files, matches...)
			continue
		}
		if _, err := os.Stat(pattern); err == nil {
			files = append(files, pattern)
			continue
		}
		common.LogWarn("No files found matching pattern", common.Fields{"pattern": pattern})
	}
	if len(files) == 0 {
		return nil, common.NewUserError("No files found to import", common.ErrNotFound)
	}
	return files, nil
}
