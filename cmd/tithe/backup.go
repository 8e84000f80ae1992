package main

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/tithe/internal/cli"
)

func backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup [file]",
		Short: "Copy the ledger database to a backup file",
		Long: `Write a consistent copy of the ledger database. Without a file name the
backup goes next to the database as backups/tithe-<timestamp>.db.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, cleanup, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			dest := filepath.Join(filepath.Dir(appConfig.DatabasePath), "backups",
				"tithe-"+time.Now().Format("20060102-150405")+".db")
			if len(args) == 1 {
				if dest, err = filepath.Abs(args[0]); err != nil {
					return fmt.Errorf("invalid backup path: %w", err)
				}
			}

			info, err := db.Backup(cmd.Context(), dest)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Backed up to %s (%d bytes)", info.Path, info.FileSize)))
			return nil
		},
	}
	cmd.AddCommand(backupListCmd())
	return cmd
}

func backupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recorded backups",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, db, cleanup, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			backups, err := db.Backups(cmd.Context())
			if err != nil {
				return err
			}
			if len(backups) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.SubtleStyle.Render("No backups recorded."))
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tCREATED\tSIZE\tPATH")
			for _, b := range backups {
				_, _ = fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", b.ID, b.CreatedAt.Format("2006-01-02 15:04"), b.FileSize, b.Path)
			}
			return w.Flush()
		},
	}
}
