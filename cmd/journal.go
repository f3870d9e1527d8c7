package main

import (
	"fmt"
	"text/tabwriter"

	"filerelay/internal/journal"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var journalStatuses []string

var journalCmd = &cobra.Command{
	Use:   "journal <path>",
	Short: "Show delivery journal records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := journal.NewSQLiteStore(args[0])
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		defer store.Close()

		statuses := make([]journal.Status, 0, len(journalStatuses))
		for _, s := range journalStatuses {
			statuses = append(statuses, journal.Status(s))
		}

		records, err := store.List(statuses...)
		if err != nil {
			return fmt.Errorf("failed to list journal: %w", err)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PATH\tSTATUS\tATTEMPTS\tUPDATED\tLAST ERROR")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", r.Path, r.Status, r.Attempts, humanize.Time(r.UpdatedAt), r.LastError)
		}
		return w.Flush()
	},
}

func init() {
	journalCmd.Flags().StringSliceVar(&journalStatuses, "status", nil, "Filter by status (transferring, failed, delivered, abandoned)")
}
