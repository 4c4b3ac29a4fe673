package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/oriys/gatewayctl/internal/store"
)

func historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <gateway>",
		Short: "Show journaled outcomes of a gateway",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, _, err := loadDocument()
			if err != nil {
				return err
			}
			if doc.Settings.JournalDSN == "" {
				return fmt.Errorf("no journal configured (settings.journal_dsn or GATEWAYCTL_JOURNAL__DSN)")
			}
			j, err := store.NewPostgresStore(cmd.Context(), doc.Settings.JournalDSN)
			if err != nil {
				return err
			}
			defer j.Close()

			records, err := j.ListResults(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("No results recorded.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RECORDED\tRUN\tSTATE\tCREATED\tREUSED\tDURATION\tERROR")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%dms\t%s\n",
					r.RecordedAt.Format("2006-01-02 15:04:05"),
					shortID(r.RunID),
					r.State, r.Created, r.Reused, r.DurationMs,
					truncate(r.Error, 60),
				)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of results")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
