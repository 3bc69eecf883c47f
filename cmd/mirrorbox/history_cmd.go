package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/openmirror/mirrorbox/internal/mirror"
)

func init() {
	rootCmd.AddCommand(newHistoryCmd())
}

func newHistoryCmd() *cobra.Command {
	var limit int

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent mirror cycle outcomes for a replica",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromViper()
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			history, err := mirror.NewHistory(mirror.HistoryPath(cfg.ReplicaDir))
			if err != nil {
				return fmt.Errorf("open cycle history: %w", err)
			}
			defer history.Close()

			records, err := history.Recent(limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no cycles recorded yet")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "WHEN\tCHANGED\tCOPIED\tUPDATED\tDELETED\tERRORS\tTOOK")
			for _, rec := range records {
				fmt.Fprintf(w, "%s\t%v\t%d\t%d\t%d\t%d\t%s\n",
					humanize.Time(rec.StartedAt),
					rec.Changed,
					rec.FilesCopied,
					rec.FilesUpdated,
					rec.FilesDeleted+rec.DirsDeleted,
					rec.Errors,
					rec.Duration,
				)
			}
			return w.Flush()
		},
	}

	historyCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of cycles to show")
	return historyCmd
}
