package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wlmoi/chipster/internal/config"
	"github.com/wlmoi/chipster/internal/store"
)

func newRunsCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "List archived runs, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			arch, err := store.OpenArchive(cfg.Store.ArchivePath)
			if err != nil {
				return err
			}
			defer arch.Close()

			runs, err := arch.ListRuns(cmd.Context())
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No archived runs.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tOUTCOME\tRETRIES\tCORRECTIONS\tQUERY\tID")
			for _, r := range runs {
				query := r.Query
				if len(query) > 48 {
					query = query[:45] + "..."
				}
				fmt.Fprintf(w, "%s\t%s\t%d/%d\t%d\t%s\t%s\n",
					r.StartedAt.Format("2006-01-02 15:04"), r.Terminal,
					r.RetryCount, r.RetryBudget, r.Corrections, query, r.ID)
			}
			return w.Flush()
		},
	}
}
