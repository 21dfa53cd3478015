package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded provisioning runs, newest first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return fail(err)
			}
			if !cfg.History.Enabled {
				return fail(errors.New("run history is disabled; set history.enabled in the config"))
			}

			store, err := openHistory(cfg)
			if err != nil {
				return fail(err)
			}
			defer store.Close()

			runs, err := store.ListRuns(context.Background(), limit, 0)
			if err != nil {
				return fail(fmt.Errorf("listing runs: %w", err))
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTARTED\tFIREWALL\tVDOM\tSTATUS\tERRORS\tCSV")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
					r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.Firewall, r.VDOM, r.Status, r.ErrorCount, r.CSVPath)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list (0 for all)")

	return cmd
}
