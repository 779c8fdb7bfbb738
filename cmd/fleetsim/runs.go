package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/elektrokombinacija/warehouse-fleet/internal/metrics"
)

func runsCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List runs stored in the SQLite history",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := metrics.OpenStore(dbPath)
			if err != nil {
				return fmt.Errorf("open run store: %w", err)
			}
			defer store.Close()

			runs, err := store.Runs(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTARTED\tSCENARIO\tPLANNER\tSTOP\tTICKS\tDELIVERED\tCOLLISIONS")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
					r.ID, r.StartedAt.Format(time.RFC3339), r.Scenario, r.Planner, r.StopReason,
					r.Ticks, r.Summary.DeliveriesSucceeded, r.Summary.Collisions)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite run history path")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}
