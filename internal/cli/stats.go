package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cohort statistics and the students most at risk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			container, err := openContainer(cmd)
			if err != nil {
				return err
			}
			defer container.Close()

			dashboard, err := container.Cohort.Dashboard(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if wantsJSON(cmd) {
				return printJSON(out, dashboard)
			}

			stats := dashboard.Stats
			table := newTable(out)
			fmt.Fprintf(table, "students\t%d\n", stats.Total)
			fmt.Fprintf(table, "high / medium / low\t%d / %d / %d\n", stats.RedCount, stats.AmberCount, stats.GreenCount)
			fmt.Fprintf(table, "avg attendance\t%.2f%%\n", stats.AvgAttendance)
			fmt.Fprintf(table, "avg score\t%.2f\n", stats.AvgScore)
			fmt.Fprintf(table, "fee compliance\t%d%%\n", stats.FeeCompliance)
			if err := table.Flush(); err != nil {
				return err
			}

			if len(dashboard.TopAtRisk) > 0 {
				fmt.Fprintln(out, "\ntop at risk")
				table = newTable(out)
				for _, assessment := range dashboard.TopAtRisk {
					fmt.Fprintf(table, "  %s\t%s\t%s\t%d\n", assessment.StudentID, assessment.Name, assessment.Tier, assessment.CompositeScore)
				}
				if err := table.Flush(); err != nil {
					return err
				}
			}

			return printCounts(out, "reasons", dashboard.ReasonCounts)
		},
	}
}
