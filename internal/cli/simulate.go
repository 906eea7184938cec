package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/gema-ews-api/internal/risk"
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Preview tier counts under proposed thresholds without saving them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			patch := patchFromFlags(cmd)

			container, err := openContainer(cmd)
			if err != nil {
				return err
			}
			defer container.Close()

			simulation, err := container.Threshold.Simulate(cmd.Context(), patch)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if wantsJSON(cmd) {
				return printJSON(out, simulation)
			}

			table := newTable(out)
			fmt.Fprintln(table, "tier\tcurrent\tproposed\tdelta")
			fmt.Fprintf(table, "high\t%d\t%d\t%+d\n", simulation.Baseline.RedCount, simulation.Projected.RedCount, simulation.Delta.Red)
			fmt.Fprintf(table, "medium\t%d\t%d\t%+d\n", simulation.Baseline.AmberCount, simulation.Projected.AmberCount, simulation.Delta.Amber)
			fmt.Fprintf(table, "low\t%d\t%d\t%+d\n", simulation.Baseline.GreenCount, simulation.Projected.GreenCount, simulation.Delta.Green)
			fmt.Fprintf(table, "avg composite\t%.2f\t%.2f\t\n", simulation.Baseline.AvgCompositeScore, simulation.Projected.AvgCompositeScore)
			if err := table.Flush(); err != nil {
				return err
			}
			if advisory := simulation.ThresholdDelta; advisory != nil {
				fmt.Fprintf(out, "tiers come from %s data; threshold-based delta (advisory): high %+d, medium %+d, low %+d\n",
					simulation.Mode, advisory.Red, advisory.Amber, advisory.Green)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.Float64("attendance-min", 0, "Minimum attendance percentage")
	flags.Float64("marks-drop", 0, "Tolerated drop in average score, in points")
	flags.Int("fee-delay", 0, "Days a fee may stay overdue")
	flags.Float64("attendance-weight", 0, "Weight of the attendance signal")
	flags.Float64("assessment-weight", 0, "Weight of the assessment signal")
	flags.Float64("attempts-weight", 0, "Weight of the attempts signal")
	flags.Float64("fees-weight", 0, "Weight of the fees signal")

	return cmd
}

// patchFromFlags only sets fields whose flag was given explicitly.
func patchFromFlags(cmd *cobra.Command) risk.ThresholdPatch {
	flags := cmd.Flags()
	float := func(name string) *float64 {
		if !flags.Changed(name) {
			return nil
		}
		value, _ := flags.GetFloat64(name)
		return &value
	}

	var patch risk.ThresholdPatch
	patch.AttendanceMinimum = float("attendance-min")
	patch.MarksDropTolerance = float("marks-drop")
	patch.AttendanceWeight = float("attendance-weight")
	patch.AssessmentWeight = float("assessment-weight")
	patch.AttemptsWeight = float("attempts-weight")
	patch.FeesWeight = float("fees-weight")
	if flags.Changed("fee-delay") {
		days, _ := flags.GetInt("fee-delay")
		patch.FeeDelayDays = &days
	}
	return patch
}
