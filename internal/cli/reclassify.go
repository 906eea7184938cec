package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReclassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reclassify",
		Short: "Recompute and store every student's risk tier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			container, err := openContainer(cmd)
			if err != nil {
				return err
			}
			defer container.Close()

			result, err := container.Students.Reclassify(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if wantsJSON(cmd) {
				return printJSON(out, result)
			}

			fmt.Fprintf(out, "%d students (%s mode): %d changed tier, %d escalated to high risk\n",
				result.Total, result.Mode, result.Changed, result.Escalated)
			fmt.Fprintf(out, "high %d, medium %d, low %d\n", result.Stats.RedCount, result.Stats.AmberCount, result.Stats.GreenCount)
			return nil
		},
	}
}
