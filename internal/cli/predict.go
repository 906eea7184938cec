package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPredictCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "predict",
		Short: "Fetch predictions for every student from EWS_PREDICTION_URL and store them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			container, err := openContainer(cmd)
			if err != nil {
				return err
			}
			defer container.Close()

			result, err := container.Prediction.RunAll(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if wantsJSON(cmd) {
				return printJSON(out, result)
			}

			fmt.Fprintf(out, "%d predictions received, %d stored\n", result.Processed, result.Stored)
			if err := printCounts(out, "levels", result.Distribution); err != nil {
				return err
			}
			return printCounts(out, "reasons", result.ReasonCounts)
		},
	}
}
