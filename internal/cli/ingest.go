package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/noah-isme/gema-ews-api/internal/service"
)

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <students|attendance|marks|fees|uploads> <file.csv>",
		Short: "Merge a CSV sheet into the student store",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := service.ParseIngestKind(args[0])
			if err != nil {
				return err
			}

			file, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer file.Close()

			container, err := openContainer(cmd)
			if err != nil {
				return err
			}
			defer container.Close()

			result, err := container.Ingest.Ingest(cmd.Context(), kind, filepath.Base(args[1]), file)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if wantsJSON(cmd) {
				return printJSON(out, result)
			}

			fmt.Fprintf(out, "%s: %d rows, %d created, %d updated\n", result.FileName, result.RowsProcessed, result.Created, result.Updated)
			for _, issue := range result.Issues {
				fmt.Fprintf(out, "  ! %s\n", issue)
			}
			if result.Reclassified != nil {
				fmt.Fprintf(out, "reclassified %d students, %d changed tier, %d escalated\n",
					result.Reclassified.Total, result.Reclassified.Changed, result.Reclassified.Escalated)
			}
			return nil
		},
	}
}
