package cli

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/noah-isme/gema-ews-api/internal/bootstrap"
	"github.com/noah-isme/gema-ews-api/internal/config"
)

// Execute runs the ewsctl command tree against os.Args.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ewsctl",
		Short:         "Operate the GEMA early-warning store",
		Long:          "ewsctl loads student sheets, recomputes risk tiers and prints cohort statistics without going through the HTTP API.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().String("db", "", "Database URL, sqlite://path or a Postgres DSN (overrides EWS_DATABASE_URL)")
	root.PersistentFlags().Bool("json", false, "Print results as JSON")
	root.PersistentFlags().BoolP("verbose", "v", false, "Log service activity to stderr")

	root.AddCommand(newIngestCmd())
	root.AddCommand(newReclassifyCmd())
	root.AddCommand(newStatsCmd())
	root.AddCommand(newSimulateCmd())
	root.AddCommand(newPredictCmd())

	return root
}

// openContainer resolves configuration with --db taking priority over the environment.
func openContainer(cmd *cobra.Command) (*bootstrap.Container, error) {
	cfg, err := config.LoadTooling()
	if err != nil {
		return nil, err
	}
	if url, _ := cmd.Flags().GetString("db"); url != "" {
		cfg.DatabaseURL = url
	}

	level := zerolog.WarnLevel
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	return bootstrap.Build(cfg, logger)
}

func wantsJSON(cmd *cobra.Command) bool {
	enabled, _ := cmd.Flags().GetBool("json")
	return enabled
}
