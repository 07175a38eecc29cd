package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	dbPath     string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "fg",
		Short: "Funnel Goat - experiment assignment and conversion-funnel analytics",
		Long: `🐐 Funnel Goat assigns visitors to experiment variants and turns funnel
events into conversion reports.

Running without a subcommand starts the server (same as 'fg serve').`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", getEnvOrDefault("FG_CONFIG", ""), "config file path")
	rootCmd.PersistentFlags().StringVar(&opts.dbPath, "db", getEnvOrDefault("FG_DB_PATH", ""), "SQLite database path (overrides store.sqlite.path)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (overrides log.level)")

	serveCmd := newServeCmd(opts)
	rootCmd.RunE = serveCmd.RunE // Default action is to start server
	rootCmd.Flags().AddFlagSet(serveCmd.Flags())

	rootCmd.AddCommand(
		serveCmd,
		newExperimentsCmd(opts),
		newAssignCmd(opts),
		newTrackCmd(opts),
		newEventCmd(opts),
		newFunnelsCmd(opts),
		newResultsCmd(opts),
		newReportCmd(opts),
		newExportCmd(opts),
		newPruneCmd(opts),
		newResetCmd(opts),
		newTokenCmd(opts),
	)

	return rootCmd
}

func Execute() error {
	return newRootCmd().Execute()
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
