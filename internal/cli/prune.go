package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newPruneCmd(opts *globalOptions) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Drop old funnel events",
		Long: `Drop funnel events older than the given age. Experiment assignments and
counters are kept.

Example:
  fg prune --older-than 720h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}

			return opts.withTracker(cmd.Context(), func(e *env) error {
				n := prune(cmd.Context(), e.tracker, olderThan)
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d funnel events older than %s\n", n, olderThan)
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "age of events to drop, e.g. 720h")
	return cmd
}
