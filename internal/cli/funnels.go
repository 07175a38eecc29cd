package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newFunnelsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "funnels [session]",
		Short: "Show reconstructed session funnels",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var session string
			if len(args) == 1 {
				session = args[0]
			}

			return opts.withTracker(cmd.Context(), func(e *env) error {
				out := cmd.OutOrStdout()
				funnels := e.tracker.ReconstructFunnels(cmd.Context(), session)
				if len(funnels) == 0 {
					fmt.Fprintln(out, "No funnel events yet.")
					return nil
				}

				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "SESSION\tEVENTS\tVALUE\tSTARTED\tPATH")
				for _, f := range funnels {
					fmt.Fprintf(w, "%s\t%d\t%.2f\t%s\t%s\n",
						truncate(f.SessionID, 24),
						f.EventCount,
						f.TotalValue,
						f.StartedAt.Format("2006-01-02 15:04:05"),
						f.PathKey(),
					)
				}
				return w.Flush()
			})
		},
	}
}
