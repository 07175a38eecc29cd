package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newExperimentsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "experiments",
		Aliases: []string{"list"},
		Short:   "List configured experiments",
		Long:    `List the experiments from the config file with their status and counter totals.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withTracker(cmd.Context(), func(e *env) error {
				return runExperiments(cmd.Context(), cmd, e)
			})
		},
	}
}

func runExperiments(ctx context.Context, cmd *cobra.Command, e *env) error {
	out := cmd.OutOrStdout()
	reg := e.tracker.Registry()

	if reg.Len() == 0 {
		fmt.Fprintln(out, "No experiments configured.")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Add an experiments section to your config file, for example:")
		fmt.Fprintln(out, "  experiments:")
		fmt.Fprintln(out, "    - id: hero-cta")
		fmt.Fprintln(out, "      status: active")
		fmt.Fprintln(out, "      variants: [{id: a, weight: 1}, {id: b, weight: 1}]")
		return nil
	}

	// Print table
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tVARIANTS\tIMPRESSIONS\tCLICKS\tCONVERSIONS")

	for _, exp := range reg.List() {
		var impressions, clicks, conversions int64
		for _, r := range e.tracker.Results(ctx, exp.ID) {
			impressions += r.Impressions
			clicks += r.Clicks
			conversions += r.Conversions
		}

		variants := make([]string, len(exp.Variants))
		for i, v := range exp.Variants {
			variants[i] = fmt.Sprintf("%s(%g)", v.ID, v.Weight)
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			exp.ID,
			strings.ToUpper(string(exp.Status)),
			joinOrDash(variants),
			formatNumber(impressions),
			formatNumber(clicks),
			formatNumber(conversions),
		)
	}

	return w.Flush()
}
