package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/headline-goat/funnel-goat/internal/experiment"
)

func newResultsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "results <experiment>",
		Short: "Show per-variant results for an experiment",
		Long: `Show impressions, clicks, conversions and revenue per variant.

Click rate is clicks/impressions; conversion rate is conversions/clicks.
Variants marked (!) have clicks without impressions or conversions without
clicks, which usually means a page is missing a tracking call.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			return opts.withTracker(cmd.Context(), func(e *env) error {
				exp, known := e.tracker.Registry().Get(name)
				results := e.tracker.Results(cmd.Context(), name)
				if !known && len(results) == 0 {
					return fmt.Errorf("experiment '%s' not found", name)
				}

				printResults(cmd, name, exp, known, results)
				return nil
			})
		},
	}
}

func printResults(cmd *cobra.Command, name string, exp experiment.Experiment, known bool, results map[string]experiment.VariantResult) {
	out := cmd.OutOrStdout()

	// Print header
	fmt.Fprintf(out, "EXPERIMENT: %s\n", name)
	if known {
		if exp.Name != "" {
			fmt.Fprintf(out, "NAME: %s\n", exp.Name)
		}
		fmt.Fprintf(out, "STATUS: %s\n", exp.Status)
	} else {
		fmt.Fprintln(out, "STATUS: not configured")
	}
	fmt.Fprintln(out)

	// Print table header
	fmt.Fprintln(out, "VARIANT           IMPR     CLICKS   CTR      CONV     CVR      REVENUE")
	fmt.Fprintln(out, strings.Repeat("─", 72))

	for _, id := range variantOrder(exp, results) {
		r := results[id]

		indicator := ""
		if r.Anomaly {
			indicator = " (!)"
		}

		fmt.Fprintf(out, "%-16s  %-7s  %-7s  %-7s  %-7s  %-7s  %s%s\n",
			truncate(id, 16),
			formatNumber(r.Impressions),
			formatNumber(r.Clicks),
			formatPercent(r.ClickRate),
			formatNumber(r.Conversions),
			formatPercent(r.ConversionRate),
			r.RevenueTotal.StringFixed(2),
			indicator,
		)
	}
}

// variantOrder lists registry variants first, then any other recorded
// variants alphabetically.
func variantOrder(exp experiment.Experiment, results map[string]experiment.VariantResult) []string {
	order := make([]string, 0, len(results))
	for _, v := range exp.Variants {
		order = append(order, v.ID)
	}

	var extra []string
	for id := range results {
		if !exp.HasVariant(id) {
			extra = append(extra, id)
		}
	}
	slices.Sort(extra)

	return append(order, extra...)
}
