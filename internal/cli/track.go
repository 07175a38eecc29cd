package cli

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newTrackCmd(opts *globalOptions) *cobra.Command {
	var revenue string

	cmd := &cobra.Command{
		Use:   "track <experiment> <variant> <impression|click|conversion>",
		Short: "Record an experiment counter",
		Long: `Record an impression, click or conversion for a variant.

Examples:
  fg track hero-cta b click
  fg track hero-cta b conversion --revenue 24.99`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, variant, kind := args[0], args[1], args[2]

			amount := decimal.Zero
			if revenue != "" {
				if kind != "conversion" {
					return fmt.Errorf("--revenue only applies to conversions")
				}
				parsed, err := decimal.NewFromString(revenue)
				if err != nil {
					return fmt.Errorf("invalid revenue %q: %w", revenue, err)
				}
				amount = parsed
			}

			return opts.withTracker(cmd.Context(), func(e *env) error {
				ctx := cmd.Context()
				switch kind {
				case "impression":
					e.tracker.RecordImpression(ctx, exp, variant)
				case "click":
					e.tracker.RecordClick(ctx, exp, variant)
				case "conversion":
					e.tracker.RecordConversion(ctx, exp, variant, amount)
				default:
					return fmt.Errorf("invalid kind: must be 'impression', 'click' or 'conversion'")
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s for %s/%s\n", kind, exp, variant)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&revenue, "revenue", "", "conversion revenue, e.g. 24.99")
	return cmd
}
