package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAssignCmd(opts *globalOptions) *cobra.Command {
	var peek bool

	cmd := &cobra.Command{
		Use:   "assign <experiment> <visitor>",
		Short: "Assign a visitor to a variant",
		Long: `Assign a visitor to a variant of a running experiment and print it.

Repeat calls return the same variant. With --peek the existing assignment
is shown without creating one.

Examples:
  fg assign hero-cta visitor-42
  fg assign hero-cta visitor-42 --peek`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, visitor := args[0], args[1]

			return opts.withTracker(cmd.Context(), func(e *env) error {
				var (
					variant string
					ok      bool
				)
				if peek {
					variant, ok = e.tracker.AssignedVariant(cmd.Context(), exp, visitor)
				} else {
					variant, ok = e.tracker.Assign(cmd.Context(), exp, visitor)
				}
				if !ok {
					if peek {
						return fmt.Errorf("visitor '%s' has no assignment in '%s'", visitor, exp)
					}
					return fmt.Errorf("experiment '%s' not found or not active", exp)
				}

				fmt.Fprintln(cmd.OutOrStdout(), variant)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&peek, "peek", false, "show the existing assignment without creating one")
	return cmd
}
