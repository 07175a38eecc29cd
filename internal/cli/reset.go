package cli

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

func newResetCmd(opts *globalOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all analytics data",
		Long: `Delete every assignment, counter and funnel event, and start a new
session. Asks for confirmation unless --yes is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				ok, err := confirmReset()
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}

			return opts.withTracker(cmd.Context(), func(e *env) error {
				session := e.tracker.Reset(cmd.Context())
				fmt.Fprintf(cmd.OutOrStdout(), "All analytics data deleted. New session: %s\n", session.ID)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func confirmReset() (bool, error) {
	prompt := promptui.Prompt{
		Label:     "Delete all assignments, counters and funnel events",
		IsConfirm: true,
	}

	if _, err := prompt.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) || errors.Is(err, promptui.ErrInterrupt) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
