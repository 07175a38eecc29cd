package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/headline-goat/funnel-goat/internal/funnel"
)

func newEventCmd(opts *globalOptions) *cobra.Command {
	var (
		helmetID string
		network  string
		value    string
		at       string
	)

	cmd := &cobra.Command{
		Use:   "event <session> <stage>",
		Short: "Append a funnel event",
		Long: `Append a funnel event to the log.

Stages: homepage_visit, helmet_search, helmet_view, affiliate_click,
external_visit.

Examples:
  fg event s-1 homepage_visit
  fg event s-1 affiliate_click --helmet mips-pro --network amazon --value 12.50`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ev := funnel.Event{
				SessionID: args[0],
				Stage:     funnel.Stage(args[1]),
				HelmetID:  helmetID,
				Network:   network,
			}
			if value != "" {
				v, err := strconv.ParseFloat(value, 64)
				if err != nil {
					return fmt.Errorf("invalid value %q: %w", value, err)
				}
				ev.Value = funnel.Float(v)
			}
			if at != "" {
				ts, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at %q: %w", at, err)
				}
				ev.Timestamp = ts
			}
			if err := ev.Validate(); err != nil {
				return err
			}

			return opts.withTracker(cmd.Context(), func(e *env) error {
				if !e.tracker.RecordFunnelEvent(cmd.Context(), ev) {
					return fmt.Errorf("event was not recorded")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s for session %s\n", ev.Stage, ev.SessionID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&helmetID, "helmet", "", "helmet id")
	cmd.Flags().StringVar(&network, "network", "", "affiliate network")
	cmd.Flags().StringVar(&value, "value", "", "event value (affiliate clicks default to funnel.click_value)")
	cmd.Flags().StringVar(&at, "at", "", "event time as RFC 3339 (default now)")
	return cmd
}
