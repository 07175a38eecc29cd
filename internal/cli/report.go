package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/headline-goat/funnel-goat/internal/funnel"
	"github.com/headline-goat/funnel-goat/internal/report"
)

func newReportCmd(opts *globalOptions) *cobra.Command {
	var (
		session string
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate a conversion report",
		Long: `Generate a conversion report from the funnel log.

The session section describes the current session, or --session when given.

Examples:
  fg report
  fg report --session s-1 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withTracker(cmd.Context(), func(e *env) error {
				var rep *report.ConversionReport
				if session != "" {
					rep = e.tracker.GenerateReportFor(cmd.Context(), session)
				} else {
					e.tracker.Init(cmd.Context())
					rep = e.tracker.GenerateReport(cmd.Context())
				}

				out := cmd.OutOrStdout()
				if asJSON {
					encoder := json.NewEncoder(out)
					encoder.SetIndent("", "  ")
					return encoder.Encode(rep)
				}
				if rep == nil {
					fmt.Fprintln(out, "No funnel data yet.")
					return nil
				}
				return printReport(out, rep)
			})
		},
	}

	cmd.Flags().StringVar(&session, "session", "", "session to describe (default current session)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func printReport(out io.Writer, rep *report.ConversionReport) error {
	sd := rep.SessionData
	perf := rep.Performance

	fmt.Fprintf(out, "GENERATED: %s\n", rep.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintln(out)

	fmt.Fprintf(out, "SESSION: %s\n", sd.SessionID)
	fmt.Fprintf(out, "  events %d, helmets viewed %d, affiliate clicks %d, value %.2f\n",
		sd.Events, sd.HelmetsViewed, sd.AffiliateClicks, sd.TotalValue)
	if len(sd.ConversionPath) > 0 {
		fmt.Fprintf(out, "  path %s\n", funnel.SessionFunnel{ConversionPath: sd.ConversionPath}.PathKey())
	}
	fmt.Fprintln(out)

	fmt.Fprintf(out, "SESSIONS: %d  CONVERTED: %d  RATE: %s\n",
		perf.TotalSessions, perf.ConvertedSessions, formatPercent(perf.ConversionRate))

	avg := "n/a"
	if perf.AvgTimeToClick != nil {
		avg = fmt.Sprintf("%.1fs", *perf.AvgTimeToClick)
	}
	fmt.Fprintf(out, "AVG TIME TO CLICK: %s\n", avg)

	path := "n/a"
	if perf.MostEffectivePath != nil {
		path = *perf.MostEffectivePath
	}
	fmt.Fprintf(out, "MOST EFFECTIVE PATH: %s\n", path)
	fmt.Fprintln(out)

	attr := rep.AttributionSummary
	fmt.Fprintf(out, "AFFILIATE CLICKS: %d\n", attr.TotalClicks)
	if len(attr.Networks) > 0 {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NETWORK\tCLICKS\tVALUE\tAVG")
		for _, n := range attr.Networks {
			fmt.Fprintf(w, "%s\t%d\t%.2f\t%.2f\n", n.Network, n.Clicks, n.TotalValue, n.AvgValue)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(out)
	}

	if len(attr.TopHelmets) > 0 {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "HELMET\tCLICKS")
		for _, h := range attr.TopHelmets {
			fmt.Fprintf(w, "%s\t%d\n", h.HelmetID, h.Clicks)
		}
		return w.Flush()
	}
	return nil
}
