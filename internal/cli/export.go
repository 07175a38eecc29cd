package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/headline-goat/funnel-goat/internal/funnel"
)

func newExportCmd(opts *globalOptions) *cobra.Command {
	var exportFormat string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export raw funnel events",
		Long: `Export the funnel log in CSV or JSON format.

Examples:
  fg export --format csv > funnel.csv
  fg export --format json > funnel.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if exportFormat != "csv" && exportFormat != "json" {
				return fmt.Errorf("invalid format: must be 'csv' or 'json'")
			}

			return opts.withTracker(cmd.Context(), func(e *env) error {
				events := e.tracker.FunnelEvents(cmd.Context())
				clickValue := e.tracker.ClickValue()

				if exportFormat == "csv" {
					return exportCSV(cmd.OutOrStdout(), events, clickValue)
				}
				return exportJSON(cmd.OutOrStdout(), events, clickValue)
			})
		},
	}

	cmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "output format (csv or json)")
	return cmd
}

func exportCSV(out io.Writer, events []funnel.Event, clickValue float64) error {
	w := csv.NewWriter(out)

	// Write header
	if err := w.Write([]string{"timestamp", "session_id", "stage", "helmet_id", "network", "value"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	// Write rows
	for _, e := range events {
		row := []string{
			e.Timestamp.UTC().Format(time.RFC3339Nano),
			e.SessionID,
			string(e.Stage),
			e.HelmetID,
			e.Network,
			strconv.FormatFloat(e.Weight(clickValue), 'f', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

type jsonExport struct {
	Events []jsonEvent `json:"events"`
}

type jsonEvent struct {
	Timestamp int64   `json:"timestamp"`
	SessionID string  `json:"session_id"`
	Stage     string  `json:"stage"`
	HelmetID  string  `json:"helmet_id,omitempty"`
	Network   string  `json:"network,omitempty"`
	Value     float64 `json:"value"`
}

func exportJSON(out io.Writer, events []funnel.Event, clickValue float64) error {
	export := jsonExport{
		Events: make([]jsonEvent, len(events)),
	}

	for i, e := range events {
		export.Events[i] = jsonEvent{
			Timestamp: e.Timestamp.UnixMilli(),
			SessionID: e.SessionID,
			Stage:     string(e.Stage),
			HelmetID:  e.HelmetID,
			Network:   e.Network,
			Value:     e.Weight(clickValue),
		}
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}
