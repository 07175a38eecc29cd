package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newTokenCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Show report URL with access token",
		Long: `Show the report URL with the running server's access token.

Use this when you've scrolled past the startup message or need to
share the report link.

Example:
  fg token`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			data, err := os.ReadFile(tokenFilePath(cfg))
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("no server running. Start with: fg serve")
				}
				return fmt.Errorf("failed to read token file: %w", err)
			}

			token := strings.TrimSpace(string(data))
			if token == "" {
				return fmt.Errorf("token file is empty. Restart the server with: fg serve")
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Report: http://localhost:%d/v1/report?token=%s\n", cfg.Server.Port, token)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Tip: Bookmark this URL or run 'fg token' anytime.")
			return nil
		},
	}
}
