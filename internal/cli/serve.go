package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/headline-goat/funnel-goat/internal/server"
	"github.com/headline-goat/funnel-goat/internal/tracker"
)

// pruneInterval is how often serve re-applies funnel.retention.
const pruneInterval = time.Hour

func newServeCmd(opts *globalOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the funnel-goat HTTP server.

The server provides:
  - Tracking script at /fg.js
  - Assignment, counter and funnel event endpoints
  - Token-protected report, results and funnel endpoints
  - Health check endpoint

Example:
  fg serve --port 8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return opts.withTracker(ctx, func(e *env) error {
				if port == 0 {
					port = e.cfg.Server.Port
				}
				return runServe(ctx, cmd, e, port)
			})
		},
	}

	defaultPort := 0
	if p := os.Getenv("FG_PORT"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil {
			defaultPort = parsed
		}
	}
	cmd.Flags().IntVarP(&port, "port", "p", defaultPort, "port to listen on (overrides server.port)")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, e *env, port int) error {
	retention, err := e.cfg.Funnel.RetentionWindow()
	if err != nil {
		return err
	}

	session := e.tracker.Init(ctx)
	e.logger.Info("session ready", zap.String("session_id", session.ID))

	if retention > 0 {
		prune(ctx, e.tracker, retention)
	}

	gin.SetMode(e.cfg.Server.Mode)
	srv := server.New(e.tracker, port, tokenFilePath(e.cfg), e.logger.Named("server"))

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "🐐 funnel-goat listening on http://localhost:%d\n", port)
	fmt.Fprintf(out, "   Script:  <script src=\"http://localhost:%d/fg.js\" defer></script>\n", port)
	fmt.Fprintf(out, "   Report:  http://localhost:%d/v1/report?token=%s\n", port, srv.Token())
	fmt.Fprintln(out)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	if retention > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(pruneInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					prune(gctx, e.tracker, retention)
				}
			}
		})
	}

	return g.Wait()
}

func prune(ctx context.Context, t *tracker.Tracker, retention time.Duration) int {
	return t.Prune(ctx, time.Now().Add(-retention))
}
