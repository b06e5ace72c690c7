package app

import (
	"github.com/spf13/cobra"

	mcpserver "fixtures/internal/mcp"
	"fixtures/internal/service"
)

// newMCPCmd serves the test data over MCP on stdin/stdout. Logs go to
// stderr so they never mix with the protocol stream.
func newMCPCmd(a *App) *cobra.Command {
	var watch bool
	var schedule string
	var readOnly bool
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run a stdio MCP server exposing the test data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pre, newProvider, err := a.pipeline()
			if err != nil {
				return err
			}
			provider, err := newProvider()
			if err != nil {
				return err
			}
			defer provider.Close()

			defer a.restoreIfConverted(pre)

			deps := mcpserver.Deps{Provider: provider, Log: a.Log}
			if !readOnly {
				deps.Preprocessor = pre
			}
			srv := mcpserver.New(deps)

			if watch || schedule != "" {
				refresher := service.NewRefresher(pre, service.RefresherOptions{
					WatchFile: watch,
					Schedule:  schedule,
					Emitter:   srv,
					Log:       a.Log,
				})
				if err := refresher.Start(cmd.Context()); err != nil {
					return err
				}
				defer refresher.Stop()
			}

			return srv.ServeStdio()
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "re-run preprocessing when the source file changes")
	cmd.Flags().StringVar(&schedule, "schedule", "", "cron expression for scheduled preprocessing")
	cmd.Flags().BoolVar(&readOnly, "read-only", false, "do not expose preprocess_source and restore_canonical")
	return cmd
}
