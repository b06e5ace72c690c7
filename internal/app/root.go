package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// NewRootCommand builds the fixtures command tree around a.
func NewRootCommand(a *App) *cobra.Command {
	var logLevel, logFormat string

	root := &cobra.Command{
		Use:   "fixtures",
		Short: "Unify test data from JSON, CSV, spreadsheets and databases",
		Long: `fixtures reads test cases from the configured source (TEST_DATA_SOURCE),
converts them into the canonical JSON file, and serves them to test runners
and MCP clients.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return configureLogger(a.Log, logLevel, logFormat)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text or json)")

	root.AddCommand(
		newPreprocessCmd(a),
		newRestoreCmd(a),
		newShowCmd(a),
		newWatchCmd(a),
		newMCPCmd(a),
		newEncodeSecretCmd(a),
	)
	return root
}

// Execute runs the CLI and exits non-zero when a command fails.
func Execute(version string) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	root := NewRootCommand(New())
	root.Version = version
	root.SetVersionTemplate(`{{printf "fixtures version %s\n" .Version}}`)

	if err := root.ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}

func (a *App) printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	_, err = fmt.Fprintln(a.Out, string(data))
	return err
}
