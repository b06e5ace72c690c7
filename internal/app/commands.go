package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"fixtures/internal/domain"
	"fixtures/internal/secret"
	"fixtures/internal/service"
)

// ── preprocess ─────────────────────────────────────────────

func newPreprocessCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "preprocess",
		Short: "Convert the configured source into the canonical JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pre, _, err := a.pipeline()
			if err != nil {
				return err
			}
			result, err := pre.Preprocess(cmd.Context())
			if err != nil {
				return err
			}
			return a.printJSON(result)
		},
	}
}

// ── restore ────────────────────────────────────────────────

// restore never fails the process: a missing backup or a failed
// restore is reported and logged only.
func newRestoreCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "Put the backed-up canonical JSON file back in place",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pre, _, err := a.pipeline()
			if err != nil {
				a.Log.WithError(err).Warn("cannot resolve configuration, nothing restored")
				return nil
			}
			if pre.RestoreCanonical(cmd.Context()) {
				fmt.Fprintln(a.Out, "canonical file restored")
			} else {
				fmt.Fprintln(a.Out, "nothing restored")
			}
			return nil
		},
	}
}

// ── show ───────────────────────────────────────────────────

type showOptions struct {
	source  string
	enabled bool
	id      string
	runner  bool
}

func newShowCmd(a *App) *cobra.Command {
	var opts showOptions
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print test data from the bound source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.show(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.source, "source", "", "read this source kind instead of the bound one")
	cmd.Flags().BoolVar(&opts.enabled, "enabled", false, "only print enabled records")
	cmd.Flags().StringVar(&opts.id, "id", "", "print the record with this id")
	cmd.Flags().BoolVar(&opts.runner, "runner", false, "print the runner payload (metadata and records)")
	cmd.MarkFlagsMutuallyExclusive("enabled", "id", "runner")
	return cmd
}

func (a *App) show(cmd *cobra.Command, opts showOptions) error {
	_, newProvider, err := a.pipeline()
	if err != nil {
		return err
	}
	provider, err := newProvider()
	if err != nil {
		return err
	}
	defer provider.Close()

	if opts.source != "" {
		kind, ok := domain.ParseSourceKind(opts.source)
		if !ok {
			return fmt.Errorf("unknown source %q", opts.source)
		}
		other, err := provider.ForSource(kind)
		if err != nil {
			return err
		}
		defer other.Close()
		provider = other
	}

	ctx := cmd.Context()
	switch {
	case opts.id != "":
		record, err := provider.GetTestDataByID(ctx, opts.id)
		if err != nil {
			return err
		}
		if record == nil {
			return fmt.Errorf("no test case with id %q", opts.id)
		}
		return a.printJSON(record)
	case opts.enabled:
		records, err := provider.GetEnabledTestData(ctx)
		if err != nil {
			return err
		}
		return a.printJSON(records)
	case opts.runner:
		data, err := provider.ToRunnerData(ctx)
		if err != nil {
			return err
		}
		return a.printJSON(data)
	default:
		result, err := provider.GetTestData(ctx)
		if err != nil {
			return err
		}
		return a.printJSON(result)
	}
}

// ── watch ──────────────────────────────────────────────────

func newWatchCmd(a *App) *cobra.Command {
	var schedule string
	var noFile bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Preprocess now, then again whenever the source changes or the schedule fires",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if noFile && schedule == "" {
				return errors.New("nothing to watch: drop --no-file or set --schedule")
			}
			pre, _, err := a.pipeline()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if _, err := pre.Preprocess(ctx); err != nil {
				return err
			}
			defer a.restoreIfConverted(pre)

			refresher := service.NewRefresher(pre, service.RefresherOptions{
				WatchFile: !noFile,
				Schedule:  schedule,
				Log:       a.Log,
			})
			if err := refresher.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			refresher.Stop()
			refresher.WaitRunning(context.Background())
			return nil
		},
	}
	cmd.Flags().StringVar(&schedule, "schedule", "", `cron expression, e.g. "@every 5m"`)
	cmd.Flags().BoolVar(&noFile, "no-file", false, "do not watch the source file")
	return cmd
}

// ── encode-secret ──────────────────────────────────────────

func newEncodeSecretCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "encode-secret <value>",
		Short: "Print the Base64 form of a credential for DB_PASSWORD or the db config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(a.Out, secret.Encode(args[0]))
			return err
		},
	}
}
