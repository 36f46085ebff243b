package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/nhle/rfp-inbound/internal/app"
	"github.com/nhle/rfp-inbound/internal/keys"
	"github.com/nhle/rfp-inbound/internal/mailbox"
	"github.com/nhle/rfp-inbound/internal/model"
	appsync "github.com/nhle/rfp-inbound/internal/sync"
	"github.com/nhle/rfp-inbound/internal/ui/syncview"
)

var errRunFailed = errors.New("sync run failed")

func interactive() bool {
	return isatty.IsTerminal(os.Stdout.Fd())
}

func newSyncCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one fetch, process and acknowledge cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runOnce(ctx, a.Syncer, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the run summary as JSON")
	return cmd
}

func newReplayCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "replay [mbox file]",
		Short: "Process vendor replies from an mbox export instead of the live mailbox",
		Long:  "Process vendor replies from an mbox export. The export is read-only, so acknowledged is always 0.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			// The mbox backend ignores the credential but a run requires one.
			a, err := openApp(app.Options{
				Dialer: mailbox.NewMboxDialer(path, nil),
				Creds:  app.FixedCredential{Username: path, Secret: "replay"},
			})
			if err != nil {
				return err
			}
			defer a.Close()

			return runOnce(cmd.Context(), a.Syncer, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the run summary as JSON")
	return cmd
}

// runOnce executes a single run, with a spinner when attached to a
// terminal. A failed run is reported as an error so the exit code is
// non-zero.
func runOnce(ctx context.Context, r appsync.Runner, asJSON bool) error {
	var summary model.RunSummary

	if asJSON || !interactive() {
		summary = r.Run(ctx)
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(summary); err != nil {
				return err
			}
		} else {
			fmt.Println(syncview.RenderSummary(summary))
		}
	} else {
		final, err := tea.NewProgram(syncview.NewRunModel(ctx, r)).Run()
		if err != nil {
			return fmt.Errorf("running sync view: %w", err)
		}
		s, ok := final.(syncview.RunModel).Summary()
		if !ok {
			return errors.New("sync interrupted")
		}
		summary = s
	}

	if summary.Status == model.RunFailed {
		return fmt.Errorf("%w: %s", errRunFailed, summary.Error)
	}
	return nil
}

func newWatchCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Sync on an interval until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			if interval <= 0 {
				interval = model.Seconds(a.Config.Watch.IntervalSec, 0)
			}
			poller := appsync.NewPoller(a.Syncer, interval, a.Logger("watch"))
			poller.Start()
			defer poller.Stop()

			if interactive() {
				_, err := tea.NewProgram(syncview.NewWatchModel(poller, keys.DefaultKeyMap())).Run()
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := a.Logger("watch")
			for {
				select {
				case <-ctx.Done():
					return nil
				case s := <-poller.Results():
					logger.Infof("run %s: processed=%d fetched=%d", s.Status, s.ProcessedCount, s.Fetched)
				}
			}
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "time between runs (default from config)")
	return cmd
}
