package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/stepsync/internal/devicesync"
	"github.com/roach88/stepsync/internal/engine"
	"github.com/roach88/stepsync/internal/metrics"
	"github.com/roach88/stepsync/internal/model"
	"github.com/roach88/stepsync/internal/notify"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	For time.Duration
}

// WatchEvent is one line of watch output.
type WatchEvent struct {
	Kind         string              `json:"kind"` // "progress" | "notification" | "message"
	Progress     *metrics.Snapshot   `json:"progress,omitempty"`
	Notification *model.Notification `json:"notification,omitempty"`
	Message      string              `json:"message,omitempty"`
}

// eventPrinter serializes watch output from the engine, subscriber and
// timer goroutines.
type eventPrinter struct {
	mu     sync.Mutex
	w      io.Writer
	format string
}

func (p *eventPrinter) emit(ev WatchEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.format == "json" {
		_ = json.NewEncoder(p.w).Encode(CLIResponse{Status: "ok", Data: ev})
		return
	}
	switch ev.Kind {
	case "progress":
		s := ev.Progress
		fmt.Fprintf(p.w, "today %d/%d (%d%%)  week %d/%d (%d%%)\n",
			s.TodaySteps, s.Goals.DailyTarget, s.DailyProgress,
			s.WeeklySteps, s.Goals.WeeklyTarget, s.WeeklyProgress)
	case "notification":
		fmt.Fprintf(p.w, "* %s: %s\n", ev.Notification.Title, ev.Notification.Message)
	default:
		fmt.Fprintln(p.w, ev.Message)
	}
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow progress and notifications",
		Long: `Enter the main screen: sync device steps once, then poll goal progress
every poll_interval and show new notifications, one every
notification_stagger. Each notification is shown at most once per run.

Runs until interrupted, or for --for when given.

Example:
  stepsync watch
  stepsync watch --for 10m --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.For, "for", 0, "stop after this long (default: until interrupted)")
	return cmd
}

func runWatch(opts *WatchOptions, cmd *cobra.Command) error {
	return withApp(cmd, opts.RootOptions, func(parent context.Context, a *app) error {
		if _, err := a.requireIdentity(parent); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
		defer stop()
		if opts.For > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, opts.For)
			defer cancel()
		}

		printer := &eventPrinter{w: cmd.OutOrStdout(), format: opts.Format}

		queue := notify.New(a.client, func(n model.Notification) {
			printer.emit(WatchEvent{Kind: "notification", Notification: &n})
		}, notify.WithStagger(a.cfg.NotificationStagger))
		defer queue.Stop()

		unsubscribe := a.metrics.Subscribe(func(s metrics.Snapshot) {
			printer.emit(WatchEvent{Kind: "progress", Progress: &s})
			queue.OnNotificationsFetched(ctx, s.Notifications)
		})
		defer unsubscribe()

		toaster := func(msg string) { printer.emit(WatchEvent{Kind: "message", Message: msg}) }
		eng := engine.New(a.session, a.metrics, a.reconciler(devicesync.ToasterFunc(toaster)))

		done := make(chan error, 1)
		go func() { done <- eng.Run(ctx) }()
		eng.ScreenEntered()

		ticker := time.NewTicker(a.cfg.PollInterval)
		defer ticker.Stop()

		slog.Info("watching", "poll_interval", a.cfg.PollInterval, "stagger", a.cfg.NotificationStagger)
		for {
			select {
			case <-ctx.Done():
				<-done
				slog.Info("watch stopped")
				return nil
			case <-ticker.C:
				eng.RequestRefresh()
			case err := <-done:
				if err != nil && ctx.Err() == nil {
					return WrapExitError(ExitFailure, "engine error", err)
				}
				return nil
			}
		}
	})
}
