package cli

import (
	"context"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/roach88/stepsync/internal/devicesync"
)

// SyncResult is the output of the sync command.
type SyncResult struct {
	RunID     string        `json:"run_id"`
	Submitted []EntryResult `json:"submitted"`
	Skipped   []string      `json:"skipped"`
	Total     int           `json:"total"`
	Messages  []string      `json:"messages"`
}

func (r SyncResult) String() string {
	lines := append([]string{}, r.Messages...)
	for _, e := range r.Submitted {
		lines = append(lines, "  "+e.String())
	}
	return strings.Join(lines, "\n")
}

// messageLog collects toasts shown during a command.
type messageLog struct {
	mu   sync.Mutex
	msgs []string
}

func (l *messageLog) Toast(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, msg)
}

func (l *messageLog) Messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string{}, l.msgs...)
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Copy device step totals into the personal log",
		Long: `Read step totals for every editable date from the device health export
and submit each non-zero total as a device entry.

The export is the YAML file named by health_file in the configuration
(environment: STEPSYNC_HEALTH_FILE).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				id, err := a.requireIdentity(ctx)
				if err != nil {
					return err
				}

				toasts := &messageLog{}
				res, err := a.reconciler(toasts).Run(ctx, id.ID, devicesync.TriggerManual)
				if err != nil {
					return failure(err)
				}

				out := SyncResult{
					RunID:     res.RunID,
					Submitted: make([]EntryResult, 0, len(res.Submitted)),
					Skipped:   make([]string, 0, len(res.Skipped)),
					Total:     res.Total,
					Messages:  toasts.Messages(),
				}
				for _, e := range res.Submitted {
					out.Submitted = append(out.Submitted, entryResult(e))
				}
				for _, d := range res.Skipped {
					out.Skipped = append(out.Skipped, d.String())
				}
				return formatter(cmd, rootOpts).Success(out)
			})
		},
	}
}
