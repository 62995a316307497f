package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/stepsync/internal/metrics"
)

// GoalsResult wraps a metrics snapshot for display.
type GoalsResult struct {
	metrics.Snapshot
}

func (r GoalsResult) String() string {
	var b strings.Builder
	g := r.Goals
	status := "active"
	if g.IsPaused {
		status = "paused"
	}
	fmt.Fprintf(&b, "Today:   %d / %d steps (%d%%)\n", r.TodaySteps, g.DailyTarget, r.DailyProgress)
	fmt.Fprintf(&b, "Week:    %d / %d steps (%d%%)\n", r.WeeklySteps, g.WeeklyTarget, r.WeeklyProgress)
	fmt.Fprintf(&b, "Streak:  %d days (longest %d)\n", g.CurrentStreak, g.LongestStreak)
	fmt.Fprintf(&b, "Goals:   %s", status)
	if n := len(r.Notifications); n > 0 {
		fmt.Fprintf(&b, "\nPending notifications: %d", n)
	}
	return b.String()
}

// NewGoalsCommand creates the goals command group.
func NewGoalsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goals",
		Short: "Show and manage goal targets",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show today's and this week's progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGoals(rootOpts, cmd, func(ctx context.Context, m *metrics.Store) error {
				return m.Refresh(ctx)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <daily> <weekly>",
		Short: "Set daily and weekly step targets",
		Long: `Set the daily and weekly step targets. Both must be positive.

Example:
  stepsync goals set 10000 70000`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			daily, err := strconv.Atoi(args[0])
			if err != nil {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid daily target %q", args[0]))
			}
			weekly, err := strconv.Atoi(args[1])
			if err != nil {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid weekly target %q", args[1]))
			}
			return runGoals(rootOpts, cmd, func(ctx context.Context, m *metrics.Store) error {
				return m.UpdateTargets(ctx, daily, weekly)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "pause",
		Short: "Pause goal tracking",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGoals(rootOpts, cmd, func(ctx context.Context, m *metrics.Store) error {
				return m.Pause(ctx)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "resume",
		Short: "Resume goal tracking",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGoals(rootOpts, cmd, func(ctx context.Context, m *metrics.Store) error {
				return m.Resume(ctx)
			})
		},
	})

	return cmd
}

// runGoals applies op to the metrics store and prints the resulting
// snapshot.
func runGoals(rootOpts *RootOptions, cmd *cobra.Command, op func(context.Context, *metrics.Store) error) error {
	return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
		if _, err := a.requireIdentity(ctx); err != nil {
			return err
		}
		if err := op(ctx, a.metrics); err != nil {
			return failure(err)
		}
		return formatter(cmd, rootOpts).Success(GoalsResult{Snapshot: a.metrics.Snapshot()})
	})
}
