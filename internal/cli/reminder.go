package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// ReminderResult is the output of the reminder commands.
type ReminderResult struct {
	Enabled bool `json:"enabled"`
}

func (r ReminderResult) String() string {
	if r.Enabled {
		return "Daily reminder: on"
	}
	return "Daily reminder: off"
}

// NewReminderCommand creates the reminder command group.
func NewReminderCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reminder",
		Short: "Toggle the daily step reminder",
		Long: `Turn the daily "log your steps" reminder on or off.

Turning it on fails when notifications are not permitted
(reminders_allowed in the configuration).`,
	}

	cmd.AddCommand(reminderSubcommand(rootOpts, "on", "Schedule the daily reminder",
		func(ctx context.Context, a *app) error { return a.reminders().Enable(ctx) }))
	cmd.AddCommand(reminderSubcommand(rootOpts, "off", "Cancel the daily reminder",
		func(ctx context.Context, a *app) error { return a.reminders().Disable(ctx) }))
	cmd.AddCommand(reminderSubcommand(rootOpts, "status", "Show whether the reminder is scheduled", nil))

	return cmd
}

func reminderSubcommand(rootOpts *RootOptions, use, short string, op func(context.Context, *app) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				if op != nil {
					if err := op(ctx, a); err != nil {
						return failure(err)
					}
				}
				on, err := a.reminders().Status(ctx)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to read reminder setting", err)
				}
				return formatter(cmd, rootOpts).Success(ReminderResult{Enabled: on})
			})
		},
	}
}
