package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/stepsync/internal/gateway"
	"github.com/roach88/stepsync/internal/model"
)

// EntryResult is one cached step entry.
type EntryResult struct {
	Date        string    `json:"date"`
	ChallengeID int64     `json:"challenge_id,omitempty"`
	StepCount   int       `json:"step_count"`
	Source      string    `json:"source"`
	Version     int64     `json:"version"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (r EntryResult) String() string {
	if r.ChallengeID != 0 {
		return fmt.Sprintf("%s  %8d steps  challenge %d  (%s)", r.Date, r.StepCount, r.ChallengeID, r.Source)
	}
	return fmt.Sprintf("%s  %8d steps  (%s)", r.Date, r.StepCount, r.Source)
}

func entryResult(e model.StepEntry) EntryResult {
	return EntryResult{
		Date:        e.Date.String(),
		ChallengeID: e.ChallengeID,
		StepCount:   e.StepCount,
		Source:      string(e.Source),
		Version:     e.Version,
		UpdatedAt:   e.UpdatedAt.UTC(),
	}
}

// EntryList is the output of steps list.
type EntryList struct {
	Entries []EntryResult `json:"entries"`
}

func (l EntryList) String() string {
	if len(l.Entries) == 0 {
		return "No entries."
	}
	lines := make([]string, len(l.Entries))
	for i, e := range l.Entries {
		lines[i] = e.String()
	}
	return strings.Join(lines, "\n")
}

// SubmitOptions holds flags shared by the submit commands.
type SubmitOptions struct {
	*RootOptions
	Date string
}

// NewStepsCommand creates the steps command group.
func NewStepsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "steps",
		Short: "Record and list personal step counts",
	}
	cmd.AddCommand(newStepsSubmitCommand(rootOpts))
	cmd.AddCommand(newStepsListCommand(rootOpts))
	return cmd
}

func newStepsSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SubmitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "submit <count>",
		Short: "Record today's (or yesterday's) step count",
		Long: `Record a step count for one day. The count replaces any earlier value
for that day.

Today is always editable. Yesterday is editable until the configured
deadline hour; every other date is rejected without contacting the backend.

Example:
  stepsync steps submit 8500
  stepsync steps submit 12000 --date 2026-02-02`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(opts, cmd, gateway.ScopePersonal, 0, args[0])
		},
	}
	cmd.Flags().StringVar(&opts.Date, "date", "", "day to record, YYYY-MM-DD (default: today)")
	return cmd
}

func newStepsListCommand(rootOpts *RootOptions) *cobra.Command {
	var challengeID int64

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached step entries",
		Long: `List the step entries stored locally for the signed-in user, newest
first. Each date appears once.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if challengeID < 0 {
				return NewExitError(ExitCommandError, "invalid challenge id")
			}
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				id, err := a.requireIdentity(ctx)
				if err != nil {
					return err
				}
				entries, err := a.store.ListEntries(ctx, id.ID, challengeID)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to read entries", err)
				}
				list := EntryList{Entries: make([]EntryResult, 0, len(entries))}
				for _, e := range entries {
					list.Entries = append(list.Entries, entryResult(e))
				}
				return formatter(cmd, rootOpts).Success(list)
			})
		},
	}
	cmd.Flags().Int64Var(&challengeID, "challenge", 0, "list a challenge's entries instead of the personal log")
	return cmd
}

// NewChallengeCommand creates the challenge command group.
func NewChallengeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "challenge",
		Short: "Record step counts for a challenge",
	}

	opts := &SubmitOptions{RootOptions: rootOpts}
	submit := &cobra.Command{
		Use:   "submit <challenge-id> <count>",
		Short: "Record a challenge step count",
		Long: `Record a step count for one day of a challenge. The same edit window
applies as for personal entries.

Example:
  stepsync challenge submit 7 9000`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			challengeID, err := parseID("challenge id", args[0])
			if err != nil {
				return err
			}
			return runSubmit(opts, cmd, gateway.ScopeChallenge, challengeID, args[1])
		},
	}
	submit.Flags().StringVar(&opts.Date, "date", "", "day to record, YYYY-MM-DD (default: today)")
	cmd.AddCommand(submit)

	return cmd
}

func runSubmit(opts *SubmitOptions, cmd *cobra.Command, scope gateway.Scope, challengeID int64, countText string) error {
	count, err := gateway.ParseCount(countText)
	if err != nil {
		return failure(err)
	}

	return withApp(cmd, opts.RootOptions, func(ctx context.Context, a *app) error {
		date, err := a.parseDate(opts.Date)
		if err != nil {
			return err
		}
		if !a.window.IsEditable(date) {
			return failure(&gateway.SubmitError{Code: gateway.CodeEditWindowClosed, Date: date.String()})
		}
		id, err := a.requireIdentity(ctx)
		if err != nil {
			return err
		}

		entry, err := a.gateway(scope).Submit(ctx, gateway.Submission{
			Owner:       id.ID,
			Date:        date,
			ChallengeID: challengeID,
			StepCount:   count,
			Source:      model.SourceManual,
		})
		if err != nil {
			return failure(err)
		}
		return formatter(cmd, opts.RootOptions).Success(entryResult(entry))
	})
}
