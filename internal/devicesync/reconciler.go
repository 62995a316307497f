package devicesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/stepsync/internal/dates"
	"github.com/roach88/stepsync/internal/gateway"
	"github.com/roach88/stepsync/internal/health"
	"github.com/roach88/stepsync/internal/model"
)

var (
	// ErrSyncInProgress is returned when a run is requested while another
	// is active.
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrProviderUnavailable means the device has no health provider.
	ErrProviderUnavailable = errors.New("health provider unavailable")

	// ErrNotAuthorized means the user denied access to step data.
	ErrNotAuthorized = errors.New("health data access not authorized")
)

// Toast messages shown for manual runs.
const (
	MsgInProgress = "sync already in progress"
	MsgFailed     = "failed to sync"
)

// SyncedMessage is the toast for a successful manual run.
func SyncedMessage(total int) string {
	return fmt.Sprintf("synced %d steps", total)
}

// Trigger says what started a run.
type Trigger int

const (
	// TriggerAuto is the run on entering the main screen.
	TriggerAuto Trigger = iota
	// TriggerManual is a user-requested run.
	TriggerManual
)

func (t Trigger) String() string {
	if t == TriggerManual {
		return "manual"
	}
	return "auto"
}

// Submitter writes step counts. *gateway.Gateway implements it.
type Submitter interface {
	Submit(ctx context.Context, s gateway.Submission) (model.StepEntry, error)
}

// Toaster shows a transient message.
type Toaster interface {
	Toast(msg string)
}

// ToasterFunc adapts a function to Toaster.
type ToasterFunc func(msg string)

// Toast calls f.
func (f ToasterFunc) Toast(msg string) {
	f(msg)
}

// IDGenerator produces run identifiers for logs and results.
type IDGenerator interface {
	NewID() string
}

type uuidV7 struct{}

func (uuidV7) NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Result describes one completed run.
type Result struct {
	RunID     string            `json:"run_id"`
	Trigger   string            `json:"trigger"`
	Submitted []model.StepEntry `json:"submitted"`
	Skipped   []dates.Date      `json:"skipped"`
	Total     int               `json:"total"`
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithToaster sets where manual-run messages go.
func WithToaster(t Toaster) Option {
	return func(r *Reconciler) {
		r.toaster = t
	}
}

// WithIDGenerator overrides the run id source (default UUIDv7).
func WithIDGenerator(g IDGenerator) Option {
	return func(r *Reconciler) {
		r.ids = g
	}
}

// Reconciler runs device syncs.
//
// Thread-safety: Run is safe for concurrent use; concurrent calls beyond
// the first fail with ErrSyncInProgress.
type Reconciler struct {
	provider health.Provider
	submit   Submitter
	window   dates.Window
	toaster  Toaster
	ids      IDGenerator

	busy atomic.Bool
}

// New creates a Reconciler.
func New(provider health.Provider, submit Submitter, window dates.Window, opts ...Option) *Reconciler {
	r := &Reconciler{
		provider: provider,
		submit:   submit,
		window:   window,
		toaster:  ToasterFunc(func(string) {}),
		ids:      uuidV7{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Busy reports whether a run is in flight.
func (r *Reconciler) Busy() bool {
	return r.busy.Load()
}

// Run performs one reconciliation for owner.
//
// Every failure is returned to the caller. Only manual runs surface
// failures (and successes) to the user via the toaster.
func (r *Reconciler) Run(ctx context.Context, owner int64, trigger Trigger) (Result, error) {
	if !r.busy.CompareAndSwap(false, true) {
		slog.Info("device sync skipped", "trigger", trigger.String(), "reason", "in progress")
		if trigger == TriggerManual {
			r.toast(ctx, MsgInProgress)
		}
		return Result{}, ErrSyncInProgress
	}
	defer r.busy.Store(false)

	res := Result{RunID: r.ids.NewID(), Trigger: trigger.String()}
	log := slog.With("run_id", res.RunID, "trigger", res.Trigger)

	err := r.run(ctx, owner, &res, log)
	if err != nil {
		log.Warn("device sync failed", "synced", res.Total, "error", err)
		if trigger == TriggerManual {
			r.toast(ctx, MsgFailed)
		}
		return res, err
	}

	log.Info("device sync complete", "synced", res.Total, "entries", len(res.Submitted))
	if trigger == TriggerManual {
		r.toast(ctx, SyncedMessage(res.Total))
	}
	return res, nil
}

func (r *Reconciler) run(ctx context.Context, owner int64, res *Result, log *slog.Logger) error {
	if !r.provider.IsAvailable(ctx) {
		return ErrProviderUnavailable
	}
	ok, err := r.provider.RequestAuthorization(ctx, []health.Scope{health.ScopeStepCount})
	if err != nil {
		return fmt.Errorf("request authorization: %w", err)
	}
	if !ok {
		return ErrNotAuthorized
	}

	candidates := r.window.EditableDates()
	totals := make([]int, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	for i, d := range candidates {
		i, d := i, d
		g.Go(func() error {
			n, err := r.provider.TotalSteps(gctx, d)
			if err != nil {
				return fmt.Errorf("query %s: %w", d, err)
			}
			totals[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var errs []error
	for i, d := range candidates {
		n := totals[i]
		if n <= 0 {
			log.Debug("skipping empty device total", "date", d.String(), "steps", n)
			res.Skipped = append(res.Skipped, d)
			continue
		}
		// The deadline may have passed since the candidates were built.
		if !r.window.IsEditable(d) {
			log.Debug("skipping closed date", "date", d.String())
			res.Skipped = append(res.Skipped, d)
			continue
		}

		entry, err := r.submit.Submit(ctx, gateway.Submission{
			Owner:     owner,
			Date:      d,
			StepCount: n,
			Source:    model.SourceDevice,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("submit %s: %w", d, err))
			continue
		}
		res.Submitted = append(res.Submitted, entry)
		res.Total += entry.StepCount
	}
	return errors.Join(errs...)
}

// toast shows msg unless the run's screen is gone.
func (r *Reconciler) toast(ctx context.Context, msg string) {
	if ctx.Err() != nil {
		return
	}
	r.toaster.Toast(msg)
}
