package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/stepsync/internal/api"
	"github.com/roach88/stepsync/internal/config"
	"github.com/roach88/stepsync/internal/dates"
	"github.com/roach88/stepsync/internal/devicesync"
	"github.com/roach88/stepsync/internal/gateway"
	"github.com/roach88/stepsync/internal/health"
	"github.com/roach88/stepsync/internal/metrics"
	"github.com/roach88/stepsync/internal/model"
	"github.com/roach88/stepsync/internal/reminder"
	"github.com/roach88/stepsync/internal/session"
	"github.com/roach88/stepsync/internal/store"
)

// app is the wired client core shared by every command.
type app struct {
	cfg     config.Config
	store   *store.Store
	session *session.Store
	client  *api.Client
	window  dates.Window
	metrics *metrics.Store
}

// loadConfig resolves configuration and applies flag overrides.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(config.Options{Path: opts.ConfigPath, Environment: opts.Env})
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	if opts.APIURL != "" {
		cfg.APIURL = opts.APIURL
	}
	return cfg, nil
}

// openApp opens the local database and the session. The session is not
// resolved; commands that need an identity call requireIdentity.
func openApp(ctx context.Context, opts *RootOptions) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database), 0o700); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create database directory", err)
	}
	slog.Debug("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	auth, err := api.New(cfg.APIURL, nil)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "invalid api url", err)
	}
	sess, err := session.Open(ctx, st, auth)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to open session", err)
	}
	client, err := api.New(cfg.APIURL, sess)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "invalid api url", err)
	}

	clock := opts.Clock
	if clock == nil {
		clock = dates.SystemClock{}
	}

	return &app{
		cfg:     cfg,
		store:   st,
		session: sess,
		client:  client,
		window:  dates.NewWindow(clock, cfg.DeadlineHour),
		metrics: metrics.New(client, clock),
	}, nil
}

// withApp opens the app for the duration of fn.
func withApp(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// Close releases the database.
func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// requireIdentity resolves a persisted token and returns the signed-in
// identity, or an ExitError when the session does not render the app.
func (a *app) requireIdentity(ctx context.Context) (model.Identity, error) {
	if err := a.session.Resolve(ctx); err != nil {
		slog.Debug("session resolution failed", "error", err)
	}
	if a.session.AccessDecision() != session.DecisionRenderApp {
		return model.Identity{}, &ExitError{Code: ExitFailure, ErrCode: ErrCodeNotSignedIn, Message: "not signed in: run 'stepsync login'"}
	}
	id, _ := a.session.Identity()
	return id, nil
}

// gateway returns a submission gateway for scope that refreshes the
// metrics store after each write.
func (a *app) gateway(scope gateway.Scope) *gateway.Gateway {
	writer := gateway.WriterFunc(a.client.WriteSteps)
	if scope == gateway.ScopeChallenge {
		writer = gateway.WriterFunc(a.client.WriteChallengeSteps)
	}
	return gateway.New(scope, writer, a.store, a.window, gateway.WithRefresher(a.metrics))
}

// reconciler returns a device sync reconciler over the configured health
// export.
func (a *app) reconciler(toaster devicesync.Toaster) *devicesync.Reconciler {
	provider := health.NewFileProvider(a.cfg.HealthFile)
	return devicesync.New(provider, a.gateway(gateway.ScopePersonal), a.window,
		devicesync.WithToaster(toaster))
}

// reminders returns the reminder toggle backed by the settings table.
func (a *app) reminders() *reminder.Reminders {
	return reminder.New(reminder.NewSettingsScheduler(a.store, a.cfg.RemindersAllowed))
}

// formatter returns the output formatter for cmd.
func formatter(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// parseDate reads a YYYY-MM-DD argument; empty means today.
func (a *app) parseDate(s string) (dates.Date, error) {
	if s == "" {
		return a.window.Today(), nil
	}
	d, err := dates.Parse(s)
	if err != nil {
		return dates.Date{}, NewExitError(ExitCommandError, fmt.Sprintf("invalid date %q: use YYYY-MM-DD", s))
	}
	return d, nil
}
