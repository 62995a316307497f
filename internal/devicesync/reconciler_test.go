package devicesync

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/roach88/stepsync/internal/api"
	"github.com/roach88/stepsync/internal/dates"
	"github.com/roach88/stepsync/internal/gateway"
	"github.com/roach88/stepsync/internal/model"
	"github.com/roach88/stepsync/internal/store"
	"github.com/roach88/stepsync/internal/testutil"
)

var (
	today     = dates.MustParse("2026-02-03")
	yesterday = dates.MustParse("2026-02-02")
)

type fixture struct {
	clock      *testutil.WallClock
	backend    *testutil.Backend
	db         *store.Store
	owner      int64
	health     *testutil.FakeHealth
	toasts     *testutil.Toasts
	gw         *gateway.Gateway
	reconciler *Reconciler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := testutil.MustWallClock("2026-02-03T09:00:00")
	b := testutil.NewBackend(t, clock)
	owner := b.AddUser("ada@example.com", "pw", "Ada")

	db, err := store.Open(filepath.Join(t.TempDir(), "stepsync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	c, err := api.New(b.URL(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: b.IssueToken(owner)}),
		api.WithTransport(b.Client().Transport))
	require.NoError(t, err)

	window := dates.NewWindow(clock, dates.DefaultDeadlineHour)
	gw := gateway.New(gateway.ScopePersonal, gateway.WriterFunc(c.WriteSteps), db, window)
	h := testutil.NewFakeHealth()
	toasts := &testutil.Toasts{}

	return &fixture{
		clock:   clock,
		backend: b,
		db:      db,
		owner:   owner,
		health:  h,
		toasts:  toasts,
		gw:      gw,
		reconciler: New(h, gw, window,
			WithToaster(toasts),
			WithIDGenerator(testutil.NewSequenceIDs("run-1", "run-2", "run-3"))),
	}
}

func (f *fixture) cached(t *testing.T, d dates.Date) (model.StepEntry, bool) {
	t.Helper()
	e, err := f.db.ReadEntry(context.Background(), model.EntryKey{Owner: f.owner, Date: d})
	if errors.Is(err, sql.ErrNoRows) {
		return model.StepEntry{}, false
	}
	require.NoError(t, err)
	return e, true
}

func TestRun_DeviceEntryCached(t *testing.T) {
	f := newFixture(t)
	f.health.SetSteps(today, 8500)

	res, err := f.reconciler.Run(context.Background(), f.owner, TriggerAuto)
	require.NoError(t, err)
	assert.Equal(t, "run-1", res.RunID)
	assert.Equal(t, 8500, res.Total)

	entry, ok := f.cached(t, today)
	require.True(t, ok)
	assert.Equal(t, model.SourceDevice, entry.Source)
	assert.Equal(t, 8500, entry.StepCount)
	assert.Empty(t, f.toasts.Messages(), "auto runs are silent")
}

func TestRun_YesterdayBeforeDeadline(t *testing.T) {
	f := newFixture(t)
	f.health.SetSteps(today, 3000)
	f.health.SetSteps(yesterday, 9740)

	res, err := f.reconciler.Run(context.Background(), f.owner, TriggerManual)
	require.NoError(t, err)
	assert.Len(t, res.Submitted, 2)
	assert.Equal(t, 12740, res.Total)
	assert.Equal(t, []string{"synced 12740 steps"}, f.toasts.Messages())
}

func TestRun_NeverSubmitsClosedDate(t *testing.T) {
	f := newFixture(t)
	f.clock.Set(testutil.MustLocalTime("2026-02-03T13:00:00"))
	f.health.SetSteps(today, 3000)
	f.health.SetSteps(yesterday, 9999)

	res, err := f.reconciler.Run(context.Background(), f.owner, TriggerAuto)
	require.NoError(t, err)
	assert.Equal(t, 3000, res.Total)
	assert.Equal(t, []dates.Date{today}, f.health.Queried())

	_, ok := f.cached(t, yesterday)
	assert.False(t, ok)
	_, _, ok = f.backend.Steps(model.EntryKey{Owner: f.owner, Date: yesterday})
	assert.False(t, ok)
}

func TestRun_SkipsZeroKeepsManualEntry(t *testing.T) {
	f := newFixture(t)
	_, err := f.gw.Submit(context.Background(), gateway.Submission{Owner: f.owner, Date: yesterday, StepCount: 4000})
	require.NoError(t, err)
	f.health.SetSteps(today, 1200)

	res, err := f.reconciler.Run(context.Background(), f.owner, TriggerAuto)
	require.NoError(t, err)
	assert.Equal(t, []dates.Date{yesterday}, res.Skipped)

	entry, ok := f.cached(t, yesterday)
	require.True(t, ok)
	assert.Equal(t, 4000, entry.StepCount)
	assert.Equal(t, model.SourceManual, entry.Source)
}

func TestRun_ProviderUnavailable(t *testing.T) {
	f := newFixture(t)
	f.health.SetAvailable(false)

	_, err := f.reconciler.Run(context.Background(), f.owner, TriggerAuto)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Empty(t, f.toasts.Messages())

	_, err = f.reconciler.Run(context.Background(), f.owner, TriggerManual)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Equal(t, []string{MsgFailed}, f.toasts.Messages())
	assert.Zero(t, f.health.AuthCalls())
}

func TestRun_NotAuthorized(t *testing.T) {
	f := newFixture(t)
	f.health.SetAuthorized(false, nil)
	f.health.SetSteps(today, 100)

	_, err := f.reconciler.Run(context.Background(), f.owner, TriggerAuto)
	assert.ErrorIs(t, err, ErrNotAuthorized)
	assert.Empty(t, f.health.Queried())
	assert.Empty(t, f.backend.Calls())
}

func TestRun_QueryFailure(t *testing.T) {
	f := newFixture(t)
	f.health.SetSteps(today, 100)
	f.health.FailQuery(yesterday, errors.New("sensor offline"))

	_, err := f.reconciler.Run(context.Background(), f.owner, TriggerManual)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sensor offline")
	assert.Equal(t, []string{MsgFailed}, f.toasts.Messages())
	assert.Zero(t, f.backend.CallCount("POST /steps"), "nothing submitted when a query fails")
}

func TestRun_SubmitFailureReported(t *testing.T) {
	f := newFixture(t)
	f.health.SetSteps(today, 100)
	f.backend.FailNext("POST /steps", http.StatusInternalServerError, "boom")

	res, err := f.reconciler.Run(context.Background(), f.owner, TriggerManual)
	assert.ErrorIs(t, err, gateway.ErrRemoteRejected)
	assert.Zero(t, res.Total)
	assert.Equal(t, []string{MsgFailed}, f.toasts.Messages())
}

func TestRun_AtMostOneInFlight(t *testing.T) {
	f := newFixture(t)
	f.health.SetSteps(today, 500)
	release := f.health.Hold()

	done := make(chan error, 1)
	go func() {
		_, err := f.reconciler.Run(context.Background(), f.owner, TriggerAuto)
		done <- err
	}()
	require.Eventually(t, f.reconciler.Busy, testutil.WaitFor, testutil.Tick)

	_, err := f.reconciler.Run(context.Background(), f.owner, TriggerManual)
	assert.ErrorIs(t, err, ErrSyncInProgress)
	assert.Equal(t, []string{MsgInProgress}, f.toasts.Messages())

	release()
	require.NoError(t, <-done)
	assert.False(t, f.reconciler.Busy())
	assert.Equal(t, 1, f.backend.CallCount("POST /steps"))

	// Free again once the first run finished.
	_, err = f.reconciler.Run(context.Background(), f.owner, TriggerManual)
	require.NoError(t, err)
}

func TestRun_NoToastAfterScreenLeft(t *testing.T) {
	f := newFixture(t)
	f.health.SetSteps(today, 700)
	releaseBackend := f.backend.Hold("POST /steps")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := f.reconciler.Run(ctx, f.owner, TriggerManual)
		done <- err
	}()
	require.Eventually(t, func() bool { return f.backend.CallCount("POST /steps") == 1 }, testutil.WaitFor, testutil.Tick)

	cancel()
	releaseBackend()
	<-done

	assert.Empty(t, f.toasts.Messages())
	entry, ok := f.cached(t, today)
	require.True(t, ok, "in-flight write still lands")
	assert.Equal(t, 700, entry.StepCount)
}

func TestTrigger_String(t *testing.T) {
	assert.Equal(t, "auto", TriggerAuto.String())
	assert.Equal(t, "manual", TriggerManual.String())
}
