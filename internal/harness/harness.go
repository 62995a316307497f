package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/roach88/stepsync/internal/api"
	"github.com/roach88/stepsync/internal/dates"
	"github.com/roach88/stepsync/internal/devicesync"
	"github.com/roach88/stepsync/internal/gateway"
	"github.com/roach88/stepsync/internal/metrics"
	"github.com/roach88/stepsync/internal/model"
	"github.com/roach88/stepsync/internal/notify"
	"github.com/roach88/stepsync/internal/session"
	"github.com/roach88/stepsync/internal/store"
	"github.com/roach88/stepsync/internal/testutil"
)

// Output cases reported in completions.
const (
	CaseSuccess             = "Success"
	CaseError               = "Error"
	CaseInvalidCredentials  = "InvalidCredentials"
	CaseNotSignedIn         = "NotSignedIn"
	CaseInvalidCount        = "InvalidCount"
	CaseInvalidInput        = "InvalidInput"
	CaseEditWindowClosed    = "EditWindowClosed"
	CaseRemoteRejected      = "RemoteRejected"
	CaseSyncInProgress      = "SyncInProgress"
	CaseProviderUnavailable = "ProviderUnavailable"
	CaseNotAuthorized       = "NotAuthorized"
	CaseInvalidTargets      = "InvalidTargets"
)

var submitCases = map[string]string{
	gateway.CodeInvalidCount:     CaseInvalidCount,
	gateway.CodeInvalidInput:     CaseInvalidInput,
	gateway.CodeEditWindowClosed: CaseEditWindowClosed,
	gateway.CodeRemoteRejected:   CaseRemoteRejected,
}

// Harness runs one scenario against the real client core.
//
// The backend is the in-process fake, the health provider and display
// timers are manual, and the wall clock only moves when a step moves it,
// so every run of a scenario produces the same trace.
type Harness struct {
	clock        *testutil.WallClock
	backend      *testutil.Backend
	health       *testutil.FakeHealth
	timers       *testutil.Timers
	ids          *testutil.SequenceIDs
	db           *store.Store
	auth         *api.Client
	deadlineHour int
	logger       *slog.Logger

	// Rebuilt by open on every (re)launch.
	session     *session.Store
	client      *api.Client
	window      dates.Window
	metrics     *metrics.Store
	queue       *notify.Queue
	personal    *gateway.Gateway
	challenge   *gateway.Gateway
	reconciler  *devicesync.Reconciler
	unsubscribe func()

	users map[string]int64

	mu     sync.Mutex
	result *Result
	seq    int64
}

// Run executes a scenario and returns its result.
//
// Each run gets a fresh backend and a fresh database under t.TempDir.
// Execution flow:
// 1. Register the scenario's users on the backend
// 2. Open the session and wire the core
// 3. Execute setup steps (any failure aborts)
// 4. Execute flow steps, checking expect clauses
// 5. Evaluate assertions
func Run(t testing.TB, scenario *Scenario) (*Result, error) {
	t.Helper()

	start, err := time.ParseInLocation(ClockLayout, scenario.Clock, time.Local)
	if err != nil {
		return nil, fmt.Errorf("parse clock: %w", err)
	}
	deadline := dates.DefaultDeadlineHour
	if scenario.DeadlineHour != nil {
		deadline = *scenario.DeadlineHour
	}

	clock := testutil.NewWallClock(start)
	backend := testutil.NewBackend(t, clock)

	db, err := store.Open(filepath.Join(t.TempDir(), "harness.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	defer db.Close()

	auth, err := api.New(backend.URL(), nil, api.WithTransport(backend.Client().Transport))
	if err != nil {
		return nil, fmt.Errorf("create auth client: %w", err)
	}

	h := &Harness{
		clock:        clock,
		backend:      backend,
		health:       testutil.NewFakeHealth(),
		timers:       testutil.NewTimers(),
		ids:          testutil.NewSequenceIDs("run-1", "run-2", "run-3", "run-4"),
		db:           db,
		auth:         auth,
		deadlineHour: deadline,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		users:        make(map[string]int64),
		result:       NewResult(),
	}
	for _, u := range scenario.Users {
		h.users[strings.ToLower(u.Email)] = backend.AddUser(u.Email, u.Password, u.Name)
	}

	ctx := context.Background()
	if err := h.open(ctx); err != nil {
		return nil, err
	}
	defer h.close()

	for i, step := range scenario.Setup {
		outputCase, _, err := h.runStep(ctx, step.Action, step.Args)
		if err != nil {
			return nil, fmt.Errorf("setup step %d (%s): %w", i, step.Action, err)
		}
		if outputCase != CaseSuccess {
			return nil, fmt.Errorf("setup step %d (%s): completed with %s", i, step.Action, outputCase)
		}
	}

	for i, step := range scenario.Flow {
		outputCase, res, err := h.runStep(ctx, step.Invoke, step.Args)
		if err != nil {
			return nil, fmt.Errorf("flow step %d (%s): %w", i, step.Invoke, err)
		}
		h.checkExpect(i, step, outputCase, res)
	}

	actx := &AssertionContext{DB: db.DB(), Ctx: ctx}
	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions, actx) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

// open wires a session and everything that depends on it, the way the
// app does on launch.
func (h *Harness) open(ctx context.Context) error {
	sess, err := session.Open(ctx, h.db, h.auth)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	client, err := api.New(h.backend.URL(), sess, api.WithTransport(h.backend.Client().Transport))
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	h.session = sess
	h.client = client
	h.window = dates.NewWindow(h.clock, h.deadlineHour)
	h.metrics = metrics.New(client, h.clock)
	h.queue = notify.New(ackRecorder{h: h, acker: client}, h.display,
		notify.WithAfterFunc(func(d time.Duration, f func()) notify.Timer {
			return h.timers.AfterFunc(d, f)
		}))
	h.unsubscribe = h.metrics.Subscribe(func(s metrics.Snapshot) {
		h.queue.OnNotificationsFetched(ctx, s.Notifications)
	})
	h.personal = gateway.New(gateway.ScopePersonal, gateway.WriterFunc(client.WriteSteps),
		h.db, h.window, gateway.WithRefresher(h.metrics))
	h.challenge = gateway.New(gateway.ScopeChallenge, gateway.WriterFunc(client.WriteChallengeSteps),
		h.db, h.window, gateway.WithRefresher(h.metrics))
	h.reconciler = devicesync.New(h.health, h.personal, h.window,
		devicesync.WithToaster(devicesync.ToasterFunc(h.toast)),
		devicesync.WithIDGenerator(h.ids))
	return nil
}

// close tears down the session-scoped pieces.
func (h *Harness) close() {
	if h.unsubscribe != nil {
		h.unsubscribe()
	}
	if h.queue != nil {
		h.queue.Stop()
	}
}

// runStep executes one named step and records its invocation and
// completion. A non-nil error means the scenario itself is malformed.
func (h *Harness) runStep(ctx context.Context, action string, args map[string]any) (string, map[string]any, error) {
	fn, ok := actions[action]
	if !ok {
		return "", nil, fmt.Errorf("unknown action %q", action)
	}

	h.mu.Lock()
	h.seq++
	h.result.AddInvocationTrace(action, args, h.seq)
	h.mu.Unlock()

	res, err := fn(ctx, h, args)
	if errors.Is(err, errScenario) {
		return "", nil, err
	}

	outputCase := classify(err)
	if err != nil {
		res = failureResult(outputCase, err)
	}

	h.mu.Lock()
	h.seq++
	h.result.AddCompletionTrace(outputCase, res, h.seq)
	h.mu.Unlock()

	h.logger.Info("step completed",
		"action", action,
		"output_case", outputCase,
	)
	return outputCase, res, nil
}

// checkExpect compares a flow step's completion with its expect clause.
// A step without one must succeed.
func (h *Harness) checkExpect(i int, step FlowStep, outputCase string, res map[string]any) {
	expected := CaseSuccess
	if step.Expect != nil {
		expected = step.Expect.Case
	}
	if outputCase != expected {
		msg := fmt.Sprintf("flow[%d] %s: expected case %s, got %s", i, step.Invoke, expected, outputCase)
		if m, ok := res["message"]; ok {
			msg += fmt.Sprintf(" (%v)", m)
		}
		h.result.AddError(msg)
		return
	}
	if step.Expect != nil && !matchArgs(res, step.Expect.Result) {
		h.result.AddError(fmt.Sprintf("flow[%d] %s: expected result %v, got %v",
			i, step.Invoke, step.Expect.Result, res))
	}
}

// effect records something the core did on its own.
func (h *Harness) effect(action string, args map[string]any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	h.result.AddEffectTrace(action, args, h.seq)
}

func (h *Harness) display(n model.Notification) {
	h.effect("notify.display", map[string]any{"id": int(n.ID), "title": n.Title})
}

func (h *Harness) toast(msg string) {
	h.effect("toast", map[string]any{"message": msg})
}

// owner returns the signed-in user's id.
func (h *Harness) owner() (int64, error) {
	id, ok := h.session.Identity()
	if !ok {
		return 0, session.ErrNotAuthenticated
	}
	return id.ID, nil
}

// ackRecorder traces every mark-read call the notification queue makes.
type ackRecorder struct {
	h     *Harness
	acker notify.Acker
}

func (a ackRecorder) MarkNotificationsRead(ctx context.Context, ids []int64) error {
	list := make([]any, len(ids))
	for i, id := range ids {
		list[i] = int(id)
	}
	a.h.effect("notify.mark_read", map[string]any{"ids": list})
	return a.acker.MarkNotificationsRead(ctx, ids)
}

// classify maps a step error to its output case.
func classify(err error) string {
	if err == nil {
		return CaseSuccess
	}

	var submitErr *gateway.SubmitError
	switch {
	case errors.Is(err, session.ErrInvalidCredentials):
		return CaseInvalidCredentials
	case errors.Is(err, session.ErrNotAuthenticated):
		return CaseNotSignedIn
	case errors.Is(err, devicesync.ErrSyncInProgress):
		return CaseSyncInProgress
	case errors.Is(err, devicesync.ErrProviderUnavailable):
		return CaseProviderUnavailable
	case errors.Is(err, devicesync.ErrNotAuthorized):
		return CaseNotAuthorized
	case errors.Is(err, metrics.ErrInvalidTargets):
		return CaseInvalidTargets
	case errors.As(err, &submitErr):
		if c, ok := submitCases[submitErr.Code]; ok {
			return c
		}
	}

	var remote *api.RemoteError
	if errors.As(err, &remote) {
		return CaseRemoteRejected
	}
	return CaseError
}

// failureResult carries the user-facing message for failures whose text
// comes from the server.
func failureResult(outputCase string, err error) map[string]any {
	switch outputCase {
	case CaseRemoteRejected, CaseInvalidCredentials, CaseError:
		return map[string]any{"message": api.UserMessage(err)}
	}
	return nil
}
