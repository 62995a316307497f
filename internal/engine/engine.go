package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/stepsync/internal/devicesync"
	"github.com/roach88/stepsync/internal/model"
)

// Session reports the signed-in user. *session.Store implements it.
type Session interface {
	Identity() (model.Identity, bool)
}

// Refresher refreshes metrics. *metrics.Store implements it.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Syncer runs device reconciliations. *devicesync.Reconciler implements it.
type Syncer interface {
	Run(ctx context.Context, owner int64, trigger devicesync.Trigger) (devicesync.Result, error)
}

// Engine is the main-screen event loop.
//
// Thread-safety model:
//   - Enqueue and the event helpers: safe from any goroutine
//   - Run: must be called from exactly one goroutine
//   - Wait: safe from any goroutine
type Engine struct {
	session Session
	metrics Refresher
	syncer  Syncer
	queue   *eventQueue
	seq     atomic.Int64

	mounted atomic.Bool

	// Owned by the Run goroutine.
	mountCancel context.CancelFunc
	screenCtx   context.Context

	work sync.WaitGroup
}

// New creates an Engine.
func New(session Session, metrics Refresher, syncer Syncer) *Engine {
	return &Engine{
		session: session,
		metrics: metrics,
		syncer:  syncer,
		queue:   newEventQueue(),
	}
}

// Enqueue stamps and queues an event. Returns false after Stop.
func (e *Engine) Enqueue(t EventType) bool {
	return e.queue.Enqueue(Event{Type: t, Seq: e.seq.Add(1)})
}

// ScreenEntered queues EventScreenEntered.
func (e *Engine) ScreenEntered() bool { return e.Enqueue(EventScreenEntered) }

// ScreenLeft queues EventScreenLeft.
func (e *Engine) ScreenLeft() bool { return e.Enqueue(EventScreenLeft) }

// RequestSync queues EventSyncRequested.
func (e *Engine) RequestSync() bool { return e.Enqueue(EventSyncRequested) }

// RequestRefresh queues EventRefreshRequested.
func (e *Engine) RequestRefresh() bool { return e.Enqueue(EventRefreshRequested) }

// Run processes events until ctx is cancelled or Stop is called and the
// queue drains. Before returning it ends any mount and waits for the work
// it started.
//
// Event errors are logged and processing continues.
func (e *Engine) Run(ctx context.Context) error {
	slog.Debug("engine starting")
	defer func() {
		e.unmount()
		e.work.Wait()
	}()

	for {
		if event, ok := e.queue.TryDequeue(); ok {
			if err := e.processEvent(ctx, event); err != nil {
				logEventError(event, err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			slog.Debug("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel is closed by Close; an empty queue then
			// means we are done.
			if e.queue.Len() == 0 && e.queueClosed() {
				slog.Debug("engine stopping: queue closed")
				return nil
			}
		}
	}
}

func (e *Engine) queueClosed() bool {
	e.queue.mu.Lock()
	defer e.queue.mu.Unlock()
	return e.queue.closed
}

// Stop closes the queue. Run returns once queued events are processed.
func (e *Engine) Stop() {
	e.queue.Close()
}

// Wait blocks until all work started by processed events has finished.
func (e *Engine) Wait() {
	e.work.Wait()
}

// Mounted reports whether the main screen is mounted.
func (e *Engine) Mounted() bool {
	return e.mounted.Load()
}

func (e *Engine) processEvent(ctx context.Context, event Event) error {
	slog.Debug("processing event", "event", event.Type.String(), "seq", event.Seq)

	switch event.Type {
	case EventScreenEntered:
		return e.enterScreen(ctx, event)
	case EventScreenLeft:
		if !e.mounted.Load() {
			return &EventError{Code: ErrCodeNotMounted, Event: event}
		}
		e.unmount()
		return nil
	case EventSyncRequested:
		if !e.mounted.Load() {
			return &EventError{Code: ErrCodeNotMounted, Event: event}
		}
		owner, err := e.owner(event)
		if err != nil {
			return err
		}
		screenCtx := e.screenCtx
		e.spawn(func() { e.sync(screenCtx, owner, devicesync.TriggerManual) })
		return nil
	case EventRefreshRequested:
		if _, err := e.owner(event); err != nil {
			return err
		}
		refreshCtx := ctx
		if e.mounted.Load() {
			refreshCtx = e.screenCtx
		}
		e.spawn(func() { e.refresh(refreshCtx) })
		return nil
	default:
		return &EventError{Code: "UNKNOWN_EVENT", Event: event}
	}
}

func (e *Engine) enterScreen(ctx context.Context, event Event) error {
	if e.mounted.Load() {
		return &EventError{Code: ErrCodeAlreadyMounted, Event: event}
	}
	owner, err := e.owner(event)
	if err != nil {
		return err
	}

	e.screenCtx, e.mountCancel = context.WithCancel(ctx)
	e.mounted.Store(true)
	screenCtx := e.screenCtx

	e.spawn(func() {
		e.refresh(screenCtx)
		e.sync(screenCtx, owner, devicesync.TriggerAuto)
	})
	return nil
}

func (e *Engine) unmount() {
	if !e.mounted.Load() {
		return
	}
	e.mountCancel()
	e.mounted.Store(false)
	e.mountCancel = nil
	e.screenCtx = nil
}

func (e *Engine) owner(event Event) (int64, error) {
	id, ok := e.session.Identity()
	if !ok {
		return 0, &EventError{Code: ErrCodeNotAuthenticated, Event: event}
	}
	return id.ID, nil
}

func (e *Engine) spawn(f func()) {
	e.work.Add(1)
	go func() {
		defer e.work.Done()
		f()
	}()
}

func (e *Engine) refresh(ctx context.Context) {
	if err := e.metrics.Refresh(ctx); err != nil && ctx.Err() == nil {
		slog.Warn("metrics refresh failed", "error", err)
	}
}

func (e *Engine) sync(ctx context.Context, owner int64, trigger devicesync.Trigger) {
	_, err := e.syncer.Run(ctx, owner, trigger)
	if err != nil && !errors.Is(err, devicesync.ErrSyncInProgress) {
		slog.Debug("device sync ended with error", "trigger", trigger.String(), "error", err)
	}
}

// logEventError logs an event processing failure with full context.
func logEventError(event Event, err error) {
	slog.Warn("event processing failed",
		"error", err,
		"event", event.Type.String(),
		"seq", event.Seq,
	)
}
