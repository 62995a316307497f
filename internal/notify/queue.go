// Package notify surfaces server-issued achievement notifications at most
// once per session.
//
// The Queue remembers every notification id it has shown. Each fetch is
// filtered against that set; the new notifications are scheduled for
// display at staggered offsets (index * stagger) and acknowledged together
// in a single mark-read call. Because an id enters the shown set before
// its acknowledgment is sent, no id is ever part of two acknowledgment
// batches, and a server that re-delivers an unacknowledged id does not get
// it displayed twice.
//
// The shown set lives in the Queue value: one Queue per session, passed to
// whatever composes it.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/stepsync/internal/model"
)

// DefaultStagger separates consecutive notifications from one fetch.
const DefaultStagger = 500 * time.Millisecond

// Acker acknowledges notifications. *api.Client implements it.
type Acker interface {
	MarkNotificationsRead(ctx context.Context, ids []int64) error
}

// Display presents one notification.
type Display func(model.Notification)

// Timer is a pending scheduled display.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it once wrapped.
type AfterFunc func(d time.Duration, f func()) Timer

func systemAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Option configures a Queue.
type Option func(*Queue)

// WithStagger sets the gap between displays from one fetch.
func WithStagger(d time.Duration) Option {
	return func(q *Queue) {
		if d >= 0 {
			q.stagger = d
		}
	}
}

// WithAfterFunc replaces the timer implementation. Tests use it to fire
// displays deterministically.
func WithAfterFunc(fn AfterFunc) Option {
	return func(q *Queue) {
		q.after = fn
	}
}

// Queue is the session's notification dedup queue.
//
// Thread-safety: all methods are safe for concurrent use.
type Queue struct {
	acker   Acker
	display Display
	stagger time.Duration
	after   AfterFunc

	mu      sync.Mutex
	shown   map[int64]struct{}
	pending []model.Notification
	timers  map[int64]Timer
	stopped bool
}

// New creates a Queue with an empty shown set.
func New(acker Acker, display Display, opts ...Option) *Queue {
	q := &Queue{
		acker:   acker,
		display: display,
		stagger: DefaultStagger,
		after:   systemAfterFunc,
		shown:   make(map[int64]struct{}),
		timers:  make(map[int64]Timer),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// OnNotificationsFetched processes one fetch result and returns the
// notifications newly scheduled for display, in fetch order.
//
// The mark-read call is made before returning. Its failure is logged and
// otherwise ignored: the ids stay in the shown set, so a redelivery is
// filtered out.
func (q *Queue) OnNotificationsFetched(ctx context.Context, list []model.Notification) []model.Notification {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return nil
	}
	q.pending = append(q.pending[:0:0], list...)

	var fresh []model.Notification
	for _, n := range list {
		if _, seen := q.shown[n.ID]; seen {
			continue
		}
		q.shown[n.ID] = struct{}{}
		fresh = append(fresh, n)
	}

	ids := make([]int64, 0, len(fresh))
	for i, n := range fresh {
		ids = append(ids, n.ID)
		n := n
		q.timers[n.ID] = q.after(time.Duration(i)*q.stagger, func() { q.fire(n) })
	}
	q.mu.Unlock()

	if len(ids) == 0 {
		return nil
	}

	slog.Debug("notifications scheduled", "count", len(ids))
	if err := q.acker.MarkNotificationsRead(context.WithoutCancel(ctx), ids); err != nil {
		slog.Warn("mark notifications read failed", "ids", ids, "error", err)
	}
	return fresh
}

func (q *Queue) fire(n model.Notification) {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	delete(q.timers, n.ID)
	q.mu.Unlock()

	if q.display != nil {
		q.display(n)
	}
	q.OnDisplayed(n.ID)
}

// OnDisplayed records that a notification was presented. Display is fire
// and forget: the notification was already marked shown and acknowledged
// when it was fetched.
func (q *Queue) OnDisplayed(id int64) {
	slog.Debug("notification displayed", "id", id)
}

// Shown reports whether id has been surfaced this session.
func (q *Queue) Shown(id int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.shown[id]
	return ok
}

// Pending returns the notifications the server listed as unacknowledged
// in the most recent fetch.
func (q *Queue) Pending() []model.Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]model.Notification, len(q.pending))
	copy(out, q.pending)
	return out
}

// Scheduled returns the number of displays not yet fired.
func (q *Queue) Scheduled() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.timers)
}

// Stop cancels scheduled displays. Later fetches are ignored.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return
	}
	q.stopped = true
	for id, t := range q.timers {
		t.Stop()
		delete(q.timers, id)
	}
}
