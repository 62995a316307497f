package engine

import "sync"

// EventType distinguishes shell events.
type EventType int

const (
	// EventScreenEntered is the main screen mounting.
	EventScreenEntered EventType = iota + 1
	// EventScreenLeft is the main screen unmounting.
	EventScreenLeft
	// EventSyncRequested is the user pressing "sync now".
	EventSyncRequested
	// EventRefreshRequested asks for fresh metrics (pull to refresh, poll).
	EventRefreshRequested
)

func (t EventType) String() string {
	switch t {
	case EventScreenEntered:
		return "screen_entered"
	case EventScreenLeft:
		return "screen_left"
	case EventSyncRequested:
		return "sync_requested"
	case EventRefreshRequested:
		return "refresh_requested"
	default:
		return "unknown"
	}
}

// Event is one shell event. Seq is stamped by the engine on enqueue.
type Event struct {
	Type EventType
	Seq  int64
}

// eventQueue is a thread-safe FIFO queue for events.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // buffered, size 1
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.events = append(q.events, e)

	// Non-blocking: the buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (Event{}, false) if queue is empty.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}
	e := q.events[0]
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return e, true
}

// Wait returns a channel that signals when events may be available. The
// channel is closed by Close.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close signals that no more events will be enqueued.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
