package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventQueue_EnqueueDequeue(t *testing.T) {
	q := newEventQueue()

	ok := q.Enqueue(Event{Type: EventScreenEntered, Seq: 1})
	require.True(t, ok, "enqueue should succeed")

	got, ok := q.TryDequeue()
	require.True(t, ok, "dequeue should succeed")
	assert.Equal(t, EventScreenEntered, got.Type)
	assert.Equal(t, int64(1), got.Seq)
}

func TestEventQueue_FIFO(t *testing.T) {
	q := newEventQueue()

	for i := int64(1); i <= 3; i++ {
		q.Enqueue(Event{Type: EventRefreshRequested, Seq: i})
	}
	for i := int64(1); i <= 3; i++ {
		e, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, i, e.Seq)
	}
}

func TestEventQueue_TryDequeue_Empty(t *testing.T) {
	q := newEventQueue()

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestEventQueue_Enqueue_AfterClose(t *testing.T) {
	q := newEventQueue()
	q.Close()
	q.Close() // idempotent

	assert.False(t, q.Enqueue(Event{Type: EventScreenLeft}))
	_, open := <-q.Wait()
	assert.False(t, open, "signal channel closed")
}

func TestEventQueue_Len(t *testing.T) {
	q := newEventQueue()
	assert.Equal(t, 0, q.Len())

	q.Enqueue(Event{Type: EventScreenEntered})
	q.Enqueue(Event{Type: EventScreenLeft})
	assert.Equal(t, 2, q.Len())

	q.TryDequeue()
	assert.Equal(t, 1, q.Len())
}

func TestEventQueue_ThreadSafe(t *testing.T) {
	q := newEventQueue()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Enqueue(Event{Type: EventRefreshRequested})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1000, q.Len())
}

func TestEventType_String(t *testing.T) {
	assert.Equal(t, "screen_entered", EventScreenEntered.String())
	assert.Equal(t, "screen_left", EventScreenLeft.String())
	assert.Equal(t, "sync_requested", EventSyncRequested.String())
	assert.Equal(t, "refresh_requested", EventRefreshRequested.String())
	assert.Equal(t, "unknown", EventType(0).String())
}
