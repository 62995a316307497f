package testutil

import (
	"sync"
	"time"
)

// WallClock is a settable wall clock for tests.
//
// It satisfies dates.Clock. Unlike the system clock it only moves when a
// test calls Set or Advance, so edit-window decisions are reproducible.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type WallClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewWallClock creates a clock frozen at now.
func NewWallClock(now time.Time) *WallClock {
	return &WallClock{now: now}
}

// MustWallClock parses a local "2006-01-02T15:04:05" timestamp and
// returns a clock frozen at it. Panics on malformed input.
func MustWallClock(local string) *WallClock {
	return NewWallClock(MustLocalTime(local))
}

// MustLocalTime parses a "2006-01-02T15:04:05" timestamp in time.Local.
func MustLocalTime(local string) time.Time {
	t, err := time.ParseInLocation("2006-01-02T15:04:05", local, time.Local)
	if err != nil {
		panic(err)
	}
	return t
}

// Now returns the current frozen time.
func (c *WallClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t. Moving backwards is allowed.
func (c *WallClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d.
func (c *WallClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
