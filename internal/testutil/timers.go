package testutil

import (
	"sort"
	"sync"
	"time"
)

// Timers is a manual scheduler for code that takes an AfterFunc hook.
// Nothing fires until the test calls Fire or FireAll.
//
// Thread-safety: all methods are safe for concurrent use.
type Timers struct {
	mu      sync.Mutex
	pending []*ManualTimer
	delays  []time.Duration
}

// ManualTimer is one scheduled callback.
type ManualTimer struct {
	owner   *Timers
	Delay   time.Duration
	f       func()
	stopped bool
	fired   bool
}

// NewTimers creates an empty scheduler.
func NewTimers() *Timers {
	return &Timers{}
}

// AfterFunc records f to run after d.
func (s *Timers) AfterFunc(d time.Duration, f func()) *ManualTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &ManualTimer{owner: s, Delay: d, f: f}
	s.pending = append(s.pending, t)
	s.delays = append(s.delays, d)
	return t
}

// Stop cancels the timer. Returns false if it already fired or stopped.
func (t *ManualTimer) Stop() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Delays returns every delay ever scheduled, in scheduling order.
func (s *Timers) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.delays))
	copy(out, s.delays)
	return out
}

// Pending returns the number of timers neither fired nor stopped.
func (s *Timers) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.pending {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// FireAll runs every live timer in delay order (stable for equal delays)
// and returns how many ran.
func (s *Timers) FireAll() int {
	s.mu.Lock()
	var due []*ManualTimer
	for _, t := range s.pending {
		if !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t)
		}
	}
	s.pending = nil
	s.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].Delay < due[j].Delay })
	for _, t := range due {
		t.f()
	}
	return len(due)
}
