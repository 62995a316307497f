// Package metrics holds the signed-in user's goal targets, step totals,
// progress, and the notifications delivered with them.
//
// The backend owns the numbers; the Store keeps the last good report,
// derives progress percentages from it, and tells subscribers whenever a
// new report lands.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/roach88/stepsync/internal/dates"
	"github.com/roach88/stepsync/internal/model"
)

// ErrInvalidTargets is returned by UpdateTargets for non-positive targets.
var ErrInvalidTargets = errors.New("targets must be positive")

// Source is the backend the Store reads and updates. *api.Client
// implements it.
type Source interface {
	Goals(ctx context.Context) (model.GoalsReport, error)
	UpdateGoals(ctx context.Context, daily, weekly int) error
	PauseGoals(ctx context.Context) error
	ResumeGoals(ctx context.Context) error
}

// Snapshot is an immutable view of the metrics.
type Snapshot struct {
	Goals          model.Goals          `json:"goals"`
	TodaySteps     int                  `json:"today_steps"`
	WeeklySteps    int                  `json:"weekly_steps"`
	DailyProgress  int                  `json:"daily_progress"`
	WeeklyProgress int                  `json:"weekly_progress"`
	Notifications  []model.Notification `json:"notifications"`

	// Loaded is false until the first successful refresh.
	Loaded bool `json:"loaded"`
	// Stale is set by Invalidate and cleared by the next successful
	// refresh. Stale numbers must not be presented as current.
	Stale     bool      `json:"stale"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Progress returns steps as a whole percentage of target, rounded and
// capped at 100. A zero target yields 0.
func Progress(steps, target int) int {
	if target <= 0 || steps <= 0 {
		return 0
	}
	p := int(math.Round(float64(steps) * 100 / float64(target)))
	if p > 100 {
		return 100
	}
	return p
}

// Store caches the latest metrics report.
//
// Thread-safety: all methods are safe for concurrent use. Subscribers are
// called outside the lock, in registration order, on the goroutine that
// completed the refresh.
type Store struct {
	source Source
	clock  dates.Clock

	mu      sync.Mutex
	snap    Snapshot
	started uint64 // refreshes started
	applied uint64 // sequence number of the report in snap
	// reports at or below this sequence number predate the last
	// Invalidate and are applied as stale
	invalidated uint64
	subs    []subscriber
	nextSub int
}

type subscriber struct {
	id int
	fn func(Snapshot)
}

// New creates an empty Store.
func New(source Source, clock dates.Clock) *Store {
	if clock == nil {
		clock = dates.SystemClock{}
	}
	return &Store{source: source, clock: clock}
}

// Snapshot returns the current view.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Invalidate marks the current numbers stale. Refreshes already in flight
// cannot clear the mark; only one started after Invalidate can.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Stale = true
	s.invalidated = s.started
}

// Subscribe registers fn to receive every new snapshot after a successful
// refresh. The returned func unregisters it.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs = append(s.subs, subscriber{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// Refresh fetches a new report. When refreshes overlap, a report older
// than the one already applied is discarded. On failure the previous
// numbers are kept (and stay stale if they were).
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.started++
	seq := s.started
	s.mu.Unlock()

	report, err := s.source.Goals(ctx)
	if err != nil {
		return fmt.Errorf("refresh metrics: %w", err)
	}

	s.mu.Lock()
	if seq < s.applied {
		s.mu.Unlock()
		slog.Debug("discarding out-of-order metrics report", "seq", seq, "applied", s.applied)
		return nil
	}
	s.applied = seq
	s.snap = Snapshot{
		Goals:          report.Goals,
		TodaySteps:     report.TodaySteps,
		WeeklySteps:    report.WeeklySteps,
		DailyProgress:  Progress(report.TodaySteps, report.Goals.DailyTarget),
		WeeklyProgress: Progress(report.WeeklySteps, report.Goals.WeeklyTarget),
		Notifications:  report.Notifications,
		Loaded:         true,
		Stale:          seq <= s.invalidated,
		FetchedAt:      s.clock.Now(),
	}
	snap := s.snap
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(snap)
	}
	return nil
}

// UpdateTargets sets new daily and weekly targets and refreshes.
func (s *Store) UpdateTargets(ctx context.Context, daily, weekly int) error {
	if daily <= 0 || weekly <= 0 {
		return fmt.Errorf("update targets: %w", ErrInvalidTargets)
	}
	if err := s.source.UpdateGoals(ctx, daily, weekly); err != nil {
		return fmt.Errorf("update targets: %w", err)
	}
	return s.afterMutation(ctx)
}

// Pause suspends goal tracking and refreshes.
func (s *Store) Pause(ctx context.Context) error {
	if err := s.source.PauseGoals(ctx); err != nil {
		return fmt.Errorf("pause goals: %w", err)
	}
	return s.afterMutation(ctx)
}

// Resume resumes goal tracking and refreshes.
func (s *Store) Resume(ctx context.Context) error {
	if err := s.source.ResumeGoals(ctx); err != nil {
		return fmt.Errorf("resume goals: %w", err)
	}
	return s.afterMutation(ctx)
}

func (s *Store) afterMutation(ctx context.Context) error {
	s.Invalidate()
	return s.Refresh(ctx)
}
