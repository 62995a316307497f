package model

import (
	"time"

	"github.com/roach88/stepsync/internal/dates"
)

// Identity is the signed-in user as confirmed by the backend.
type Identity struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

// Source tags where a step count came from.
type Source string

const (
	SourceManual Source = "manual"
	SourceDevice Source = "device"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	return s == SourceManual || s == SourceDevice
}

// EntryKey identifies the single cached entry for an owner and day.
// ChallengeID is zero for personal (non-challenge) entries.
type EntryKey struct {
	Owner       int64      `json:"owner"`
	Date        dates.Date `json:"date"`
	ChallengeID int64      `json:"challenge_id,omitempty"`
}

// StepEntry is the step count recorded for one EntryKey.
type StepEntry struct {
	Owner       int64      `json:"owner"`
	Date        dates.Date `json:"date"`
	ChallengeID int64      `json:"challenge_id,omitempty"`
	StepCount   int        `json:"step_count"`
	Source      Source     `json:"source"`
	Version     int64      `json:"version"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Key returns the entry's cache key.
func (e StepEntry) Key() EntryKey {
	return EntryKey{Owner: e.Owner, Date: e.Date, ChallengeID: e.ChallengeID}
}

// StepWrite is a request to record a step count for one key.
type StepWrite struct {
	Owner       int64
	Date        dates.Date
	ChallengeID int64
	StepCount   int
	Source      Source
}

// Key returns the cache key the write targets.
func (w StepWrite) Key() EntryKey {
	return EntryKey{Owner: w.Owner, Date: w.Date, ChallengeID: w.ChallengeID}
}

// Goals holds the user's targets. Streak fields are computed by the
// backend and are read-only here.
type Goals struct {
	DailyTarget   int  `json:"daily_target"`
	WeeklyTarget  int  `json:"weekly_target"`
	IsPaused      bool `json:"is_paused"`
	CurrentStreak int  `json:"current_streak"`
	LongestStreak int  `json:"longest_streak"`
}

// Notification is a server-issued achievement message.
type Notification struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// GoalsReport is the validated result of a metrics fetch.
type GoalsReport struct {
	Goals         Goals          `json:"goals"`
	TodaySteps    int            `json:"today_steps"`
	WeeklySteps   int            `json:"weekly_steps"`
	Notifications []Notification `json:"notifications"`
}
