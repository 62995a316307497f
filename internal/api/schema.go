package api

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/stepsync/internal/dates"
	"github.com/roach88/stepsync/internal/model"
)

// Wire types mirror the backend's JSON. Nothing outside this package sees
// them: each one converts to a model type through a validating method.

type wireIdentity struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

func (w *wireIdentity) toModel() (model.Identity, error) {
	if w == nil {
		return model.Identity{}, fmt.Errorf("%w: missing user", ErrMalformedResponse)
	}
	if w.ID <= 0 {
		return model.Identity{}, fmt.Errorf("%w: user id %d", ErrMalformedResponse, w.ID)
	}
	if strings.TrimSpace(w.Email) == "" {
		return model.Identity{}, fmt.Errorf("%w: user email is empty", ErrMalformedResponse)
	}
	return model.Identity{
		ID:       w.ID,
		Email:    strings.TrimSpace(w.Email),
		Name:     clean(w.Name),
		Timezone: strings.TrimSpace(w.Timezone),
	}, nil
}

type authResponse struct {
	User  *wireIdentity `json:"user"`
	Token string        `json:"token"`
}

func (r *authResponse) toModel() (model.Identity, string, error) {
	id, err := r.User.toModel()
	if err != nil {
		return model.Identity{}, "", err
	}
	if strings.TrimSpace(r.Token) == "" {
		return model.Identity{}, "", fmt.Errorf("%w: missing token", ErrMalformedResponse)
	}
	return id, r.Token, nil
}

type meResponse struct {
	User *wireIdentity `json:"user"`
}

type wireGoal struct {
	DailyTarget   int  `json:"daily_target"`
	WeeklyTarget  int  `json:"weekly_target"`
	IsPaused      bool `json:"is_paused"`
	CurrentStreak int  `json:"current_streak"`
	LongestStreak int  `json:"longest_streak"`
}

type wireNotification struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type goalsResponse struct {
	Goal          *wireGoal          `json:"goal"`
	TodaySteps    *int               `json:"today_steps"`
	WeeklySteps   *int               `json:"weekly_steps"`
	Notifications []wireNotification `json:"notifications"`
}

func (r *goalsResponse) toModel() (model.GoalsReport, error) {
	if r.Goal == nil {
		return model.GoalsReport{}, fmt.Errorf("%w: missing goal", ErrMalformedResponse)
	}
	if r.TodaySteps == nil || r.WeeklySteps == nil {
		return model.GoalsReport{}, fmt.Errorf("%w: missing step totals", ErrMalformedResponse)
	}
	if *r.TodaySteps < 0 || *r.WeeklySteps < 0 {
		return model.GoalsReport{}, fmt.Errorf("%w: negative step totals", ErrMalformedResponse)
	}
	g := r.Goal
	if g.DailyTarget < 0 || g.WeeklyTarget < 0 || g.CurrentStreak < 0 || g.LongestStreak < 0 {
		return model.GoalsReport{}, fmt.Errorf("%w: negative goal field", ErrMalformedResponse)
	}

	report := model.GoalsReport{
		Goals: model.Goals{
			DailyTarget:   g.DailyTarget,
			WeeklyTarget:  g.WeeklyTarget,
			IsPaused:      g.IsPaused,
			CurrentStreak: g.CurrentStreak,
			LongestStreak: g.LongestStreak,
		},
		TodaySteps:    *r.TodaySteps,
		WeeklySteps:   *r.WeeklySteps,
		Notifications: make([]model.Notification, 0, len(r.Notifications)),
	}
	for _, n := range r.Notifications {
		if n.ID <= 0 {
			return model.GoalsReport{}, fmt.Errorf("%w: notification id %d", ErrMalformedResponse, n.ID)
		}
		report.Notifications = append(report.Notifications, model.Notification{
			ID:        n.ID,
			Title:     clean(n.Title),
			Message:   clean(n.Message),
			CreatedAt: n.CreatedAt,
		})
	}
	return report, nil
}

type updateGoalsRequest struct {
	DailyTarget  int `json:"daily_target"`
	WeeklyTarget int `json:"weekly_target"`
}

type markReadRequest struct {
	IDs []int64 `json:"ids"`
}

type stepsRequest struct {
	Date      dates.Date   `json:"date"`
	StepCount int          `json:"step_count"`
	Source    model.Source `json:"source,omitempty"`
}

type challengeStepsRequest struct {
	ChallengeID int64      `json:"challenge_id"`
	Date        dates.Date `json:"date"`
	StepCount   int        `json:"step_count"`
}

type wireEntry struct {
	Date      string       `json:"date"`
	StepCount *int         `json:"step_count"`
	Source    model.Source `json:"source"`
	Version   int64        `json:"version"`
	UpdatedAt time.Time    `json:"updated_at"`
}

type entryResponse struct {
	Entry *wireEntry `json:"entry"`
}

// toModel converts the server's echo of a write. A response without an
// entry (or a 204) means the server accepted the write as sent.
func (r *entryResponse) toModel(w model.StepWrite) (model.StepEntry, error) {
	out := model.StepEntry{
		Owner:       w.Owner,
		Date:        w.Date,
		ChallengeID: w.ChallengeID,
		StepCount:   w.StepCount,
		Source:      w.Source,
	}
	if r.Entry == nil {
		return out, nil
	}

	e := r.Entry
	if e.Date != "" {
		d, err := dates.Parse(e.Date)
		if err != nil {
			return model.StepEntry{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
		}
		if d != w.Date {
			return model.StepEntry{}, fmt.Errorf("%w: entry date %s, wrote %s", ErrMalformedResponse, d, w.Date)
		}
	}
	if e.StepCount != nil {
		if *e.StepCount < 0 {
			return model.StepEntry{}, fmt.Errorf("%w: negative step_count", ErrMalformedResponse)
		}
		out.StepCount = *e.StepCount
	}
	if e.Source != "" && e.Source.Valid() {
		out.Source = e.Source
	}
	out.Version = e.Version
	out.UpdatedAt = e.UpdatedAt
	return out, nil
}

// clean trims and NFC-normalizes user-visible text.
func clean(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
