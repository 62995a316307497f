package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/roach88/stepsync/internal/model"
)

// Credentials is the sign-in form.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the sign-up form.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Timezone string `json:"timezone"`
}

// Login exchanges credentials for an identity and a bearer token.
func (c *Client) Login(ctx context.Context, creds Credentials) (model.Identity, string, error) {
	creds.Email = strings.TrimSpace(creds.Email)

	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, creds, &resp); err != nil {
		return model.Identity{}, "", err
	}
	id, token, err := resp.toModel()
	if err != nil {
		return model.Identity{}, "", fmt.Errorf("POST /auth/login: %w", err)
	}
	return id, token, nil
}

// Register creates an account and returns its identity and bearer token.
func (c *Client) Register(ctx context.Context, reg Registration) (model.Identity, string, error) {
	reg.Email = strings.TrimSpace(reg.Email)
	reg.Name = clean(reg.Name)

	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", nil, reg, &resp); err != nil {
		return model.Identity{}, "", err
	}
	id, token, err := resp.toModel()
	if err != nil {
		return model.Identity{}, "", fmt.Errorf("POST /auth/register: %w", err)
	}
	return id, token, nil
}

// Me resolves the identity behind token.
func (c *Client) Me(ctx context.Context, token string) (model.Identity, error) {
	var resp meResponse
	if err := c.do(ctx, http.MethodGet, "/auth/me", bearer(token), nil, &resp); err != nil {
		return model.Identity{}, err
	}
	id, err := resp.User.toModel()
	if err != nil {
		return model.Identity{}, fmt.Errorf("GET /auth/me: %w", err)
	}
	return id, nil
}

// Logout revokes token on the server.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", bearer(token), nil, nil)
}

// Goals fetches targets, today's and this week's totals, and pending
// notifications.
func (c *Client) Goals(ctx context.Context) (model.GoalsReport, error) {
	var resp goalsResponse
	if err := c.authed(ctx, http.MethodGet, "/goals", nil, &resp); err != nil {
		return model.GoalsReport{}, err
	}
	report, err := resp.toModel()
	if err != nil {
		return model.GoalsReport{}, fmt.Errorf("GET /goals: %w", err)
	}
	return report, nil
}

// UpdateGoals sets the daily and weekly targets.
func (c *Client) UpdateGoals(ctx context.Context, daily, weekly int) error {
	return c.authed(ctx, http.MethodPut, "/goals", updateGoalsRequest{DailyTarget: daily, WeeklyTarget: weekly}, nil)
}

// PauseGoals suspends goal tracking.
func (c *Client) PauseGoals(ctx context.Context) error {
	return c.authed(ctx, http.MethodPost, "/goals/pause", nil, nil)
}

// ResumeGoals resumes goal tracking.
func (c *Client) ResumeGoals(ctx context.Context) error {
	return c.authed(ctx, http.MethodPost, "/goals/resume", nil, nil)
}

// MarkNotificationsRead acknowledges a batch of notifications.
func (c *Client) MarkNotificationsRead(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return c.authed(ctx, http.MethodPost, "/goals/notifications/read", markReadRequest{IDs: ids}, nil)
}

// WriteSteps upserts the caller's step count for one day.
func (c *Client) WriteSteps(ctx context.Context, w model.StepWrite) (model.StepEntry, error) {
	if w.ChallengeID != 0 {
		return model.StepEntry{}, fmt.Errorf("POST /steps: unexpected challenge id %d", w.ChallengeID)
	}
	req := stepsRequest{Date: w.Date, StepCount: w.StepCount, Source: w.Source}

	var resp entryResponse
	if err := c.authed(ctx, http.MethodPost, "/steps", req, &resp); err != nil {
		return model.StepEntry{}, err
	}
	entry, err := resp.toModel(w)
	if err != nil {
		return model.StepEntry{}, fmt.Errorf("POST /steps: %w", err)
	}
	return entry, nil
}

// WriteChallengeSteps upserts the caller's step count for one day of a
// challenge.
func (c *Client) WriteChallengeSteps(ctx context.Context, w model.StepWrite) (model.StepEntry, error) {
	if w.ChallengeID <= 0 {
		return model.StepEntry{}, fmt.Errorf("challenge steps: invalid challenge id %d", w.ChallengeID)
	}
	path := fmt.Sprintf("/challenges/%d/steps", w.ChallengeID)
	req := challengeStepsRequest{ChallengeID: w.ChallengeID, Date: w.Date, StepCount: w.StepCount}

	var resp entryResponse
	if err := c.authed(ctx, http.MethodPost, path, req, &resp); err != nil {
		return model.StepEntry{}, err
	}
	entry, err := resp.toModel(w)
	if err != nil {
		return model.StepEntry{}, fmt.Errorf("POST %s: %w", path, err)
	}
	return entry, nil
}
