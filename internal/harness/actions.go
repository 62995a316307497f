package harness

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/stepsync/internal/api"
	"github.com/roach88/stepsync/internal/dates"
	"github.com/roach88/stepsync/internal/devicesync"
	"github.com/roach88/stepsync/internal/gateway"
	"github.com/roach88/stepsync/internal/model"
)

// errScenario marks errors in the scenario itself (missing or mistyped
// args) as opposed to failures of the step under test.
var errScenario = errors.New("bad scenario step")

type actionFunc func(ctx context.Context, h *Harness, args map[string]any) (map[string]any, error)

// actions are the steps a scenario can invoke.
var actions = map[string]actionFunc{
	"clock.set":                 clockSet,
	"clock.advance":             clockAdvance,
	"backend.fail_next":         backendFailNext,
	"backend.push_notification": backendPushNotification,
	"backend.revoke_token":      backendRevokeToken,
	"device.set_steps":          deviceSetSteps,
	"device.set_available":      deviceSetAvailable,
	"device.set_authorized":     deviceSetAuthorized,
	"session.sign_in":           sessionSignIn,
	"session.sign_up":           sessionSignUp,
	"session.sign_out":          sessionSignOut,
	"session.restart":           sessionRestart,
	"steps.submit":              stepsSubmit,
	"challenge.submit":          challengeSubmit,
	"sync.run":                  syncRun,
	"metrics.refresh":           metricsRefresh,
	"goals.set":                 goalsSet,
	"notify.fire":               notifyFire,
}

func clockSet(_ context.Context, h *Harness, args map[string]any) (map[string]any, error) {
	at, err := argString(args, "at")
	if err != nil {
		return nil, err
	}
	t, err := time.ParseInLocation(ClockLayout, at, time.Local)
	if err != nil {
		return nil, fmt.Errorf("%w: at: %v", errScenario, err)
	}
	h.clock.Set(t)
	return nil, nil
}

func clockAdvance(_ context.Context, h *Harness, args map[string]any) (map[string]any, error) {
	by, err := argString(args, "by")
	if err != nil {
		return nil, err
	}
	d, err := time.ParseDuration(by)
	if err != nil {
		return nil, fmt.Errorf("%w: by: %v", errScenario, err)
	}
	h.clock.Advance(d)
	return nil, nil
}

func backendFailNext(_ context.Context, h *Harness, args map[string]any) (map[string]any, error) {
	route, err := argString(args, "route")
	if err != nil {
		return nil, err
	}
	status, err := argInt(args, "status")
	if err != nil {
		return nil, err
	}
	message, err := argString(args, "message")
	if err != nil {
		return nil, err
	}
	h.backend.FailNext(route, status, message)
	return nil, nil
}

func backendPushNotification(_ context.Context, h *Harness, args map[string]any) (map[string]any, error) {
	user, err := h.userArg(args)
	if err != nil {
		return nil, err
	}
	id, err := argInt(args, "id")
	if err != nil {
		return nil, err
	}
	title, err := argString(args, "title")
	if err != nil {
		return nil, err
	}
	message, _ := args["message"].(string)
	h.backend.PushNotification(user, model.Notification{
		ID:        int64(id),
		Title:     title,
		Message:   message,
		CreatedAt: h.clock.Now(),
	})
	return nil, nil
}

func backendRevokeToken(_ context.Context, h *Harness, _ map[string]any) (map[string]any, error) {
	token := h.session.RawToken()
	if token == "" {
		return nil, fmt.Errorf("%w: no session token to revoke", errScenario)
	}
	h.backend.RevokeToken(token)
	return nil, nil
}

func deviceSetSteps(_ context.Context, h *Harness, args map[string]any) (map[string]any, error) {
	d, err := argDate(args, "date")
	if err != nil {
		return nil, err
	}
	n, err := argInt(args, "steps")
	if err != nil {
		return nil, err
	}
	h.health.SetSteps(d, n)
	return nil, nil
}

func deviceSetAvailable(_ context.Context, h *Harness, args map[string]any) (map[string]any, error) {
	v, err := argBool(args, "available")
	if err != nil {
		return nil, err
	}
	h.health.SetAvailable(v)
	return nil, nil
}

func deviceSetAuthorized(_ context.Context, h *Harness, args map[string]any) (map[string]any, error) {
	v, err := argBool(args, "authorized")
	if err != nil {
		return nil, err
	}
	h.health.SetAuthorized(v, nil)
	return nil, nil
}

func sessionSignIn(ctx context.Context, h *Harness, args map[string]any) (map[string]any, error) {
	email, err := argString(args, "email")
	if err != nil {
		return nil, err
	}
	password, err := argString(args, "password")
	if err != nil {
		return nil, err
	}
	id, err := h.session.SignIn(ctx, api.Credentials{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"user_id":  int(id.ID),
		"decision": string(h.session.AccessDecision()),
	}, nil
}

func sessionSignUp(ctx context.Context, h *Harness, args map[string]any) (map[string]any, error) {
	var reg api.Registration
	var err error
	if reg.Name, err = argString(args, "name"); err != nil {
		return nil, err
	}
	if reg.Email, err = argString(args, "email"); err != nil {
		return nil, err
	}
	if reg.Password, err = argString(args, "password"); err != nil {
		return nil, err
	}
	reg.Timezone, _ = args["timezone"].(string)
	if reg.Timezone == "" {
		reg.Timezone = "UTC"
	}

	id, err := h.session.SignUp(ctx, reg)
	if err != nil {
		return nil, err
	}
	h.users[strings.ToLower(reg.Email)] = id.ID
	return map[string]any{
		"user_id":  int(id.ID),
		"decision": string(h.session.AccessDecision()),
	}, nil
}

func sessionSignOut(ctx context.Context, h *Harness, _ map[string]any) (map[string]any, error) {
	if err := h.session.SignOut(ctx); err != nil {
		return nil, err
	}
	return map[string]any{"decision": string(h.session.AccessDecision())}, nil
}

// sessionRestart relaunches the app: the session reopens from the
// persisted token and resolves it.
func sessionRestart(ctx context.Context, h *Harness, _ map[string]any) (map[string]any, error) {
	h.close()
	if err := h.open(ctx); err != nil {
		return nil, err
	}
	if err := h.session.Resolve(ctx); err != nil {
		h.logger.Info("session resolution failed", "error", err)
	}
	return map[string]any{
		"state":    h.session.State().String(),
		"decision": string(h.session.AccessDecision()),
	}, nil
}

func stepsSubmit(ctx context.Context, h *Harness, args map[string]any) (map[string]any, error) {
	return h.submit(ctx, h.personal, 0, args)
}

func challengeSubmit(ctx context.Context, h *Harness, args map[string]any) (map[string]any, error) {
	id, err := argInt(args, "challenge_id")
	if err != nil {
		return nil, err
	}
	return h.submit(ctx, h.challenge, int64(id), args)
}

// submit drives a form submission: the count arrives as text.
func (h *Harness) submit(ctx context.Context, g *gateway.Gateway, challengeID int64, args map[string]any) (map[string]any, error) {
	d, err := argDate(args, "date")
	if err != nil {
		return nil, err
	}
	raw, ok := args["steps"]
	if !ok {
		return nil, fmt.Errorf("%w: missing arg %q", errScenario, "steps")
	}

	owner, err := h.owner()
	if err != nil {
		return nil, err
	}
	n, err := gateway.ParseCount(fmt.Sprint(raw))
	if err != nil {
		return nil, err
	}

	entry, err := g.Submit(ctx, gateway.Submission{
		Owner:       owner,
		Date:        d,
		ChallengeID: challengeID,
		StepCount:   n,
		Source:      model.SourceManual,
	})
	if err != nil {
		return nil, err
	}
	res := map[string]any{
		"date":       entry.Date.String(),
		"step_count": entry.StepCount,
		"source":     string(entry.Source),
	}
	if entry.ChallengeID != 0 {
		res["challenge_id"] = int(entry.ChallengeID)
	}
	return res, nil
}

func syncRun(ctx context.Context, h *Harness, args map[string]any) (map[string]any, error) {
	trigger := devicesync.TriggerManual
	if name, ok := args["trigger"].(string); ok {
		switch name {
		case "manual":
		case "auto":
			trigger = devicesync.TriggerAuto
		default:
			return nil, fmt.Errorf("%w: unknown trigger %q", errScenario, name)
		}
	}

	owner, err := h.owner()
	if err != nil {
		return nil, err
	}
	res, err := h.reconciler.Run(ctx, owner, trigger)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"run_id":    res.RunID,
		"trigger":   res.Trigger,
		"submitted": len(res.Submitted),
		"total":     res.Total,
	}, nil
}

func metricsRefresh(ctx context.Context, h *Harness, _ map[string]any) (map[string]any, error) {
	if err := h.metrics.Refresh(ctx); err != nil {
		return nil, err
	}
	s := h.metrics.Snapshot()
	return map[string]any{
		"today_steps":     s.TodaySteps,
		"weekly_steps":    s.WeeklySteps,
		"daily_progress":  s.DailyProgress,
		"weekly_progress": s.WeeklyProgress,
	}, nil
}

func goalsSet(ctx context.Context, h *Harness, args map[string]any) (map[string]any, error) {
	daily, err := argInt(args, "daily")
	if err != nil {
		return nil, err
	}
	weekly, err := argInt(args, "weekly")
	if err != nil {
		return nil, err
	}
	if err := h.metrics.UpdateTargets(ctx, daily, weekly); err != nil {
		return nil, err
	}
	g := h.metrics.Snapshot().Goals
	return map[string]any{
		"daily_target":  g.DailyTarget,
		"weekly_target": g.WeeklyTarget,
	}, nil
}

// notifyFire runs every scheduled notification display.
func notifyFire(_ context.Context, h *Harness, _ map[string]any) (map[string]any, error) {
	return map[string]any{"displayed": h.timers.FireAll()}, nil
}

// userArg resolves the "email" arg to a backend user id.
func (h *Harness) userArg(args map[string]any) (int64, error) {
	email, err := argString(args, "email")
	if err != nil {
		return 0, err
	}
	id, ok := h.users[strings.ToLower(email)]
	if !ok {
		return 0, fmt.Errorf("%w: unknown user %q", errScenario, email)
	}
	return id, nil
}

func argString(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("%w: missing arg %q", errScenario, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: arg %q must be a string, got %T", errScenario, key, v)
	}
	return s, nil
}

func argInt(args map[string]any, key string) (int, error) {
	v, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing arg %q", errScenario, key)
	}
	n, ok := toInt64(v)
	if !ok {
		return 0, fmt.Errorf("%w: arg %q must be an integer, got %T", errScenario, key, v)
	}
	return int(n), nil
}

func argBool(args map[string]any, key string) (bool, error) {
	v, ok := args[key]
	if !ok {
		return false, fmt.Errorf("%w: missing arg %q", errScenario, key)
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: arg %q must be a bool, got %T", errScenario, key, v)
	}
	return b, nil
}

func argDate(args map[string]any, key string) (dates.Date, error) {
	s, err := argString(args, key)
	if err != nil {
		return dates.Date{}, err
	}
	d, err := dates.Parse(s)
	if err != nil {
		return dates.Date{}, fmt.Errorf("%w: arg %q: %v", errScenario, key, err)
	}
	return d, nil
}
