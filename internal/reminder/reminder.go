// Package reminder toggles the daily "log your steps" reminder.
//
// Scheduling itself is delegated to a Scheduler, the local notification
// service of the platform. SettingsScheduler is the implementation used
// by the command-line client: it records the reminder in the settings
// table and refuses to schedule when reminders are not permitted.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
)

// ErrPermissionDenied is returned by Enable when the scheduler refuses.
var ErrPermissionDenied = errors.New("notification permission denied")

// SettingKey is where SettingsScheduler records the reminder.
const SettingKey = "reminder_scheduled"

// Scheduler is the platform's local notification service.
type Scheduler interface {
	IsScheduled(ctx context.Context) (bool, error)
	// Schedule returns false when the user has denied permission.
	Schedule(ctx context.Context) (bool, error)
	Cancel(ctx context.Context) error
}

// Settings is a key/value store. *store.Store implements it.
type Settings interface {
	Setting(ctx context.Context, key string) (string, bool, error)
	PutSetting(ctx context.Context, key, value string) error
	DeleteSetting(ctx context.Context, key string) error
}

// SettingsScheduler persists the reminder flag in Settings.
type SettingsScheduler struct {
	settings Settings
	allowed  bool
}

// NewSettingsScheduler returns a scheduler. When allowed is false every
// Schedule call reports permission denied.
func NewSettingsScheduler(settings Settings, allowed bool) *SettingsScheduler {
	return &SettingsScheduler{settings: settings, allowed: allowed}
}

// IsScheduled implements Scheduler.
func (s *SettingsScheduler) IsScheduled(ctx context.Context) (bool, error) {
	v, ok, err := s.settings.Setting(ctx, SettingKey)
	if err != nil || !ok {
		return false, err
	}
	on, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("setting %s: %w", SettingKey, err)
	}
	return on, nil
}

// Schedule implements Scheduler.
func (s *SettingsScheduler) Schedule(ctx context.Context) (bool, error) {
	if !s.allowed {
		return false, nil
	}
	if err := s.settings.PutSetting(ctx, SettingKey, "true"); err != nil {
		return false, err
	}
	return true, nil
}

// Cancel implements Scheduler.
func (s *SettingsScheduler) Cancel(ctx context.Context) error {
	return s.settings.DeleteSetting(ctx, SettingKey)
}

// Reminders is the user-facing toggle.
type Reminders struct {
	sched Scheduler
}

// New wraps a Scheduler.
func New(sched Scheduler) *Reminders {
	return &Reminders{sched: sched}
}

// Status reports whether a reminder is scheduled.
func (r *Reminders) Status(ctx context.Context) (bool, error) {
	on, err := r.sched.IsScheduled(ctx)
	if err != nil {
		return false, fmt.Errorf("reminder status: %w", err)
	}
	return on, nil
}

// Enable schedules the reminder. Enabling an already scheduled reminder
// is a no-op.
func (r *Reminders) Enable(ctx context.Context) error {
	on, err := r.sched.IsScheduled(ctx)
	if err != nil {
		return fmt.Errorf("enable reminder: %w", err)
	}
	if on {
		return nil
	}
	ok, err := r.sched.Schedule(ctx)
	if err != nil {
		return fmt.Errorf("enable reminder: %w", err)
	}
	if !ok {
		return ErrPermissionDenied
	}
	slog.Info("reminder scheduled")
	return nil
}

// Disable cancels the reminder. The cancel call is fire and forget on the
// platform side; only local failures are returned.
func (r *Reminders) Disable(ctx context.Context) error {
	if err := r.sched.Cancel(ctx); err != nil {
		return fmt.Errorf("disable reminder: %w", err)
	}
	slog.Info("reminder cancelled")
	return nil
}
