package dates

import "time"

// DefaultDeadlineHour is the local hour (exclusive) until which yesterday
// remains editable.
const DefaultDeadlineHour = 12

// Clock supplies wall-clock time. Production code uses SystemClock; tests
// use testutil.WallClock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now in the process's local zone.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Today returns the calendar day of now.
func Today(now time.Time) Date {
	return Of(now)
}

// Yesterday returns the calendar day before now.
func Yesterday(now time.Time) Date {
	return Of(now).AddDays(-1)
}

// IsEditable reports whether steps for d may still be written at now.
//
// d is editable when it is today, or when it is yesterday and the hour of
// now is strictly less than deadlineHour. Every other date is closed.
func IsEditable(d Date, now time.Time, deadlineHour int) bool {
	if d == Today(now) {
		return true
	}
	return d == Yesterday(now) && now.Hour() < deadlineHour
}

// Window binds the edit-window rule to a clock and a deadline hour.
//
// Nothing is cached: each call reads the clock again because the deadline
// can pass while the process is running.
type Window struct {
	Clock        Clock
	DeadlineHour int
}

// NewWindow returns a Window with the given deadline. A nil clock means
// SystemClock.
func NewWindow(clock Clock, deadlineHour int) Window {
	if clock == nil {
		clock = SystemClock{}
	}
	return Window{Clock: clock, DeadlineHour: deadlineHour}
}

// Now returns the clock's current time.
func (w Window) Now() time.Time {
	if w.Clock == nil {
		return time.Now()
	}
	return w.Clock.Now()
}

// Today returns today's date according to the window's clock.
func (w Window) Today() Date {
	return Today(w.Now())
}

// Yesterday returns yesterday's date according to the window's clock.
func (w Window) Yesterday() Date {
	return Yesterday(w.Now())
}

// IsEditable evaluates the edit-window rule for d at the current time.
func (w Window) IsEditable(d Date) bool {
	return IsEditable(d, w.Now(), w.DeadlineHour)
}

// EditableDates returns the dates a device reconciliation may write,
// today first: [today] or [today, yesterday] before the deadline.
func (w Window) EditableDates() []Date {
	now := w.Now()
	out := []Date{Today(now)}
	if y := Yesterday(now); IsEditable(y, now, w.DeadlineHour) {
		out = append(out, y)
	}
	return out
}
