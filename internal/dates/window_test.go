package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }

func at(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := time.ParseInLocation("2006-01-02T15:04:05", s, time.Local)
	require.NoError(t, err)
	return v
}

func TestIsEditable_DeadlineScenario(t *testing.T) {
	yesterday := MustParse("2026-02-02")

	assert.True(t, IsEditable(yesterday, at(t, "2026-02-03T09:00:00"), 12))
	assert.False(t, IsEditable(yesterday, at(t, "2026-02-03T13:00:00"), 12))
}

func TestIsEditable_Table(t *testing.T) {
	tests := []struct {
		name     string
		date     string
		now      string
		deadline int
		want     bool
	}{
		{"today morning", "2026-02-03", "2026-02-03T00:00:00", 12, true},
		{"today late night", "2026-02-03", "2026-02-03T23:59:59", 12, true},
		{"yesterday before deadline", "2026-02-02", "2026-02-03T11:59:59", 12, true},
		{"yesterday at deadline", "2026-02-02", "2026-02-03T12:00:00", 12, false},
		{"yesterday deadline zero", "2026-02-02", "2026-02-03T00:00:00", 0, false},
		{"yesterday deadline 24", "2026-02-02", "2026-02-03T23:00:00", 24, true},
		{"two days ago", "2026-02-01", "2026-02-03T01:00:00", 12, false},
		{"tomorrow", "2026-02-04", "2026-02-03T10:00:00", 12, false},
		{"year boundary", "2025-12-31", "2026-01-01T08:00:00", 12, true},
		{"leap day", "2024-02-29", "2024-03-01T08:00:00", 12, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsEditable(MustParse(tt.date), at(t, tt.now), tt.deadline)
			assert.Equal(t, tt.want, got)
		})
	}
}

// Property: editable iff today, or yesterday and hour < deadline.
func TestIsEditable_Property(t *testing.T) {
	base := at(t, "2026-03-10T00:00:00")
	for hour := 0; hour < 24; hour++ {
		now := base.Add(time.Duration(hour) * time.Hour)
		for deadline := 0; deadline <= 24; deadline += 6 {
			for offset := -3; offset <= 1; offset++ {
				d := Of(now).AddDays(offset)
				want := offset == 0 || (offset == -1 && hour < deadline)
				assert.Equal(t, want, IsEditable(d, now, deadline),
					"offset=%d hour=%d deadline=%d", offset, hour, deadline)
			}
		}
	}
}

func TestWindow_EvaluatedFreshEachCall(t *testing.T) {
	clock := &fixedClock{t: at(t, "2026-02-03T11:30:00")}
	w := NewWindow(clock, DefaultDeadlineHour)

	yesterday := MustParse("2026-02-02")
	assert.True(t, w.IsEditable(yesterday))

	clock.t = at(t, "2026-02-03T12:00:01")
	assert.False(t, w.IsEditable(yesterday), "deadline crossed while running")
}

func TestWindow_EditableDates(t *testing.T) {
	clock := &fixedClock{t: at(t, "2026-02-03T09:00:00")}
	w := NewWindow(clock, 12)

	assert.Equal(t, []Date{MustParse("2026-02-03"), MustParse("2026-02-02")}, w.EditableDates())

	clock.t = at(t, "2026-02-03T13:00:00")
	assert.Equal(t, []Date{MustParse("2026-02-03")}, w.EditableDates())
}

func TestWindow_TodayYesterday(t *testing.T) {
	clock := &fixedClock{t: at(t, "2026-03-01T06:00:00")}
	w := NewWindow(clock, 12)

	assert.Equal(t, MustParse("2026-03-01"), w.Today())
	assert.Equal(t, MustParse("2026-02-28"), w.Yesterday())
}
