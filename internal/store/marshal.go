package store

import (
	"fmt"
	"time"

	"github.com/roach88/stepsync/internal/dates"
	"github.com/roach88/stepsync/internal/model"
)

// Timestamps are stored as RFC 3339 text in UTC so that lexical order
// matches time order.
const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// entryRow is the scanned form of a step_entries row.
type entryRow struct {
	owner       int64
	date        string
	challengeID int64
	stepCount   int
	source      string
	version     int64
	updatedAt   string
}

func (r entryRow) toModel() (model.StepEntry, error) {
	d, err := dates.Parse(r.date)
	if err != nil {
		return model.StepEntry{}, fmt.Errorf("entry date: %w", err)
	}
	src := model.Source(r.source)
	if !src.Valid() {
		return model.StepEntry{}, fmt.Errorf("entry source %q is not valid", r.source)
	}
	updated, err := parseTime(r.updatedAt)
	if err != nil {
		return model.StepEntry{}, err
	}
	return model.StepEntry{
		Owner:       r.owner,
		Date:        d,
		ChallengeID: r.challengeID,
		StepCount:   r.stepCount,
		Source:      src,
		Version:     r.version,
		UpdatedAt:   updated,
	}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (model.StepEntry, error) {
	var r entryRow
	if err := sc.Scan(&r.owner, &r.date, &r.challengeID, &r.stepCount, &r.source, &r.version, &r.updatedAt); err != nil {
		return model.StepEntry{}, err
	}
	return r.toModel()
}
