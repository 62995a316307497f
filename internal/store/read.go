package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/stepsync/internal/model"
)

// LoadToken returns the persisted token. ok is false when none is stored.
func (s *Store) LoadToken(ctx context.Context) (token string, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, `SELECT value FROM credentials WHERE key = ?`, TokenKey).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load token: %w", err)
	}
	return token, true, nil
}

// ReadEntry returns the cached entry for key.
// Returns sql.ErrNoRows if nothing is cached.
func (s *Store) ReadEntry(ctx context.Context, key model.EntryKey) (model.StepEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT owner, date, challenge_id, step_count, source, version, updated_at
		FROM step_entries
		WHERE owner = ? AND date = ? AND challenge_id = ?
	`, key.Owner, key.Date.String(), key.ChallengeID)

	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.StepEntry{}, err
		}
		return model.StepEntry{}, fmt.Errorf("read entry %s: %w", key.Date, err)
	}
	return e, nil
}

// ListEntries returns the owner's cached entries for one log, newest date
// first. challengeID zero selects the personal log.
//
// Returns an empty slice (not nil) if nothing is cached.
func (s *Store) ListEntries(ctx context.Context, owner, challengeID int64) ([]model.StepEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT owner, date, challenge_id, step_count, source, version, updated_at
		FROM step_entries
		WHERE owner = ? AND challenge_id = ?
		ORDER BY date DESC
	`, owner, challengeID)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := make([]model.StepEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// Setting returns a stored setting. ok is false when the key is absent.
func (s *Store) Setting(ctx context.Context, key string) (value string, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read setting %s: %w", key, err)
	}
	return value, true, nil
}
