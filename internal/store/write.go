package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/stepsync/internal/model"
)

// TokenKey is the credentials row holding the bearer token.
const TokenKey = "auth_token"

// ErrInvalidEntry is returned for entries the schema would reject.
var ErrInvalidEntry = errors.New("invalid step entry")

// SaveToken persists the bearer token, replacing any previous one.
func (s *Store) SaveToken(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("save token: empty token")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, TokenKey, token, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// ClearToken removes the persisted token. Clearing an absent token is not
// an error.
func (s *Store) ClearToken(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE key = ?`, TokenKey); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}

// DiscardToken removes the persisted token only if it still equals token.
// A token saved by a later sign-in is left in place.
func (s *Store) DiscardToken(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE key = ? AND value = ?`, TokenKey, token)
	if err != nil {
		return fmt.Errorf("discard token: %w", err)
	}
	return nil
}

// UpsertEntry writes e as the single cached entry for its key. An existing
// row is replaced and its version incremented; a new row starts at
// version 1. The stored entry is returned.
func (s *Store) UpsertEntry(ctx context.Context, e model.StepEntry) (model.StepEntry, error) {
	if e.StepCount < 0 {
		return model.StepEntry{}, fmt.Errorf("upsert entry %s: %w: negative step count", e.Date, ErrInvalidEntry)
	}
	if e.Date.IsZero() {
		return model.StepEntry{}, fmt.Errorf("upsert entry: %w: missing date", ErrInvalidEntry)
	}
	if !e.Source.Valid() {
		return model.StepEntry{}, fmt.Errorf("upsert entry %s: %w: source %q", e.Date, ErrInvalidEntry, e.Source)
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now()
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO step_entries
		(owner, date, challenge_id, step_count, source, version, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT(owner, date, challenge_id) DO UPDATE SET
			step_count = excluded.step_count,
			source = excluded.source,
			version = step_entries.version + 1,
			updated_at = excluded.updated_at
		RETURNING owner, date, challenge_id, step_count, source, version, updated_at
	`,
		e.Owner,
		e.Date.String(),
		e.ChallengeID,
		e.StepCount,
		string(e.Source),
		formatTime(e.UpdatedAt),
	)
	stored, err := scanEntry(row)
	if err != nil {
		return model.StepEntry{}, fmt.Errorf("upsert entry %s: %w", e.Date, err)
	}
	return stored, nil
}

// PutSetting stores a key/value setting.
func (s *Store) PutSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("put setting %s: %w", key, err)
	}
	return nil
}

// DeleteSetting removes a setting if present.
func (s *Store) DeleteSetting(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete setting %s: %w", key, err)
	}
	return nil
}
