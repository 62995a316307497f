package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/stepsync/internal/dates"
	"github.com/roach88/stepsync/internal/model"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestEntry creates a personal manual entry with minimal required fields.
func createTestEntry(owner int64, date string, steps int) model.StepEntry {
	return model.StepEntry{
		Owner:     owner,
		Date:      dates.MustParse(date),
		StepCount: steps,
		Source:    model.SourceManual,
		UpdatedAt: time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC),
	}
}
