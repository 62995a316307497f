package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.cue")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o600))
	return path
}

func noEnv() map[string]string { return map[string]string{} }

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 12, cfg.DeadlineHour)
	assert.Equal(t, 500*time.Millisecond, cfg.NotificationStagger)
	assert.Equal(t, time.Minute, cfg.PollInterval)
	assert.False(t, cfg.RemindersAllowed)
	assert.Equal(t, "stepsync.db", filepath.Base(cfg.Database))
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingDefaultFileIsFine(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(Options{Environment: noEnv()})
	require.NoError(t, err)
	assert.Equal(t, DefaultAPIURL, cfg.APIURL)
}

func TestLoad_MissingNamedFileFails(t *testing.T) {
	_, err := Load(Options{Path: filepath.Join(t.TempDir(), "nope.cue"), Environment: noEnv()})
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, ErrCodeRead, ve.Code)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
api_url:              "https://steps.example.com"
database:             "/tmp/steps.db"
deadline_hour:        9
notification_stagger: "250ms"
reminders_allowed:    true
poll_interval:        "1m30s"
`)

	cfg, err := Load(Options{Path: path, Environment: noEnv()})
	require.NoError(t, err)
	assert.Equal(t, "https://steps.example.com", cfg.APIURL)
	assert.Equal(t, "/tmp/steps.db", cfg.Database)
	assert.Equal(t, 9, cfg.DeadlineHour)
	assert.Equal(t, 250*time.Millisecond, cfg.NotificationStagger)
	assert.True(t, cfg.RemindersAllowed)
	assert.Equal(t, 90*time.Second, cfg.PollInterval)
	assert.Equal(t, Default().HealthFile, cfg.HealthFile, "omitted fields keep defaults")
}

func TestLoad_SchemaRejections(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"deadline out of range", `deadline_hour: 24`},
		{"negative deadline", `deadline_hour: -1`},
		{"deadline not int", `deadline_hour: "noon"`},
		{"bad url scheme", `api_url: "ftp://example.com"`},
		{"bad duration", `poll_interval: "soon"`},
		{"unknown field", `colour: "blue"`},
		{"empty database", `database: ""`},
		{"syntax error", `deadline_hour: {`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(Options{Path: writeConfig(t, tt.src), Environment: noEnv()})
			require.Error(t, err)

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, ErrCodeSchema, ve.Code)
		})
	}
}

func TestLoad_ZeroDurationRejected(t *testing.T) {
	_, err := Load(Options{Path: writeConfig(t, `notification_stagger: "0s"`), Environment: noEnv()})
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, ErrCodeRange, ve.Code)
	assert.Equal(t, "notification_stagger", ve.Field)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
deadline_hour: 9
api_url:       "https://file.example.com"
`)

	cfg, err := Load(Options{Path: path, Environment: map[string]string{
		"STEPSYNC_DEADLINE_HOUR":        "15",
		"STEPSYNC_DB":                   "/var/lib/steps.db",
		"STEPSYNC_NOTIFICATION_STAGGER": "2s",
		"STEPSYNC_REMINDERS_ALLOWED":    "true",
	}})
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.DeadlineHour)
	assert.Equal(t, "https://file.example.com", cfg.APIURL)
	assert.Equal(t, "/var/lib/steps.db", cfg.Database)
	assert.Equal(t, 2*time.Second, cfg.NotificationStagger)
	assert.True(t, cfg.RemindersAllowed)
}

func TestLoad_EnvRangeChecked(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, err := Load(Options{Environment: map[string]string{"STEPSYNC_DEADLINE_HOUR": "30"}})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "deadline_hour")

	_, err = Load(Options{Environment: map[string]string{"STEPSYNC_POLL_INTERVAL": "later"}})
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, ErrCodeEnv, ve.Code)
}

func TestValidationError_Format(t *testing.T) {
	err := &ValidationError{Field: "deadline_hour", Message: "24 not in 0..23", Code: ErrCodeRange}
	assert.Equal(t, "[CONFIG_RANGE] deadline_hour: 24 not in 0..23", err.Error())
}
