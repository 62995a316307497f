package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/caarlos0/env/v11"

	"github.com/roach88/stepsync/internal/dates"
	"github.com/roach88/stepsync/internal/notify"
)

//go:embed schema.cue
var schemaCUE []byte

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "STEPSYNC_"

// Default values.
const (
	DefaultAPIURL       = "http://localhost:8080"
	DefaultPollInterval = time.Minute
)

// Error codes for configuration failures.
const (
	ErrCodeSchema   = "CONFIG_SCHEMA"
	ErrCodeRead     = "CONFIG_READ"
	ErrCodeEnv      = "CONFIG_ENV"
	ErrCodeRange    = "CONFIG_RANGE"
	ErrCodeRequired = "CONFIG_REQUIRED"
)

// Config holds resolved settings.
type Config struct {
	APIURL              string        `env:"API_URL"              json:"api_url"`
	Database            string        `env:"DB"                   json:"database"`
	DeadlineHour        int           `env:"DEADLINE_HOUR"        json:"deadline_hour"`
	NotificationStagger time.Duration `env:"NOTIFICATION_STAGGER" json:"notification_stagger"`
	HealthFile          string        `env:"HEALTH_FILE"          json:"health_file"`
	RemindersAllowed    bool          `env:"REMINDERS_ALLOWED"    json:"reminders_allowed"`
	PollInterval        time.Duration `env:"POLL_INTERVAL"        json:"poll_interval"`
}

// ValidationError describes one rejected setting.
type ValidationError struct {
	Field   string    `json:"field"`
	Message string    `json:"message"`
	Code    string    `json:"code"`
	Pos     token.Pos `json:"-"`
}

func (e *ValidationError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("[%s] %s:%d:%d: %s: %s",
			e.Code, e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// IsValidationError reports whether err carries a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Dir returns the per-user stepsync directory, $HOME/.stepsync.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".stepsync"
	}
	return filepath.Join(home, ".stepsync")
}

// DefaultPath is the config file consulted when none is named.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.cue")
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		APIURL:              DefaultAPIURL,
		Database:            filepath.Join(Dir(), "stepsync.db"),
		DeadlineHour:        dates.DefaultDeadlineHour,
		NotificationStagger: notify.DefaultStagger,
		HealthFile:          filepath.Join(Dir(), "health.yaml"),
		PollInterval:        DefaultPollInterval,
	}
}

// Options control where Load reads from.
type Options struct {
	// Path names the CUE file. Empty means DefaultPath, which may be absent.
	Path string
	// Environment replaces the process environment when non-nil.
	Environment map[string]string
}

// Load resolves the configuration from defaults, the CUE file and the
// environment, in that order, and validates the result.
func Load(opts Options) (Config, error) {
	cfg := Default()

	path := opts.Path
	required := path != ""
	if path == "" {
		path = DefaultPath()
	}
	src, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := applyFile(&cfg, path, src); err != nil {
			return Config{}, err
		}
	case errors.Is(err, os.ErrNotExist) && !required:
	default:
		return Config{}, &ValidationError{Field: path, Message: err.Error(), Code: ErrCodeRead}
	}

	envOpts := env.Options{Prefix: EnvPrefix}
	if opts.Environment != nil {
		envOpts.Environment = opts.Environment
	}
	if err := env.ParseWithOptions(&cfg, envOpts); err != nil {
		return Config{}, &ValidationError{Field: "env", Message: err.Error(), Code: ErrCodeEnv}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks invariants that hold whichever layer set the value.
func (c Config) Validate() error {
	if c.APIURL == "" {
		return &ValidationError{Field: "api_url", Message: "must be set", Code: ErrCodeRequired}
	}
	if c.Database == "" {
		return &ValidationError{Field: "database", Message: "must be set", Code: ErrCodeRequired}
	}
	if c.DeadlineHour < 0 || c.DeadlineHour > 23 {
		return &ValidationError{Field: "deadline_hour", Message: fmt.Sprintf("%d not in 0..23", c.DeadlineHour), Code: ErrCodeRange}
	}
	if c.NotificationStagger <= 0 {
		return &ValidationError{Field: "notification_stagger", Message: "must be positive", Code: ErrCodeRange}
	}
	if c.PollInterval <= 0 {
		return &ValidationError{Field: "poll_interval", Message: "must be positive", Code: ErrCodeRange}
	}
	return nil
}

// fileConfig mirrors #Config. Pointer fields stay nil when the file
// omits them.
type fileConfig struct {
	APIURL              *string `json:"api_url"`
	Database            *string `json:"database"`
	DeadlineHour        *int    `json:"deadline_hour"`
	NotificationStagger *string `json:"notification_stagger"`
	HealthFile          *string `json:"health_file"`
	RemindersAllowed    *bool   `json:"reminders_allowed"`
	PollInterval        *string `json:"poll_interval"`
}

func applyFile(cfg *Config, path string, src []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	data := ctx.CompileBytes(src, cue.Filename(path))
	if err := data.Err(); err != nil {
		return formatCUEError(err)
	}

	v := def.Unify(data)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}

	var fc fileConfig
	if err := v.Decode(&fc); err != nil {
		return formatCUEError(err)
	}

	if fc.APIURL != nil {
		cfg.APIURL = *fc.APIURL
	}
	if fc.Database != nil {
		cfg.Database = *fc.Database
	}
	if fc.DeadlineHour != nil {
		cfg.DeadlineHour = *fc.DeadlineHour
	}
	if fc.HealthFile != nil {
		cfg.HealthFile = *fc.HealthFile
	}
	if fc.RemindersAllowed != nil {
		cfg.RemindersAllowed = *fc.RemindersAllowed
	}
	if fc.NotificationStagger != nil {
		d, err := parseDuration(v, "notification_stagger", *fc.NotificationStagger)
		if err != nil {
			return err
		}
		cfg.NotificationStagger = d
	}
	if fc.PollInterval != nil {
		d, err := parseDuration(v, "poll_interval", *fc.PollInterval)
		if err != nil {
			return err
		}
		cfg.PollInterval = d
	}
	return nil
}

func parseDuration(v cue.Value, field, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, &ValidationError{
			Field:   field,
			Message: err.Error(),
			Code:    ErrCodeSchema,
			Pos:     v.LookupPath(cue.ParsePath(field)).Pos(),
		}
	}
	return d, nil
}

// formatCUEError keeps the first CUE error and its source position.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &ValidationError{Field: "cue", Message: err.Error(), Code: ErrCodeSchema}
	}
	first := errs[0]
	ve := &ValidationError{Field: "cue", Message: first.Error(), Code: ErrCodeSchema}
	if path := first.Path(); len(path) > 0 {
		ve.Field = path[len(path)-1]
	}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		ve.Pos = positions[0]
	}
	return ve
}
