package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/stepsync/internal/api"
	"github.com/roach88/stepsync/internal/config"
	"github.com/roach88/stepsync/internal/devicesync"
	"github.com/roach88/stepsync/internal/gateway"
	"github.com/roach88/stepsync/internal/metrics"
	"github.com/roach88/stepsync/internal/reminder"
	"github.com/roach88/stepsync/internal/session"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation failed (rejected by the backend, window closed, not signed in)
	ExitCommandError = 2 // Command error (bad input, bad configuration, database unavailable)
)

// Error codes reported in the error envelope.
const (
	ErrCodeGeneric            = "E001" // Generic/unknown error
	ErrCodeConfig             = "E002" // Invalid configuration
	ErrCodeNotSignedIn        = "E010" // No authenticated session
	ErrCodeInvalidCredentials = "E011" // Login rejected
	ErrCodeInvalidInput       = "E020" // Form input rejected before any network call
	ErrCodeEditWindowClosed   = "E021" // Date outside the edit window
	ErrCodeRemoteRejected     = "E022" // Backend refused the request
	ErrCodeNetwork            = "E023" // Transport failure
	ErrCodeSyncInProgress     = "E030" // Another device sync is running
	ErrCodeProviderMissing    = "E031" // Device provider unavailable
	ErrCodeNotAuthorized      = "E032" // Device read permission denied
	ErrCodePermissionDenied   = "E040" // Reminder permission denied
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	ErrCode string // Envelope code (ErrCode*); derived from Err when empty
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// failure converts a core error into an ExitError whose message is what
// the user should see: the verbatim server message for backend
// rejections, a fixed text for everything else.
func failure(err error) *ExitError {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}

	var submitErr *gateway.SubmitError
	switch {
	case errors.Is(err, session.ErrInvalidCredentials):
		return &ExitError{Code: ExitFailure, ErrCode: ErrCodeInvalidCredentials, Message: api.UserMessage(err), Err: err}
	case errors.Is(err, session.ErrNotAuthenticated):
		return &ExitError{Code: ExitFailure, ErrCode: ErrCodeNotSignedIn, Message: "not signed in: run 'stepsync login'", Err: err}
	case gateway.IsInvalid(err) && errors.As(err, &submitErr):
		return &ExitError{Code: ExitCommandError, ErrCode: ErrCodeInvalidInput, Message: submitErr.Message, Err: err}
	case errors.Is(err, metrics.ErrInvalidTargets):
		return &ExitError{Code: ExitCommandError, ErrCode: ErrCodeInvalidInput, Message: "targets must be positive", Err: err}
	case gateway.IsEditWindowClosed(err):
		return &ExitError{Code: ExitFailure, ErrCode: ErrCodeEditWindowClosed, Message: "that date can no longer be edited", Err: err}
	case errors.Is(err, devicesync.ErrSyncInProgress):
		return &ExitError{Code: ExitFailure, ErrCode: ErrCodeSyncInProgress, Message: devicesync.MsgInProgress, Err: err}
	case errors.Is(err, devicesync.ErrProviderUnavailable):
		return &ExitError{Code: ExitFailure, ErrCode: ErrCodeProviderMissing, Message: "no device step data available", Err: err}
	case errors.Is(err, devicesync.ErrNotAuthorized):
		return &ExitError{Code: ExitFailure, ErrCode: ErrCodeNotAuthorized, Message: "step data access was not granted", Err: err}
	case errors.Is(err, reminder.ErrPermissionDenied):
		return &ExitError{Code: ExitFailure, ErrCode: ErrCodePermissionDenied, Message: "notifications are not permitted", Err: err}
	case api.IsNetwork(err):
		return &ExitError{Code: ExitFailure, ErrCode: ErrCodeNetwork, Message: api.UserMessage(err), Err: err}
	case config.IsValidationError(err):
		return &ExitError{Code: ExitCommandError, ErrCode: ErrCodeConfig, Message: "invalid configuration", Err: err}
	}

	var remote *api.RemoteError
	if errors.As(err, &remote) {
		return &ExitError{Code: ExitFailure, ErrCode: ErrCodeRemoteRejected, Message: remote.Message, Err: err}
	}
	return &ExitError{Code: ExitFailure, ErrCode: ErrCodeGeneric, Message: err.Error()}
}

// envelopeCode returns the ErrCode for e, deriving it from the wrapped
// error when unset.
func envelopeCode(e *ExitError) string {
	if e.ErrCode != "" {
		return e.ErrCode
	}
	if e.Err != nil {
		if derived := failure(e.Err); derived.ErrCode != "" && derived != e {
			return derived.ErrCode
		}
	}
	return ErrCodeGeneric
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E002", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	// Human-readable text output
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	// Human-readable error
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err in the configured format. Underlying causes are shown
// only in verbose mode.
func (f *OutputFormatter) Fail(err error) error {
	exitErr := failure(err)
	var details any
	if exitErr.Err != nil {
		details = exitErr.Err.Error()
	}
	return f.Error(envelopeCode(exitErr), exitErr.Message, details)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
