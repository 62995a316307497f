package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCount means the step count is not a non-negative integer.
	ErrInvalidCount = errors.New("step count must be a whole number of zero or more")

	// ErrInvalidInput means a required field is missing or the submission
	// does not fit the gateway's scope.
	ErrInvalidInput = errors.New("invalid submission")

	// ErrEditWindowClosed means the date can no longer be edited.
	ErrEditWindowClosed = errors.New("this day can no longer be edited")

	// ErrRemoteRejected means the backend write failed. The cache was not
	// modified.
	ErrRemoteRejected = errors.New("step write rejected")
)

// Error codes for SubmitError.
const (
	CodeInvalidCount     = "INVALID_COUNT"
	CodeInvalidInput     = "INVALID_INPUT"
	CodeEditWindowClosed = "EDIT_WINDOW_CLOSED"
	CodeRemoteRejected   = "REMOTE_REJECTED"
)

var codeSentinels = map[string]error{
	CodeInvalidCount:     ErrInvalidCount,
	CodeInvalidInput:     ErrInvalidInput,
	CodeEditWindowClosed: ErrEditWindowClosed,
	CodeRemoteRejected:   ErrRemoteRejected,
}

// SubmitError is a failed submission.
//
// errors.Is matches the sentinel for Code; errors.As/Unwrap reach the
// underlying cause (for remote rejections, the *api.RemoteError carrying
// the server's message).
type SubmitError struct {
	Code    string
	Date    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *SubmitError) Error() string {
	msg := e.Message
	if msg == "" {
		if s, ok := codeSentinels[e.Code]; ok {
			msg = s.Error()
		}
	}
	if e.Date != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Date)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

// Unwrap returns the underlying cause.
func (e *SubmitError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for e.Code.
func (e *SubmitError) Is(target error) bool {
	s, ok := codeSentinels[e.Code]
	return ok && s == target
}

// IsEditWindowClosed returns true if err is an edit-window rejection.
// Uses errors.Is to handle wrapped errors.
func IsEditWindowClosed(err error) bool {
	return errors.Is(err, ErrEditWindowClosed)
}

// IsRemoteRejected returns true if err is a failed backend write.
func IsRemoteRejected(err error) bool {
	return errors.Is(err, ErrRemoteRejected)
}

// IsInvalid returns true if err was rejected before reaching the network
// for bad input.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalidCount) || errors.Is(err, ErrInvalidInput)
}
