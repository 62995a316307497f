package engine

import (
	"errors"
	"fmt"
)

// EventError is an event the engine could not act on.
type EventError struct {
	Code    EventErrorCode
	Event   Event
	Message string
}

// EventErrorCode categorizes event errors.
type EventErrorCode string

const (
	// ErrCodeNotAuthenticated means the event needs a signed-in user.
	ErrCodeNotAuthenticated EventErrorCode = "NOT_AUTHENTICATED"

	// ErrCodeNotMounted means the event needs the main screen mounted.
	ErrCodeNotMounted EventErrorCode = "NOT_MOUNTED"

	// ErrCodeAlreadyMounted means a second screen-entered arrived for the
	// same mount.
	ErrCodeAlreadyMounted EventErrorCode = "ALREADY_MOUNTED"
)

// Error implements the error interface.
func (e *EventError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s (seq=%d)", e.Code, e.Event.Type, e.Event.Seq)
	}
	return fmt.Sprintf("%s: %s: %s (seq=%d)", e.Code, e.Event.Type, e.Message, e.Event.Seq)
}

// IsNotAuthenticated returns true if err is an EventError for a
// signed-out session. Uses errors.As to handle wrapped errors.
func IsNotAuthenticated(err error) bool {
	var ee *EventError
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeNotAuthenticated
	}
	return false
}

// IsNotMounted returns true if err is an EventError for an event that
// needs the main screen.
func IsNotMounted(err error) bool {
	var ee *EventError
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeNotMounted
	}
	return false
}
