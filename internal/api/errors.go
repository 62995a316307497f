package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized matches any RemoteError with status 401.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNetwork wraps transport-level failures (DNS, connection reset,
	// TLS). The request may or may not have reached the server.
	ErrNetwork = errors.New("network failure")

	// ErrMalformedResponse is returned when a 2xx body does not match the
	// endpoint's schema.
	ErrMalformedResponse = errors.New("malformed response")
)

// RemoteError is a non-2xx response from the backend.
//
// Message is the server-provided text, shown to the user verbatim. When the
// body carries no message the HTTP status text is used instead.
type RemoteError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error %d: %s", e.Status, e.Message)
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 responses.
func (e *RemoteError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// IsUnauthorized returns true if err is a 401 from the backend.
// Uses errors.Is to handle wrapped errors.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsNetwork returns true if err is a transport-level failure.
func IsNetwork(err error) bool {
	return errors.Is(err, ErrNetwork)
}

// UserMessage returns the text to show for err: the verbatim server
// message for RemoteError, a generic retryable message for transport
// failures, and err.Error() otherwise.
func UserMessage(err error) string {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Message
	}
	if IsNetwork(err) {
		return "network error, please try again"
	}
	return err.Error()
}
