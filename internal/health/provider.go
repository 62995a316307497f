// Package health abstracts the device's step-count data source.
//
// A Provider may be missing entirely (IsAvailable false), may refuse
// access (RequestAuthorization false), and reports one total per local
// calendar date. FileProvider reads a YAML export produced by a companion
// app or a test, so the client runs without a platform health API.
package health

import (
	"context"
	"errors"

	"github.com/roach88/stepsync/internal/dates"
)

// Scope is a data permission requested from the provider.
type Scope string

// ScopeStepCount grants read access to daily step totals.
const ScopeStepCount Scope = "steps.read"

// ErrUnavailable is returned when the provider cannot be reached.
var ErrUnavailable = errors.New("health data unavailable")

// Provider is a device health data source.
type Provider interface {
	IsAvailable(ctx context.Context) bool
	RequestAuthorization(ctx context.Context, scopes []Scope) (bool, error)
	TotalSteps(ctx context.Context, d dates.Date) (int, error)
}
