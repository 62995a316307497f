package testutil

import (
	"context"
	"sync"

	"github.com/roach88/stepsync/internal/dates"
	"github.com/roach88/stepsync/internal/health"
)

// FakeHealth is a scriptable health.Provider.
//
// It starts available and authorized with no data. Queries for a date can
// be made to fail or to block until released.
//
// Thread-safety: all methods are safe for concurrent use.
type FakeHealth struct {
	mu         sync.Mutex
	available  bool
	authorized bool
	authErr    error
	steps      map[dates.Date]int
	errs       map[dates.Date]error
	gate       chan struct{}
	authCalls  int
	queried    []dates.Date
}

var _ health.Provider = (*FakeHealth)(nil)

// NewFakeHealth creates an available, authorized provider.
func NewFakeHealth() *FakeHealth {
	return &FakeHealth{
		available:  true,
		authorized: true,
		steps:      make(map[dates.Date]int),
		errs:       make(map[dates.Date]error),
	}
}

// SetAvailable toggles IsAvailable.
func (h *FakeHealth) SetAvailable(v bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.available = v
}

// SetAuthorized sets the RequestAuthorization answer and error.
func (h *FakeHealth) SetAuthorized(v bool, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.authorized = v
	h.authErr = err
}

// SetSteps sets the total reported for d.
func (h *FakeHealth) SetSteps(d dates.Date, n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.steps[d] = n
}

// FailQuery makes TotalSteps for d return err.
func (h *FakeHealth) FailQuery(d dates.Date, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs[d] = err
}

// Hold blocks TotalSteps until the returned function is called.
func (h *FakeHealth) Hold() (release func()) {
	gate := make(chan struct{})
	h.mu.Lock()
	h.gate = gate
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			if h.gate == gate {
				h.gate = nil
			}
			h.mu.Unlock()
			close(gate)
		})
	}
}

// AuthCalls returns how many times authorization was requested.
func (h *FakeHealth) AuthCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.authCalls
}

// Queried returns every date queried, in call order.
func (h *FakeHealth) Queried() []dates.Date {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]dates.Date(nil), h.queried...)
}

// IsAvailable implements health.Provider.
func (h *FakeHealth) IsAvailable(context.Context) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.available
}

// RequestAuthorization implements health.Provider.
func (h *FakeHealth) RequestAuthorization(context.Context, []health.Scope) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.authCalls++
	return h.authorized, h.authErr
}

// TotalSteps implements health.Provider.
func (h *FakeHealth) TotalSteps(ctx context.Context, d dates.Date) (int, error) {
	h.mu.Lock()
	h.queried = append(h.queried, d)
	gate := h.gate
	h.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.errs[d]; err != nil {
		return 0, err
	}
	return h.steps[d], nil
}
