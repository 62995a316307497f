package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/stepsync/internal/dates"
	"github.com/roach88/stepsync/internal/model"
)

// Scope selects which log a Gateway writes.
type Scope int

const (
	// ScopePersonal writes the user's own daily log (ChallengeID == 0).
	ScopePersonal Scope = iota
	// ScopeChallenge writes one challenge's log (ChallengeID > 0).
	ScopeChallenge
)

func (s Scope) String() string {
	if s == ScopeChallenge {
		return "challenge"
	}
	return "personal"
}

// Writer sends a step write to the backend and returns the stored entry.
type Writer interface {
	Write(ctx context.Context, w model.StepWrite) (model.StepEntry, error)
}

// WriterFunc adapts a function (such as api.Client.WriteSteps) to Writer.
type WriterFunc func(ctx context.Context, w model.StepWrite) (model.StepEntry, error)

// Write calls f.
func (f WriterFunc) Write(ctx context.Context, w model.StepWrite) (model.StepEntry, error) {
	return f(ctx, w)
}

// Cache is the local step-entry cache. *store.Store implements it.
type Cache interface {
	UpsertEntry(ctx context.Context, e model.StepEntry) (model.StepEntry, error)
}

// Refresher is told about successful writes so dependent totals are
// recomputed. *metrics.Store implements it.
type Refresher interface {
	Invalidate()
	Refresh(ctx context.Context) error
}

// Submission is one request to record a step count.
type Submission struct {
	Owner       int64
	Date        dates.Date
	ChallengeID int64
	StepCount   int
	Source      model.Source
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithRefresher sets the metrics store refreshed after each successful
// submission.
func WithRefresher(r Refresher) Option {
	return func(g *Gateway) {
		g.refresher = r
	}
}

// Gateway validates, writes, and caches step counts for one scope.
//
// Thread-safety: Submit is safe for concurrent use.
type Gateway struct {
	scope     Scope
	writer    Writer
	cache     Cache
	window    dates.Window
	refresher Refresher
	locks     *keyedLocks
}

// New creates a Gateway.
func New(scope Scope, writer Writer, cache Cache, window dates.Window, opts ...Option) *Gateway {
	g := &Gateway{
		scope:  scope,
		writer: writer,
		cache:  cache,
		window: window,
		locks:  newKeyedLocks(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Scope returns the log this gateway writes.
func (g *Gateway) Scope() Scope {
	return g.scope
}

// Submit records s.StepCount for s's key.
//
// Input and edit-window failures are returned before any network call.
// Once the remote write has been sent it runs to completion and its result
// is cached even if ctx is cancelled meanwhile. On success the refresher
// (if any) is invalidated and refreshed before Submit returns; a failed
// refresh is logged and does not fail the submission.
func (g *Gateway) Submit(ctx context.Context, s Submission) (model.StepEntry, error) {
	w, err := g.validate(s)
	if err != nil {
		return model.StepEntry{}, err
	}
	if !g.window.IsEditable(w.Date) {
		return model.StepEntry{}, &SubmitError{Code: CodeEditWindowClosed, Date: w.Date.String()}
	}

	unlock, err := g.locks.lock(ctx, w.Key())
	if err != nil {
		return model.StepEntry{}, fmt.Errorf("submit %s: %w", w.Date, err)
	}
	entry, err := g.write(ctx, w)
	unlock()
	if err != nil {
		return model.StepEntry{}, err
	}

	if g.refresher != nil {
		g.refresher.Invalidate()
		if err := g.refresher.Refresh(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("metrics refresh after submit failed",
				"date", w.Date.String(),
				"error", err,
			)
		}
	}
	return entry, nil
}

// write performs the remote call and cache update. The caller holds the
// key's lock.
func (g *Gateway) write(ctx context.Context, w model.StepWrite) (model.StepEntry, error) {
	// The deadline may have passed while waiting for the lock.
	if !g.window.IsEditable(w.Date) {
		return model.StepEntry{}, &SubmitError{Code: CodeEditWindowClosed, Date: w.Date.String()}
	}
	if err := ctx.Err(); err != nil {
		return model.StepEntry{}, fmt.Errorf("submit %s: %w", w.Date, err)
	}

	// From here on the write is in flight and must not be abandoned.
	ctx = context.WithoutCancel(ctx)

	remote, err := g.writer.Write(ctx, w)
	if err != nil {
		slog.Info("step write rejected",
			"scope", g.scope.String(),
			"date", w.Date.String(),
			"error", err,
		)
		return model.StepEntry{}, &SubmitError{Code: CodeRemoteRejected, Date: w.Date.String(), Err: err}
	}

	// The key is always the one written; the server's count and source
	// win for everything else.
	remote.Owner = w.Owner
	remote.Date = w.Date
	remote.ChallengeID = w.ChallengeID
	if remote.UpdatedAt.IsZero() {
		remote.UpdatedAt = g.window.Now()
	}

	stored, err := g.cache.UpsertEntry(ctx, remote)
	if err != nil {
		return model.StepEntry{}, fmt.Errorf("submit %s: cache entry: %w", w.Date, err)
	}

	slog.Debug("step entry stored",
		"scope", g.scope.String(),
		"owner", w.Owner,
		"date", w.Date.String(),
		"steps", stored.StepCount,
		"source", string(stored.Source),
		"version", stored.Version,
	)
	return stored, nil
}

func (g *Gateway) validate(s Submission) (model.StepWrite, error) {
	if s.StepCount < 0 {
		return model.StepWrite{}, &SubmitError{Code: CodeInvalidCount, Message: "step count cannot be negative"}
	}
	if s.Date.IsZero() {
		return model.StepWrite{}, &SubmitError{Code: CodeInvalidInput, Message: "date is required"}
	}
	if s.Owner <= 0 {
		return model.StepWrite{}, &SubmitError{Code: CodeInvalidInput, Message: "owner is required"}
	}
	if s.Source == "" {
		s.Source = model.SourceManual
	}
	if !s.Source.Valid() {
		return model.StepWrite{}, &SubmitError{Code: CodeInvalidInput, Message: fmt.Sprintf("unknown source %q", s.Source)}
	}

	switch g.scope {
	case ScopePersonal:
		if s.ChallengeID != 0 {
			return model.StepWrite{}, &SubmitError{Code: CodeInvalidInput, Message: "challenge entry sent to personal log"}
		}
	case ScopeChallenge:
		if s.ChallengeID <= 0 {
			return model.StepWrite{}, &SubmitError{Code: CodeInvalidInput, Message: "challenge id is required"}
		}
	}

	return model.StepWrite{
		Owner:       s.Owner,
		Date:        s.Date,
		ChallengeID: s.ChallengeID,
		StepCount:   s.StepCount,
		Source:      s.Source,
	}, nil
}
