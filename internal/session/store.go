package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/oauth2"

	"github.com/roach88/stepsync/internal/api"
	"github.com/roach88/stepsync/internal/model"
)

var (
	// ErrInvalidCredentials is returned by SignIn when the backend rejects
	// the email/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNotAuthenticated is returned by Token outside the Authenticated
	// state.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// TokenStore persists the credential token under a fixed key.
// *store.Store implements it.
type TokenStore interface {
	LoadToken(ctx context.Context) (string, bool, error)
	SaveToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error
	// DiscardToken clears the persisted token only if it equals token.
	DiscardToken(ctx context.Context, token string) error
}

// Authenticator is the subset of the backend the session needs.
// *api.Client implements it; none of these calls read the Store's own
// token source.
type Authenticator interface {
	Login(ctx context.Context, creds api.Credentials) (model.Identity, string, error)
	Register(ctx context.Context, reg api.Registration) (model.Identity, string, error)
	Me(ctx context.Context, token string) (model.Identity, error)
	Logout(ctx context.Context, token string) error
}

// Store holds the session state.
//
// Thread-safety: all methods are safe for concurrent use.
type Store struct {
	tokens TokenStore
	auth   Authenticator

	mu       sync.Mutex
	state    State
	token    string
	identity model.Identity
	watchers map[int]func(Decision)
	nextID   int

	resolveOnce sync.Once
	resolveErr  error
}

// Open loads the persisted token and returns a Store in Resolving (token
// present) or Anonymous (no token). It does not contact the backend.
func Open(ctx context.Context, tokens TokenStore, auth Authenticator) (*Store, error) {
	token, ok, err := tokens.LoadToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	s := &Store{
		tokens:   tokens,
		auth:     auth,
		state:    Anonymous,
		watchers: make(map[int]func(Decision)),
	}
	if ok && token != "" {
		s.state = Resolving
		s.token = token
	}
	return s, nil
}

// State returns the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// AccessDecision returns the render decision for the current state.
// Repeated calls without an intervening transition return the same value.
func (s *Store) AccessDecision() Decision {
	return Decide(s.State())
}

// Identity returns the confirmed identity. ok is false unless the session
// is Authenticated.
func (s *Store) Identity() (model.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Authenticated {
		return model.Identity{}, false
	}
	return s.identity, true
}

// Token implements oauth2.TokenSource.
func (s *Store) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Authenticated || s.token == "" {
		return nil, ErrNotAuthenticated
	}
	return &oauth2.Token{AccessToken: s.token, TokenType: "Bearer"}, nil
}

// RawToken returns the token held by the session, whatever its state.
func (s *Store) RawToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Subscribe registers fn to be called with the new decision after every
// transition. The returned func unregisters it.
func (s *Store) Subscribe(fn func(Decision)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}

// Resolve confirms a persisted token with the backend. The attempt is made
// at most once per Store: later and concurrent calls wait for and return
// the first attempt's result. It is a no-op unless the Store opened in
// Resolving.
//
// A 401 moves the session to Anonymous; any other failure moves it to
// Rejected. Both clear the persisted token.
func (s *Store) Resolve(ctx context.Context) error {
	s.resolveOnce.Do(func() {
		s.resolveErr = s.resolve(ctx)
	})
	return s.resolveErr
}

func (s *Store) resolve(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Resolving {
		s.mu.Unlock()
		return nil
	}
	token := s.token
	s.mu.Unlock()

	id, err := s.auth.Me(ctx, token)
	if err == nil {
		slog.Debug("session resolved", "user_id", id.ID)
		s.transition(token, func() {
			s.state = Authenticated
			s.identity = id
		})
		return nil
	}

	next := Rejected
	if api.IsUnauthorized(err) {
		next = Anonymous
	}
	slog.Warn("session token rejected", "next", next.String(), "error", err)

	if clearErr := s.tokens.DiscardToken(ctx, token); clearErr != nil {
		slog.Error("clear rejected token", "error", clearErr)
	}
	s.transition(token, func() {
		s.state = next
		s.token = ""
		s.identity = model.Identity{}
	})
	return fmt.Errorf("resolve session: %w", err)
}

// SignIn exchanges credentials for a token and identity, persists the
// token, and moves the session to Authenticated.
func (s *Store) SignIn(ctx context.Context, creds api.Credentials) (model.Identity, error) {
	id, token, err := s.auth.Login(ctx, creds)
	if err != nil {
		if api.IsUnauthorized(err) {
			return model.Identity{}, fmt.Errorf("sign in: %w: %w", ErrInvalidCredentials, err)
		}
		return model.Identity{}, fmt.Errorf("sign in: %w", err)
	}
	if err := s.acquire(ctx, id, token); err != nil {
		return model.Identity{}, fmt.Errorf("sign in: %w", err)
	}
	return id, nil
}

// SignUp registers an account and signs into it.
func (s *Store) SignUp(ctx context.Context, reg api.Registration) (model.Identity, error) {
	id, token, err := s.auth.Register(ctx, reg)
	if err != nil {
		return model.Identity{}, fmt.Errorf("sign up: %w", err)
	}
	if err := s.acquire(ctx, id, token); err != nil {
		return model.Identity{}, fmt.Errorf("sign up: %w", err)
	}
	return id, nil
}

func (s *Store) acquire(ctx context.Context, id model.Identity, token string) error {
	if err := s.tokens.SaveToken(ctx, token); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	s.transition("", func() {
		s.state = Authenticated
		s.token = token
		s.identity = id
	})
	slog.Info("signed in", "user_id", id.ID)
	return nil
}

// SignOut clears the persisted token and moves the session to Anonymous
// before telling the backend. The remote logout is best effort: its
// failure is logged, never returned. SignOut fails only if the local token
// cannot be removed.
func (s *Store) SignOut(ctx context.Context) error {
	token := s.RawToken()

	if err := s.tokens.ClearToken(ctx); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	s.transition("", func() {
		s.state = Anonymous
		s.token = ""
		s.identity = model.Identity{}
	})

	if token != "" {
		if err := s.auth.Logout(context.WithoutCancel(ctx), token); err != nil {
			slog.Warn("remote logout failed", "error", err)
		}
	}
	return nil
}

// transition applies mutate under the lock and notifies watchers if the
// decision changed. A non-empty expect aborts the transition when the held
// token has changed since the caller read it.
func (s *Store) transition(expect string, mutate func()) {
	s.mu.Lock()
	if expect != "" && s.token != expect {
		s.mu.Unlock()
		return
	}
	before := Decide(s.state)
	mutate()
	after := Decide(s.state)

	var notify []func(Decision)
	if before != after {
		for _, fn := range s.watchers {
			notify = append(notify, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range notify {
		fn(after)
	}
}
