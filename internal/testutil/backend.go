package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/roach88/stepsync/internal/dates"
	"github.com/roach88/stepsync/internal/model"
)

// Backend is an in-memory fake of the step competition REST API.
//
// It implements the endpoints the client uses with the same JSON shapes
// as the real service, issues HS256 JWT bearer tokens, and records every
// call so tests can assert on what reached the network.
//
// Thread-safety: all methods are safe for concurrent use.
type Backend struct {
	mu sync.Mutex

	server *httptest.Server
	clock  interface{ Now() time.Time }
	secret []byte

	nextID   int64
	tokenSeq int
	users    map[string]*fakeUser // by email
	tokens   map[string]int64     // live tokens -> user id
	goals    map[int64]*model.Goals
	steps    map[model.EntryKey]fakeEntry
	pending  map[int64][]model.Notification
	batches  [][]int64
	calls    []string
	failures map[string][]failure
	gates    map[string]chan struct{}
}

type fakeUser struct {
	identity model.Identity
	password string
}

type fakeEntry struct {
	count   int
	source  model.Source
	version int64
}

type failure struct {
	status  int
	message string
}

// NewBackend starts a fake backend that is closed when the test ends.
// The clock decides "today" for the metrics endpoint.
func NewBackend(t testing.TB, clock interface{ Now() time.Time }) *Backend {
	t.Helper()

	b := &Backend{
		clock:    clock,
		secret:   []byte("test-secret"),
		nextID:   1,
		users:    make(map[string]*fakeUser),
		tokens:   make(map[string]int64),
		goals:    make(map[int64]*model.Goals),
		steps:    make(map[model.EntryKey]fakeEntry),
		pending:  make(map[int64][]model.Notification),
		failures: make(map[string][]failure),
		gates:    make(map[string]chan struct{}),
	}
	b.server = httptest.NewServer(b.router())
	t.Cleanup(b.server.Close)
	return b
}

// URL returns the server's base URL.
func (b *Backend) URL() string {
	return b.server.URL
}

// Client returns an http.Client for the server.
func (b *Backend) Client() *http.Client {
	return b.server.Client()
}

func (b *Backend) router() http.Handler {
	r := chi.NewRouter()
	r.Use(b.record)

	r.Post("/auth/login", b.handleLogin)
	r.Post("/auth/register", b.handleRegister)

	r.Group(func(r chi.Router) {
		r.Use(b.authenticate)
		r.Get("/auth/me", b.handleMe)
		r.Post("/auth/logout", b.handleLogout)
		r.Get("/goals", b.handleGoals)
		r.Put("/goals", b.handleUpdateGoals)
		r.Post("/goals/pause", b.handlePause(true))
		r.Post("/goals/resume", b.handlePause(false))
		r.Post("/goals/notifications/read", b.handleMarkRead)
		r.Post("/steps", b.handleSteps)
		r.Post("/challenges/{id}/steps", b.handleChallengeSteps)
	})
	return r
}

// AddUser registers an account and returns its id.
func (b *Backend) AddUser(email, password, name string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addUserLocked(email, password, name, "UTC")
}

func (b *Backend) addUserLocked(email, password, name, tz string) int64 {
	id := b.nextID
	b.nextID++
	b.users[strings.ToLower(email)] = &fakeUser{
		identity: model.Identity{ID: id, Email: email, Name: name, Timezone: tz},
		password: password,
	}
	b.goals[id] = &model.Goals{DailyTarget: 10000, WeeklyTarget: 70000}
	return id
}

// IssueToken mints a live token for a user.
func (b *Backend) IssueToken(userID int64) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.issueLocked(userID)
}

func (b *Backend) issueLocked(userID int64) string {
	b.tokenSeq++
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		ID:        strconv.Itoa(b.tokenSeq),
		IssuedAt:  jwt.NewNumericDate(b.clock.Now()),
		ExpiresAt: jwt.NewNumericDate(b.clock.Now().Add(24 * time.Hour)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.secret)
	if err != nil {
		panic(err)
	}
	b.tokens[signed] = userID
	return signed
}

// RevokeToken makes a token invalid.
func (b *Backend) RevokeToken(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.tokens, token)
}

// TokenLive reports whether token is still accepted.
func (b *Backend) TokenLive(token string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.tokens[token]
	return ok
}

// SetGoals replaces a user's goals.
func (b *Backend) SetGoals(userID int64, g model.Goals) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.goals[userID] = &g
}

// Goals returns a user's goals.
func (b *Backend) Goals(userID int64) model.Goals {
	b.mu.Lock()
	defer b.mu.Unlock()
	if g, ok := b.goals[userID]; ok {
		return *g
	}
	return model.Goals{}
}

// PushNotification queues an unread notification for a user. It is
// delivered on every metrics fetch until acknowledged.
func (b *Backend) PushNotification(userID int64, n model.Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending[userID] = append(b.pending[userID], n)
}

// ReadBatches returns each acknowledged id batch in arrival order.
func (b *Backend) ReadBatches() [][]int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([][]int64, len(b.batches))
	for i, batch := range b.batches {
		out[i] = append([]int64(nil), batch...)
	}
	return out
}

// Steps returns the stored count for a key.
func (b *Backend) Steps(key model.EntryKey) (int, model.Source, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.steps[key]
	return e.count, e.source, ok
}

// Calls returns "METHOD /path" for every request received.
func (b *Backend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

// CallCount returns how many times route ("POST /steps") was requested.
func (b *Backend) CallCount(route string) int {
	n := 0
	for _, c := range b.Calls() {
		if c == route {
			n++
		}
	}
	return n
}

// FailNext makes the next request to route fail with status and message.
// Calls queue up: FailNext twice fails the next two requests.
func (b *Backend) FailNext(route string, status int, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[route] = append(b.failures[route], failure{status: status, message: message})
}

// Hold blocks every request to route until the returned release function
// is called. Requests already recorded by Calls are waiting on the gate.
func (b *Backend) Hold(route string) (release func()) {
	gate := make(chan struct{})
	b.mu.Lock()
	b.gates[route] = gate
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			if b.gates[route] == gate {
				delete(b.gates, route)
			}
			b.mu.Unlock()
			close(gate)
		})
	}
}

func (b *Backend) route(r *http.Request) string {
	path := r.URL.Path
	if strings.HasPrefix(path, "/challenges/") {
		path = "/challenges/{id}/steps"
	}
	return r.Method + " " + path
}

// record logs the call, then applies any gate or injected failure.
func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := b.route(r)

		b.mu.Lock()
		b.calls = append(b.calls, route)
		gate := b.gates[route]
		b.mu.Unlock()

		if gate != nil {
			<-gate
		}

		b.mu.Lock()
		var fail *failure
		if q := b.failures[route]; len(q) > 0 {
			fail = &q[0]
			b.failures[route] = q[1:]
		}
		b.mu.Unlock()

		if fail != nil {
			writeError(w, fail.status, fail.message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type ctxUserKey struct{}

func (b *Backend) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			writeError(w, http.StatusUnauthorized, "missing token")
			return
		}

		b.mu.Lock()
		userID, ok := b.tokens[parts[1]]
		b.mu.Unlock()
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		r.Header.Set("X-Test-User", strconv.FormatInt(userID, 10))
		r.Header.Set("X-Test-Token", parts[1])
		next.ServeHTTP(w, r)
	})
}

func userOf(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get("X-Test-User"), 10, 64)
	return id
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.users[strings.ToLower(req.Email)]
	if !ok || u.password != req.Password {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u.identity, "token": b.issueLocked(u.identity.ID)})
}

func (b *Backend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Timezone string `json:"timezone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Email == "" || req.Password == "" || req.Name == "" {
		writeError(w, http.StatusUnprocessableEntity, "name, email and password are required")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.users[strings.ToLower(req.Email)]; exists {
		writeError(w, http.StatusConflict, "Email already registered")
		return
	}
	id := b.addUserLocked(req.Email, req.Password, req.Name, req.Timezone)
	u := b.users[strings.ToLower(req.Email)]
	writeJSON(w, http.StatusCreated, map[string]any{"user": u.identity, "token": b.issueLocked(id)})
}

func (b *Backend) handleMe(w http.ResponseWriter, r *http.Request) {
	userID := userOf(r)

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, u := range b.users {
		if u.identity.ID == userID {
			writeJSON(w, http.StatusOK, map[string]any{"user": u.identity})
			return
		}
	}
	writeError(w, http.StatusUnauthorized, "unknown user")
}

func (b *Backend) handleLogout(w http.ResponseWriter, r *http.Request) {
	b.RevokeToken(r.Header.Get("X-Test-Token"))
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) handleGoals(w http.ResponseWriter, r *http.Request) {
	userID := userOf(r)
	today := dates.Of(b.clock.Now())
	weekStart := today.AddDays(-6)

	b.mu.Lock()
	defer b.mu.Unlock()

	var todaySteps, weekSteps int
	for key, e := range b.steps {
		if key.Owner != userID || key.ChallengeID != 0 {
			continue
		}
		if key.Date == today {
			todaySteps += e.count
		}
		if !key.Date.Before(weekStart) && !today.Before(key.Date) {
			weekSteps += e.count
		}
	}

	g := b.goals[userID]
	if g == nil {
		g = &model.Goals{}
	}
	pending := append([]model.Notification{}, b.pending[userID]...)
	sort.Slice(pending, func(i, j int) bool { return pending[i].ID < pending[j].ID })

	writeJSON(w, http.StatusOK, map[string]any{
		"goal":          g,
		"today_steps":   todaySteps,
		"weekly_steps":  weekSteps,
		"notifications": pending,
	})
}

func (b *Backend) handleUpdateGoals(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DailyTarget  int `json:"daily_target"`
		WeeklyTarget int `json:"weekly_target"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.DailyTarget <= 0 || req.WeeklyTarget <= 0 {
		writeError(w, http.StatusUnprocessableEntity, "targets must be positive")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	g := b.goals[userOf(r)]
	g.DailyTarget = req.DailyTarget
	g.WeeklyTarget = req.WeeklyTarget
	writeJSON(w, http.StatusOK, map[string]any{"goal": g})
}

func (b *Backend) handlePause(paused bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.goals[userOf(r)].IsPaused = paused
		w.WriteHeader(http.StatusNoContent)
	}
}

func (b *Backend) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []int64 `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	userID := userOf(r)
	read := make(map[int64]bool, len(req.IDs))
	for _, id := range req.IDs {
		read[id] = true
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.batches = append(b.batches, append([]int64(nil), req.IDs...))
	kept := b.pending[userID][:0]
	for _, n := range b.pending[userID] {
		if !read[n.ID] {
			kept = append(kept, n)
		}
	}
	b.pending[userID] = kept
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) handleSteps(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date      dates.Date   `json:"date"`
		StepCount *int         `json:"step_count"`
		Source    model.Source `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.StepCount == nil || *req.StepCount < 0 {
		writeError(w, http.StatusUnprocessableEntity, "step_count must be a non-negative integer")
		return
	}
	if req.Source == "" {
		req.Source = model.SourceManual
	}
	b.upsert(w, model.EntryKey{Owner: userOf(r), Date: req.Date}, *req.StepCount, req.Source)
}

func (b *Backend) handleChallengeSteps(w http.ResponseWriter, r *http.Request) {
	challengeID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || challengeID <= 0 {
		writeError(w, http.StatusNotFound, "challenge not found")
		return
	}
	var req struct {
		Date      dates.Date `json:"date"`
		StepCount *int       `json:"step_count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.StepCount == nil || *req.StepCount < 0 {
		writeError(w, http.StatusUnprocessableEntity, "step_count must be a non-negative integer")
		return
	}
	key := model.EntryKey{Owner: userOf(r), Date: req.Date, ChallengeID: challengeID}
	b.upsert(w, key, *req.StepCount, model.SourceManual)
}

func (b *Backend) upsert(w http.ResponseWriter, key model.EntryKey, count int, source model.Source) {
	b.mu.Lock()
	prev := b.steps[key]
	e := fakeEntry{count: count, source: source, version: prev.version + 1}
	b.steps[key] = e
	now := b.clock.Now().UTC()
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"entry": map[string]any{
		"date":       key.Date.String(),
		"step_count": e.count,
		"source":     e.source,
		"version":    e.version,
		"updated_at": now.Format(time.RFC3339),
	}})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// String summarises the backend state for failure messages.
func (b *Backend) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return fmt.Sprintf("backend{users=%d tokens=%d steps=%d}", len(b.users), len(b.tokens), len(b.steps))
}
