package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/roach88/stepsync/internal/dates"
	"github.com/roach88/stepsync/internal/model"
	"github.com/roach88/stepsync/internal/testutil"
)

type fixture struct {
	backend *testutil.Backend
	client  *Client
	userID  int64
	token   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := testutil.MustWallClock("2026-02-03T09:00:00")
	b := testutil.NewBackend(t, clock)
	userID := b.AddUser("ada@example.com", "pw", "Ada")
	token := b.IssueToken(userID)

	c, err := New(b.URL(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
		WithTransport(b.Client().Transport))
	require.NoError(t, err)
	return &fixture{backend: b, client: c, userID: userID, token: token}
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New("ftp://example.com", nil)
	assert.Error(t, err)

	_, err = New("://nope", nil)
	assert.Error(t, err)
}

func TestLogin_Success(t *testing.T) {
	f := newFixture(t)

	id, token, err := f.client.Login(context.Background(), Credentials{Email: " ada@example.com ", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, f.userID, id.ID)
	assert.Equal(t, "Ada", id.Name)
	assert.NotEmpty(t, token)
	assert.True(t, f.backend.TokenLive(token))
}

func TestLogin_InvalidCredentials(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.client.Login(context.Background(), Credentials{Email: "ada@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, "Invalid email or password", UserMessage(err))
}

func TestRegister_ConflictMessageVerbatim(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.client.Register(context.Background(), Registration{
		Name: "Ada", Email: "ada@example.com", Password: "pw", Timezone: "UTC",
	})
	require.Error(t, err)

	var re *RemoteError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, http.StatusConflict, re.Status)
	assert.Equal(t, "Email already registered", UserMessage(err))
	assert.False(t, IsUnauthorized(err))
}

func TestRegister_Success(t *testing.T) {
	f := newFixture(t)

	id, token, err := f.client.Register(context.Background(), Registration{
		Name: "Grace", Email: "grace@example.com", Password: "pw", Timezone: "Europe/Paris",
	})
	require.NoError(t, err)
	assert.Equal(t, "Grace", id.Name)
	assert.Equal(t, "Europe/Paris", id.Timezone)
	assert.NotEmpty(t, token)
}

func TestMe_UsesExplicitToken(t *testing.T) {
	f := newFixture(t)

	id, err := f.client.Me(context.Background(), f.token)
	require.NoError(t, err)
	assert.Equal(t, f.userID, id.ID)

	_, err = f.client.Me(context.Background(), "bogus")
	assert.True(t, IsUnauthorized(err))
}

func TestLogout_RevokesToken(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.client.Logout(context.Background(), f.token))
	assert.False(t, f.backend.TokenLive(f.token))
}

func TestGoals_Report(t *testing.T) {
	f := newFixture(t)
	f.backend.PushNotification(f.userID, model.Notification{ID: 101, Title: "  First 5k ", Message: "Nice"})

	_, err := f.client.WriteSteps(context.Background(), model.StepWrite{
		Owner: f.userID, Date: dates.MustParse("2026-02-03"), StepCount: 5000, Source: model.SourceManual,
	})
	require.NoError(t, err)

	report, err := f.client.Goals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10000, report.Goals.DailyTarget)
	assert.Equal(t, 5000, report.TodaySteps)
	assert.Equal(t, 5000, report.WeeklySteps)
	require.Len(t, report.Notifications, 1)
	assert.Equal(t, "First 5k", report.Notifications[0].Title)
}

func TestGoals_UpdatePauseResume(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.client.UpdateGoals(ctx, 8000, 56000))
	assert.Equal(t, 8000, f.backend.Goals(f.userID).DailyTarget)

	require.NoError(t, f.client.PauseGoals(ctx))
	assert.True(t, f.backend.Goals(f.userID).IsPaused)

	require.NoError(t, f.client.ResumeGoals(ctx))
	assert.False(t, f.backend.Goals(f.userID).IsPaused)

	err := f.client.UpdateGoals(ctx, 0, 10)
	require.Error(t, err)
	assert.Equal(t, "targets must be positive", UserMessage(err))
}

func TestMarkNotificationsRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.client.MarkNotificationsRead(ctx, nil))
	assert.Empty(t, f.backend.ReadBatches(), "empty batch never hits the network")

	require.NoError(t, f.client.MarkNotificationsRead(ctx, []int64{101, 102}))
	assert.Equal(t, [][]int64{{101, 102}}, f.backend.ReadBatches())
}

func TestWriteSteps_EchoesEntry(t *testing.T) {
	f := newFixture(t)
	d := dates.MustParse("2026-02-03")

	entry, err := f.client.WriteSteps(context.Background(), model.StepWrite{
		Owner: f.userID, Date: d, StepCount: 8500, Source: model.SourceDevice,
	})
	require.NoError(t, err)
	assert.Equal(t, 8500, entry.StepCount)
	assert.Equal(t, model.SourceDevice, entry.Source)
	assert.Equal(t, int64(1), entry.Version)

	count, source, ok := f.backend.Steps(model.EntryKey{Owner: f.userID, Date: d})
	require.True(t, ok)
	assert.Equal(t, 8500, count)
	assert.Equal(t, model.SourceDevice, source)
}

func TestWriteSteps_RejectsChallengeID(t *testing.T) {
	f := newFixture(t)

	_, err := f.client.WriteSteps(context.Background(), model.StepWrite{ChallengeID: 3, Date: dates.MustParse("2026-02-03")})
	assert.Error(t, err)
	assert.Zero(t, f.backend.CallCount("POST /steps"))
}

func TestWriteChallengeSteps(t *testing.T) {
	f := newFixture(t)
	d := dates.MustParse("2026-02-03")

	entry, err := f.client.WriteChallengeSteps(context.Background(), model.StepWrite{
		Owner: f.userID, Date: d, ChallengeID: 9, StepCount: 1200, Source: model.SourceManual,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(9), entry.ChallengeID)
	assert.Equal(t, 1, f.backend.CallCount("POST /challenges/{id}/steps"))

	_, err = f.client.WriteChallengeSteps(context.Background(), model.StepWrite{Date: d})
	assert.Error(t, err)
}

func TestRemoteFailure_MessageVerbatim(t *testing.T) {
	f := newFixture(t)
	f.backend.FailNext("POST /steps", http.StatusInternalServerError, "Database is on fire")

	_, err := f.client.WriteSteps(context.Background(), model.StepWrite{
		Owner: f.userID, Date: dates.MustParse("2026-02-03"), StepCount: 1, Source: model.SourceManual,
	})
	require.Error(t, err)
	assert.Equal(t, "Database is on fire", UserMessage(err))
	assert.False(t, IsNetwork(err))
}

func TestNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "t"}))
	require.NoError(t, err)

	_, err = c.Goals(context.Background())
	require.Error(t, err)
	assert.True(t, IsNetwork(err))
	assert.Equal(t, "network error, please try again", UserMessage(err))
}

func TestTokenSourceError_NotSent(t *testing.T) {
	f := newFixture(t)
	sentinel := errors.New("no token")
	c, err := New(f.backend.URL(), failingSource{err: sentinel}, WithTransport(f.backend.Client().Transport))
	require.NoError(t, err)

	_, err = c.Goals(context.Background())
	assert.ErrorIs(t, err, sentinel)
	assert.False(t, IsNetwork(err))
	assert.Zero(t, f.backend.CallCount("GET /goals"))
}

func TestRequestIDHeader(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Request-ID")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, err := New(srv.URL, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "t"}),
		WithRequestIDs(func() string { return "req-1" }))
	require.NoError(t, err)

	require.NoError(t, c.PauseGoals(context.Background()))
	assert.Equal(t, "req-1", got)
}

func TestMalformedGoals(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"goal":{"daily_target":100},"today_steps":-5,"weekly_steps":0}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "t"}))
	require.NoError(t, err)

	_, err = c.Goals(context.Background())
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

type failingSource struct{ err error }

func (s failingSource) Token() (*oauth2.Token, error) { return nil, s.err }
