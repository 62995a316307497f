package health

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stepsync/internal/dates"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "health.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileProvider_Missing(t *testing.T) {
	p := NewFileProvider(filepath.Join(t.TempDir(), "absent.yaml"))
	ctx := context.Background()

	assert.False(t, p.IsAvailable(ctx))
	_, err := p.RequestAuthorization(ctx, []Scope{ScopeStepCount})
	assert.ErrorIs(t, err, ErrUnavailable)

	assert.False(t, NewFileProvider("").IsAvailable(ctx))
}

func TestFileProvider_ReadsSteps(t *testing.T) {
	p := NewFileProvider(writeFile(t, `
authorized: true
steps:
  2026-02-03: 8500
  "2026-02-02": 10240
`))
	ctx := context.Background()

	require.True(t, p.IsAvailable(ctx))
	ok, err := p.RequestAuthorization(ctx, []Scope{ScopeStepCount})
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := p.TotalSteps(ctx, dates.MustParse("2026-02-03"))
	require.NoError(t, err)
	assert.Equal(t, 8500, n)

	n, err = p.TotalSteps(ctx, dates.MustParse("2026-02-02"))
	require.NoError(t, err)
	assert.Equal(t, 10240, n)

	n, err = p.TotalSteps(ctx, dates.MustParse("2026-01-01"))
	require.NoError(t, err)
	assert.Zero(t, n, "no data is zero steps")
}

func TestFileProvider_Denied(t *testing.T) {
	p := NewFileProvider(writeFile(t, "authorized: false\nsteps: {}\n"))

	ok, err := p.RequestAuthorization(context.Background(), []Scope{ScopeStepCount})
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = p.TotalSteps(context.Background(), dates.MustParse("2026-02-03"))
	assert.Error(t, err)
}

func TestFileProvider_ScopeSubset(t *testing.T) {
	p := NewFileProvider(writeFile(t, "authorized: true\nscopes: [heart.read]\n"))

	ok, err := p.RequestAuthorization(context.Background(), []Scope{ScopeStepCount})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileProvider_RejectsUnknownFields(t *testing.T) {
	p := NewFileProvider(writeFile(t, "authorised: true\n"))

	_, err := p.RequestAuthorization(context.Background(), nil)
	assert.Error(t, err)
}

func TestFileProvider_RejectsNegative(t *testing.T) {
	p := NewFileProvider(writeFile(t, "authorized: true\nsteps:\n  2026-02-03: -4\n"))

	_, err := p.TotalSteps(context.Background(), dates.MustParse("2026-02-03"))
	assert.Error(t, err)
}

func TestWriteExport_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "health.yaml")
	require.NoError(t, WriteExport(path, Export{
		Authorized: true,
		Steps:      map[dates.Date]int{dates.MustParse("2026-02-03"): 321},
	}))

	n, err := NewFileProvider(path).TotalSteps(context.Background(), dates.MustParse("2026-02-03"))
	require.NoError(t, err)
	assert.Equal(t, 321, n)
}

func TestFileProvider_ReReadsOnEachCall(t *testing.T) {
	path := writeFile(t, "authorized: true\nsteps:\n  2026-02-03: 100\n")
	p := NewFileProvider(path)
	d := dates.MustParse("2026-02-03")

	n, err := p.TotalSteps(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, 100, n)

	require.NoError(t, os.WriteFile(path, []byte("authorized: true\nsteps:\n  2026-02-03: 250\n"), 0o644))
	n, err = p.TotalSteps(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, 250, n)
}
