package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: "Sign in and submit"
clock: "2026-02-03T09:00:00"
users:
  - { email: ada@example.com, password: pw, name: Ada }
flow:
  - invoke: session.sign_in
    args: { email: ada@example.com, password: pw }
  - invoke: steps.submit
    args: { date: "2026-02-03", steps: 5000 }
    expect:
      case: Success
      result: { step_count: 5000 }
assertions:
  - type: trace_contains
    action: steps.submit
`

func TestLoadScenario_ValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minimal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario), 0o644))

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "minimal", scenario.Name)
	assert.Equal(t, "2026-02-03T09:00:00", scenario.Clock)
	assert.Nil(t, scenario.DeadlineHour)
	require.Len(t, scenario.Users, 1)
	assert.Equal(t, "ada@example.com", scenario.Users[0].Email)
	require.Len(t, scenario.Flow, 2)
	assert.Equal(t, "steps.submit", scenario.Flow[1].Invoke)
	assert.Equal(t, "2026-02-03", scenario.Flow[1].Args["date"])
	assert.Equal(t, 5000, scenario.Flow[1].Args["steps"])
	require.NotNil(t, scenario.Flow[1].Expect)
	assert.Equal(t, "Success", scenario.Flow[1].Expect.Case)
	assert.Len(t, scenario.Assertions, 1)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_UnknownField(t *testing.T) {
	_, err := ParseScenario([]byte(minimalScenario + "assertion: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_DeadlineHour(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario + "deadline_hour: 18\n"))
	require.NoError(t, err)
	require.NotNil(t, s.DeadlineHour)
	assert.Equal(t, 18, *s.DeadlineHour)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "missing name",
			yaml: `
description: d
clock: "2026-02-03T09:00:00"
flow: [{ invoke: metrics.refresh }]
`,
			wantErr: "name is required",
		},
		{
			name: "missing description",
			yaml: `
name: n
clock: "2026-02-03T09:00:00"
flow: [{ invoke: metrics.refresh }]
`,
			wantErr: "description is required",
		},
		{
			name: "bad clock",
			yaml: `
name: n
description: d
clock: "tomorrow"
flow: [{ invoke: metrics.refresh }]
`,
			wantErr: "clock must look like",
		},
		{
			name: "deadline out of range",
			yaml: `
name: n
description: d
clock: "2026-02-03T09:00:00"
deadline_hour: 24
flow: [{ invoke: metrics.refresh }]
`,
			wantErr: "deadline_hour must be in 0..23",
		},
		{
			name: "empty flow",
			yaml: `
name: n
description: d
clock: "2026-02-03T09:00:00"
flow: []
`,
			wantErr: "flow list is required",
		},
		{
			name: "unknown flow action",
			yaml: `
name: n
description: d
clock: "2026-02-03T09:00:00"
flow: [{ invoke: steps.delete }]
`,
			wantErr: `flow[0]: unknown action "steps.delete"`,
		},
		{
			name: "unknown setup action",
			yaml: `
name: n
description: d
clock: "2026-02-03T09:00:00"
setup: [{ action: clock.rewind }]
flow: [{ invoke: metrics.refresh }]
`,
			wantErr: `setup[0]: unknown action "clock.rewind"`,
		},
		{
			name: "expect without case",
			yaml: `
name: n
description: d
clock: "2026-02-03T09:00:00"
flow:
  - invoke: metrics.refresh
    expect: { result: { today_steps: 0 } }
`,
			wantErr: "expect.case is required",
		},
		{
			name: "user without password",
			yaml: `
name: n
description: d
clock: "2026-02-03T09:00:00"
users: [{ email: ada@example.com }]
flow: [{ invoke: metrics.refresh }]
`,
			wantErr: "users[0]: email and password are required",
		},
		{
			name: "unknown assertion type",
			yaml: `
name: n
description: d
clock: "2026-02-03T09:00:00"
flow: [{ invoke: metrics.refresh }]
assertions: [{ type: trace_absent, action: x }]
`,
			wantErr: `unknown assertion type "trace_absent"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateAssertion(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{"contains ok", Assertion{Type: AssertTraceContains, Action: "steps.submit"}, ""},
		{"contains without action", Assertion{Type: AssertTraceContains}, "requires action"},
		{"order ok", Assertion{Type: AssertTraceOrder, Actions: []string{"a", "b"}}, ""},
		{"order with one action", Assertion{Type: AssertTraceOrder, Actions: []string{"a"}}, "at least 2 actions"},
		{"count ok", Assertion{Type: AssertTraceCount, Action: "notify.display", Count: 0}, ""},
		{"count negative", Assertion{Type: AssertTraceCount, Action: "notify.display", Count: -1}, "non-negative"},
		{"state ok", Assertion{Type: AssertFinalState, Table: "step_entries", Expect: map[string]any{"step_count": 1}}, ""},
		{"state absent ok", Assertion{Type: AssertFinalState, Table: "step_entries", Absent: true}, ""},
		{"state without table", Assertion{Type: AssertFinalState, Expect: map[string]any{"x": 1}}, "requires table"},
		{"state without expect", Assertion{Type: AssertFinalState, Table: "step_entries"}, "requires expect or absent"},
		{"missing type", Assertion{}, "type is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAssertion(tt.assertion)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTestdataScenariosLoad(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			_, err := LoadScenario(path)
			require.NoError(t, err)
		})
	}
}
