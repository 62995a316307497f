package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ClockLayout is the format of scenario timestamps, read in the local zone.
const ClockLayout = "2006-01-02T15:04:05"

// Scenario defines an end-to-end client scenario: a starting wall clock,
// accounts on the fake backend, and a flow of steps run against the real
// session, gateway, device sync and notification code.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Clock is the starting local wall-clock time ("2026-02-03T09:00:00").
	Clock string `yaml:"clock"`

	// DeadlineHour overrides the edit-window deadline hour.
	DeadlineHour *int `yaml:"deadline_hour,omitempty"`

	// Users are registered on the backend before setup runs.
	Users []User `yaml:"users,omitempty"`

	// Setup contains steps that establish initial state. A failing setup
	// step aborts the run.
	Setup []ActionStep `yaml:"setup,omitempty"`

	// Flow contains the steps under test with their expected outcomes.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and cached state.
	// Supported types: trace_contains, trace_order, trace_count, final_state
	Assertions []Assertion `yaml:"assertions"`
}

// User is a backend account.
type User struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// ActionStep is a setup step.
type ActionStep struct {
	// Action names the step (e.g. "session.sign_in").
	Action string `yaml:"action"`

	// Args contains the step arguments.
	Args map[string]any `yaml:"args"`
}

// FlowStep is a step in the main flow.
type FlowStep struct {
	// Invoke names the step.
	Invoke string `yaml:"invoke"`

	// Args contains the step arguments.
	Args map[string]any `yaml:"args"`

	// Expect specifies the expected completion. If nil the step must
	// succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies expected completion behavior.
type ExpectClause struct {
	// Case is the expected output case (e.g. "Success", "EditWindowClosed").
	Case string `yaml:"case"`

	// Result contains expected result fields. Subset match.
	Result map[string]any `yaml:"result,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": Check an action appears in the trace with args
	// - "trace_order": Check actions appear in order
	// - "trace_count": Check an action appears exactly N times
	// - "final_state": Query a cache table and verify expected values
	Type string `yaml:"type"`

	// Action names the step or effect (trace_contains, trace_count).
	Action string `yaml:"action,omitempty"`

	// Args are the expected arguments (trace_contains). Subset match.
	Args map[string]any `yaml:"args,omitempty"`

	// Table is the local table name (final_state).
	Table string `yaml:"table,omitempty"`

	// Where specifies query filters (final_state).
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected column values (final_state). Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Absent makes final_state require that no row matches.
	Absent bool `yaml:"absent,omitempty"`

	// Actions is the expected order (trace_order).
	Actions []string `yaml:"actions,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if _, err := time.ParseInLocation(ClockLayout, s.Clock, time.Local); err != nil {
		return fmt.Errorf("clock must look like %s: %q", ClockLayout, s.Clock)
	}
	if s.DeadlineHour != nil && (*s.DeadlineHour < 0 || *s.DeadlineHour > 23) {
		return fmt.Errorf("deadline_hour must be in 0..23, got %d", *s.DeadlineHour)
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, u := range s.Users {
		if u.Email == "" || u.Password == "" {
			return fmt.Errorf("users[%d]: email and password are required", i)
		}
	}
	for i, step := range s.Setup {
		if _, ok := actions[step.Action]; !ok {
			return fmt.Errorf("setup[%d]: unknown action %q", i, step.Action)
		}
	}
	for i, step := range s.Flow {
		if _, ok := actions[step.Invoke]; !ok {
			return fmt.Errorf("flow[%d]: unknown action %q", i, step.Invoke)
		}
		if step.Expect != nil && step.Expect.Case == "" {
			return fmt.Errorf("flow[%d]: expect.case is required", i)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertion[%d]: %w", i, err)
		}
	}
	return nil
}

// validateAssertion checks that assertion fields match its type.
func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("trace_contains requires action")
		}
	case AssertTraceOrder:
		if len(a.Actions) < 2 {
			return fmt.Errorf("trace_order requires at least 2 actions")
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("trace_count requires action")
		}
		if a.Count < 0 {
			return fmt.Errorf("trace_count requires non-negative count")
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("final_state requires table")
		}
		if len(a.Expect) == 0 && !a.Absent {
			return fmt.Errorf("final_state requires expect or absent")
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
