// Package harness runs end-to-end client scenarios written in YAML.
//
// A scenario starts a fake backend, a manual health provider and a frozen
// wall clock, then drives the real session, submission gateway, device
// sync, metrics and notification queue through a list of steps. Every step
// produces an invocation and a completion in the trace; displays, toasts
// and mark-read calls the core makes on its own appear as effects.
//
// # Scenario Format
//
//	name: scenario_name
//	description: "What this scenario validates"
//	clock: "2026-02-03T09:00:00"
//	deadline_hour: 12
//	users:
//	  - { email: ada@example.com, password: pw, name: Ada }
//	setup:
//	  - action: session.sign_in
//	    args: { email: ada@example.com, password: pw }
//	flow:
//	  - invoke: steps.submit
//	    args: { date: "2026-02-02", steps: "5000" }
//	    expect:
//	      case: Success
//	      result: { step_count: 5000 }
//	assertions:
//	  - type: trace_count
//	    action: notify.display
//	    count: 1
//	  - type: final_state
//	    table: step_entries
//	    where: { date: "2026-02-02" }
//	    expect: { step_count: 5000, source: manual }
//
// Quote dates and timestamps: unquoted they decode as YAML timestamps.
//
// # Assertion Types
//
//   - trace_contains: an invocation or effect appears with matching args
//   - trace_order: actions first appear in the given order
//   - trace_count: an action appears exactly N times
//   - final_state: a row of a local table (step_entries, settings,
//     credentials) has the expected values, or with absent: true, no row
//     matches
//
// # Golden Traces
//
// RunWithGolden compares the trace with testdata/golden/<name>.golden.
// Regenerate with:
//
//	go test ./internal/harness -update
package harness
