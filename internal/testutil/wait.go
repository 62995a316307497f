package testutil

import "time"

// Polling bounds for require.Eventually in concurrency tests.
const (
	WaitFor = 2 * time.Second
	Tick    = 5 * time.Millisecond
)
