// Package config resolves stepsync settings.
//
// Values are layered: built-in defaults, then an optional CUE file validated
// against the embedded #Config schema, then STEPSYNC_* environment
// variables. Command-line flags are applied by the cli package on top of
// the returned Config.
package config
