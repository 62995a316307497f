// Package model provides the shared domain types of the step client.
//
// This package contains type definitions only. It imports nothing internal
// except the dates leaf package, so every other package can depend on it
// without cycles.
//
// Key design constraints:
//   - At most one StepEntry per EntryKey; the cache is an upsert model.
//   - Version and UpdatedAt are display-only; last write wins.
//   - All JSON tags use snake_case.
package model
