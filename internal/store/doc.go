// Package store provides SQLite-backed durable state for the step client.
//
// The store holds three things:
//   - Credentials: the opaque bearer token under a fixed key (TokenKey).
//     Absence of the row means the session starts Anonymous.
//   - Step entries: the local cache of step counts, keyed by
//     (owner, date, challenge_id). Writes are upserts; the table can never
//     hold two rows for the same key.
//   - Settings: small key/value flags (reminder state).
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON
//
// PRAGMA user_version records the schema version; a database from a
// newer client is refused.
package store
