// Package gateway is the single write path for step counts.
//
// Every step count, whether typed by the user or reported by a device,
// goes through Gateway.Submit. A submission is validated and checked
// against the edit window locally, written to the backend, and only then
// stored in the local cache as the single entry for its key. A rejected
// remote write leaves the cache untouched.
//
// Submissions for the same key are serialized: each one holds the key's
// lock from its remote call through its cache write, so the cached value
// always comes from the submission that completed last.
//
// The personal log and challenge logs are two scopes of the same Gateway:
//
//	personal := gateway.New(gateway.ScopePersonal, gateway.WriterFunc(client.WriteSteps), db, window)
//	challenge := gateway.New(gateway.ScopeChallenge, gateway.WriterFunc(client.WriteChallengeSteps), db, window)
package gateway
