// Package devicesync pushes device-reported step totals through the
// submission gateway.
//
// A run asks the health provider for authorization, queries the total for
// every currently editable date (today, and yesterday until the deadline
// hour), and submits each positive total with source "device". Zero totals
// are skipped so an unsynced device never overwrites a manual entry.
//
// At most one run is in flight per Reconciler. A run requested while
// another is active fails immediately with ErrSyncInProgress.
//
// Runs are either automatic (on entering the main screen) or manual (the
// user pressed "sync now"). Automatic runs never toast; manual runs toast
// "synced N steps" or "failed to sync". No toast is shown once the run's
// context is cancelled (the screen was left), but a submission whose
// remote write has started still completes.
package devicesync
