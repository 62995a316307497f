// Package engine is the main-screen event loop.
//
// The shell (a UI, or the watch command) does not call the reconciler or
// the metrics store from lifecycle hooks. It enqueues events instead:
//
//   - EventScreenEntered: the main screen mounted. Once per mount the
//     engine refreshes metrics and starts an automatic device sync.
//   - EventScreenLeft: the main screen unmounted. Work started for the
//     mount loses its screen context, which silences its toasts; writes
//     already sent still complete.
//   - EventSyncRequested: "sync now". Starts a manual sync.
//   - EventRefreshRequested: refresh metrics.
//
// Events are processed in FIFO order by a single Run goroutine. Work an
// event starts (syncs, refreshes) runs on tracked goroutines so the loop
// never blocks on the network; Wait blocks until that work has finished.
package engine
