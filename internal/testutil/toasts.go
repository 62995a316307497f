package testutil

import "sync"

// Toasts records transient user messages.
//
// Thread-safety: all methods are safe for concurrent use.
type Toasts struct {
	mu   sync.Mutex
	msgs []string
}

// Toast records msg.
func (t *Toasts) Toast(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.msgs = append(t.msgs, msg)
}

// Messages returns every recorded message in order.
func (t *Toasts) Messages() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.msgs...)
}
