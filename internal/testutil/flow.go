package testutil

import "sync"

// SequenceIDs returns predetermined run identifiers in order, then
// repeats the last one.
//
// It satisfies devicesync.IDGenerator so reconciliation logs and golden
// traces contain stable ids.
//
// Thread-safety: SequenceIDs is safe for concurrent use via internal mutex.
type SequenceIDs struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewSequenceIDs creates a generator. With no ids it always returns
// "run-default".
func NewSequenceIDs(ids ...string) *SequenceIDs {
	if len(ids) == 0 {
		ids = []string{"run-default"}
	}
	return &SequenceIDs{ids: ids}
}

// NewID returns the next id.
func (g *SequenceIDs) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.ids[g.idx]
	if g.idx < len(g.ids)-1 {
		g.idx++
	}
	return id
}
